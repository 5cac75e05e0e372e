// Package telemetry exposes Prometheus metrics for HTTP traffic, the record
// store pool and the staff and booking workflows.
package telemetry

import (
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "frontdesk"

// Outcome labels for workflow counters.
const (
	OutcomeOK             = "ok"
	OutcomeFailed         = "failed"
	OutcomeReferentialGap = "referential_gap"
	OutcomeIDPFailed      = "idp_failed"
	OutcomeDirectoryGap   = "directory_failed"
)

// Metrics owns a private registry. A nil *Metrics is valid and records
// nothing, so services can be built without it in tests.
type Metrics struct {
	registry *prometheus.Registry

	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	bookings     *prometheus.CounterVec
	patients     prometheus.Counter
	invites      *prometheus.CounterVec
	deprovisions *prometheus.CounterVec
	presence     prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointment_bookings_total",
			Help:      "Appointment booking attempts by outcome.",
		}, []string{"outcome"}),
		patients: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patients_created_total",
			Help:      "Patients inserted into the registry.",
		}),
		invites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "staff_invites_total",
			Help:      "Staff invitations by outcome.",
		}, []string{"outcome"}),
		deprovisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "staff_deprovisions_total",
			Help:      "Staff deletions by outcome.",
		}, []string{"outcome"}),
		presence: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_pings_total",
			Help:      "Presence pings recorded.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.latency, m.bookings, m.patients, m.invites, m.deprovisions, m.presence,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObservePool registers gauges reading the pool's live statistics.
func (m *Metrics) ObservePool(pool *pgxpool.Pool) {
	if m == nil || pool == nil {
		return
	}
	gauge := func(name, help string, f func(*pgxpool.Stat) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return f(pool.Stat()) })
	}
	m.registry.MustRegister(
		gauge("acquired_conns", "Connections currently in use.", func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
		gauge("idle_conns", "Idle connections.", func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
		gauge("total_conns", "Total open connections.", func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }),
	)
}

// Middleware records request count and latency keyed by route template so
// ids in paths do not explode cardinality.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if sc, ok := err.(interface{ Status() int }); ok {
					status = sc.Status()
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.requests.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			m.latency.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

func (m *Metrics) BookingAttempt(outcome string) {
	if m != nil {
		m.bookings.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) PatientCreated() {
	if m != nil {
		m.patients.Inc()
	}
}

func (m *Metrics) Invite(outcome string) {
	if m != nil {
		m.invites.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Deprovision(outcome string) {
	if m != nil {
		m.deprovisions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) PresencePing() {
	if m != nil {
		m.presence.Inc()
	}
}
