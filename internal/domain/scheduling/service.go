package scheduling

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/frontdesk/internal/domain/patient"
	"github.com/clinicdesk/frontdesk/internal/platform/apperr"
	"github.com/clinicdesk/frontdesk/internal/platform/auth"
	"github.com/clinicdesk/frontdesk/internal/platform/telemetry"
)

const slotLayout = "2006-01-02 15:04"

// PatientResolver is step 1 of a booking.
type PatientResolver interface {
	FindOrCreate(ctx context.Context, caller *auth.Identity, sel patient.Selector) (*patient.Patient, bool, error)
}

type Service struct {
	repo     Repository
	patients PatientResolver
	loc      *time.Location
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
}

func NewService(repo Repository, patients PatientResolver, loc *time.Location, logger zerolog.Logger, metrics *telemetry.Metrics) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:     repo,
		patients: patients,
		loc:      loc,
		logger:   logger.With().Str("component", "scheduling").Logger(),
		metrics:  metrics,
	}
}

type slot struct {
	startsAt   time.Time
	doctor     string
	department string
	status     Status
}

func (s *Service) validate(req BookingRequest) (slot, error) {
	sl := slot{
		doctor:     strings.TrimSpace(req.DoctorName),
		department: strings.TrimSpace(req.Department),
		status:     StatusWaiting,
	}
	if sl.doctor == "" {
		return sl, apperr.Validation("doctor_name", "doctor name is required")
	}
	if sl.department == "" {
		return sl, apperr.Validation("department", "department is required")
	}
	date, clock := strings.TrimSpace(req.Date), strings.TrimSpace(req.Time)
	if date == "" {
		return sl, apperr.Validation("date", "date is required")
	}
	if clock == "" {
		return sl, apperr.Validation("time", "time is required")
	}
	at, err := time.ParseInLocation(slotLayout, date+" "+clock, s.loc)
	if err != nil {
		return sl, apperr.Validation("date", "date must be YYYY-MM-DD and time HH:MM")
	}
	sl.startsAt = at
	if strings.TrimSpace(req.Status) != "" {
		st, ok := ParseStatus(req.Status)
		if !ok {
			return sl, apperr.Validation("status", "status must be Waiting, Confirmed or Cancelled")
		}
		sl.status = st
	}
	return sl, nil
}

// Book resolves the patient and then inserts the appointment. The
// appointment insert only runs once the patient row is committed. When the
// insert fails after a new patient was created, the patient is kept and the
// error is a referential gap naming it.
func (s *Service) Book(ctx context.Context, caller *auth.Identity, req BookingRequest) (*Appointment, *patient.Patient, error) {
	if err := auth.Require(caller, auth.ActionBookAppointment, nil); err != nil {
		return nil, nil, err
	}
	sl, err := s.validate(req)
	if err != nil {
		return nil, nil, err
	}

	p, created, err := s.patients.FindOrCreate(ctx, caller, req.Selector)
	if err != nil {
		s.metrics.BookingAttempt(telemetry.OutcomeFailed)
		return nil, nil, err
	}

	a := &Appointment{
		PatientID:  p.ID,
		StartsAt:   sl.startsAt,
		DoctorName: sl.doctor,
		Department: sl.department,
		Status:     sl.status,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		if created {
			s.metrics.BookingAttempt(telemetry.OutcomeReferentialGap)
			s.logger.Error().Err(err).
				Str("actor_id", caller.ID).
				Str("patient_id", p.ID.String()).
				Msg("patient created but appointment insert failed")
			return nil, p, apperr.ReferentialGap(p.ID.String(), err)
		}
		s.metrics.BookingAttempt(telemetry.OutcomeFailed)
		return nil, p, apperr.Upstream("create appointment", err)
	}

	a.Patient = summarize(p)
	s.metrics.BookingAttempt(telemetry.OutcomeOK)
	s.logger.Info().
		Str("actor_id", caller.ID).
		Str("appointment_id", a.ID.String()).
		Str("patient_id", p.ID.String()).
		Bool("patient_created", created).
		Msg("appointment booked")
	return a, p, nil
}

// List returns appointments selected and ordered by the filter and sort
// query values.
func (s *Service) List(ctx context.Context, caller *auth.Identity, filter, sortKey string) ([]*Appointment, error) {
	if err := auth.Require(caller, auth.ActionReadAppointments, nil); err != nil {
		return nil, err
	}
	view, err := ParseView(filter, sortKey)
	if err != nil {
		return nil, err
	}
	appts, err := s.repo.List(ctx, ListLimit)
	if err != nil {
		return nil, apperr.Upstream("list appointments", err)
	}
	for _, a := range appts {
		a.StartsAt = a.StartsAt.In(s.loc)
	}
	return view.Apply(appts), nil
}

// UpdateStatus sets the status of an appointment. Any status may follow any
// other.
func (s *Service) UpdateStatus(ctx context.Context, caller *auth.Identity, id, status string) (Status, error) {
	if err := auth.Require(caller, auth.ActionUpdateAppointmentState, nil); err != nil {
		return "", err
	}
	aid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", apperr.Validation("id", "appointment id is not a valid id")
	}
	st, ok := ParseStatus(status)
	if !ok {
		return "", apperr.Validation("status", "status must be Waiting, Confirmed or Cancelled")
	}
	if err := s.repo.UpdateStatus(ctx, aid, st); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", apperr.NotFound("appointment")
		}
		return "", apperr.Upstream("update appointment status", err)
	}
	s.logger.Info().
		Str("actor_id", caller.ID).
		Str("appointment_id", aid.String()).
		Str("status", string(st)).
		Msg("appointment status changed")
	return st, nil
}
