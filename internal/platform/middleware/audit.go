package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/frontdesk/internal/platform/auth"
)

// AuditEntry records who touched which staff or clinical record, and how.
type AuditEntry struct {
	Timestamp    time.Time
	RequestID    string
	UserID       string
	Role         string
	Action       string // read, create, update, delete
	ResourceType string // patients, appointments, admin, presence, me
	ResourceID   string
	Method       string
	Path         string
	Route        string
	IPAddress    string
	UserAgent    string
	StatusCode   int
}

// AuditRecorder persists audit entries somewhere durable.
type AuditRecorder interface {
	RecordAccess(ctx context.Context, entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(ctx context.Context, entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(ctx context.Context, entry AuditEntry) error {
	return f(ctx, entry)
}

// Audit logs every /api/v1 request after it completes and hands the entry to
// the optional recorders. Recorder failures are logged and never fail the
// request.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !isAuditablePath(req.URL.Path) {
				return next(c)
			}

			err := next(c)
			// the resolver replaces the request to attach the identity
			req = c.Request()

			entry := AuditEntry{
				Timestamp:    time.Now().UTC(),
				Method:       req.Method,
				Path:         req.URL.Path,
				Route:        c.Path(),
				IPAddress:    c.RealIP(),
				UserAgent:    req.UserAgent(),
				StatusCode:   responseStatus(c, err),
				Action:       httpMethodToAction(req.Method),
				ResourceType: extractResourceType(req.URL.Path),
				ResourceID:   c.Param("id"),
			}
			if id := auth.IdentityFromContext(req.Context()); id != nil {
				entry.UserID = id.ID
				entry.Role = string(id.Role)
			}
			entry.RequestID, _ = c.Get("request_id").(string)

			for _, rec := range recorders {
				if rec == nil {
					continue
				}
				if recErr := rec.RecordAccess(req.Context(), entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "phi_access").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Str("role", entry.Role).
				Str("resource_type", entry.ResourceType).
				Str("resource_id", entry.ResourceID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("phi_access")

			return err
		}
	}
}

func responseStatus(c echo.Context, err error) int {
	if sc, ok := err.(interface{ Status() int }); ok {
		return sc.Status()
	}
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	if err != nil && !c.Response().Committed {
		return http.StatusInternalServerError
	}
	return c.Response().Status
}

func isAuditablePath(path string) bool {
	return strings.HasPrefix(path, "/api/v1/")
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// extractResourceType returns the first segment after /api/v1/, e.g.
// /api/v1/patients/123 -> patients.
func extractResourceType(path string) string {
	rest := strings.TrimPrefix(path, "/api/v1/")
	if seg, _, _ := strings.Cut(rest, "/"); seg != "" {
		return seg
	}
	return "unknown"
}
