package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/frontdesk/internal/platform/apperr"
	"github.com/clinicdesk/frontdesk/internal/platform/auth"
)

type mockRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (m *mockRecorder) RecordAccess(_ context.Context, entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return m.err
}

func withIdentity(req *http.Request, id *auth.Identity) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), id))
}

func TestRequestID(t *testing.T) {
	e := echo.New()

	t.Run("generates", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

		var seen string
		RequestID()(func(c echo.Context) error {
			seen, _ = c.Get("request_id").(string)
			return nil
		})(c)

		if seen == "" {
			t.Fatal("expected request id to be set")
		}
		if rec.Header().Get(HeaderRequestID) != seen {
			t.Errorf("expected response header %q, got %q", seen, rec.Header().Get(HeaderRequestID))
		}
	})

	t.Run("propagates inbound", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "abc-123")
		c := e.NewContext(req, httptest.NewRecorder())

		var seen string
		RequestID()(func(c echo.Context) error {
			seen, _ = c.Get("request_id").(string)
			return nil
		})(c)

		if seen != "abc-123" {
			t.Errorf("expected inbound id, got %q", seen)
		}
	})
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{ID: "u1", Role: auth.RoleReception}))
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/v1/appointments")
	c.Set("request_id", "rid-7")

	err := Recovery(zerolog.New(&buf))(func(c echo.Context) error {
		panic("nil map write")
	})(c)

	if !apperr.IsKind(err, apperr.KindInternal) {
		t.Fatalf("expected internal error after panic, got %v", err)
	}
	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("bad log line: %v", err)
	}
	if line["user_id"] != "u1" || line["request_id"] != "rid-7" || line["route"] != "/api/v1/appointments" {
		t.Errorf("unexpected log fields: %v", line)
	}
}

func TestRecovery_AbortHandlerPropagates(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	defer func() {
		if r := recover(); r != http.ErrAbortHandler {
			t.Errorf("expected ErrAbortHandler to propagate, got %v", r)
		}
	}()
	Recovery(zerolog.Nop())(func(c echo.Context) error {
		panic(http.ErrAbortHandler)
	})(c)
}

func TestLogger_IncludesUser(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil), &auth.Identity{ID: "u1", Role: auth.RoleNurse})
	c := e.NewContext(req, httptest.NewRecorder())
	c.Set("request_id", "rid-1")

	Logger(logger)(func(c echo.Context) error {
		return apperr.Forbidden("role-not-allowed")
	})(c)

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("invalid log line: %v", err)
	}
	if line["user_id"] != "u1" || line["request_id"] != "rid-1" {
		t.Errorf("unexpected log fields: %v", line)
	}
	if line["status"] != float64(http.StatusForbidden) {
		t.Errorf("expected status 403, got %v", line["status"])
	}
	if line["level"] != "warn" {
		t.Errorf("expected warn level, got %v", line["level"])
	}
}

func TestAudit_RecordsEntry(t *testing.T) {
	rec := &mockRecorder{}
	e := echo.New()
	req := withIdentity(httptest.NewRequest(http.MethodDelete, "/api/v1/admin/staff/u2", nil), &auth.Identity{ID: "a1", Role: auth.RoleAdmin})
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/v1/admin/staff/:id")
	c.SetParamNames("id")
	c.SetParamValues("u2")
	c.Set("request_id", "rid-9")

	err := Audit(zerolog.Nop(), rec)(func(c echo.Context) error {
		return apperr.Forbidden("protected-admin")
	})(c)
	if err == nil {
		t.Fatal("expected handler error to pass through")
	}

	if len(rec.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(rec.entries))
	}
	got := rec.entries[0]
	if got.UserID != "a1" || got.Role != "admin" {
		t.Errorf("unexpected caller: %+v", got)
	}
	if got.Action != "delete" || got.ResourceType != "admin" || got.ResourceID != "u2" {
		t.Errorf("unexpected resource fields: %+v", got)
	}
	if got.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", got.StatusCode)
	}
	if got.RequestID != "rid-9" || got.Route != "/api/v1/admin/staff/:id" {
		t.Errorf("unexpected request fields: %+v", got)
	}
}

func TestAudit_SkipsNonAPIPaths(t *testing.T) {
	rec := &mockRecorder{}
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), httptest.NewRecorder())

	Audit(zerolog.Nop(), rec)(func(c echo.Context) error { return nil })(c)

	if len(rec.entries) != 0 {
		t.Errorf("expected no audit entries for /health, got %d", len(rec.entries))
	}
}

func TestAudit_RecorderFailureDoesNotFailRequest(t *testing.T) {
	rec := &mockRecorder{err: errors.New("redis down")}
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil), httptest.NewRecorder())

	err := Audit(zerolog.Nop(), rec)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})(c)
	if err != nil {
		t.Fatalf("expected recorder failure to be swallowed, got %v", err)
	}
}

func TestExtractResourceType(t *testing.T) {
	cases := map[string]string{
		"/api/v1/patients":          "patients",
		"/api/v1/patients/abc":      "patients",
		"/api/v1/appointments/x/st": "appointments",
		"/api/v1/":                  "unknown",
	}
	for path, want := range cases {
		if got := extractResourceType(path); got != want {
			t.Errorf("extractResourceType(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestHTTPMethodToAction(t *testing.T) {
	cases := map[string]string{
		http.MethodGet:    "read",
		http.MethodPost:   "create",
		http.MethodPatch:  "update",
		http.MethodDelete: "delete",
	}
	for method, want := range cases {
		if got := httpMethodToAction(method); got != want {
			t.Errorf("httpMethodToAction(%s) = %s, want %s", method, got, want)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	ok := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil), rec)
	if err := SecurityHeaders(true)(ok)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
		"Referrer-Policy":        "no-referrer",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if !strings.Contains(rec.Header().Get("Content-Security-Policy"), "default-src 'none'") {
		t.Error("expected restrictive CSP")
	}
	if rec.Header().Get("Strict-Transport-Security") == "" {
		t.Error("expected HSTS when enabled")
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)
	if err := SecurityHeaders(false)(ok)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must be off in development")
	}
	if rec.Header().Get("Cache-Control") != "" {
		t.Error("probe responses are not marked no-store")
	}
}

func TestAudit_SeesIdentityAttachedDownstream(t *testing.T) {
	rec := &mockRecorder{}
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil), httptest.NewRecorder())

	Audit(zerolog.Nop(), rec)(func(c echo.Context) error {
		c.SetRequest(withIdentity(c.Request(), &auth.Identity{ID: "n1", Role: auth.RoleNurse}))
		return c.NoContent(http.StatusOK)
	})(c)

	if len(rec.entries) != 1 || rec.entries[0].UserID != "n1" {
		t.Errorf("expected identity set by a later middleware, got %+v", rec.entries)
	}
}
