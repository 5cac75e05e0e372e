package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/frontdesk/internal/platform/apperr"
	"github.com/clinicdesk/frontdesk/internal/platform/auth"
)

// Recovery turns a handler panic into an internal apperr so the client gets
// the standard error body. http.ErrAbortHandler is re-raised for net/http.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if e, ok := r.(error); ok && errors.Is(e, http.ErrAbortHandler) {
					panic(r)
				}

				rid, _ := c.Get("request_id").(string)
				ev := logger.Error().
					Str("request_id", rid).
					Str("method", c.Request().Method).
					Str("route", c.Path()).
					Interface("panic", r).
					Bytes("stack", debug.Stack())
				if id := auth.IdentityFromContext(c.Request().Context()); id != nil {
					ev = ev.Str("user_id", id.ID)
				}
				ev.Msg("handler panicked")

				err = apperr.Internal(fmt.Errorf("panic in %s %s: %v", c.Request().Method, c.Path(), r))
			}()
			return next(c)
		}
	}
}
