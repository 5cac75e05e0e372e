package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// HTTPErrorHandler renders every error reaching echo as an ErrorResponse.
// Upstream, referential-gap and internal failures are logged; the rest are
// expected outcomes of client input.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		ae := fromError(err)
		rid, _ := c.Get("request_id").(string)

		switch ae.Kind {
		case KindUpstream, KindReferentialGap, KindInternal:
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("kind", ae.Kind.String()).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(ae.Status())
		} else {
			writeErr = c.JSON(ae.Status(), ae.Response())
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Str("request_id", rid).Msg("write error response")
		}
	}
}

func fromError(err error) *Error {
	if ae, ok := As(err); ok {
		return ae
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := fmt.Sprintf("%v", he.Message)
		switch he.Code {
		case http.StatusUnauthorized:
			return Unauthenticated()
		case http.StatusForbidden:
			return Forbidden("role-not-allowed")
		case http.StatusNotFound:
			return &Error{Kind: KindNotFound, Message: msg}
		case http.StatusInternalServerError:
			return Internal(err)
		}
		if he.Code >= 400 && he.Code < 500 {
			return &Error{Kind: KindValidation, Message: msg, statusOverride: he.Code}
		}
		return Internal(err)
	}
	return Internal(err)
}
