package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/frontdesk/internal/platform/apperr"
)

// ErrIdentityNotFound is returned by an IdentityLoader when the subject has
// no directory row.
var ErrIdentityNotFound = errors.New("identity not found")

// TokenVerifier turns a session token into a subject id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// IdentityLoader reads the directory row for an account id. It is consulted
// on every request so role changes and deletions take effect immediately.
type IdentityLoader interface {
	LoadIdentity(ctx context.Context, id string) (*Identity, error)
}

type Resolver struct {
	verifier   TokenVerifier
	loader     IdentityLoader
	cookieName string
	logger     zerolog.Logger
}

func NewResolver(verifier TokenVerifier, loader IdentityLoader, cookieName string, logger zerolog.Logger) *Resolver {
	return &Resolver{verifier: verifier, loader: loader, cookieName: cookieName, logger: logger}
}

// Resolve maps the request's session credential to a directory identity.
// Every failure, including a store error, yields apperr.Unauthenticated.
func (r *Resolver) Resolve(req *http.Request) (*Identity, error) {
	token := TokenFromRequest(req, r.cookieName)
	if token == "" {
		return nil, apperr.Unauthenticated()
	}

	subject, err := r.verifier.Verify(token)
	if err != nil {
		r.logger.Debug().Err(err).Msg("session credential rejected")
		return nil, apperr.Unauthenticated()
	}

	id, err := r.loader.LoadIdentity(req.Context(), subject)
	switch {
	case errors.Is(err, ErrIdentityNotFound):
		r.logger.Info().Str("user_id", subject).Msg("authenticated subject has no directory entry")
		return nil, apperr.Unauthenticated()
	case err != nil:
		r.logger.Error().Err(err).Str("user_id", subject).Msg("identity lookup failed")
		return nil, apperr.Unauthenticated()
	case id == nil || !id.Role.Valid():
		r.logger.Warn().Str("user_id", subject).Msg("directory entry has no usable role")
		return nil, apperr.Unauthenticated()
	}
	return id, nil
}

// Middleware resolves the identity for every non-public request and stores
// it on the request context.
func (r *Resolver) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if PublicRoute(c) {
				return next(c)
			}
			id, err := r.Resolve(c.Request())
			if err != nil {
				return err
			}
			c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
			return next(c)
		}
	}
}
