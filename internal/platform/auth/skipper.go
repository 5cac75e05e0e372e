package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

var publicRoutes = map[string]bool{
	"/health":    true,
	"/health/db": true,
	"/metrics":   true,
}

// PublicRoute reports whether the matched route is an infrastructure probe
// served without a session. Only reads qualify, and the match is on the
// registered route so unknown paths still require authentication.
func PublicRoute(c echo.Context) bool {
	switch c.Request().Method {
	case http.MethodGet, http.MethodHead:
		return publicRoutes[c.Path()]
	}
	return false
}
