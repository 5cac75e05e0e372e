package pagination

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// Params holds the row bound extracted from a request.
type Params struct {
	Limit int
	Max   int
}

// FromContext reads the "limit" query parameter, bounded to 1..max. An
// absent, zero or oversized limit yields max. A value that is not an integer
// is an error.
func FromContext(c echo.Context, max int) (Params, error) {
	p := Params{Limit: max, Max: max}
	raw := strings.TrimSpace(c.QueryParam("limit"))
	if raw == "" {
		return p, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return p, fmt.Errorf("limit must be an integer")
	}
	if n > 0 && n < max {
		p.Limit = n
	}
	return p, nil
}

// Truncated reports whether a result of n rows may have been cut off by the
// limit.
func (p Params) Truncated(n int) bool {
	return n >= p.Limit
}
