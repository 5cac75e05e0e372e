package patient

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/frontdesk/internal/platform/apperr"
	"github.com/clinicdesk/frontdesk/internal/platform/auth"
	"github.com/clinicdesk/frontdesk/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/patients")
	g.GET("", h.Search)
	g.GET("/options", h.Options)
	g.GET("/:id", h.Get)
	g.POST("", h.Create)
}

func caller(c echo.Context) *auth.Identity {
	return auth.IdentityFromContext(c.Request().Context())
}

func (h *Handler) Search(c echo.Context) error {
	pg, err := pagination.FromContext(c, SearchLimit)
	if err != nil {
		return apperr.Validation("limit", err.Error())
	}
	patients, err := h.svc.Search(c.Request().Context(), caller(c), c.QueryParam("q"), pg.Limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"patients":  patients,
		"limit":     pg.Limit,
		"truncated": pg.Truncated(len(patients)),
	})
}

func (h *Handler) Options(c echo.Context) error {
	opts, err := h.svc.Options(c.Request().Context(), caller(c), c.QueryParam("q"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"options": opts})
}

func (h *Handler) Get(c echo.Context) error {
	p, err := h.svc.Get(c.Request().Context(), caller(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// Create registers a patient, or returns the existing row when the code
// already belongs to the same person.
func (h *Handler) Create(c echo.Context) error {
	var req NewPatient
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("body", "invalid request body")
	}
	p, created, err := h.svc.FindOrCreate(c.Request().Context(), caller(c), Selector{NewPatient: &req})
	if err != nil {
		return err
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, map[string]interface{}{"id": p.ID, "created": created, "patient": p})
}
