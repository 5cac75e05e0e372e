package scheduling

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/frontdesk/internal/platform/apperr"
	"github.com/clinicdesk/frontdesk/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/appointments")
	g.GET("", h.List)
	g.POST("", h.Book)
	g.PATCH("/:id/status", h.UpdateStatus)
}

func caller(c echo.Context) *auth.Identity {
	return auth.IdentityFromContext(c.Request().Context())
}

func (h *Handler) List(c echo.Context) error {
	appts, err := h.svc.List(c.Request().Context(), caller(c), c.QueryParam("status"), c.QueryParam("sort"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"appointments": appts})
}

func (h *Handler) Book(c echo.Context) error {
	var req BookingRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("body", "invalid request body")
	}
	a, p, err := h.svc.Book(c.Request().Context(), caller(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"id":          a.ID,
		"patient_id":  p.ID,
		"appointment": a,
	})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("body", "invalid request body")
	}
	st, err := h.svc.UpdateStatus(c.Request().Context(), caller(c), c.Param("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "id": c.Param("id"), "status": st})
}
