package staff

import (
	"net/http"
	"time"

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
	// Admin endpoints; the service repeats the check with the target loaded.
	admin := api.Group("/admin/staff", auth.RequireAction(auth.ActionListStaff))
	admin.GET("", h.List)
	admin.POST("/invite", h.Invite)
	admin.GET("/reconcile", h.Reconcile)
	admin.PATCH("/:id/role", h.ChangeRole)
	admin.DELETE("/:id", h.Delete)

	api.POST("/presence/ping", h.Ping)
	api.GET("/me", h.Me)
}

// MemberView is a directory row with presence and status derived at read
// time.
type MemberView struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	FullName            *string    `json:"full_name"`
	Role                auth.Role  `json:"role"`
	CreatedAt           time.Time  `json:"created_at"`
	LastSeen            *time.Time `json:"last_seen"`
	Online              bool       `json:"online"`
	LastSeenLabel       string     `json:"last_seen_label"`
	Status              string     `json:"status"`
	NeedsReconciliation bool       `json:"needs_reconciliation"`
}

func newMemberView(m *Member, now time.Time) MemberView {
	return MemberView{
		ID:                  m.ID,
		Email:               m.Email,
		FullName:            m.DisplayName,
		Role:                m.Role,
		CreatedAt:           m.CreatedAt,
		LastSeen:            m.LastSeen,
		Online:              IsOnline(m.LastSeen, now),
		LastSeenLabel:       TimeAgo(m.LastSeen, now),
		Status:              StatusLabel(m.DisplayName),
		NeedsReconciliation: m.NeedsReconciliation(),
	}
}

func caller(c echo.Context) *auth.Identity {
	return auth.IdentityFromContext(c.Request().Context())
}

func (h *Handler) List(c echo.Context) error {
	members, err := h.svc.List(c.Request().Context(), caller(c))
	if err != nil {
		return err
	}
	now := h.svc.Now()
	views := make([]MemberView, 0, len(members))
	for _, m := range members {
		views = append(views, newMemberView(m, now))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"staff": views})
}

type inviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *Handler) Invite(c echo.Context) error {
	var req inviteRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("body", "invalid request body")
	}
	m, err := h.svc.Invite(c.Request().Context(), caller(c), req.Email, req.Role)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "user_id": m.ID, "role": m.Role})
}

func (h *Handler) Delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), caller(c), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true})
}

type roleRequest struct {
	Role string `json:"role"`
}

func (h *Handler) ChangeRole(c echo.Context) error {
	var req roleRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("body", "invalid request body")
	}
	m, err := h.svc.ChangeRole(c.Request().Context(), caller(c), c.Param("id"), req.Role)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newMemberView(m, h.svc.Now()))
}

func (h *Handler) Reconcile(c echo.Context) error {
	items, err := h.svc.Reconcile(c.Request().Context(), caller(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handler) Ping(c echo.Context) error {
	at, err := h.svc.Ping(c.Request().Context(), caller(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "last_seen": at})
}

// Me returns the caller's directory identity. Clients use it for advisory
// UI decisions; every action is still authorized server side.
func (h *Handler) Me(c echo.Context) error {
	id := caller(c)
	if id == nil {
		return apperr.Unauthenticated()
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":        id.ID,
		"email":     id.Email,
		"role":      id.Role,
		"full_name": id.DisplayName,
		"is_admin":  id.IsAdmin(),
		"status":    StatusLabel(id.DisplayName),
	})
}
