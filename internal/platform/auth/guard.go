package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/frontdesk/internal/platform/apperr"
)

type Action string

const (
	ActionListStaff       Action = "staff:list"
	ActionInviteStaff     Action = "staff:invite"
	ActionDeleteStaff     Action = "staff:delete"
	ActionChangeStaffRole Action = "staff:change-role"
	ActionReconcileStaff  Action = "staff:reconcile"
	ActionPresencePing    Action = "presence:ping"

	ActionReadPatients           Action = "patient:read"
	ActionCreatePatient          Action = "patient:create"
	ActionReadAppointments       Action = "appointment:read"
	ActionBookAppointment        Action = "appointment:create"
	ActionUpdateAppointmentState Action = "appointment:update-status"
)

// Deny reasons.
const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonRoleNotAllowed  = "role-not-allowed"
	ReasonSelfDelete      = "self-delete"
	ReasonProtectedAdmin  = "protected-admin"
	ReasonMissingTarget   = "missing-target"
	ReasonUnknownAction   = "unknown-action"
)

var adminActions = map[Action]bool{
	ActionListStaff:       true,
	ActionInviteStaff:     true,
	ActionDeleteStaff:     true,
	ActionChangeStaffRole: true,
	ActionReconcileStaff:  true,
}

var staffActions = map[Action]bool{
	ActionPresencePing:           true,
	ActionReadPatients:           true,
	ActionCreatePatient:          true,
	ActionReadAppointments:       true,
	ActionBookAppointment:        true,
	ActionUpdateAppointmentState: true,
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision              { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Reason: reason} }

// Authorize decides whether caller may perform action, optionally against a
// target staff identity. Rules are evaluated in a fixed order and anything
// not explicitly allowed is denied.
func Authorize(caller *Identity, action Action, target *Identity) Decision {
	if caller == nil {
		return deny(ReasonUnauthenticated)
	}
	if !caller.Role.Valid() {
		return deny(ReasonRoleNotAllowed)
	}

	switch {
	case adminActions[action]:
		if caller.Role != RoleAdmin {
			return deny(ReasonRoleNotAllowed)
		}
		if action == ActionDeleteStaff {
			if target == nil {
				return deny(ReasonMissingTarget)
			}
			if target.ID == caller.ID {
				return deny(ReasonSelfDelete)
			}
			if target.Role == RoleAdmin {
				return deny(ReasonProtectedAdmin)
			}
		}
		return allow()
	case staffActions[action]:
		return allow()
	}
	return deny(ReasonUnknownAction)
}

// Require converts a denial into the matching apperr.
func Require(caller *Identity, action Action, target *Identity) error {
	d := Authorize(caller, action, target)
	if d.Allowed {
		return nil
	}
	if d.Reason == ReasonUnauthenticated {
		return apperr.Unauthenticated()
	}
	return apperr.Forbidden(d.Reason)
}

// RequireAction is route-level middleware running the same check without a
// target. Services repeat the check with the target loaded.
func RequireAction(action Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller := IdentityFromContext(c.Request().Context())
			if action == ActionDeleteStaff {
				// target is unknown here; only the role part applies
				if err := Require(caller, ActionListStaff, nil); err != nil {
					return err
				}
				return next(c)
			}
			if err := Require(caller, action, nil); err != nil {
				return err
			}
			return next(c)
		}
	}
}
