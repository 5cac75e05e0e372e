package auth

import (
	"context"
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleDoctor    Role = "doctor"
	RoleNurse     Role = "nurse"
	RoleReception Role = "reception"
)

// Roles lists every assignable role.
var Roles = []Role{RoleAdmin, RoleDoctor, RoleNurse, RoleReception}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleNurse, RoleReception:
		return true
	}
	return false
}

// ParseRole normalizes s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Identity is an authenticated staff member as recorded in the directory.
type Identity struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Role        Role       `json:"role"`
	DisplayName *string    `json:"full_name,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastSeen    *time.Time `json:"last_seen,omitempty"`
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a context carrying the resolved identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity set by the resolver, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

func UserIDFromContext(ctx context.Context) string {
	if id := IdentityFromContext(ctx); id != nil {
		return id.ID
	}
	return ""
}

func RoleFromContext(ctx context.Context) Role {
	if id := IdentityFromContext(ctx); id != nil {
		return id.Role
	}
	return ""
}
