package staff

import (
	"context"
	"errors"
	"time"

	"github.com/clinicdesk/frontdesk/internal/platform/auth"
)

var ErrNotFound = errors.New("staff member not found")

type Repository interface {
	// Upsert inserts or updates the row keyed by id, setting email and role.
	Upsert(ctx context.Context, m *Member) error
	GetByID(ctx context.Context, id string) (*Member, error)
	// List returns all rows, newest first.
	List(ctx context.Context) ([]*Member, error)
	UpdateRole(ctx context.Context, id string, role auth.Role) error
	Touch(ctx context.Context, id string, at time.Time) error
	MarkDeprovisioning(ctx context.Context, id string, at time.Time) error
	ClearDeprovisioning(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type identityLoader struct {
	repo Repository
}

// NewIdentityLoader exposes the directory to the identity resolver.
func NewIdentityLoader(repo Repository) auth.IdentityLoader {
	return &identityLoader{repo: repo}
}

func (l *identityLoader) LoadIdentity(ctx context.Context, id string) (*auth.Identity, error) {
	m, err := l.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, auth.ErrIdentityNotFound
	}
	if err != nil {
		return nil, err
	}
	// a member whose deletion has started no longer authenticates
	if m.NeedsReconciliation() {
		return nil, auth.ErrIdentityNotFound
	}
	return m.Identity(), nil
}
