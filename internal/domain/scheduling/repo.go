package scheduling

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("appointment not found")

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	// List returns appointments joined with their patient summary, earliest
	// first, at most limit rows.
	List(ctx context.Context, limit int) ([]*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
}
