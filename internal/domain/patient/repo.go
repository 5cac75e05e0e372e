package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("patient not found")
	// ErrCodeTaken is returned by Create when patient_code is already used.
	ErrCodeTaken = errors.New("patient code already exists")
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByCode(ctx context.Context, code string) (*Patient, error)
	// Search matches query against full_name, newest first.
	Search(ctx context.Context, query string, limit int) ([]*Patient, error)
	// Options matches query against code or name, ordered by code.
	Options(ctx context.Context, query string, limit int) ([]*Option, error)
}
