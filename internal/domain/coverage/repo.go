package coverage

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Upsert stores a report, replacing any earlier one for the same
	// hospital and month.
	Upsert(ctx context.Context, r *Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*Report, error)
	Latest(ctx context.Context, hospitalID uuid.UUID) (*Report, error)
	Search(ctx context.Context, f Filter, limit, offset int) ([]*Report, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
