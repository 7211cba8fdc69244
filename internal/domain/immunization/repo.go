package immunization

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	Update(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByChild returns a child's history oldest first.
	ListByChild(ctx context.Context, childID uuid.UUID) ([]*Record, error)
	Search(ctx context.Context, f Filter, limit, offset int) ([]*Record, int, error)
	// CountCompleted counts completed doses of vaccineID given in [from, to).
	CountCompleted(ctx context.Context, vaccineID uuid.UUID, from, to time.Time) (int, error)
	// LockChild serialises record writes for one child until the surrounding
	// transaction ends.
	LockChild(ctx context.Context, childID uuid.UUID) error
}
