package vaccine

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, v *Vaccine) error
	// CreateIfAbsent inserts v unless its code is taken and reports whether a
	// row was written.
	CreateIfAbsent(ctx context.Context, v *Vaccine) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Vaccine, error)
	GetByCode(ctx context.Context, code string) (*Vaccine, error)
	Update(ctx context.Context, v *Vaccine) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Vaccine, int, error)
	ListActive(ctx context.Context) ([]*Vaccine, error)
}
