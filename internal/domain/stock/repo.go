package stock

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, l *Lot) error
	GetByID(ctx context.Context, id uuid.UUID) (*Lot, error)
	// GetForUpdate loads a lot and locks it until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Lot, error)
	Update(ctx context.Context, l *Lot) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, f Filter, limit, offset int) ([]*Lot, int, error)
	ListByHospital(ctx context.Context, hospitalID uuid.UUID) ([]*Lot, error)
	ListByStatus(ctx context.Context, hospitalID *uuid.UUID, statuses []Status) ([]*Lot, error)
}
