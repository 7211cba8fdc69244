package child

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vaxtrack/vaxtrack/internal/domain/schedule"
)

type Repository interface {
	Create(ctx context.Context, c *Child) error
	GetByID(ctx context.Context, id uuid.UUID) (*Child, error)
	Update(ctx context.Context, c *Child) error
	Delete(ctx context.Context, id uuid.UUID) error
	ParentOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	Search(ctx context.Context, f Filter, limit, offset int) ([]*Child, int, error)
	ListByParents(ctx context.Context, parentIDs []uuid.UUID) ([]*Child, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status schedule.Status) error
	CountByStatus(ctx context.Context) (StatusCounts, error)
	// CountBornBetween counts active children born in [from, before).
	CountBornBetween(ctx context.Context, from, before time.Time) (int, error)

	CreateGrowthRecord(ctx context.Context, g *GrowthRecord) error
	// ListGrowthRecords returns a child's measurements, newest first.
	ListGrowthRecords(ctx context.Context, childID uuid.UUID) ([]*GrowthRecord, error)
}
