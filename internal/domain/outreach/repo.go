package outreach

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository stores a health worker's planned visits and field reports.
type Repository interface {
	CreateVisit(ctx context.Context, v *Visit) error
	GetVisit(ctx context.Context, id uuid.UUID) (*Visit, error)
	UpdateVisit(ctx context.Context, v *Visit) error
	// ListVisits returns matching visits ordered by date and time.
	ListVisits(ctx context.Context, f VisitFilter) ([]*Visit, error)
	// CountVisits counts a worker's visits with the given status in [from, to).
	CountVisits(ctx context.Context, chwID uuid.UUID, status VisitStatus, from, to time.Time) (int, error)

	CreateReport(ctx context.Context, r *FieldReport) error
	// ListReports returns a worker's reports, newest first.
	ListReports(ctx context.Context, chwID uuid.UUID) ([]*FieldReport, error)
}
