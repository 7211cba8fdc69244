package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency bounds Batch when the caller passes no limit.
const DefaultBatchConcurrency = 8

// Subject is one child fed to Batch.
type Subject struct {
	ChildID     uuid.UUID
	DateOfBirth time.Time
	History     []Dose
}

// Result is the schedule of one Subject. Err holds a precondition failure for
// that child only; it does not abort the batch.
type Result struct {
	ChildID  uuid.UUID `json:"child_id"`
	Upcoming []DueDose `json:"upcoming"`
	Status   Status    `json:"status"`
	Err      error     `json:"-"`
}

// Batch computes the schedules of many children concurrently against a shared
// catalog snapshot. Results come back in the order of subjects. The only
// error returned is the context's.
func (e *Engine) Batch(ctx context.Context, subjects []Subject, catalog []Definition, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = DefaultBatchConcurrency
	}
	results := make([]Result, len(subjects))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, subj := range subjects {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			due, err := e.Upcoming(subj.DateOfBirth, catalog, subj.History)
			res := Result{ChildID: subj.ChildID, Err: err}
			if err == nil {
				res.Upcoming = due
				res.Status = ChildStatus(subj.History, due)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
