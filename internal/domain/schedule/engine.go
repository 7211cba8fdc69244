// Package schedule computes which vaccine doses a child still owes, when they
// fall due and whether the child is keeping up with the immunization calendar.
// Everything here is a pure function of a birth date, a catalog snapshot and a
// vaccination history; persistence belongs to the callers.
package schedule

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vaxtrack/vaxtrack/internal/platform/metrics"
)

// Engine holds the clock and counting rule used to build schedules. It keeps
// no per-child state and is safe for concurrent use.
type Engine struct {
	now           func() time.Time
	completedOnly bool
	metrics       *metrics.Metrics
}

type Option func(*Engine)

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithCompletedDosesOnly counts only completed history entries as doses given.
// By default every record for a vaccine counts, whatever its status, so a
// scheduled or missed record suppresses the reminder for that dose.
func WithCompletedDosesOnly() Option {
	return func(e *Engine) { e.completedOnly = true }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func New(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the engine's notion of the current time.
func (e *Engine) Now() time.Time { return e.now() }

// CompletedOnly reports whether the corrected counting rule is active.
func (e *Engine) CompletedOnly() bool { return e.completedOnly }

// Upcoming returns the next due dose of every catalog vaccine whose series the
// child has not finished, ordered by due date. Vaccines with equal due dates
// keep their catalog order.
func (e *Engine) Upcoming(dob time.Time, catalog []Definition, history []Dose) ([]DueDose, error) {
	start := time.Now()
	today := e.now()

	if dob.IsZero() {
		return nil, ErrMissingBirthDate
	}
	if dob.After(today) {
		return nil, fmt.Errorf("%w: %s", ErrBirthDateInFuture, dob.Format("2006-01-02"))
	}

	given := e.indexHistory(history)

	due := make([]DueDose, 0, len(catalog))
	for _, def := range catalog {
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("vaccine %q: %w", def.Name, err)
		}

		doses := given[def.ID]
		next := doses.count + 1

		age, ok := def.ageFor(next)
		if !ok {
			continue // series complete
		}
		if doses.sequences[next] {
			continue
		}

		dueDate := AddAge(dob, age)
		daysLeft := daysUntil(dueDate, today)

		status := DueUpcoming
		if daysLeft < 0 {
			status = DueOverdue
		}
		due = append(due, DueDose{
			VaccineID:    def.ID,
			Name:         displayName(def.Name, next),
			DoseSequence: next,
			DueDate:      dueDate,
			DaysLeft:     daysLeft,
			Status:       status,
		})
	}

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].DueDate.Before(due[j].DueDate)
	})

	e.metrics.ObserveSchedule(time.Since(start), countOverdue(due), len(due))
	return due, nil
}

// givenDoses is the counted part of a child's history for one vaccine. count
// includes duplicate records; sequences guards against out-of-order entries.
type givenDoses struct {
	count     int
	sequences map[int]bool
}

func (e *Engine) indexHistory(history []Dose) map[uuid.UUID]givenDoses {
	idx := make(map[uuid.UUID]givenDoses)
	for _, d := range history {
		if e.completedOnly && d.Status != DoseCompleted {
			continue
		}
		g := idx[d.VaccineID]
		if g.sequences == nil {
			g.sequences = make(map[int]bool)
		}
		g.count++
		g.sequences[d.Sequence] = true
		idx[d.VaccineID] = g
	}
	return idx
}

func displayName(name string, sequence int) string {
	if sequence > 1 {
		return fmt.Sprintf("%s (Dose %d)", name, sequence)
	}
	return name
}

func countOverdue(due []DueDose) int {
	n := 0
	for _, d := range due {
		if d.Status == DueOverdue {
			n++
		}
	}
	return n
}

// ComputeStatus reduces a list of due doses to a single label. An empty list
// means no catalog vaccine still owes a dose. A child is behind once any dose
// is more than two weeks overdue.
func ComputeStatus(due []DueDose) Status {
	if len(due) == 0 {
		return StatusCompleted
	}
	for _, d := range due {
		if d.DaysLeft < -defaulterGraceDays {
			return StatusBehind
		}
	}
	return StatusUpToDate
}

// ChildStatus is ComputeStatus plus the "never vaccinated" case, which is
// decided from the history rather than the schedule.
func ChildStatus(history []Dose, due []DueDose) Status {
	if len(history) == 0 {
		return StatusNotStarted
	}
	return ComputeStatus(due)
}

// CoverageRate returns completed/total as a whole percentage, rounded to the
// nearest integer. It is 0 when total is 0.
func CoverageRate(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}
