// Package coverage produces monthly immunization coverage reports for
// facilities and the analyses built on them.
package coverage

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vaxtrack/vaxtrack/internal/domain/child"
)

// Target is the coverage percentage every vaccine is measured against.
const Target = 90

// EligibilityWindowMonths extends a vaccine's recommended age when counting
// the children it applies to.
const EligibilityWindowMonths = 3

type Status string

const (
	StatusOnTarget   Status = "on_target"
	StatusNearTarget Status = "near_target"
	StatusOffTarget  Status = "off_target"
)

func StatusFor(rate int) Status {
	switch {
	case rate >= Target:
		return StatusOnTarget
	case rate >= 80:
		return StatusNearTarget
	default:
		return StatusOffTarget
	}
}

type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

func TrendFor(current, previous int) Trend {
	switch {
	case current > previous:
		return TrendUp
	case current < previous:
		return TrendDown
	default:
		return TrendStable
	}
}

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

func PriorityFor(gap int) Priority {
	switch {
	case gap > 20:
		return PriorityCritical
	case gap > 10:
		return PriorityHigh
	case gap > 5:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

type Direction string

const (
	DirectionImproving        Direction = "improving"
	DirectionDeclining        Direction = "declining"
	DirectionStable           Direction = "stable"
	DirectionInsufficientData Direction = "insufficient_data"
)

// DirectionOf compares the mean of the last three values with the mean of
// everything before them. A shift of more than two points counts.
func DirectionOf(values []int) Direction {
	if len(values) < 4 {
		return DirectionInsufficientData
	}
	split := len(values) - 3
	recent, earlier := mean(values[split:]), mean(values[:split])
	switch {
	case recent > earlier+2:
		return DirectionImproving
	case recent < earlier-2:
		return DirectionDeclining
	default:
		return DirectionStable
	}
}

func mean(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

// Period is a calendar month.
type Period struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

func (p Period) Validate() error {
	if p.Year < 2000 || p.Year > 9999 || p.Month < time.January || p.Month > time.December {
		return fmt.Errorf("invalid period %d-%d", p.Year, p.Month)
	}
	return nil
}

// Bounds returns the first instant of the month and of the month after it.
func (p Period) Bounds() (from, to time.Time) {
	from = time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

// Add shifts the period by n months.
func (p Period) Add(n int) Period {
	from, _ := p.Bounds()
	return PeriodOf(from.AddDate(0, n, 0))
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// ParsePeriod reads a YYYY-MM string.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("period must be YYYY-MM, got %q", s)
	}
	return PeriodOf(t), nil
}

// VaccineCoverage is one line of a report, stored in the vaccines jsonb column.
type VaccineCoverage struct {
	VaccineID   uuid.UUID `json:"vaccine_id"`
	VaccineName string    `json:"vaccine_name"`
	Target      int       `json:"target"`
	Actual      int       `json:"actual"`
	Gap         int       `json:"gap"`
	Status      Status    `json:"status"`
	Trend       Trend     `json:"trend"`
	Given       int       `json:"vaccinations_given"`
	Eligible    int       `json:"eligible_children"`
}

type Report struct {
	ID            uuid.UUID         `db:"id" json:"id"`
	HospitalID    uuid.UUID         `db:"hospital_id" json:"hospital_id"`
	Period        Period            `json:"period"`
	Vaccines      []VaccineCoverage `db:"vaccines" json:"vaccines"`
	TotalCoverage int               `db:"total_coverage" json:"total_coverage"`
	GeneratedBy   *uuid.UUID        `db:"generated_by" json:"generated_by,omitempty"`
	GeneratedAt   time.Time         `db:"generated_at" json:"generated_at"`
}

// Totals sums the doses given and the eligible children over all vaccines.
func (r *Report) Totals() (given, eligible int) {
	for _, v := range r.Vaccines {
		given += v.Given
		eligible += v.Eligible
	}
	return given, eligible
}

type Filter struct {
	HospitalID *uuid.UUID
	Period     *Period
}

type Gap struct {
	VaccineID       uuid.UUID `json:"vaccine_id"`
	VaccineName     string    `json:"vaccine_name"`
	Current         int       `json:"current_coverage"`
	Target          int       `json:"target"`
	Gap             int       `json:"gap"`
	Priority        Priority  `json:"priority"`
	Recommendations []string  `json:"recommendations"`
}

type Impact struct {
	AdditionalVaccinations int    `json:"additional_vaccinations"`
	ChildrenProtected      int    `json:"potential_children_protected"`
	TimeToClose            string `json:"estimated_time_to_close"`
}

type GapAnalysis struct {
	HospitalID   uuid.UUID `json:"hospital_id"`
	Period       *Period   `json:"period,omitempty"`
	Target       int       `json:"target"`
	Gaps         []Gap     `json:"gaps"`
	TotalGaps    int       `json:"total_gaps"`
	CriticalGaps int       `json:"critical_gaps"`
	Impact       Impact    `json:"estimated_impact"`
}

type TrendPoint struct {
	Period   string `json:"period"`
	Coverage int    `json:"coverage"`
	Given    int    `json:"vaccinations"`
}

type TrendSeries struct {
	VaccineID uuid.UUID    `json:"vaccine_id"`
	Points    []TrendPoint `json:"trends"`
	Average   float64      `json:"average"`
	Direction Direction    `json:"trend_direction"`
}

// Overview is the system-wide vaccination picture shown to administrators.
type Overview struct {
	TotalChildren int                `json:"total_children"`
	ByStatus      child.StatusCounts `json:"by_status"`
	CoverageRate  int                `json:"coverage_rate"`
}
