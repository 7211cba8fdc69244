// Package outreach builds the community health worker views: the mothers a
// worker follows up, their children's next doses, and who is defaulting.
package outreach

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vaxtrack/vaxtrack/internal/domain/child"
	"github.com/vaxtrack/vaxtrack/internal/domain/schedule"
)

type MotherStatus string

const (
	MotherDefaulting MotherStatus = "defaulting"
	MotherUpToDate   MotherStatus = "up-to-date"
)

// FullyVaccinated is reported as the next vaccine of a child that owes none.
const FullyVaccinated = "Fully Vaccinated"

// UpcomingDays is how far ahead of today Stats counts scheduled visits,
// both ends included.
const UpcomingDays = 30

type Query struct {
	Search string
	// Status keeps only mothers with this status; empty or "all" keeps everyone.
	Status string
}

type ChildSummary struct {
	ID          uuid.UUID          `json:"id"`
	Name        string             `json:"name"`
	DateOfBirth time.Time          `json:"date_of_birth"`
	Gender      child.Gender       `json:"gender"`
	AgeMonths   int                `json:"age_months"`
	Status      schedule.Status    `json:"status"`
	Upcoming    []schedule.DueDose `json:"upcoming"`
	NextVaccine string             `json:"next_vaccine"`
	DueDate     *time.Time         `json:"due_date"`
	DaysLeft    *int               `json:"days_left"`
}

func (c ChildSummary) defaulting() bool {
	if c.Status == schedule.StatusBehind {
		return true
	}
	for _, d := range c.Upcoming {
		if d.Status == schedule.DueOverdue {
			return true
		}
	}
	return false
}

type MotherSummary struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Phone     string         `json:"phone"`
	Village   string         `json:"village"`
	SubCounty string         `json:"sub_county"`
	LastVisit *time.Time     `json:"last_visit"`
	Status    MotherStatus   `json:"status"`
	Children  []ChildSummary `json:"children"`
}

// Defaulter is a child who has fallen behind, with the doses they owe.
type Defaulter struct {
	ChildID     uuid.UUID          `json:"child_id"`
	ChildName   string             `json:"child_name"`
	DateOfBirth time.Time          `json:"date_of_birth"`
	MotherID    uuid.UUID          `json:"mother_id"`
	MotherName  string             `json:"mother_name"`
	MotherPhone string             `json:"mother_phone"`
	Village     string             `json:"village"`
	Overdue     []schedule.DueDose `json:"overdue"`
	DaysOverdue int                `json:"days_overdue"`
}

type Stats struct {
	AssignedMothers      int `json:"assigned_mothers"`
	UpcomingAppointments int `json:"upcoming_appointments"`
	Defaulters           int `json:"defaulters"`
	CoverageRate         int `json:"coverage_rate"`
}

type VisitType string

const (
	VisitHome         VisitType = "home_visit"
	VisitFacility     VisitType = "facility_visit"
	VisitFollowUp     VisitType = "follow_up"
	VisitVaccination  VisitType = "vaccination"
	VisitRoutineCheck VisitType = "routine_check"
)

var validVisitTypes = map[VisitType]bool{
	VisitHome: true, VisitFacility: true, VisitFollowUp: true, VisitVaccination: true, VisitRoutineCheck: true,
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var validPriorities = map[Priority]bool{
	PriorityLow: true, PriorityMedium: true, PriorityHigh: true, PriorityCritical: true,
}

type VisitStatus string

const (
	VisitScheduled  VisitStatus = "scheduled"
	VisitInProgress VisitStatus = "in_progress"
	VisitCompleted  VisitStatus = "completed"
	VisitCancelled  VisitStatus = "cancelled"
	VisitNoShow     VisitStatus = "no_show"
)

var validVisitStatuses = map[VisitStatus]bool{
	VisitScheduled: true, VisitInProgress: true, VisitCompleted: true, VisitCancelled: true, VisitNoShow: true,
}

// Terminal reports whether the visit is closed to further changes.
func (s VisitStatus) Terminal() bool {
	return s == VisitCompleted || s == VisitCancelled || s == VisitNoShow
}

const DefaultVisitMinutes = 30

var timeOfDay = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

type Location struct {
	SubCounty string   `json:"sub_county,omitempty"`
	Ward      string   `json:"ward,omitempty"`
	Village   string   `json:"village,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Label is "village, ward, sub-county" with blanks dropped, or "N/A".
func (l Location) Label() string {
	var parts []string
	for _, p := range []string{l.Village, l.Ward, l.SubCounty} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "N/A"
	}
	return strings.Join(parts, ", ")
}

// Visit is an outreach activity a health worker has planned.
type Visit struct {
	ID              uuid.UUID   `db:"id" json:"id"`
	HealthWorkerID  uuid.UUID   `db:"health_worker_id" json:"health_worker_id"`
	MotherID        *uuid.UUID  `db:"mother_id" json:"mother_id,omitempty"`
	ChildID         *uuid.UUID  `db:"child_id" json:"child_id,omitempty"`
	Type            VisitType   `db:"type" json:"type"`
	ScheduledDate   time.Time   `db:"scheduled_date" json:"scheduled_date"`
	ScheduledTime   string      `db:"scheduled_time" json:"scheduled_time"`
	DurationMinutes int         `db:"duration_minutes" json:"duration_minutes"`
	Location        Location    `json:"location"`
	LocationLabel   string      `json:"location_label"`
	Purpose         string      `db:"purpose" json:"purpose"`
	Priority        Priority    `db:"priority" json:"priority"`
	Status          VisitStatus `db:"status" json:"status"`
	CompletedAt     *time.Time  `db:"completed_at" json:"completed_at,omitempty"`
	Notes           *string     `db:"notes" json:"notes,omitempty"`
	Outcome         *string     `db:"outcome" json:"outcome,omitempty"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

// VisitPatch is a partial update; nil fields are left alone.
type VisitPatch struct {
	Type            *VisitType   `json:"type"`
	ScheduledDate   *time.Time   `json:"scheduled_date"`
	ScheduledTime   *string      `json:"scheduled_time"`
	DurationMinutes *int         `json:"duration_minutes"`
	Location        *Location    `json:"location"`
	Purpose         *string      `json:"purpose"`
	Priority        *Priority    `json:"priority"`
	Status          *VisitStatus `json:"status"`
	Notes           *string      `json:"notes"`
	Outcome         *string      `json:"outcome"`
}

// VisitFilter narrows a worker's visits. From is inclusive, To exclusive.
type VisitFilter struct {
	HealthWorkerID uuid.UUID
	Status         VisitStatus
	From           *time.Time
	To             *time.Time
}

type ReportStatus string

const (
	ReportDraft     ReportStatus = "draft"
	ReportSubmitted ReportStatus = "submitted"
	ReportApproved  ReportStatus = "approved"
)

var validReportStatuses = map[ReportStatus]bool{ReportDraft: true, ReportSubmitted: true, ReportApproved: true}

type Activities struct {
	MothersVisited      int `json:"mothers_visited"`
	VaccinationsGiven   int `json:"vaccinations_given"`
	FollowUps           int `json:"follow_ups"`
	NewRegistrations    int `json:"new_registrations"`
	DefaultersContacted int `json:"defaulters_contacted"`
}

func (a Activities) valid() bool {
	return a.MothersVisited >= 0 && a.VaccinationsGiven >= 0 && a.FollowUps >= 0 &&
		a.NewRegistrations >= 0 && a.DefaultersContacted >= 0
}

// FieldReport is a health worker's account of one day in the field.
type FieldReport struct {
	ID             uuid.UUID    `db:"id" json:"id"`
	HealthWorkerID uuid.UUID    `db:"health_worker_id" json:"health_worker_id"`
	ReportDate     time.Time    `db:"report_date" json:"report_date"`
	Location       Location     `json:"location"`
	Activities     Activities   `json:"activities"`
	Challenges     *string      `db:"challenges" json:"challenges,omitempty"`
	Achievements   *string      `db:"achievements" json:"achievements,omitempty"`
	Notes          *string      `db:"notes" json:"notes,omitempty"`
	NextDayPlan    *string      `db:"next_day_plan" json:"next_day_plan,omitempty"`
	Status         ReportStatus `db:"status" json:"status"`
	SubmittedAt    time.Time    `db:"submitted_at" json:"submitted_at"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}
