package appointment

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeVaccination  Type = "vaccination"
	TypeRoutineCheck Type = "routine_check"
	TypeFollowUp     Type = "follow_up"
	TypeConsultation Type = "consultation"
)

var validTypes = map[Type]bool{
	TypeVaccination: true, TypeRoutineCheck: true, TypeFollowUp: true, TypeConsultation: true,
}

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

var validStatuses = map[Status]bool{
	StatusScheduled: true, StatusConfirmed: true, StatusCompleted: true, StatusCancelled: true, StatusNoShow: true,
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// openStatuses are the states listed as reminders.
var openStatuses = []Status{StatusScheduled, StatusConfirmed}

const DefaultDurationMinutes = 30

var timeOfDay = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Appointment is a facility visit booked for a child.
type Appointment struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	HospitalID      uuid.UUID  `db:"hospital_id" json:"hospital_id"`
	ChildID         uuid.UUID  `db:"child_id" json:"child_id"`
	MotherID        uuid.UUID  `db:"mother_id" json:"mother_id"`
	VaccineID       *uuid.UUID `db:"vaccine_id" json:"vaccine_id,omitempty"`
	ScheduledDate   time.Time  `db:"scheduled_date" json:"scheduled_date"`
	ScheduledTime   string     `db:"scheduled_time" json:"scheduled_time"`
	Type            Type       `db:"type" json:"type"`
	Status          Status     `db:"status" json:"status"`
	AssignedStaffID *uuid.UUID `db:"assigned_staff_id" json:"assigned_staff_id,omitempty"`
	DurationMinutes int        `db:"duration_minutes" json:"duration_minutes"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	ReminderSent    bool       `db:"reminder_sent" json:"reminder_sent"`
	CompletedAt     *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	Outcome         *string    `db:"outcome" json:"outcome,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Filter narrows a search. From is inclusive, To exclusive.
type Filter struct {
	HospitalID *uuid.UUID
	ChildID    *uuid.UUID
	MotherID   *uuid.UUID
	Status     Status
	Type       Type
	From       *time.Time
	To         *time.Time
}

// Transition is a status change with an optional outcome note.
type Transition struct {
	Status  Status  `json:"status"`
	Outcome *string `json:"outcome,omitempty"`
}
