package schedule

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMissingBirthDate  = errors.New("date of birth is required")
	ErrBirthDateInFuture = errors.New("date of birth cannot be in the future")
	ErrInvalidAge        = errors.New("recommended age must not be negative")
	ErrInvalidBooster    = errors.New("invalid booster dose")
)

// defaulterGraceDays is how far past due a dose may slip before the child is
// reported as behind.
const defaulterGraceDays = 14

// Age is a recommended age expressed as calendar months plus extra weeks.
// Weeks are never folded into months.
type Age struct {
	Months int `json:"months"`
	Weeks  int `json:"weeks"`
}

func (a Age) validate() error {
	if a.Months < 0 || a.Weeks < 0 {
		return ErrInvalidAge
	}
	return nil
}

// Booster is a follow-up dose of the same vaccine. Sequence 1 is the primary
// dose and never appears as a booster.
type Booster struct {
	Sequence       int `json:"sequence"`
	RecommendedAge Age `json:"recommended_age"`
}

// Definition is the engine's view of one active catalog vaccine.
type Definition struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	RecommendedAge Age       `json:"recommended_age"`
	Boosters       []Booster `json:"boosters,omitempty"`
}

// ageFor resolves the recommended age of the given dose. ok is false when the
// series has no such dose.
func (d Definition) ageFor(sequence int) (Age, bool) {
	if sequence == 1 {
		return d.RecommendedAge, true
	}
	for _, b := range d.Boosters {
		if b.Sequence == sequence {
			return b.RecommendedAge, true
		}
	}
	return Age{}, false
}

// Validate checks the ages and booster numbering of a definition.
func (d Definition) Validate() error {
	if err := d.RecommendedAge.validate(); err != nil {
		return err
	}
	seen := make(map[int]bool, len(d.Boosters))
	for _, b := range d.Boosters {
		if b.Sequence < 2 || seen[b.Sequence] {
			return ErrInvalidBooster
		}
		seen[b.Sequence] = true
		if err := b.RecommendedAge.validate(); err != nil {
			return err
		}
	}
	return nil
}

type DoseStatus string

const (
	DoseCompleted DoseStatus = "completed"
	DoseScheduled DoseStatus = "scheduled"
	DoseMissed    DoseStatus = "missed"
)

// Dose is one entry of a child's vaccination history.
type Dose struct {
	VaccineID uuid.UUID  `json:"vaccine_id"`
	Sequence  int        `json:"dose_sequence"`
	DateGiven time.Time  `json:"date_given"`
	Status    DoseStatus `json:"status"`
}

type DueStatus string

const (
	DueUpcoming DueStatus = "upcoming"
	DueOverdue  DueStatus = "overdue"
)

// DueDose is the next dose a child still owes for one vaccine.
type DueDose struct {
	VaccineID    uuid.UUID `json:"vaccine_id"`
	Name         string    `json:"name"`
	DoseSequence int       `json:"dose_sequence"`
	DueDate      time.Time `json:"due_date"`
	DaysLeft     int       `json:"days_left"`
	Status       DueStatus `json:"status"`
}

// Status is the aggregate vaccination label of a child.
type Status string

const (
	StatusNotStarted Status = "not-started"
	StatusUpToDate   Status = "up-to-date"
	StatusBehind     Status = "behind"
	StatusCompleted  Status = "completed"
)

// ValidStatuses lists every label a child record may carry.
var ValidStatuses = map[Status]bool{
	StatusNotStarted: true, StatusUpToDate: true, StatusBehind: true, StatusCompleted: true,
}
