package child

import (
	"time"

	"github.com/google/uuid"

	"github.com/vaxtrack/vaxtrack/internal/domain/schedule"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

var validGenders = map[Gender]bool{GenderMale: true, GenderFemale: true, GenderOther: true}

const (
	maxNameLen         = 100
	maxSpecialNeedsLen = 500
)

type Child struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	ParentID          uuid.UUID       `db:"parent_id" json:"parent_id"`
	Name              string          `db:"name" json:"name"`
	DateOfBirth       time.Time       `db:"date_of_birth" json:"date_of_birth"`
	Gender            Gender          `db:"gender" json:"gender"`
	BirthWeight       *float64        `db:"birth_weight" json:"birth_weight,omitempty"`
	BirthHeight       *float64        `db:"birth_height" json:"birth_height,omitempty"`
	VaccinationStatus schedule.Status `db:"vaccination_status" json:"vaccination_status"`
	Allergies         []string        `db:"allergies" json:"allergies"`
	SpecialNeeds      *string         `db:"special_needs" json:"special_needs,omitempty"`
	Active            bool            `db:"active" json:"active"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// AgeInMonths is the child's age in whole calendar months at now.
func (c *Child) AgeInMonths(now time.Time) int {
	return schedule.AgeInMonths(c.DateOfBirth, now)
}

// Subject adapts the child for schedule.Batch.
func (c *Child) Subject(history []schedule.Dose) schedule.Subject {
	return schedule.Subject{ChildID: c.ID, DateOfBirth: c.DateOfBirth, History: history}
}

type Filter struct {
	ParentID  *uuid.UUID
	ParentIDs []uuid.UUID
	Status    schedule.Status
	Gender    Gender
	// BornFrom is inclusive, BornBefore exclusive.
	BornFrom   *time.Time
	BornBefore *time.Time
	Search     string
}

// Schedule is a child together with the doses it still owes.
type Schedule struct {
	Child     *Child             `json:"child"`
	AgeMonths int                `json:"age_months"`
	Upcoming  []schedule.DueDose `json:"upcoming"`
	Status    schedule.Status    `json:"status"`
	NextDose  *schedule.DueDose  `json:"next_dose,omitempty"`
	Given     []schedule.Dose    `json:"given"`
}

// StatusCounts is the number of active children per vaccination status.
type StatusCounts map[schedule.Status]int

func (s StatusCounts) Total() int {
	n := 0
	for _, c := range s {
		n += c
	}
	return n
}

// GrowthRecord is one weight and height measurement of a child.
type GrowthRecord struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	ChildID           uuid.UUID  `db:"child_id" json:"child_id"`
	DateRecorded      time.Time  `db:"date_recorded" json:"date_recorded"`
	AgeMonths         int        `db:"age_months" json:"age_months"`
	Weight            float64    `db:"weight" json:"weight"`
	Height            float64    `db:"height" json:"height"`
	HeadCircumference *float64   `db:"head_circumference" json:"head_circumference,omitempty"`
	Notes             *string    `db:"notes" json:"notes,omitempty"`
	RecordedBy        *uuid.UUID `db:"recorded_by" json:"recorded_by,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}
