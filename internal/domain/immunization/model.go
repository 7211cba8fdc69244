package immunization

import (
	"time"

	"github.com/google/uuid"

	"github.com/vaxtrack/vaxtrack/internal/domain/schedule"
)

var validStatuses = map[schedule.DoseStatus]bool{
	schedule.DoseCompleted: true, schedule.DoseScheduled: true, schedule.DoseMissed: true,
}

// Record is one dose entry in a child's vaccination history.
type Record struct {
	ID                  uuid.UUID           `db:"id" json:"id"`
	ChildID             uuid.UUID           `db:"child_id" json:"child_id"`
	VaccineID           uuid.UUID           `db:"vaccine_id" json:"vaccine_id"`
	DoseSequence        int                 `db:"dose_sequence" json:"dose_sequence"`
	DateGiven           time.Time           `db:"date_given" json:"date_given"`
	GivenBy             *uuid.UUID          `db:"given_by" json:"given_by,omitempty"`
	BatchNumber         string              `db:"batch_number" json:"batch_number"`
	HealthFacility      *string             `db:"health_facility" json:"health_facility,omitempty"`
	SubCounty           *string             `db:"sub_county" json:"sub_county,omitempty"`
	Ward                *string             `db:"ward" json:"ward,omitempty"`
	Village             *string             `db:"village" json:"village,omitempty"`
	NextDueDate         *time.Time          `db:"next_due_date" json:"next_due_date,omitempty"`
	Status              schedule.DoseStatus `db:"status" json:"status"`
	Notes               *string             `db:"notes" json:"notes,omitempty"`
	AdverseReactions    *string             `db:"adverse_reactions" json:"adverse_reactions,omitempty"`
	WeightAtVaccination *float64            `db:"weight_at_vaccination" json:"weight_at_vaccination,omitempty"`
	HeightAtVaccination *float64            `db:"height_at_vaccination" json:"height_at_vaccination,omitempty"`
	CreatedAt           time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time           `db:"updated_at" json:"updated_at"`
}

// Dose converts the record into the schedule engine's history entry.
func (r *Record) Dose() schedule.Dose {
	return schedule.Dose{
		VaccineID: r.VaccineID,
		Sequence:  r.DoseSequence,
		DateGiven: r.DateGiven,
		Status:    r.Status,
	}
}

// Filter narrows SearchRecords. Zero fields are ignored; To is exclusive.
type Filter struct {
	ChildID   *uuid.UUID
	VaccineID *uuid.UUID
	Status    schedule.DoseStatus
	From      *time.Time
	To        *time.Time
	Sort      string
}
