package facility

import (
	"time"

	"github.com/google/uuid"
)

const DefaultCoverageTarget = 90

var validTypes = map[string]bool{
	"national_referral": true, "county": true, "sub_county": true, "health_center": true, "clinic": true,
}

var validLevels = map[string]bool{
	"level_2": true, "level_3": true, "level_4": true, "level_5": true, "level_6": true,
}

// Hospital is a vaccinating health facility.
type Hospital struct {
	ID                uuid.UUID `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	Type              string    `db:"type" json:"type"`
	FacilityLevel     string    `db:"facility_level" json:"facility_level"`
	Phone             string    `db:"phone" json:"phone"`
	Email             string    `db:"email" json:"email,omitempty"`
	Address           string    `db:"address" json:"address"`
	County            string    `db:"county" json:"county"`
	SubCounty         string    `db:"sub_county" json:"sub_county"`
	Ward              string    `db:"ward" json:"ward"`
	Latitude          *float64  `db:"latitude" json:"latitude,omitempty"`
	Longitude         *float64  `db:"longitude" json:"longitude,omitempty"`
	CoverageTarget    int       `db:"coverage_target" json:"coverage_target"`
	CurrentCoverage   int       `db:"current_coverage" json:"current_coverage"`
	CoverageUpdatedAt time.Time `db:"coverage_updated_at" json:"coverage_updated_at"`
	Active            bool      `db:"active" json:"active"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

type Filter struct {
	County string
	Type   string
	Active *bool
	Search string
}
