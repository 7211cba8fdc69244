package vaccine

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vaxtrack/vaxtrack/internal/domain/schedule"
)

type Route string

const (
	RouteOral          Route = "Oral"
	RouteIntramuscular Route = "Intramuscular"
	RouteSubcutaneous  Route = "Subcutaneous"
	RouteIntradermal   Route = "Intradermal"
)

var validRoutes = map[Route]bool{
	RouteOral: true, RouteIntramuscular: true, RouteSubcutaneous: true, RouteIntradermal: true,
}

// BoosterDose is stored in the booster_doses jsonb column.
type BoosterDose struct {
	Sequence int `json:"sequence"`
	Months   int `json:"months"`
	Weeks    int `json:"weeks"`
}

type Vaccine struct {
	ID                uuid.UUID     `db:"id" json:"id"`
	Code              string        `db:"code" json:"code"`
	Name              string        `db:"name" json:"name"`
	Description       string        `db:"description" json:"description,omitempty"`
	ProtectsAgainst   []string      `db:"protects_against" json:"protects_against"`
	DueAtBirth        bool          `db:"due_at_birth" json:"due_at_birth"`
	RecommendedMonths int           `db:"recommended_months" json:"recommended_months"`
	RecommendedWeeks  int           `db:"recommended_weeks" json:"recommended_weeks"`
	Dosage            string        `db:"dosage" json:"dosage"`
	Route             Route         `db:"route" json:"route"`
	Site              string        `db:"site" json:"site,omitempty"`
	BoosterDoses      []BoosterDose `db:"booster_doses" json:"booster_doses"`
	Active            bool          `db:"active" json:"active"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}

// Definition converts the vaccine into the schedule engine's view of it.
func (v *Vaccine) Definition() schedule.Definition {
	def := schedule.Definition{
		ID:             v.ID,
		Name:           v.Name,
		RecommendedAge: schedule.Age{Months: v.RecommendedMonths, Weeks: v.RecommendedWeeks},
	}
	for _, b := range v.BoosterDoses {
		def.Boosters = append(def.Boosters, schedule.Booster{
			Sequence:       b.Sequence,
			RecommendedAge: schedule.Age{Months: b.Months, Weeks: b.Weeks},
		})
	}
	return def
}

// Doses is the highest dose sequence of the series. Booster sequences may
// skip numbers, so this is not always 1+len(BoosterDoses).
func (v *Vaccine) Doses() int {
	n := 1
	for _, b := range v.BoosterDoses {
		n = max(n, b.Sequence)
	}
	return n
}

func (v *Vaccine) normalize() {
	v.Code = strings.ToUpper(strings.TrimSpace(v.Code))
	v.Name = strings.TrimSpace(v.Name)
	if v.ProtectsAgainst == nil {
		v.ProtectsAgainst = []string{}
	}
	if v.BoosterDoses == nil {
		v.BoosterDoses = []BoosterDose{}
	}
}

// Definitions converts a catalog snapshot, preserving its order.
func Definitions(vs []Vaccine) []schedule.Definition {
	defs := make([]schedule.Definition, len(vs))
	for i := range vs {
		defs[i] = vs[i].Definition()
	}
	return defs
}
