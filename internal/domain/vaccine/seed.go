package vaccine

import (
	"context"
	"fmt"
)

// DefaultCatalog is the Kenya Expanded Programme on Immunization schedule.
// Multi-dose series are one vaccine with booster doses.
func DefaultCatalog() []Vaccine {
	return []Vaccine{
		{
			Code: "BCG", Name: "BCG",
			Description:     "Bacillus Calmette-Guerin vaccine",
			ProtectsAgainst: []string{"Tuberculosis"},
			DueAtBirth:      true,
			Dosage:          "0.05ml", Route: RouteIntradermal, Site: "Left upper arm",
		},
		{
			Code: "OPV", Name: "Oral Polio Vaccine",
			Description:     "Birth dose followed by three primary doses",
			ProtectsAgainst: []string{"Poliomyelitis"},
			DueAtBirth:      true,
			Dosage:          "2 drops", Route: RouteOral, Site: "Mouth",
			BoosterDoses: []BoosterDose{
				{Sequence: 2, Weeks: 6},
				{Sequence: 3, Weeks: 10},
				{Sequence: 4, Weeks: 14},
			},
		},
		{
			Code: "PENTA", Name: "Pentavalent",
			Description:      "DPT-HepB-Hib combined vaccine",
			ProtectsAgainst:  []string{"Diphtheria", "Pertussis", "Tetanus", "Hepatitis B", "Haemophilus influenzae type b"},
			RecommendedWeeks: 6,
			Dosage:           "0.5ml", Route: RouteIntramuscular, Site: "Left outer thigh",
			BoosterDoses: []BoosterDose{
				{Sequence: 2, Weeks: 10},
				{Sequence: 3, Weeks: 14},
			},
		},
		{
			Code: "PCV", Name: "Pneumococcal Conjugate Vaccine",
			Description:      "PCV10",
			ProtectsAgainst:  []string{"Pneumococcal disease", "Pneumonia", "Meningitis"},
			RecommendedWeeks: 6,
			Dosage:           "0.5ml", Route: RouteIntramuscular, Site: "Right outer thigh",
			BoosterDoses: []BoosterDose{
				{Sequence: 2, Weeks: 10},
				{Sequence: 3, Weeks: 14},
			},
		},
		{
			Code: "ROTA", Name: "Rotavirus Vaccine",
			Description:      "Oral rotavirus vaccine",
			ProtectsAgainst:  []string{"Rotavirus diarrhoea"},
			RecommendedWeeks: 6,
			Dosage:           "1.5ml", Route: RouteOral, Site: "Mouth",
			BoosterDoses: []BoosterDose{
				{Sequence: 2, Weeks: 10},
			},
		},
		{
			Code: "IPV", Name: "Inactivated Polio Vaccine",
			Description:      "Given alongside the third OPV dose",
			ProtectsAgainst:  []string{"Poliomyelitis"},
			RecommendedWeeks: 14,
			Dosage:           "0.5ml", Route: RouteIntramuscular, Site: "Left outer thigh",
		},
		{
			Code: "MR", Name: "Measles-Rubella",
			Description:       "Measles and rubella combined vaccine",
			ProtectsAgainst:   []string{"Measles", "Rubella"},
			RecommendedMonths: 9,
			Dosage:            "0.5ml", Route: RouteSubcutaneous, Site: "Right upper arm",
			BoosterDoses: []BoosterDose{
				{Sequence: 2, Months: 18},
			},
		},
		{
			Code: "YF", Name: "Yellow Fever",
			Description:       "Given in endemic counties",
			ProtectsAgainst:   []string{"Yellow fever"},
			RecommendedMonths: 9,
			Dosage:            "0.5ml", Route: RouteSubcutaneous, Site: "Left upper arm",
		},
	}
}

// Seed inserts every DefaultCatalog vaccine whose code is not yet present and
// returns how many were added. Running it again is a no-op.
func (s *Service) Seed(ctx context.Context) (int, error) {
	added := 0
	for _, v := range DefaultCatalog() {
		v.Active = true
		if err := s.validate(&v); err != nil {
			return added, fmt.Errorf("seed %s: %w", v.Code, err)
		}
		ok, err := s.repo.CreateIfAbsent(ctx, &v)
		if err != nil {
			return added, fmt.Errorf("seed %s: %w", v.Code, err)
		}
		if ok {
			added++
			s.logger.Info().Str("code", v.Code).Msg("seeded vaccine")
		}
	}
	if added > 0 {
		s.invalidate(ctx)
	}
	return added, nil
}
