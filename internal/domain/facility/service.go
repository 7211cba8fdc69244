package facility

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/vaxtrack/vaxtrack/internal/domain/user"
	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) validate(h *Hospital) error {
	h.Name = strings.TrimSpace(h.Name)
	h.Email = strings.ToLower(strings.TrimSpace(h.Email))
	if h.Name == "" || h.Type == "" || h.FacilityLevel == "" || h.Phone == "" ||
		h.Address == "" || h.County == "" || h.SubCounty == "" || h.Ward == "" {
		return apperr.Invalid("All required fields must be provided")
	}
	if !validTypes[h.Type] {
		return apperr.Invalid("invalid facility type: %s", h.Type)
	}
	if !validLevels[h.FacilityLevel] {
		return apperr.Invalid("invalid facility level: %s", h.FacilityLevel)
	}
	phone, err := user.NormalizePhone(h.Phone)
	if err != nil {
		return err
	}
	h.Phone = phone
	if h.CoverageTarget == 0 {
		h.CoverageTarget = DefaultCoverageTarget
	}
	if h.CoverageTarget < 0 || h.CoverageTarget > 100 {
		return apperr.Invalid("coverage target must be between 0 and 100")
	}
	return nil
}

func (s *Service) CreateHospital(ctx context.Context, h *Hospital) error {
	if err := s.validate(h); err != nil {
		return err
	}
	return s.repo.Create(ctx, h)
}

func (s *Service) GetHospital(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	return s.repo.GetByID(ctx, id)
}

// Exists reports whether hospital id is on record.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Service) UpdateHospital(ctx context.Context, h *Hospital) error {
	if err := s.validate(h); err != nil {
		return err
	}
	return s.repo.Update(ctx, h)
}

func (s *Service) DeleteHospital(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListHospitals(ctx context.Context, f Filter, limit, offset int) ([]*Hospital, int, error) {
	return s.repo.Search(ctx, f, limit, offset)
}

// UpdateCoverage records the latest overall coverage percentage.
func (s *Service) UpdateCoverage(ctx context.Context, id uuid.UUID, coverage int) error {
	if coverage < 0 || coverage > 100 {
		return apperr.Invalid("coverage must be between 0 and 100, got %d", coverage)
	}
	return s.repo.SetCoverage(ctx, id, coverage)
}
