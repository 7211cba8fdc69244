package vaccine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vaxtrack/vaxtrack/internal/domain/schedule"
	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
	"github.com/vaxtrack/vaxtrack/internal/platform/cache"
)

const activeCatalogKey = "vaccines:active"

type Service struct {
	repo     Repository
	cache    cache.Store
	cacheTTL time.Duration
	logger   zerolog.Logger
}

type Option func(*Service)

// WithCache keeps the active catalog snapshot in store for ttl.
func WithCache(store cache.Store, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = store
		s.cacheTTL = ttl
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) validate(v *Vaccine) error {
	v.normalize()
	if v.Name == "" {
		return apperr.Invalid("name is required")
	}
	if v.Code == "" {
		return apperr.Invalid("code is required")
	}
	if v.Dosage == "" {
		return apperr.Invalid("dosage is required")
	}
	if !validRoutes[v.Route] {
		return apperr.Invalid("invalid route: %s", v.Route)
	}
	if err := v.Definition().Validate(); err != nil {
		return apperr.Wrap(apperr.ErrValidation, err)
	}
	return nil
}

// ensureCodeFree rejects a code already held by a vaccine other than self.
func (s *Service) ensureCodeFree(ctx context.Context, code string, self uuid.UUID) error {
	existing, err := s.repo.GetByCode(ctx, code)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up vaccine code: %w", err)
	}
	if existing.ID != self {
		return apperr.Conflict("Vaccine with this code already exists")
	}
	return nil
}

func (s *Service) CreateVaccine(ctx context.Context, v *Vaccine) error {
	if err := s.validate(v); err != nil {
		return err
	}
	if err := s.ensureCodeFree(ctx, v.Code, uuid.Nil); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) GetVaccine(ctx context.Context, id uuid.UUID) (*Vaccine, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateVaccine(ctx context.Context, v *Vaccine) error {
	if err := s.validate(v); err != nil {
		return err
	}
	if err := s.ensureCodeFree(ctx, v.Code, v.ID); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, v); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) DeleteVaccine(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) ListVaccines(ctx context.Context, activeOnly bool, limit, offset int) ([]*Vaccine, int, error) {
	return s.repo.List(ctx, activeOnly, limit, offset)
}

// ListActiveVaccines returns the active catalog ordered by recommended age.
// The slice is a private copy; callers may keep it across requests.
func (s *Service) ListActiveVaccines(ctx context.Context) ([]Vaccine, error) {
	if s.cache != nil {
		cached, ok, err := cache.GetJSON[[]Vaccine](ctx, s.cache, activeCatalogKey)
		if err != nil {
			s.logger.Warn().Err(err).Msg("read cached vaccine catalog")
		}
		if ok {
			return cached, nil
		}
	}

	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active vaccines: %w", err)
	}
	snapshot := make([]Vaccine, 0, len(rows))
	for _, v := range rows {
		snapshot = append(snapshot, *v)
	}
	sort.SliceStable(snapshot, func(i, j int) bool {
		if snapshot[i].RecommendedMonths != snapshot[j].RecommendedMonths {
			return snapshot[i].RecommendedMonths < snapshot[j].RecommendedMonths
		}
		return snapshot[i].RecommendedWeeks < snapshot[j].RecommendedWeeks
	})

	if s.cache != nil {
		if err := cache.SetJSON(ctx, s.cache, activeCatalogKey, snapshot, s.cacheTTL); err != nil {
			s.logger.Warn().Err(err).Msg("cache vaccine catalog")
		}
	}
	return snapshot, nil
}

// Catalog returns the active catalog in the form the schedule engine reads.
func (s *Service) Catalog(ctx context.Context) ([]schedule.Definition, error) {
	vs, err := s.ListActiveVaccines(ctx)
	if err != nil {
		return nil, err
	}
	return Definitions(vs), nil
}

// DueByAge lists the active vaccines whose primary dose falls at or before
// ageMonths.
func (s *Service) DueByAge(ctx context.Context, ageMonths int) ([]Vaccine, error) {
	if ageMonths < 0 {
		return nil, apperr.Invalid("age in months must not be negative")
	}
	vs, err := s.ListActiveVaccines(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Vaccine, 0, len(vs))
	for _, v := range vs {
		if v.RecommendedMonths <= ageMonths {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, activeCatalogKey); err != nil {
		s.logger.Warn().Err(err).Msg("invalidate vaccine catalog cache")
	}
}
