package child

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vaxtrack/vaxtrack/internal/domain/schedule"
	"github.com/vaxtrack/vaxtrack/internal/domain/user"
	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
	"github.com/vaxtrack/vaxtrack/internal/platform/auth"
	"github.com/vaxtrack/vaxtrack/internal/platform/metrics"
)

// Parents checks that a user exists and carries a role.
type Parents interface {
	RequireRole(ctx context.Context, id uuid.UUID, role auth.Role) (*user.User, error)
}

// History returns a child's vaccination history in engine form.
type History interface {
	RecordsForChild(ctx context.Context, childID uuid.UUID) ([]schedule.Dose, error)
}

// Catalog returns the active vaccine definitions, ordered by recommended age.
type Catalog interface {
	Catalog(ctx context.Context) ([]schedule.Definition, error)
}

type Service struct {
	repo    Repository
	parents Parents
	history History
	catalog Catalog
	engine  *schedule.Engine
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(repo Repository, parents Parents, history History, catalog Catalog, engine *schedule.Engine, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		parents: parents,
		history: history,
		catalog: catalog,
		engine:  engine,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) validate(c *Child) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" || c.DateOfBirth.IsZero() || c.Gender == "" {
		return apperr.Invalid("Name, date of birth and gender are required")
	}
	if len(c.Name) > maxNameLen {
		return apperr.Invalid("Name cannot exceed %d characters", maxNameLen)
	}
	if !validGenders[c.Gender] {
		return apperr.Invalid("Gender must be male, female or other")
	}
	if c.DateOfBirth.After(s.engine.Now()) {
		return apperr.Invalid("Date of birth cannot be in the future")
	}
	if w := c.BirthWeight; w != nil && (*w < 0.5 || *w > 6) {
		return apperr.Invalid("Birth weight must be between 0.5 and 6 kg")
	}
	if h := c.BirthHeight; h != nil && (*h < 30 || *h > 70) {
		return apperr.Invalid("Birth height must be between 30 and 70 cm")
	}
	if c.SpecialNeeds != nil && len(*c.SpecialNeeds) > maxSpecialNeedsLen {
		return apperr.Invalid("Special needs cannot exceed %d characters", maxSpecialNeedsLen)
	}
	if c.Allergies == nil {
		c.Allergies = []string{}
	}
	return nil
}

// CreateChild registers a child. A mother always registers her own child;
// staff must name the parent, who has to be a mother.
func (s *Service) CreateChild(ctx context.Context, c *Child, actor auth.Principal) error {
	if actor.Role == auth.RoleMother {
		c.ParentID = actor.UserID
	}
	if c.ParentID == uuid.Nil {
		return apperr.Invalid("parent_id is required")
	}
	if err := s.validate(c); err != nil {
		return err
	}
	if _, err := s.parents.RequireRole(ctx, c.ParentID, auth.RoleMother); err != nil {
		return err
	}
	c.VaccinationStatus = schedule.StatusNotStarted
	c.Active = true
	return s.repo.Create(ctx, c)
}

// GetChild returns a child visible to actor.
func (s *Service) GetChild(ctx context.Context, id uuid.UUID, actor auth.Principal) (*Child, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == auth.RoleMother && c.ParentID != actor.UserID {
		return nil, apperr.Forbidden("you can only access your own children")
	}
	return c, nil
}

func canModify(actor auth.Principal, c *Child) bool {
	return actor.Role == auth.RoleAdmin || actor.UserID == c.ParentID
}

// UpdateChild saves changes to a child. Only the parent or an admin may do
// so. The parent and the stored status never change here.
func (s *Service) UpdateChild(ctx context.Context, c *Child, actor auth.Principal) error {
	existing, err := s.repo.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	if !canModify(actor, existing) {
		return apperr.Forbidden("Unauthorized to update this child")
	}
	c.ParentID = existing.ParentID
	c.VaccinationStatus = existing.VaccinationStatus
	if err := s.validate(c); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return err
	}
	if !c.DateOfBirth.Equal(existing.DateOfBirth) {
		if _, err := s.RefreshStatus(ctx, c.ID); err != nil {
			s.logger.Warn().Err(err).Str("child_id", c.ID.String()).Msg("refresh vaccination status")
		}
	}
	return nil
}

func (s *Service) DeleteChild(ctx context.Context, id uuid.UUID, actor auth.Principal) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !canModify(actor, existing) {
		return apperr.Forbidden("Unauthorized to delete this child")
	}
	return s.repo.Delete(ctx, id)
}

// ListChildren searches active children. Mothers only ever see their own.
func (s *Service) ListChildren(ctx context.Context, f Filter, actor auth.Principal, limit, offset int) ([]*Child, int, error) {
	if actor.Role == auth.RoleMother {
		f.ParentID = &actor.UserID
	}
	if f.Status != "" && !schedule.ValidStatuses[f.Status] {
		return nil, 0, apperr.Invalid("invalid vaccination status: %s", f.Status)
	}
	return s.repo.Search(ctx, f, limit, offset)
}

// BirthRange converts an inclusive range of ages in months to a date of
// birth window [from, before) that agrees with schedule.AgeInMonths.
func BirthRange(now time.Time, minMonths, maxMonths int) (from, before time.Time) {
	y, m, _ := now.Date()
	from = time.Date(y, m-time.Month(maxMonths), 1, 0, 0, 0, 0, now.Location())
	before = time.Date(y, m-time.Month(minMonths)+1, 1, 0, 0, 0, 0, now.Location())
	return from, before
}

// ListByAgeRange lists children aged between minMonths and maxMonths
// inclusive.
func (s *Service) ListByAgeRange(ctx context.Context, minMonths, maxMonths int, actor auth.Principal, limit, offset int) ([]*Child, int, error) {
	if minMonths < 0 || maxMonths < minMonths {
		return nil, 0, apperr.Invalid("age range must satisfy 0 <= min <= max")
	}
	from, before := BirthRange(s.engine.Now(), minMonths, maxMonths)
	return s.ListChildren(ctx, Filter{BornFrom: &from, BornBefore: &before}, actor, limit, offset)
}

// CountEligible counts active children whose age in months lies in
// [minMonths, maxMonths].
func (s *Service) CountEligible(ctx context.Context, minMonths, maxMonths int) (int, error) {
	from, before := BirthRange(s.engine.Now(), minMonths, maxMonths)
	return s.repo.CountBornBetween(ctx, from, before)
}

func (s *Service) CountByStatus(ctx context.Context) (StatusCounts, error) {
	return s.repo.CountByStatus(ctx)
}

func (s *Service) ListByParents(ctx context.Context, parentIDs []uuid.UUID) ([]*Child, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	return s.repo.ListByParents(ctx, parentIDs)
}

func (s *Service) ParentOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	return s.repo.ParentOf(ctx, id)
}

func (s *Service) compute(ctx context.Context, c *Child) (*Schedule, error) {
	catalog, err := s.catalog.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	history, err := s.history.RecordsForChild(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	due, err := s.engine.Upcoming(c.DateOfBirth, catalog, history)
	if errors.Is(err, schedule.ErrMissingBirthDate) || errors.Is(err, schedule.ErrBirthDateInFuture) {
		return nil, apperr.Wrap(apperr.ErrValidation, err)
	}
	if err != nil {
		return nil, fmt.Errorf("compute schedule for %s: %w", c.ID, err)
	}
	sch := &Schedule{
		Child:     c,
		AgeMonths: c.AgeInMonths(s.engine.Now()),
		Upcoming:  due,
		Status:    schedule.ChildStatus(history, due),
		Given:     history,
	}
	if len(due) > 0 {
		sch.NextDose = &due[0]
	}
	return sch, nil
}

// Schedule computes the doses a child still owes and its current status.
func (s *Service) Schedule(ctx context.Context, id uuid.UUID, actor auth.Principal) (*Schedule, error) {
	c, err := s.GetChild(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	return s.compute(ctx, c)
}

// RefreshStatus recomputes a child's status and stores it when it changed.
func (s *Service) RefreshStatus(ctx context.Context, id uuid.UUID) (schedule.Status, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	sch, err := s.compute(ctx, c)
	if err != nil {
		return "", err
	}
	if sch.Status != c.VaccinationStatus {
		if err := s.repo.UpdateStatus(ctx, id, sch.Status); err != nil {
			return "", fmt.Errorf("store status: %w", err)
		}
		s.logger.Debug().Str("child_id", id.String()).
			Str("from", string(c.VaccinationStatus)).Str("to", string(sch.Status)).
			Msg("vaccination status changed")
	}
	s.metrics.IncrementStatusRefresh(string(sch.Status))
	return sch.Status, nil
}

// AddGrowthRecord stores a measurement of a child visible to actor. The age
// at measurement is derived from the date of birth.
func (s *Service) AddGrowthRecord(ctx context.Context, childID uuid.UUID, g *GrowthRecord, actor auth.Principal) error {
	c, err := s.GetChild(ctx, childID, actor)
	if err != nil {
		return err
	}
	if g.Weight <= 0 || g.Height <= 0 {
		return apperr.Invalid("Weight and height are required and must be positive")
	}
	if hc := g.HeadCircumference; hc != nil && *hc < 0 {
		return apperr.Invalid("Head circumference cannot be negative")
	}
	now := s.engine.Now()
	if g.DateRecorded.IsZero() {
		g.DateRecorded = now
	}
	if g.DateRecorded.After(now) {
		return apperr.Invalid("Date recorded cannot be in the future")
	}
	if g.DateRecorded.Before(c.DateOfBirth) {
		return apperr.Invalid("Date recorded cannot be before the date of birth")
	}
	g.ChildID = c.ID
	g.AgeMonths = c.AgeInMonths(g.DateRecorded)
	g.RecordedBy = &actor.UserID
	return s.repo.CreateGrowthRecord(ctx, g)
}

// GrowthHistory lists a child's measurements, newest first.
func (s *Service) GrowthHistory(ctx context.Context, childID uuid.UUID, actor auth.Principal) ([]*GrowthRecord, error) {
	if _, err := s.GetChild(ctx, childID, actor); err != nil {
		return nil, err
	}
	return s.repo.ListGrowthRecords(ctx, childID)
}
