package immunization

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vaxtrack/vaxtrack/internal/domain/schedule"
	"github.com/vaxtrack/vaxtrack/internal/domain/vaccine"
	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
	"github.com/vaxtrack/vaxtrack/internal/platform/auth"
)

// ErrDuplicateDose matches every DuplicateDoseError.
var ErrDuplicateDose = errors.New("dose already recorded")

// DuplicateDoseError rejects a second record of the same dose of a vaccine
// for one child.
type DuplicateDoseError struct {
	Sequence int
	Vaccine  string
}

func (e *DuplicateDoseError) Error() string {
	return fmt.Sprintf("Dose %d of %s already recorded for this child", e.Sequence, e.Vaccine)
}

func (e *DuplicateDoseError) Is(target error) bool { return target == ErrDuplicateDose }

// Children resolves the mother a child belongs to.
type Children interface {
	ParentOf(ctx context.Context, childID uuid.UUID) (uuid.UUID, error)
}

type Vaccines interface {
	GetVaccine(ctx context.Context, id uuid.UUID) (*vaccine.Vaccine, error)
}

// StatusRefresher recomputes and stores a child's vaccination status.
type StatusRefresher interface {
	RefreshStatus(ctx context.Context, childID uuid.UUID) (schedule.Status, error)
}

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	repo      Repository
	children  Children
	vaccines  Vaccines
	tx        Transactor
	engine    *schedule.Engine
	refresher StatusRefresher
	logger    zerolog.Logger
}

func NewService(repo Repository, children Children, vaccines Vaccines, tx Transactor, engine *schedule.Engine, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		children: children,
		vaccines: vaccines,
		tx:       tx,
		engine:   engine,
		logger:   logger,
	}
}

// SetStatusRefresher installs the hook run after every record write. The
// child service depends on this one, so it is wired after construction.
func (s *Service) SetStatusRefresher(r StatusRefresher) {
	s.refresher = r
}

func (s *Service) validate(rec *Record) error {
	rec.BatchNumber = strings.TrimSpace(rec.BatchNumber)
	if rec.ChildID == uuid.Nil || rec.VaccineID == uuid.Nil || rec.DoseSequence == 0 ||
		rec.DateGiven.IsZero() || rec.BatchNumber == "" {
		return apperr.Invalid("Child, vaccine, dose sequence, date given, and batch number are required")
	}
	if rec.DoseSequence < 1 {
		return apperr.Invalid("dose sequence must be at least 1")
	}
	if rec.Status == "" {
		rec.Status = schedule.DoseCompleted
	}
	if !validStatuses[rec.Status] {
		return apperr.Invalid("invalid status: %s", rec.Status)
	}
	if rec.DateGiven.After(s.engine.Now()) {
		return apperr.Invalid("date given cannot be in the future")
	}
	return nil
}

// counts reports whether an existing record occupies its dose slot. It uses
// the same rule the schedule engine uses to count doses given.
func (s *Service) counts(rec *Record) bool {
	return !s.engine.CompletedOnly() || rec.Status == schedule.DoseCompleted
}

// write validates rec against its vaccine and the child's history, then
// persists it with save inside a transaction that holds the child's lock.
func (s *Service) write(ctx context.Context, rec *Record, save func(context.Context, *Record) error) error {
	if err := s.validate(rec); err != nil {
		return err
	}
	v, err := s.vaccines.GetVaccine(ctx, rec.VaccineID)
	if err != nil {
		return err
	}
	if rec.DoseSequence > v.Doses() {
		return apperr.Invalid("%s has %d doses, got dose %d", v.Name, v.Doses(), rec.DoseSequence)
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockChild(ctx, rec.ChildID); err != nil {
			return err
		}
		history, err := s.repo.ListByChild(ctx, rec.ChildID)
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}
		for _, h := range history {
			if h.ID != rec.ID && h.VaccineID == rec.VaccineID && h.DoseSequence == rec.DoseSequence && s.counts(h) {
				return apperr.Wrap(apperr.ErrConflict, &DuplicateDoseError{Sequence: rec.DoseSequence, Vaccine: v.Name})
			}
		}
		return save(ctx, rec)
	})
	if err != nil {
		return err
	}
	s.refresh(ctx, rec.ChildID)
	return nil
}

// CreateRecord stores a dose given by actor and refreshes the child's status.
func (s *Service) CreateRecord(ctx context.Context, rec *Record, actor auth.Principal) error {
	if !actor.Can(auth.RecordsWrite) {
		return apperr.Forbidden("Unauthorized to record vaccinations")
	}
	rec.ID = uuid.Nil
	rec.GivenBy = &actor.UserID
	return s.write(ctx, rec, s.repo.Create)
}

func (s *Service) UpdateRecord(ctx context.Context, rec *Record) error {
	if _, err := s.repo.GetByID(ctx, rec.ID); err != nil {
		return err
	}
	return s.write(ctx, rec, s.repo.Update)
}

func (s *Service) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.refresh(ctx, rec.ChildID)
	return nil
}

// GetRecord returns a record. Mothers may only read their own children's.
func (s *Service) GetRecord(ctx context.Context, id uuid.UUID, actor auth.Principal) (*Record, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.AuthorizeChild(ctx, actor, rec.ChildID); err != nil {
		return nil, err
	}
	return rec, nil
}

// SearchRecords lists records matching f. Mothers must name one of their own
// children.
func (s *Service) SearchRecords(ctx context.Context, f Filter, actor auth.Principal, limit, offset int) ([]*Record, int, error) {
	if actor.Role == auth.RoleMother {
		if f.ChildID == nil {
			return nil, 0, apperr.Invalid("child_id is required")
		}
		if err := s.AuthorizeChild(ctx, actor, *f.ChildID); err != nil {
			return nil, 0, err
		}
	}
	return s.repo.Search(ctx, f, limit, offset)
}

// AuthorizeChild rejects a mother reaching for a child that is not hers.
// Other roles are limited by their capabilities alone.
func (s *Service) AuthorizeChild(ctx context.Context, actor auth.Principal, childID uuid.UUID) error {
	if actor.Role != auth.RoleMother {
		return nil
	}
	parent, err := s.children.ParentOf(ctx, childID)
	if err != nil {
		return err
	}
	if parent != actor.UserID {
		return apperr.Forbidden("you can only access your own children's records")
	}
	return nil
}

// History returns a child's records oldest first.
func (s *Service) History(ctx context.Context, childID uuid.UUID) ([]*Record, error) {
	return s.repo.ListByChild(ctx, childID)
}

// RecordsForChild returns a child's history in the schedule engine's form.
func (s *Service) RecordsForChild(ctx context.Context, childID uuid.UUID) ([]schedule.Dose, error) {
	recs, err := s.repo.ListByChild(ctx, childID)
	if err != nil {
		return nil, fmt.Errorf("records for child %s: %w", childID, err)
	}
	doses := make([]schedule.Dose, len(recs))
	for i, rec := range recs {
		doses[i] = rec.Dose()
	}
	return doses, nil
}

// CountCompleted counts completed doses of a vaccine given in [from, to).
func (s *Service) CountCompleted(ctx context.Context, vaccineID uuid.UUID, from, to time.Time) (int, error) {
	return s.repo.CountCompleted(ctx, vaccineID, from, to)
}

func (s *Service) refresh(ctx context.Context, childID uuid.UUID) {
	if s.refresher == nil {
		return
	}
	if _, err := s.refresher.RefreshStatus(ctx, childID); err != nil {
		s.logger.Warn().Err(err).Str("child_id", childID.String()).Msg("refresh vaccination status")
	}
}
