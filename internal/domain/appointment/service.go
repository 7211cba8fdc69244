package appointment

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
	"github.com/vaxtrack/vaxtrack/internal/platform/auth"
)

// DefaultReminderDays is the look-ahead of a mother's reminder list.
const DefaultReminderDays = 7

type Children interface {
	ParentOf(ctx context.Context, childID uuid.UUID) (uuid.UUID, error)
}

type Hospitals interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type Service struct {
	repo      Repository
	children  Children
	hospitals Hospitals
	now       func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, children Children, hospitals Hospitals, opts ...Option) *Service {
	s := &Service{repo: repo, children: children, hospitals: hospitals, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) today() time.Time {
	y, m, d := s.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *Service) validate(a *Appointment) error {
	if a.HospitalID == uuid.Nil || a.ChildID == uuid.Nil || a.ScheduledDate.IsZero() || a.ScheduledTime == "" {
		return apperr.Invalid("Hospital, child, scheduled date and time are required")
	}
	a.ScheduledTime = strings.TrimSpace(a.ScheduledTime)
	if !timeOfDay.MatchString(a.ScheduledTime) {
		return apperr.Invalid("scheduled time must be HH:MM")
	}
	if a.Type == "" {
		a.Type = TypeVaccination
	}
	if !validTypes[a.Type] {
		return apperr.Invalid("invalid appointment type: %s", a.Type)
	}
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	if !validStatuses[a.Status] {
		return apperr.Invalid("invalid appointment status: %s", a.Status)
	}
	if a.DurationMinutes == 0 {
		a.DurationMinutes = DefaultDurationMinutes
	}
	if a.DurationMinutes < 0 {
		return apperr.Invalid("duration must be positive")
	}
	return nil
}

// CreateAppointment books a visit. The mother defaults to the child's parent
// and must match it when given.
func (s *Service) CreateAppointment(ctx context.Context, a *Appointment) error {
	a.Status = StatusScheduled
	if err := s.validate(a); err != nil {
		return err
	}
	if a.ScheduledDate.Before(s.today()) {
		return apperr.Invalid("Appointment date cannot be in the past")
	}
	ok, err := s.hospitals.Exists(ctx, a.HospitalID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Invalid("hospital %s does not exist", a.HospitalID)
	}
	parent, err := s.children.ParentOf(ctx, a.ChildID)
	if err != nil {
		return err
	}
	if a.MotherID == uuid.Nil {
		a.MotherID = parent
	}
	if a.MotherID != parent {
		return apperr.Invalid("child does not belong to this mother")
	}
	a.ReminderSent = false
	a.CompletedAt = nil
	return s.repo.Create(ctx, a)
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID, actor auth.Principal) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == auth.RoleMother && a.MotherID != actor.UserID {
		return nil, apperr.Forbidden("you can only access your own appointments")
	}
	return a, nil
}

// ListAppointments searches appointments. Mothers only see their own.
func (s *Service) ListAppointments(ctx context.Context, f Filter, actor auth.Principal, limit, offset int) ([]*Appointment, int, error) {
	if actor.Role == auth.RoleMother {
		f.MotherID = &actor.UserID
	}
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, apperr.Invalid("invalid appointment status: %s", f.Status)
	}
	return s.repo.Search(ctx, f, limit, offset)
}

// UpdateAppointment saves changes to an open appointment. A status change
// follows the same rules as Transition.
func (s *Service) UpdateAppointment(ctx context.Context, a *Appointment) error {
	existing, err := s.repo.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	if existing.Status.Terminal() {
		return apperr.Conflict("Cannot modify a %s appointment", existing.Status)
	}
	a.HospitalID, a.ChildID, a.MotherID = existing.HospitalID, existing.ChildID, existing.MotherID
	if err := s.validate(a); err != nil {
		return err
	}
	s.stamp(a)
	return s.repo.Update(ctx, a)
}

// Transition moves an appointment to a new status. Completed, cancelled and
// no-show appointments are final.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, t Transition) (*Appointment, error) {
	if !validStatuses[t.Status] {
		return nil, apperr.Invalid("invalid appointment status: %s", t.Status)
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status.Terminal() {
		return nil, apperr.Conflict("Appointment is already %s", a.Status)
	}
	a.Status = t.Status
	if t.Outcome != nil {
		a.Outcome = t.Outcome
	}
	s.stamp(a)
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) stamp(a *Appointment) {
	if a.Status == StatusCompleted {
		now := s.now()
		a.CompletedAt = &now
	} else {
		a.CompletedAt = nil
	}
}

func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// Reminders lists a mother's open appointments over the next days.
func (s *Service) Reminders(ctx context.Context, motherID uuid.UUID, days int) ([]*Appointment, error) {
	if days <= 0 {
		days = DefaultReminderDays
	}
	from := s.today()
	to := from.AddDate(0, 0, days)
	var out []*Appointment
	for _, st := range openStatuses {
		items, _, err := s.repo.Search(ctx, Filter{MotherID: &motherID, Status: st, From: &from, To: &to}, 100, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ScheduledDate.Before(out[j].ScheduledDate) })
	return out, nil
}
