package outreach

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vaxtrack/vaxtrack/internal/domain/child"
	"github.com/vaxtrack/vaxtrack/internal/domain/schedule"
	"github.com/vaxtrack/vaxtrack/internal/domain/user"
	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
)

type Mothers interface {
	ListMothersByCHW(ctx context.Context, chwID uuid.UUID, search string) ([]*user.User, error)
}

type Children interface {
	ListByParents(ctx context.Context, parentIDs []uuid.UUID) ([]*child.Child, error)
}

type History interface {
	RecordsForChild(ctx context.Context, childID uuid.UUID) ([]schedule.Dose, error)
}

type Catalog interface {
	Catalog(ctx context.Context) ([]schedule.Definition, error)
}

type Service struct {
	repo        Repository
	mothers     Mothers
	children    Children
	history     History
	catalog     Catalog
	engine      *schedule.Engine
	concurrency int
	logger      zerolog.Logger
}

type Option func(*Service)

// WithConcurrency bounds the history loads and schedule computations run at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(repo Repository, mothers Mothers, children Children, history History, catalog Catalog, engine *schedule.Engine, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		mothers:     mothers,
		children:    children,
		history:     history,
		catalog:     catalog,
		engine:      engine,
		concurrency: schedule.DefaultBatchConcurrency,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// roster is a worker's caseload with a freshly computed schedule per child.
type roster struct {
	mothers  []*user.User
	children map[uuid.UUID][]*child.Child
	results  map[uuid.UUID]schedule.Result
}

func motherIDs(mothers []*user.User) []uuid.UUID {
	ids := make([]uuid.UUID, len(mothers))
	for i, m := range mothers {
		ids[i] = m.ID
	}
	return ids
}

func (s *Service) roster(ctx context.Context, chwID uuid.UUID, search string) (*roster, error) {
	mothers, err := s.mothers.ListMothersByCHW(ctx, chwID, search)
	if err != nil {
		return nil, fmt.Errorf("list mothers: %w", err)
	}
	r := &roster{
		mothers:  mothers,
		children: make(map[uuid.UUID][]*child.Child),
		results:  make(map[uuid.UUID]schedule.Result),
	}
	if len(mothers) == 0 {
		return r, nil
	}

	kids, err := s.children.ListByParents(ctx, motherIDs(mothers))
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	for _, c := range kids {
		r.children[c.ParentID] = append(r.children[c.ParentID], c)
	}
	if len(kids) == 0 {
		return r, nil
	}

	catalog, err := s.catalog.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	histories := make([][]schedule.Dose, len(kids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, c := range kids {
		g.Go(func() error {
			h, err := s.history.RecordsForChild(gctx, c.ID)
			if err != nil {
				return fmt.Errorf("load history for child %s: %w", c.ID, err)
			}
			histories[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	subjects := make([]schedule.Subject, len(kids))
	for i, c := range kids {
		subjects[i] = c.Subject(histories[i])
	}
	results, err := s.engine.Batch(ctx, subjects, catalog, s.concurrency)
	if err != nil {
		return nil, err
	}
	for _, res := range results {
		if res.Err != nil {
			s.logger.Warn().Err(res.Err).Str("child_id", res.ChildID.String()).Msg("schedule skipped")
		}
		r.results[res.ChildID] = res
	}
	return r, nil
}

func (s *Service) summarize(c *child.Child, res schedule.Result) ChildSummary {
	cs := ChildSummary{
		ID:          c.ID,
		Name:        c.Name,
		DateOfBirth: c.DateOfBirth,
		Gender:      c.Gender,
		AgeMonths:   c.AgeInMonths(s.engine.Now()),
		Status:      c.VaccinationStatus,
		Upcoming:    []schedule.DueDose{},
	}
	if res.Err != nil {
		return cs
	}
	cs.Status = res.Status
	if res.Upcoming != nil {
		cs.Upcoming = res.Upcoming
	}
	if len(cs.Upcoming) == 0 {
		cs.NextVaccine = FullyVaccinated
		return cs
	}
	next := cs.Upcoming[0]
	cs.NextVaccine = next.Name
	cs.DueDate = &next.DueDate
	cs.DaysLeft = &next.DaysLeft
	return cs
}

// AssignedMothers lists the worker's mothers with each child's next dose. A
// mother is defaulting when any child is behind or owes an overdue dose.
func (s *Service) AssignedMothers(ctx context.Context, chwID uuid.UUID, q Query) ([]MotherSummary, error) {
	filter := MotherStatus(q.Status)
	if q.Status == "all" {
		filter = ""
	}
	if filter != "" && filter != MotherDefaulting && filter != MotherUpToDate {
		return nil, apperr.Invalid("status must be all, defaulting or up-to-date")
	}

	r, err := s.roster(ctx, chwID, q.Search)
	if err != nil {
		return nil, err
	}

	out := make([]MotherSummary, 0, len(r.mothers))
	for _, m := range r.mothers {
		ms := MotherSummary{
			ID:        m.ID,
			Name:      m.Name,
			Phone:     m.Phone,
			Village:   m.Village,
			SubCounty: m.SubCounty,
			LastVisit: m.LastLogin,
			Status:    MotherUpToDate,
			Children:  []ChildSummary{},
		}
		for _, c := range r.children[m.ID] {
			cs := s.summarize(c, r.results[c.ID])
			if cs.defaulting() {
				ms.Status = MotherDefaulting
			}
			ms.Children = append(ms.Children, cs)
		}
		if filter != "" && ms.Status != filter {
			continue
		}
		out = append(out, ms)
	}
	return out, nil
}

// Defaulters lists the worker's children whose computed status is behind,
// most overdue first.
func (s *Service) Defaulters(ctx context.Context, chwID uuid.UUID) ([]Defaulter, error) {
	r, err := s.roster(ctx, chwID, "")
	if err != nil {
		return nil, err
	}

	out := []Defaulter{}
	for _, m := range r.mothers {
		for _, c := range r.children[m.ID] {
			res := r.results[c.ID]
			if res.Err != nil || res.Status != schedule.StatusBehind {
				continue
			}
			d := Defaulter{
				ChildID:     c.ID,
				ChildName:   c.Name,
				DateOfBirth: c.DateOfBirth,
				MotherID:    m.ID,
				MotherName:  m.Name,
				MotherPhone: m.Phone,
				Village:     m.Village,
			}
			for _, due := range res.Upcoming {
				if due.Status != schedule.DueOverdue {
					continue
				}
				d.Overdue = append(d.Overdue, due)
				d.DaysOverdue = max(d.DaysOverdue, -due.DaysLeft)
			}
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DaysOverdue != out[j].DaysOverdue {
			return out[i].DaysOverdue > out[j].DaysOverdue
		}
		return out[i].ChildName < out[j].ChildName
	})
	return out, nil
}

// Stats summarises a worker's caseload. Defaulters and coverage use the
// statuses computed now, falling back to the stored one for a child whose
// schedule cannot be computed. Coverage is the share of children up to date.
func (s *Service) Stats(ctx context.Context, chwID uuid.UUID) (*Stats, error) {
	r, err := s.roster(ctx, chwID, "")
	if err != nil {
		return nil, err
	}
	st := &Stats{AssignedMothers: len(r.mothers)}
	total, upToDate := 0, 0
	for _, m := range r.mothers {
		for _, c := range r.children[m.ID] {
			total++
			status := c.VaccinationStatus
			if res, ok := r.results[c.ID]; ok && res.Err == nil {
				status = res.Status
			}
			switch status {
			case schedule.StatusBehind:
				st.Defaulters++
			case schedule.StatusUpToDate:
				upToDate++
			}
		}
	}
	st.CoverageRate = schedule.CoverageRate(upToDate, total)

	from := s.today()
	st.UpcomingAppointments, err = s.repo.CountVisits(ctx, chwID, VisitScheduled, from, from.AddDate(0, 0, UpcomingDays+1))
	if err != nil {
		return nil, fmt.Errorf("count visits: %w", err)
	}
	return st, nil
}

// day truncates t to midnight UTC of its calendar date.
func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *Service) today() time.Time { return day(s.engine.Now()) }

// Visits lists a worker's visits in date order, only those on one day when
// on is set.
func (s *Service) Visits(ctx context.Context, chwID uuid.UUID, on *time.Time) ([]*Visit, error) {
	f := VisitFilter{HealthWorkerID: chwID}
	if on != nil {
		from := day(*on)
		to := from.AddDate(0, 0, 1)
		f.From, f.To = &from, &to
	}
	return s.repo.ListVisits(ctx, f)
}

func validateVisit(v *Visit) error {
	v.Purpose = strings.TrimSpace(v.Purpose)
	v.ScheduledTime = strings.TrimSpace(v.ScheduledTime)
	if v.Type == "" || v.ScheduledDate.IsZero() || v.ScheduledTime == "" || v.Purpose == "" {
		return apperr.Invalid("Type, date, time and purpose are required")
	}
	if !validVisitTypes[v.Type] {
		return apperr.Invalid("invalid visit type: %s", v.Type)
	}
	if !timeOfDay.MatchString(v.ScheduledTime) {
		return apperr.Invalid("scheduled time must be HH:MM")
	}
	if v.Priority == "" {
		v.Priority = PriorityMedium
	}
	if !validPriorities[v.Priority] {
		return apperr.Invalid("invalid priority: %s", v.Priority)
	}
	if !validVisitStatuses[v.Status] {
		return apperr.Invalid("invalid visit status: %s", v.Status)
	}
	if v.DurationMinutes == 0 {
		v.DurationMinutes = DefaultVisitMinutes
	}
	if v.DurationMinutes < 0 {
		return apperr.Invalid("duration must be positive")
	}
	if lat := v.Location.Latitude; lat != nil && (*lat < -90 || *lat > 90) {
		return apperr.Invalid("latitude must be between -90 and 90")
	}
	if lng := v.Location.Longitude; lng != nil && (*lng < -180 || *lng > 180) {
		return apperr.Invalid("longitude must be between -180 and 180")
	}
	v.ScheduledDate = day(v.ScheduledDate)
	return nil
}

// checkHousehold verifies that the visited mother is in the worker's
// caseload and the child, if any, is hers.
func (s *Service) checkHousehold(ctx context.Context, chwID uuid.UUID, v *Visit) error {
	if v.MotherID == nil {
		if v.ChildID != nil {
			return apperr.Invalid("mother_id is required when child_id is given")
		}
		return nil
	}
	mothers, err := s.mothers.ListMothersByCHW(ctx, chwID, "")
	if err != nil {
		return fmt.Errorf("list mothers: %w", err)
	}
	if !slices.Contains(motherIDs(mothers), *v.MotherID) {
		return apperr.Invalid("mother is not assigned to this health worker")
	}
	if v.ChildID == nil {
		return nil
	}
	kids, err := s.children.ListByParents(ctx, []uuid.UUID{*v.MotherID})
	if err != nil {
		return fmt.Errorf("list children: %w", err)
	}
	for _, c := range kids {
		if c.ID == *v.ChildID {
			return nil
		}
	}
	return apperr.Invalid("child does not belong to this mother")
}

// CreateVisit plans a visit for the worker. New visits are always scheduled.
func (s *Service) CreateVisit(ctx context.Context, chwID uuid.UUID, v *Visit) error {
	v.HealthWorkerID = chwID
	v.Status = VisitScheduled
	v.CompletedAt, v.Outcome = nil, nil
	if err := validateVisit(v); err != nil {
		return err
	}
	if v.ScheduledDate.Before(s.today()) {
		return apperr.Invalid("Visit date cannot be in the past")
	}
	if err := s.checkHousehold(ctx, chwID, v); err != nil {
		return err
	}
	if err := s.repo.CreateVisit(ctx, v); err != nil {
		return err
	}
	v.LocationLabel = v.Location.Label()
	return nil
}

// UpdateVisit applies a partial update to one of the worker's open visits.
// Another worker's visit reads as not found. Completing stamps completed_at.
func (s *Service) UpdateVisit(ctx context.Context, chwID, id uuid.UUID, p VisitPatch) (*Visit, error) {
	v, err := s.repo.GetVisit(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.HealthWorkerID != chwID {
		return nil, apperr.NotFound("visit")
	}
	if v.Status.Terminal() {
		return nil, apperr.Conflict("Visit is already %s", v.Status)
	}
	if p.Type != nil {
		v.Type = *p.Type
	}
	if p.ScheduledDate != nil {
		v.ScheduledDate = *p.ScheduledDate
	}
	if p.ScheduledTime != nil {
		v.ScheduledTime = *p.ScheduledTime
	}
	if p.DurationMinutes != nil {
		if *p.DurationMinutes <= 0 {
			return nil, apperr.Invalid("duration must be positive")
		}
		v.DurationMinutes = *p.DurationMinutes
	}
	if p.Location != nil {
		v.Location = *p.Location
	}
	if p.Purpose != nil {
		v.Purpose = *p.Purpose
	}
	if p.Priority != nil {
		v.Priority = *p.Priority
	}
	if p.Status != nil {
		v.Status = *p.Status
	}
	if p.Notes != nil {
		v.Notes = p.Notes
	}
	if p.Outcome != nil {
		v.Outcome = p.Outcome
	}
	if err := validateVisit(v); err != nil {
		return nil, err
	}
	if v.Status == VisitCompleted {
		now := s.engine.Now()
		v.CompletedAt = &now
	}
	if err := s.repo.UpdateVisit(ctx, v); err != nil {
		return nil, err
	}
	v.LocationLabel = v.Location.Label()
	return v, nil
}

// Reports lists the worker's field reports, newest first.
func (s *Service) Reports(ctx context.Context, chwID uuid.UUID) ([]*FieldReport, error) {
	return s.repo.ListReports(ctx, chwID)
}

// CreateReport files a field report for the worker. Reports default to
// submitted and are stamped with the submission time.
func (s *Service) CreateReport(ctx context.Context, chwID uuid.UUID, fr *FieldReport) error {
	fr.HealthWorkerID = chwID
	loc := &fr.Location
	loc.SubCounty = strings.TrimSpace(loc.SubCounty)
	loc.Ward = strings.TrimSpace(loc.Ward)
	loc.Village = strings.TrimSpace(loc.Village)
	if fr.ReportDate.IsZero() || loc.SubCounty == "" || loc.Ward == "" || loc.Village == "" {
		return apperr.Invalid("Report date, sub-county, ward and village are required")
	}
	if day(fr.ReportDate).After(s.today()) {
		return apperr.Invalid("Report date cannot be in the future")
	}
	if !fr.Activities.valid() {
		return apperr.Invalid("activity counts cannot be negative")
	}
	if fr.Status == "" {
		fr.Status = ReportSubmitted
	}
	if !validReportStatuses[fr.Status] {
		return apperr.Invalid("invalid report status: %s", fr.Status)
	}
	fr.ReportDate = day(fr.ReportDate)
	fr.SubmittedAt = s.engine.Now()
	return s.repo.CreateReport(ctx, fr)
}
