package child

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vaxtrack/vaxtrack/internal/domain/schedule"
	"github.com/vaxtrack/vaxtrack/internal/domain/user"
	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
	"github.com/vaxtrack/vaxtrack/internal/platform/auth"
)

var fixedNow = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

type mockRepo struct {
	store   map[uuid.UUID]*Child
	growth  []*GrowthRecord
	updates int
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[uuid.UUID]*Child)}
}

func (m *mockRepo) CreateGrowthRecord(_ context.Context, g *GrowthRecord) error {
	if _, ok := m.store[g.ChildID]; !ok {
		return apperr.NotFound("child")
	}
	g.ID = uuid.New()
	cp := *g
	m.growth = append(m.growth, &cp)
	return nil
}

func (m *mockRepo) ListGrowthRecords(_ context.Context, childID uuid.UUID) ([]*GrowthRecord, error) {
	result := []*GrowthRecord{}
	for _, g := range m.growth {
		if g.ChildID == childID {
			result = append(result, g)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DateRecorded.After(result[j].DateRecorded) })
	return result, nil
}

func (m *mockRepo) Create(_ context.Context, c *Child) error {
	c.ID = uuid.New()
	cp := *c
	m.store[c.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Child, error) {
	c, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("child")
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, c *Child) error {
	if _, ok := m.store[c.ID]; !ok {
		return apperr.NotFound("child")
	}
	cp := *c
	m.store[c.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return apperr.NotFound("child")
	}
	delete(m.store, id)
	return nil
}

func (m *mockRepo) ParentOf(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	c, ok := m.store[id]
	if !ok {
		return uuid.Nil, apperr.NotFound("child")
	}
	return c.ParentID, nil
}

func (m *mockRepo) Search(_ context.Context, f Filter, limit, offset int) ([]*Child, int, error) {
	var result []*Child
	for _, c := range m.store {
		if f.ParentID != nil && c.ParentID != *f.ParentID {
			continue
		}
		if f.Status != "" && c.VaccinationStatus != f.Status {
			continue
		}
		if f.BornFrom != nil && c.DateOfBirth.Before(*f.BornFrom) {
			continue
		}
		if f.BornBefore != nil && !c.DateOfBirth.Before(*f.BornBefore) {
			continue
		}
		result = append(result, c)
	}
	return result, len(result), nil
}

func (m *mockRepo) ListByParents(_ context.Context, parentIDs []uuid.UUID) ([]*Child, error) {
	var result []*Child
	for _, c := range m.store {
		for _, p := range parentIDs {
			if c.ParentID == p {
				result = append(result, c)
			}
		}
	}
	return result, nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, status schedule.Status) error {
	c, ok := m.store[id]
	if !ok {
		return apperr.NotFound("child")
	}
	m.updates++
	c.VaccinationStatus = status
	return nil
}

func (m *mockRepo) CountByStatus(_ context.Context) (StatusCounts, error) {
	counts := StatusCounts{}
	for _, c := range m.store {
		counts[c.VaccinationStatus]++
	}
	return counts, nil
}

func (m *mockRepo) CountBornBetween(_ context.Context, from, before time.Time) (int, error) {
	n := 0
	for _, c := range m.store {
		if !c.DateOfBirth.Before(from) && c.DateOfBirth.Before(before) {
			n++
		}
	}
	return n, nil
}

type fakeParents map[uuid.UUID]auth.Role

func (f fakeParents) RequireRole(_ context.Context, id uuid.UUID, role auth.Role) (*user.User, error) {
	r, ok := f[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	if r != role {
		return nil, apperr.Invalid("user %s is not a %s", id, role)
	}
	return &user.User{ID: id, Role: r}, nil
}

type fakeHistory map[uuid.UUID][]schedule.Dose

func (f fakeHistory) RecordsForChild(_ context.Context, childID uuid.UUID) ([]schedule.Dose, error) {
	return f[childID], nil
}

type fakeCatalog []schedule.Definition

func (f fakeCatalog) Catalog(context.Context) ([]schedule.Definition, error) {
	return f, nil
}

var (
	bcgID   = uuid.New()
	pentaID = uuid.New()
	catalog = fakeCatalog{
		{ID: bcgID, Name: "BCG"},
		{ID: pentaID, Name: "Pentavalent", RecommendedAge: schedule.Age{Weeks: 6},
			Boosters: []schedule.Booster{
				{Sequence: 2, RecommendedAge: schedule.Age{Weeks: 10}},
				{Sequence: 3, RecommendedAge: schedule.Age{Weeks: 14}},
			}},
	}
)

type fixture struct {
	svc      *Service
	repo     *mockRepo
	history  fakeHistory
	motherID uuid.UUID
	mother   auth.Principal
	admin    auth.Principal
}

func newFixture() *fixture {
	f := &fixture{
		repo:     newMockRepo(),
		history:  fakeHistory{},
		motherID: uuid.New(),
	}
	f.mother = auth.Principal{UserID: f.motherID, Role: auth.RoleMother}
	f.admin = auth.Principal{UserID: uuid.New(), Role: auth.RoleAdmin}
	parents := fakeParents{f.motherID: auth.RoleMother, f.admin.UserID: auth.RoleAdmin}
	engine := schedule.New(schedule.WithClock(func() time.Time { return fixedNow }))
	f.svc = NewService(f.repo, parents, f.history, catalog, engine)
	return f
}

func (f *fixture) child(t *testing.T, dob time.Time) *Child {
	t.Helper()
	c := &Child{Name: "Amani", DateOfBirth: dob, Gender: GenderFemale}
	if err := f.svc.CreateChild(context.Background(), c, f.mother); err != nil {
		t.Fatalf("create child: %v", err)
	}
	return c
}

func ptr[T any](v T) *T { return &v }

func TestCreateChild(t *testing.T) {
	f := newFixture()
	c := f.child(t, fixedNow.AddDate(0, -2, 0))
	if c.ParentID != f.motherID {
		t.Errorf("expected a mother to register her own child")
	}
	if c.VaccinationStatus != schedule.StatusNotStarted || !c.Active {
		t.Errorf("unexpected initial state %s active=%v", c.VaccinationStatus, c.Active)
	}
	if c.Allergies == nil {
		t.Error("expected empty allergies list")
	}
}

func TestCreateChild_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Child)
	}{
		{"missing name", func(c *Child) { c.Name = "  " }},
		{"long name", func(c *Child) { c.Name = strings.Repeat("a", 101) }},
		{"bad gender", func(c *Child) { c.Gender = "unknown" }},
		{"future dob", func(c *Child) { c.DateOfBirth = fixedNow.AddDate(0, 0, 1) }},
		{"light", func(c *Child) { c.BirthWeight = ptr(0.4) }},
		{"heavy", func(c *Child) { c.BirthWeight = ptr(6.5) }},
		{"short", func(c *Child) { c.BirthHeight = ptr(29.0) }},
		{"tall", func(c *Child) { c.BirthHeight = ptr(71.0) }},
		{"special needs", func(c *Child) { c.SpecialNeeds = ptr(strings.Repeat("x", 501)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			c := &Child{Name: "Amani", DateOfBirth: fixedNow.AddDate(0, -1, 0), Gender: GenderMale,
				BirthWeight: ptr(3.2), BirthHeight: ptr(50.0)}
			tt.mutate(c)
			if err := f.svc.CreateChild(context.Background(), c, f.mother); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateChild_ParentMustBeMother(t *testing.T) {
	f := newFixture()
	c := &Child{Name: "Amani", DateOfBirth: fixedNow.AddDate(0, -1, 0), Gender: GenderMale}
	if err := f.svc.CreateChild(context.Background(), c, f.admin); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected parent_id to be required, got %v", err)
	}

	c.ParentID = f.admin.UserID
	if err := f.svc.CreateChild(context.Background(), c, f.admin); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected a non-mother parent to be rejected, got %v", err)
	}

	c.ParentID = f.motherID
	if err := f.svc.CreateChild(context.Background(), c, f.admin); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGetChild_MotherScope(t *testing.T) {
	f := newFixture()
	c := f.child(t, fixedNow.AddDate(0, -1, 0))
	other := auth.Principal{UserID: uuid.New(), Role: auth.RoleMother}
	if _, err := f.svc.GetChild(context.Background(), c.ID, other); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
	worker := auth.Principal{UserID: uuid.New(), Role: auth.RoleHealthWorker}
	if _, err := f.svc.GetChild(context.Background(), c.ID, worker); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestUpdateChild_OwnerOrAdmin(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.child(t, fixedNow.AddDate(0, -1, 0))

	worker := auth.Principal{UserID: uuid.New(), Role: auth.RoleHealthWorker}
	c.Name = "Amani Wanjiru"
	if err := f.svc.UpdateChild(ctx, c, worker); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden for a non-owner, got %v", err)
	}
	c.ParentID = uuid.New()
	c.VaccinationStatus = schedule.StatusCompleted
	if err := f.svc.UpdateChild(ctx, c, f.mother); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored := f.repo.store[c.ID]
	if stored.Name != "Amani Wanjiru" {
		t.Errorf("expected name update, got %q", stored.Name)
	}
	if stored.ParentID != f.motherID || stored.VaccinationStatus != schedule.StatusNotStarted {
		t.Error("parent and status must not change through an update")
	}
	if err := f.svc.DeleteChild(ctx, c.ID, worker); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden delete, got %v", err)
	}
	if err := f.svc.DeleteChild(ctx, c.ID, f.admin); err != nil {
		t.Errorf("expected admin delete to succeed, got %v", err)
	}
}

func TestBirthRange_AgreesWithAgeInMonths(t *testing.T) {
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	from, before := BirthRange(now, 2, 4)
	for d := from.AddDate(0, -2, 0); d.Before(before.AddDate(0, 2, 0)); d = d.AddDate(0, 0, 1) {
		age := schedule.AgeInMonths(d, now)
		inRange := !d.Before(from) && d.Before(before)
		if inRange != (age >= 2 && age <= 4) {
			t.Fatalf("dob %s age %d: in range %v", d.Format("2006-01-02"), age, inRange)
		}
	}
}

func TestListByAgeRange(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.child(t, fixedNow.AddDate(0, -1, 0))
	f.child(t, fixedNow.AddDate(0, -6, 0))
	f.child(t, fixedNow.AddDate(-2, 0, 0))

	_, total, err := f.svc.ListByAgeRange(ctx, 0, 6, f.admin, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Errorf("expected 2 children aged 0-6 months, got %d", total)
	}
	if _, _, err := f.svc.ListByAgeRange(ctx, 5, 2, f.admin, 20, 0); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for min > max, got %v", err)
	}
	if _, _, err := f.svc.ListByAgeRange(ctx, -1, 2, f.admin, 20, 0); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for negative min, got %v", err)
	}
	n, _ := f.svc.CountEligible(ctx, 0, 12)
	if n != 2 {
		t.Errorf("expected 2 eligible children, got %d", n)
	}
}

func TestSchedule(t *testing.T) {
	f := newFixture()
	dob := fixedNow.AddDate(0, 0, -70)
	c := f.child(t, dob)

	sch, err := f.svc.Schedule(context.Background(), c.ID, f.mother)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sch.Status != schedule.StatusNotStarted {
		t.Errorf("expected not-started without history, got %s", sch.Status)
	}
	if len(sch.Upcoming) != 2 || sch.NextDose == nil || sch.NextDose.Name != "BCG" {
		t.Fatalf("unexpected upcoming %+v", sch.Upcoming)
	}

	f.history[c.ID] = []schedule.Dose{
		{VaccineID: bcgID, Sequence: 1, DateGiven: dob, Status: schedule.DoseCompleted},
		{VaccineID: pentaID, Sequence: 1, DateGiven: dob.AddDate(0, 0, 42), Status: schedule.DoseCompleted},
	}
	sch, _ = f.svc.Schedule(context.Background(), c.ID, f.mother)
	if len(sch.Upcoming) != 1 || sch.Upcoming[0].DoseSequence != 2 {
		t.Fatalf("expected only Pentavalent dose 2, got %+v", sch.Upcoming)
	}
	if sch.Status != schedule.StatusUpToDate {
		t.Errorf("expected up-to-date, got %s", sch.Status)
	}
}

func TestRefreshStatus(t *testing.T) {
	f := newFixture()
	dob := fixedNow.AddDate(0, 0, -200)
	c := f.child(t, dob)
	f.history[c.ID] = []schedule.Dose{
		{VaccineID: bcgID, Sequence: 1, DateGiven: dob, Status: schedule.DoseCompleted},
	}

	status, err := f.svc.RefreshStatus(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != schedule.StatusBehind {
		t.Errorf("expected behind, got %s", status)
	}
	if f.repo.store[c.ID].VaccinationStatus != schedule.StatusBehind {
		t.Error("expected the status to be stored")
	}

	f.svc.RefreshStatus(context.Background(), c.ID)
	if f.repo.updates != 1 {
		t.Errorf("expected an unchanged status not to be rewritten, got %d writes", f.repo.updates)
	}
	if _, err := f.svc.RefreshStatus(context.Background(), uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestAddGrowthRecord(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	dob := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	c := f.child(t, dob)

	first := &GrowthRecord{DateRecorded: time.Date(2026, 8, 14, 0, 0, 0, 0, time.UTC), Weight: 4.8, Height: 55}
	if err := f.svc.AddGrowthRecord(ctx, c.ID, first, f.mother); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.AgeMonths != 2 {
		t.Errorf("expected calendar age 2 months at 14 Aug, got %d", first.AgeMonths)
	}
	if first.RecordedBy == nil || *first.RecordedBy != f.motherID || first.ChildID != c.ID {
		t.Errorf("unexpected record %+v", first)
	}

	latest := &GrowthRecord{Weight: 6.1, Height: 61.5, HeadCircumference: ptr(40.2)}
	if err := f.svc.AddGrowthRecord(ctx, c.ID, latest, f.admin); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !latest.DateRecorded.Equal(fixedNow) || latest.AgeMonths != 4 {
		t.Errorf("expected today's measurement at 4 months, got %s at %d", latest.DateRecorded, latest.AgeMonths)
	}

	history, err := f.svc.GrowthHistory(ctx, c.ID, f.mother)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 2 || history[0].ID != latest.ID || history[1].ID != first.ID {
		t.Errorf("expected newest first, got %+v", history)
	}
}

func TestAddGrowthRecord_Validation(t *testing.T) {
	tests := []struct {
		name string
		rec  GrowthRecord
	}{
		{"missing weight", GrowthRecord{Height: 55}},
		{"negative height", GrowthRecord{Weight: 4.8, Height: -1}},
		{"negative head", GrowthRecord{Weight: 4.8, Height: 55, HeadCircumference: ptr(-3.0)}},
		{"future date", GrowthRecord{Weight: 4.8, Height: 55, DateRecorded: fixedNow.AddDate(0, 0, 1)}},
		{"before birth", GrowthRecord{Weight: 4.8, Height: 55, DateRecorded: fixedNow.AddDate(0, -6, 0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			c := f.child(t, fixedNow.AddDate(0, -2, 0))
			rec := tt.rec
			err := f.svc.AddGrowthRecord(context.Background(), c.ID, &rec, f.mother)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
			if len(f.repo.growth) != 0 {
				t.Error("a rejected measurement must not be stored")
			}
		})
	}
}

func TestGrowth_Access(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.child(t, fixedNow.AddDate(0, -2, 0))
	stranger := auth.Principal{UserID: uuid.New(), Role: auth.RoleMother}

	err := f.svc.AddGrowthRecord(ctx, c.ID, &GrowthRecord{Weight: 5, Height: 57}, stranger)
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden for another mother, got %v", err)
	}
	if _, err := f.svc.GrowthHistory(ctx, c.ID, stranger); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden history for another mother, got %v", err)
	}
	if _, err := f.svc.GrowthHistory(ctx, uuid.New(), f.admin); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for unknown child, got %v", err)
	}
}
