package coverage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaxtrack/vaxtrack/internal/domain/child"
	"github.com/vaxtrack/vaxtrack/internal/domain/facility"
	"github.com/vaxtrack/vaxtrack/internal/domain/schedule"
	"github.com/vaxtrack/vaxtrack/internal/domain/vaccine"
	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
)

var fixedNow = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

type mockRepo struct {
	store map[uuid.UUID]*Report
}

func (m *mockRepo) Upsert(_ context.Context, r *Report) error {
	for id, existing := range m.store {
		if existing.HospitalID == r.HospitalID && existing.Period == r.Period {
			r.ID = id
		}
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	cp := *r
	m.store[r.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Report, error) {
	r, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("coverage report")
	}
	return r, nil
}

func (m *mockRepo) Latest(_ context.Context, hospitalID uuid.UUID) (*Report, error) {
	var latest *Report
	for _, r := range m.store {
		if r.HospitalID != hospitalID {
			continue
		}
		if latest == nil || r.Period.Year*12+int(r.Period.Month) > latest.Period.Year*12+int(latest.Period.Month) {
			latest = r
		}
	}
	if latest == nil {
		return nil, apperr.NotFound("coverage report")
	}
	return latest, nil
}

func (m *mockRepo) Search(_ context.Context, f Filter, limit, offset int) ([]*Report, int, error) {
	var out []*Report
	for _, r := range m.store {
		if f.HospitalID != nil && r.HospitalID != *f.HospitalID {
			continue
		}
		if f.Period != nil && r.Period != *f.Period {
			continue
		}
		out = append(out, r)
	}
	return out, len(out), nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return apperr.NotFound("coverage report")
	}
	delete(m.store, id)
	return nil
}

type fakeHospitals struct {
	mu       sync.Mutex
	known    map[uuid.UUID]bool
	coverage map[uuid.UUID]int
}

func (f *fakeHospitals) GetHospital(_ context.Context, id uuid.UUID) (*facility.Hospital, error) {
	if !f.known[id] {
		return nil, apperr.NotFound("hospital")
	}
	return &facility.Hospital{ID: id, Name: "Kitui County Referral"}, nil
}

func (f *fakeHospitals) UpdateCoverage(_ context.Context, id uuid.UUID, coverage int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.coverage[id] = coverage
	return nil
}

type fakeVaccines []vaccine.Vaccine

func (f fakeVaccines) GetVaccine(_ context.Context, id uuid.UUID) (*vaccine.Vaccine, error) {
	for _, v := range f {
		if v.ID == id {
			return &v, nil
		}
	}
	return nil, apperr.NotFound("vaccine")
}

func (f fakeVaccines) ListActiveVaccines(context.Context) ([]vaccine.Vaccine, error) { return f, nil }

type fakeChildren struct {
	eligible map[int]int
	counts   child.StatusCounts
}

func (f fakeChildren) CountEligible(_ context.Context, minMonths, maxMonths int) (int, error) {
	return f.eligible[maxMonths], nil
}

func (f fakeChildren) CountByStatus(context.Context) (child.StatusCounts, error) {
	return f.counts, nil
}

// fakeRecords counts completed doses per vaccine and YYYY-MM month.
type fakeRecords map[uuid.UUID]map[string]int

func (f fakeRecords) CountCompleted(_ context.Context, vaccineID uuid.UUID, from, to time.Time) (int, error) {
	if !to.Equal(from.AddDate(0, 1, 0)) {
		return 0, nil
	}
	return f[vaccineID][from.Format("2006-01")], nil
}

type fixture struct {
	svc        *Service
	repo       *mockRepo
	hospitals  *fakeHospitals
	hospitalID uuid.UUID
	bcg        vaccine.Vaccine
	measles    vaccine.Vaccine
	pcv        vaccine.Vaccine
}

func newFixture() *fixture {
	f := &fixture{
		repo:       &mockRepo{store: make(map[uuid.UUID]*Report)},
		hospitalID: uuid.New(),
		bcg:        vaccine.Vaccine{ID: uuid.New(), Code: "BCG", Name: "BCG"},
		measles:    vaccine.Vaccine{ID: uuid.New(), Code: "MR", Name: "Measles-Rubella", RecommendedMonths: 9},
		pcv:        vaccine.Vaccine{ID: uuid.New(), Code: "PCV10", Name: "PCV10"},
	}
	f.hospitals = &fakeHospitals{known: map[uuid.UUID]bool{f.hospitalID: true}, coverage: make(map[uuid.UUID]int)}
	records := fakeRecords{
		f.bcg.ID:     {"2026-05": 20, "2026-06": 20, "2026-07": 20, "2026-08": 30, "2026-09": 30, "2026-10": 38},
		f.measles.ID: {"2026-09": 70, "2026-10": 70},
		f.pcv.ID:     {"2026-09": 36, "2026-10": 34},
	}
	children := fakeChildren{
		eligible: map[int]int{3: 40, 12: 100},
		counts: child.StatusCounts{
			schedule.StatusNotStarted: 2, schedule.StatusUpToDate: 5,
			schedule.StatusBehind: 1, schedule.StatusCompleted: 2,
		},
	}
	f.svc = NewService(f.repo, f.hospitals, fakeVaccines{f.bcg, f.measles, f.pcv}, children, records,
		WithClock(func() time.Time { return fixedNow }))
	return f
}

var october = Period{Year: 2026, Month: time.October}

func TestGenerate(t *testing.T) {
	f := newFixture()
	actor := uuid.New()
	rep, err := f.svc.Generate(context.Background(), f.hospitalID, october, actor)
	require.NoError(t, err)
	require.Len(t, rep.Vaccines, 3)

	bcg, mr, pcv := rep.Vaccines[0], rep.Vaccines[1], rep.Vaccines[2]
	assert.Equal(t, VaccineCoverage{
		VaccineID: f.bcg.ID, VaccineName: "BCG", Target: 90, Actual: 95, Gap: 0,
		Status: StatusOnTarget, Trend: TrendUp, Given: 38, Eligible: 40,
	}, bcg)
	assert.Equal(t, 70, mr.Actual)
	assert.Equal(t, 20, mr.Gap)
	assert.Equal(t, StatusOffTarget, mr.Status)
	assert.Equal(t, TrendStable, mr.Trend)
	assert.Equal(t, 100, mr.Eligible)
	assert.Equal(t, 85, pcv.Actual)
	assert.Equal(t, StatusNearTarget, pcv.Status)
	assert.Equal(t, TrendDown, pcv.Trend)

	assert.Equal(t, 83, rep.TotalCoverage)
	assert.Equal(t, fixedNow, rep.GeneratedAt)
	require.NotNil(t, rep.GeneratedBy)
	assert.Equal(t, actor, *rep.GeneratedBy)
	assert.Equal(t, 83, f.hospitals.coverage[f.hospitalID])

	given, eligible := rep.Totals()
	assert.Equal(t, 142, given)
	assert.Equal(t, 180, eligible)
}

func TestGenerate_ReplacesMonth(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	first, err := f.svc.Generate(ctx, f.hospitalID, october, uuid.Nil)
	require.NoError(t, err)
	assert.Nil(t, first.GeneratedBy)

	second, err := f.svc.Generate(ctx, f.hospitalID, october, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.repo.store, 1)
}

func TestGenerate_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		hospital func(*fixture) uuid.UUID
		period   Period
		kind     error
	}{
		{"missing hospital", func(*fixture) uuid.UUID { return uuid.Nil }, october, apperr.ErrValidation},
		{"bad month", func(f *fixture) uuid.UUID { return f.hospitalID }, Period{Year: 2026, Month: 13}, apperr.ErrValidation},
		{"future month", func(f *fixture) uuid.UUID { return f.hospitalID }, october.Add(1), apperr.ErrValidation},
		{"unknown hospital", func(*fixture) uuid.UUID { return uuid.New() }, october, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.Generate(context.Background(), tt.hospital(f), tt.period, uuid.Nil)
			assert.ErrorIs(t, err, tt.kind)
			assert.Empty(t, f.repo.store)
		})
	}
}

func TestGapAnalysis(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	empty, err := f.svc.GapAnalysis(ctx, f.hospitalID)
	require.NoError(t, err)
	assert.Empty(t, empty.Gaps)
	assert.Nil(t, empty.Period)

	_, err = f.svc.Generate(ctx, f.hospitalID, october.Add(-1), uuid.Nil)
	require.NoError(t, err)
	_, err = f.svc.Generate(ctx, f.hospitalID, october, uuid.Nil)
	require.NoError(t, err)

	ga, err := f.svc.GapAnalysis(ctx, f.hospitalID)
	require.NoError(t, err)
	require.NotNil(t, ga.Period)
	assert.Equal(t, october, *ga.Period)
	require.Len(t, ga.Gaps, 2)
	assert.Equal(t, "Measles-Rubella", ga.Gaps[0].VaccineName)
	assert.Equal(t, PriorityHigh, ga.Gaps[0].Priority)
	assert.Equal(t, "PCV10", ga.Gaps[1].VaccineName)
	assert.Equal(t, PriorityLow, ga.Gaps[1].Priority)
	assert.Equal(t, 2, ga.TotalGaps)
	assert.Zero(t, ga.CriticalGaps)
	assert.Equal(t, Impact{AdditionalVaccinations: 250, ChildrenProtected: 375, TimeToClose: "1-3 months"}, ga.Impact)

	_, err = f.svc.GapAnalysis(ctx, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTrends(t *testing.T) {
	f := newFixture()
	ts, err := f.svc.Trends(context.Background(), f.bcg.ID, 0)
	require.NoError(t, err)
	require.Len(t, ts.Points, DefaultTrendMonths)

	assert.Equal(t, "2026-05", ts.Points[0].Period)
	assert.Equal(t, "2026-10", ts.Points[5].Period)
	var rates []int
	for _, p := range ts.Points {
		rates = append(rates, p.Coverage)
	}
	assert.Equal(t, []int{50, 50, 50, 75, 75, 95}, rates)
	assert.Equal(t, 65.8, ts.Average)
	assert.Equal(t, DirectionImproving, ts.Direction)

	_, err = f.svc.Trends(context.Background(), f.bcg.ID, MaxTrendMonths+1)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.svc.Trends(context.Background(), uuid.New(), 3)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestOverview(t *testing.T) {
	f := newFixture()
	ov, err := f.svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, ov.TotalChildren)
	assert.Equal(t, 70, ov.CoverageRate)
	assert.Equal(t, 1, ov.ByStatus[schedule.StatusBehind])
}
