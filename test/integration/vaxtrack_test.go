//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaxtrack/vaxtrack/internal/domain/child"
	"github.com/vaxtrack/vaxtrack/internal/domain/coverage"
	"github.com/vaxtrack/vaxtrack/internal/domain/facility"
	"github.com/vaxtrack/vaxtrack/internal/domain/immunization"
	"github.com/vaxtrack/vaxtrack/internal/domain/outreach"
	"github.com/vaxtrack/vaxtrack/internal/domain/schedule"
	"github.com/vaxtrack/vaxtrack/internal/domain/user"
	"github.com/vaxtrack/vaxtrack/internal/domain/vaccine"
	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
	"github.com/vaxtrack/vaxtrack/internal/platform/auth"
	"github.com/vaxtrack/vaxtrack/internal/platform/cache"
	"github.com/vaxtrack/vaxtrack/internal/platform/db"
	"github.com/vaxtrack/vaxtrack/migrations"
)

type services struct {
	facility     *facility.Service
	users        *user.Service
	userRepo     user.Repository
	vaccines     *vaccine.Service
	children     *child.Service
	immunization *immunization.Service
	outreach     *outreach.Service
	coverage     *coverage.Service
}

func newServices(store cache.Store) *services {
	engine := schedule.New()
	logger := zerolog.Nop()

	s := &services{}
	s.facility = facility.NewService(facility.NewRepoPG(pool))
	s.userRepo = user.NewRepoPG(pool)
	s.users = user.NewService(s.userRepo, s.facility)

	var opts []vaccine.Option
	if store != nil {
		opts = append(opts, vaccine.WithCache(store, time.Minute))
	}
	s.vaccines = vaccine.NewService(vaccine.NewRepoPG(pool), opts...)

	childRepo := child.NewRepoPG(pool)
	s.immunization = immunization.NewService(immunization.NewRepoPG(pool), childRepo, s.vaccines, db.Transactor{Pool: pool}, engine, logger)
	s.children = child.NewService(childRepo, s.users, s.immunization, s.vaccines, engine, child.WithLogger(logger))
	s.immunization.SetStatusRefresher(s.children)

	s.outreach = outreach.NewService(outreach.NewRepoPG(pool), s.users, s.children, s.immunization, s.vaccines, engine)
	s.coverage = coverage.NewService(coverage.NewRepoPG(pool), s.facility, s.vaccines, s.children, s.immunization)
	return s
}

func createUser(t *testing.T, ctx context.Context, s *services, role auth.Role, chw *uuid.UUID) *user.User {
	t.Helper()
	u := &user.User{
		Name:          string(role) + " " + uuid.NewString()[:6],
		Email:         uuid.NewString() + "@vaxtrack.test",
		Role:          role,
		County:        "Kitui County",
		Village:       "Mutomo",
		AssignedCHWID: chw,
		Active:        true,
	}
	require.NoError(t, s.userRepo.Create(ctx, u))
	return u
}

func TestMigrations_Idempotent(t *testing.T) {
	ctx := context.Background()
	m := db.NewMigrator(pool, migrations.FS)

	applied, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	statuses, err := m.Status(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, statuses)
	for _, st := range statuses {
		assert.True(t, st.Applied, "migration %d not applied", st.Version)
	}
}

func TestImmunizationLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newServices(nil)

	_, err := s.vaccines.Seed(ctx)
	require.NoError(t, err)
	catalog, err := s.vaccines.ListActiveVaccines(ctx)
	require.NoError(t, err)
	var bcg vaccine.Vaccine
	for _, v := range catalog {
		if v.Code == "BCG" {
			bcg = v
		}
	}
	require.NotEqual(t, uuid.Nil, bcg.ID, "BCG missing from seeded catalog")

	hospital := &facility.Hospital{
		Name: "Mutomo Health Centre", Type: "health_center", FacilityLevel: "level_3",
		Phone: "0712345678", Address: "Mutomo Town", County: "Kitui County",
		SubCounty: "Mutomo", Ward: "Mutomo",
	}
	require.NoError(t, s.facility.CreateHospital(ctx, hospital))

	chw := createUser(t, ctx, s, auth.RoleHealthWorker, nil)
	mother := createUser(t, ctx, s, auth.RoleMother, &chw.ID)
	nurse := auth.Principal{UserID: createUser(t, ctx, s, auth.RoleHospitalStaff, nil).ID, Role: auth.RoleHospitalStaff}

	baby := &child.Child{
		ParentID:    mother.ID,
		Name:        "Mwende",
		DateOfBirth: time.Now().UTC().AddDate(0, 0, -20).Truncate(24 * time.Hour),
		Gender:      child.GenderFemale,
	}
	require.NoError(t, s.children.CreateChild(ctx, baby, auth.Principal{UserID: mother.ID, Role: auth.RoleMother}))

	given := time.Now().UTC().Add(-time.Hour)
	rec := &immunization.Record{
		ChildID: baby.ID, VaccineID: bcg.ID, DoseSequence: 1,
		DateGiven: given, BatchNumber: "BCG-0425", Status: schedule.DoseCompleted,
	}
	require.NoError(t, s.immunization.CreateRecord(ctx, rec, nurse))

	dup := &immunization.Record{
		ChildID: baby.ID, VaccineID: bcg.ID, DoseSequence: 1,
		DateGiven: given, BatchNumber: "BCG-0426", Status: schedule.DoseCompleted,
	}
	err = s.immunization.CreateRecord(ctx, dup, nurse)
	require.ErrorIs(t, err, apperr.ErrConflict)

	t.Run("status refreshed", func(t *testing.T) {
		sch, err := s.children.Schedule(ctx, baby.ID, nurse)
		require.NoError(t, err)
		stored, err := s.children.GetChild(ctx, baby.ID, nurse)
		require.NoError(t, err)
		assert.Equal(t, sch.Status, stored.VaccinationStatus)
		assert.NotEqual(t, schedule.StatusNotStarted, stored.VaccinationStatus)
		require.Len(t, sch.Given, 1)
	})

	t.Run("outreach caseload", func(t *testing.T) {
		mothers, err := s.outreach.AssignedMothers(ctx, chw.ID, outreach.Query{})
		require.NoError(t, err)
		require.Len(t, mothers, 1)
		assert.Equal(t, mother.ID, mothers[0].ID)
		require.Len(t, mothers[0].Children, 1)
		assert.Equal(t, baby.ID, mothers[0].Children[0].ID)
	})

	t.Run("chw visits and reports", func(t *testing.T) {
		visit := &outreach.Visit{
			MotherID: &mother.ID, ChildID: &baby.ID, Type: outreach.VisitHome,
			ScheduledDate: time.Now().UTC().AddDate(0, 0, 3), ScheduledTime: "10:00",
			Purpose:  "Check on Mwende",
			Location: outreach.Location{Village: "Kasaala", SubCounty: "Mutomo"},
		}
		require.NoError(t, s.outreach.CreateVisit(ctx, chw.ID, visit))

		st, err := s.outreach.Stats(ctx, chw.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, st.AssignedMothers)
		assert.Equal(t, 1, st.UpcomingAppointments)

		done := outreach.VisitCompleted
		updated, err := s.outreach.UpdateVisit(ctx, chw.ID, visit.ID, outreach.VisitPatch{Status: &done})
		require.NoError(t, err)
		require.NotNil(t, updated.CompletedAt)

		visits, err := s.outreach.Visits(ctx, chw.ID, nil)
		require.NoError(t, err)
		require.Len(t, visits, 1)
		assert.Equal(t, "Kasaala, Mutomo", visits[0].LocationLabel)
		assert.Equal(t, outreach.VisitCompleted, visits[0].Status)

		report := &outreach.FieldReport{
			ReportDate: time.Now().UTC(),
			Location:   outreach.Location{SubCounty: "Mutomo", Ward: "Mutomo", Village: "Kasaala"},
			Activities: outreach.Activities{MothersVisited: 1, VaccinationsGiven: 1},
		}
		require.NoError(t, s.outreach.CreateReport(ctx, chw.ID, report))
		reports, err := s.outreach.Reports(ctx, chw.ID)
		require.NoError(t, err)
		require.Len(t, reports, 1)
		assert.Equal(t, 1, reports[0].Activities.MothersVisited)
	})

	t.Run("growth history", func(t *testing.T) {
		g := &child.GrowthRecord{Weight: 3.9, Height: 52.5}
		require.NoError(t, s.children.AddGrowthRecord(ctx, baby.ID, g, nurse))
		history, err := s.children.GrowthHistory(ctx, baby.ID, nurse)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, g.ID, history[0].ID)
		assert.InDelta(t, 3.9, history[0].Weight, 0.001)
	})

	t.Run("coverage report", func(t *testing.T) {
		period := coverage.PeriodOf(time.Now().UTC())
		first, err := s.coverage.Generate(ctx, hospital.ID, period, nurse.UserID)
		require.NoError(t, err)

		var bcgRow *coverage.VaccineCoverage
		for i := range first.Vaccines {
			if first.Vaccines[i].VaccineID == bcg.ID {
				bcgRow = &first.Vaccines[i]
			}
		}
		require.NotNil(t, bcgRow)
		assert.GreaterOrEqual(t, bcgRow.Given, 1)

		second, err := s.coverage.Generate(ctx, hospital.ID, period, nurse.UserID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID, "regeneration replaces the month's report")

		h, err := s.facility.GetHospital(ctx, hospital.ID)
		require.NoError(t, err)
		assert.Equal(t, second.TotalCoverage, h.CurrentCoverage)
	})
}

func TestVaccineCatalog_RedisBacked(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, redisClient.FlushAll(ctx).Err())

	shared := cache.NewRedis(redisClient, "vaxtrack-it:", zerolog.Nop())
	store := cache.NewTiered(cache.NewMemory(16, time.Minute), shared, nil)
	s := newServices(store)

	_, err := s.vaccines.Seed(ctx)
	require.NoError(t, err)

	first, err := s.vaccines.Catalog(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	keys, err := redisClient.Keys(ctx, "vaxtrack-it:*").Result()
	require.NoError(t, err)
	assert.NotEmpty(t, keys, "catalog should be written through to redis")

	second, err := s.vaccines.Catalog(ctx)
	require.NoError(t, err)
	assert.Len(t, second, len(first))
}
