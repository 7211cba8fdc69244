package coverage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vaxtrack/vaxtrack/internal/domain/child"
	"github.com/vaxtrack/vaxtrack/internal/domain/facility"
	"github.com/vaxtrack/vaxtrack/internal/domain/schedule"
	"github.com/vaxtrack/vaxtrack/internal/domain/vaccine"
	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
)

const (
	DefaultTrendMonths = 6
	MaxTrendMonths     = 24
)

type Hospitals interface {
	GetHospital(ctx context.Context, id uuid.UUID) (*facility.Hospital, error)
	UpdateCoverage(ctx context.Context, id uuid.UUID, coverage int) error
}

type Vaccines interface {
	GetVaccine(ctx context.Context, id uuid.UUID) (*vaccine.Vaccine, error)
	ListActiveVaccines(ctx context.Context) ([]vaccine.Vaccine, error)
}

type Children interface {
	CountEligible(ctx context.Context, minMonths, maxMonths int) (int, error)
	CountByStatus(ctx context.Context) (child.StatusCounts, error)
}

type Records interface {
	CountCompleted(ctx context.Context, vaccineID uuid.UUID, from, to time.Time) (int, error)
}

type Service struct {
	repo      Repository
	hospitals Hospitals
	vaccines  Vaccines
	children  Children
	records   Records
	now       func() time.Time
	logger    zerolog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(repo Repository, hospitals Hospitals, vaccines Vaccines, children Children, records Records, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		hospitals: hospitals,
		vaccines:  vaccines,
		children:  children,
		records:   records,
		now:       time.Now,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// rate returns the share of eligible children who completed a dose of the vaccine
// during p.
func (s *Service) rate(ctx context.Context, vaccineID uuid.UUID, eligible int, p Period) (given, rate int, err error) {
	from, to := p.Bounds()
	given, err = s.records.CountCompleted(ctx, vaccineID, from, to)
	if err != nil {
		return 0, 0, fmt.Errorf("count doses for %s: %w", p, err)
	}
	return given, schedule.CoverageRate(given, eligible), nil
}

func (s *Service) measure(ctx context.Context, v vaccine.Vaccine, p Period) (VaccineCoverage, error) {
	eligible, err := s.children.CountEligible(ctx, 0, v.RecommendedMonths+EligibilityWindowMonths)
	if err != nil {
		return VaccineCoverage{}, fmt.Errorf("count eligible children: %w", err)
	}
	given, actual, err := s.rate(ctx, v.ID, eligible, p)
	if err != nil {
		return VaccineCoverage{}, err
	}
	_, previous, err := s.rate(ctx, v.ID, eligible, p.Add(-1))
	if err != nil {
		return VaccineCoverage{}, err
	}
	return VaccineCoverage{
		VaccineID:   v.ID,
		VaccineName: v.Name,
		Target:      Target,
		Actual:      actual,
		Gap:         max(Target-actual, 0),
		Status:      StatusFor(actual),
		Trend:       TrendFor(actual, previous),
		Given:       given,
		Eligible:    eligible,
	}, nil
}

// Generate measures every active vaccine for one hospital and month, stores
// the report in place of any earlier one for that month and records the
// total as the hospital's current coverage.
func (s *Service) Generate(ctx context.Context, hospitalID uuid.UUID, p Period, actor uuid.UUID) (*Report, error) {
	if hospitalID == uuid.Nil {
		return nil, apperr.Invalid("Hospital ID and period (month, year) are required")
	}
	if err := p.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, err)
	}
	now := s.now()
	if from, _ := p.Bounds(); from.After(now) {
		return nil, apperr.Invalid("cannot report on future period %s", p)
	}
	if _, err := s.hospitals.GetHospital(ctx, hospitalID); err != nil {
		return nil, err
	}
	vaccines, err := s.vaccines.ListActiveVaccines(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vaccines: %w", err)
	}

	lines := make([]VaccineCoverage, len(vaccines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, v := range vaccines {
		g.Go(func() error {
			line, err := s.measure(gctx, v, p)
			if err != nil {
				return fmt.Errorf("vaccine %s: %w", v.Code, err)
			}
			lines[i] = line
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rates := make([]int, len(lines))
	for i, l := range lines {
		rates[i] = l.Actual
	}
	rep := &Report{
		HospitalID:    hospitalID,
		Period:        p,
		Vaccines:      lines,
		TotalCoverage: int(math.Round(mean(rates))),
		GeneratedAt:   now,
	}
	if actor != uuid.Nil {
		rep.GeneratedBy = &actor
	}
	if err := s.repo.Upsert(ctx, rep); err != nil {
		return nil, fmt.Errorf("store report: %w", err)
	}
	if err := s.hospitals.UpdateCoverage(ctx, hospitalID, rep.TotalCoverage); err != nil {
		return nil, fmt.Errorf("update hospital coverage: %w", err)
	}
	s.logger.Info().Str("hospital_id", hospitalID.String()).Str("period", p.String()).
		Int("total_coverage", rep.TotalCoverage).Int("vaccines", len(lines)).Msg("coverage report generated")
	return rep, nil
}

func (s *Service) GetReport(ctx context.Context, id uuid.UUID) (*Report, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) DeleteReport(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListReports(ctx context.Context, f Filter, limit, offset int) ([]*Report, int, error) {
	return s.repo.Search(ctx, f, limit, offset)
}

// Recommendations suggests follow-up actions for a coverage gap.
func Recommendations(gap int) []string {
	switch {
	case gap > 20:
		return []string{
			"Organize vaccination outreach camp",
			"Increase community mobilization efforts",
			"Schedule extra vaccination days",
		}
	case gap > 10:
		return []string{
			"Send targeted reminders to defaulters",
			"Increase CHW follow-up visits",
			"Review and improve access to facility",
		}
	default:
		return []string{"Continue current efforts", "Monitor defaulters closely"}
	}
}

// EstimateImpact projects what closing the given gaps would achieve.
func EstimateImpact(gaps []Gap) Impact {
	total := 0
	for _, g := range gaps {
		total += g.Gap
	}
	avg := 0.0
	if len(gaps) > 0 {
		avg = float64(total) / float64(len(gaps))
	}
	im := Impact{AdditionalVaccinations: total * 10, ChildrenProtected: total * 15, TimeToClose: "1 month"}
	switch {
	case avg > 20:
		im.TimeToClose = "3-6 months"
	case avg > 10:
		im.TimeToClose = "1-3 months"
	}
	return im
}

// GapAnalysis lists the vaccines below target in a hospital's latest report,
// largest gap first. A hospital without reports has no gaps.
func (s *Service) GapAnalysis(ctx context.Context, hospitalID uuid.UUID) (*GapAnalysis, error) {
	if _, err := s.hospitals.GetHospital(ctx, hospitalID); err != nil {
		return nil, err
	}
	ga := &GapAnalysis{HospitalID: hospitalID, Target: Target, Gaps: []Gap{}}

	latest, err := s.repo.Latest(ctx, hospitalID)
	if errors.Is(err, apperr.ErrNotFound) {
		ga.Impact = EstimateImpact(nil)
		return ga, nil
	}
	if err != nil {
		return nil, err
	}
	ga.Period = &latest.Period

	for _, v := range latest.Vaccines {
		if v.Actual >= Target {
			continue
		}
		gap := Target - v.Actual
		ga.Gaps = append(ga.Gaps, Gap{
			VaccineID:       v.VaccineID,
			VaccineName:     v.VaccineName,
			Current:         v.Actual,
			Target:          Target,
			Gap:             gap,
			Priority:        PriorityFor(gap),
			Recommendations: Recommendations(gap),
		})
	}
	sort.SliceStable(ga.Gaps, func(i, j int) bool { return ga.Gaps[i].Gap > ga.Gaps[j].Gap })

	ga.TotalGaps = len(ga.Gaps)
	for _, g := range ga.Gaps {
		if g.Priority == PriorityCritical {
			ga.CriticalGaps++
		}
	}
	ga.Impact = EstimateImpact(ga.Gaps)
	return ga, nil
}

// Trends measures a vaccine's monthly coverage over the last months,
// ending with the current month.
func (s *Service) Trends(ctx context.Context, vaccineID uuid.UUID, months int) (*TrendSeries, error) {
	if months == 0 {
		months = DefaultTrendMonths
	}
	if months < 1 || months > MaxTrendMonths {
		return nil, apperr.Invalid("months must be between 1 and %d", MaxTrendMonths)
	}
	v, err := s.vaccines.GetVaccine(ctx, vaccineID)
	if err != nil {
		return nil, err
	}
	eligible, err := s.children.CountEligible(ctx, 0, v.RecommendedMonths+EligibilityWindowMonths)
	if err != nil {
		return nil, fmt.Errorf("count eligible children: %w", err)
	}

	current := PeriodOf(s.now())
	ts := &TrendSeries{VaccineID: vaccineID, Points: make([]TrendPoint, 0, months)}
	rates := make([]int, 0, months)
	for i := months - 1; i >= 0; i-- {
		p := current.Add(-i)
		given, rate, err := s.rate(ctx, vaccineID, eligible, p)
		if err != nil {
			return nil, err
		}
		ts.Points = append(ts.Points, TrendPoint{Period: p.String(), Coverage: rate, Given: given})
		rates = append(rates, rate)
	}
	ts.Average = math.Round(mean(rates)*10) / 10
	ts.Direction = DirectionOf(rates)
	return ts, nil
}

// Overview counts children per vaccination status. Completed children count
// as covered together with those up to date.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	counts, err := s.children.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	total := counts.Total()
	covered := counts[schedule.StatusUpToDate] + counts[schedule.StatusCompleted]
	return &Overview{
		TotalChildren: total,
		ByStatus:      counts,
		CoverageRate:  schedule.CoverageRate(covered, total),
	}, nil
}
