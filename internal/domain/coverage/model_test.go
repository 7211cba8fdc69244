package coverage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	assert.Equal(t, StatusOnTarget, StatusFor(90))
	assert.Equal(t, StatusOnTarget, StatusFor(104))
	assert.Equal(t, StatusNearTarget, StatusFor(89))
	assert.Equal(t, StatusNearTarget, StatusFor(80))
	assert.Equal(t, StatusOffTarget, StatusFor(79))
	assert.Equal(t, StatusOffTarget, StatusFor(0))
}

func TestPriorityFor(t *testing.T) {
	tests := []struct {
		gap  int
		want Priority
	}{
		{21, PriorityCritical},
		{20, PriorityHigh},
		{11, PriorityHigh},
		{10, PriorityMedium},
		{6, PriorityMedium},
		{5, PriorityLow},
		{0, PriorityLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PriorityFor(tt.gap), "gap %d", tt.gap)
	}
}

func TestTrendFor(t *testing.T) {
	assert.Equal(t, TrendUp, TrendFor(80, 75))
	assert.Equal(t, TrendDown, TrendFor(70, 75))
	assert.Equal(t, TrendStable, TrendFor(75, 75))
}

func TestDirectionOf(t *testing.T) {
	tests := []struct {
		name   string
		values []int
		want   Direction
	}{
		{"empty", nil, DirectionInsufficientData},
		{"only recent months", []int{40, 50, 60}, DirectionInsufficientData},
		{"improving", []int{50, 50, 50, 75, 75, 95}, DirectionImproving},
		{"declining", []int{60, 60, 50, 50, 50}, DirectionDeclining},
		{"within two points", []int{50, 50, 50, 51, 52, 53}, DirectionStable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DirectionOf(tt.values))
		})
	}
}

func TestPeriod(t *testing.T) {
	p := Period{Year: 2026, Month: time.January}
	from, to := p.Bounds()
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), to)
	assert.Equal(t, Period{Year: 2025, Month: time.December}, p.Add(-1))
	assert.Equal(t, "2026-01", p.String())

	parsed, err := ParsePeriod("2026-10")
	require.NoError(t, err)
	assert.Equal(t, Period{Year: 2026, Month: time.October}, parsed)

	_, err = ParsePeriod("October")
	assert.Error(t, err)
	assert.Error(t, Period{Year: 2026, Month: 13}.Validate())
	assert.NoError(t, parsed.Validate())
}

func TestEstimateImpact(t *testing.T) {
	assert.Equal(t, Impact{TimeToClose: "1 month"}, EstimateImpact(nil))
	assert.Equal(t, Impact{AdditionalVaccinations: 250, ChildrenProtected: 375, TimeToClose: "1-3 months"},
		EstimateImpact([]Gap{{Gap: 20}, {Gap: 5}}))
	assert.Equal(t, "3-6 months", EstimateImpact([]Gap{{Gap: 30}}).TimeToClose)
}

func TestRecommendations(t *testing.T) {
	assert.Contains(t, Recommendations(25), "Organize vaccination outreach camp")
	assert.Contains(t, Recommendations(15), "Increase CHW follow-up visits")
	assert.Equal(t, []string{"Continue current efforts", "Monitor defaulters closely"}, Recommendations(3))
}
