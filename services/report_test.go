package services

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catawiki-scraper/models"
)

var reportNow = time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestReportService(out *bytes.Buffer) *ReportService {
	s := NewReportService(newTestLogger())
	s.SetOutput(out)
	s.now = func() time.Time { return reportNow }
	return s
}

func sampleEnriched() []*models.EnrichedListing {
	normalized := []*models.NormalizedListing{
		newListing("1", 1000),
		newListing("2", 500),
		newListing("3", 200),
		newListing("4", 50),
	}
	normalized[2].EndTime = reportNow.Add(90 * time.Minute)
	normalized[3].EndTime = reportNow.Add(-time.Hour)

	results := []models.AnalysisResult{
		{ID: "1", EstimatedValue: decimal.NewFromInt(2000), Valuation: models.Undervalued},
		{ID: "2", EstimatedValue: decimal.NewFromInt(400), Valuation: models.Overvalued},
		{ID: "3", EstimatedValue: decimal.NewFromInt(300), Valuation: models.FairlyValued},
	}
	return newTestMerger().Merge(normalized, results)
}

func TestReportCounts(t *testing.T) {
	r := newTestReportService(&bytes.Buffer{}).Generate(sampleEnriched())

	assert.Equal(t, 4, r.TotalListings)
	assert.Equal(t, 3, r.AnalyzedListings)
	assert.Equal(t, 1, r.ByValuation[models.Undervalued])
	assert.Equal(t, 1, r.ByValuation[models.Overvalued])
	assert.Equal(t, 1, r.ByValuation[models.FairlyValued])
}

func TestReportBestDealsOrderedByRatio(t *testing.T) {
	r := newTestReportService(&bytes.Buffer{}).Generate(sampleEnriched())

	// 1: 1140/2000 = 0.57, 3: 268/300 = 0.8933, 2: 595/400 = 1.4875
	require.Len(t, r.BestDeals, 3)
	assert.Equal(t, "1", r.BestDeals[0].ID)
	assert.Equal(t, "3", r.BestDeals[1].ID)
	assert.Equal(t, "2", r.BestDeals[2].ID)

	require.True(t, r.AverageRatio.Valid)
	assert.Equal(t, "0.9836", r.AverageRatio.Decimal.StringFixed(4))
}

func TestReportEndingSoonestIgnoresEndedLots(t *testing.T) {
	r := newTestReportService(&bytes.Buffer{}).Generate(sampleEnriched())
	require.NotNil(t, r.EndingSoonest)
	assert.Equal(t, "3", r.EndingSoonest.ID)
}

func TestReportEmptyInput(t *testing.T) {
	r := newTestReportService(&bytes.Buffer{}).Generate(nil)
	assert.Equal(t, 0, r.TotalListings)
	assert.False(t, r.AverageRatio.Valid)
	assert.Nil(t, r.EndingSoonest)
}

func TestReportPrint(t *testing.T) {
	var out bytes.Buffer
	s := newTestReportService(&out)
	listings := sampleEnriched()
	s.Print(listings, s.Generate(listings))

	printed := out.String()
	lower := strings.ToLower(printed)
	assert.Contains(t, lower, "catawiki watches, valued")
	assert.Contains(t, printed, "1140.00 EUR")
	assert.Contains(t, printed, "1h 30m")
	assert.Contains(t, printed, "Ended")
	assert.Contains(t, printed, "unanalyzed")
	assert.Contains(t, lower, "top 3 deals")
	assert.Contains(t, printed, "Average final/estimate ratio")
}

func TestFormatTimeRemaining(t *testing.T) {
	tests := []struct {
		delta time.Duration
		want  string
	}{
		{-time.Minute, "Ended"},
		{0, "Ended"},
		{45 * time.Minute, "45m"},
		{2*time.Hour + 5*time.Minute, "2h 5m"},
		{3*24*time.Hour + 7*time.Minute, "3d 0h 7m"},
		{26*time.Hour + 30*time.Second, "1d 2h 0m"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatTimeRemaining(reportNow.Add(tt.delta), reportNow), tt.delta.String())
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "Rolex S...", truncate("Rolex Submariner", 10))
}
