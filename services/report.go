package services

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"

	"catawiki-scraper/models"
	"catawiki-scraper/utils"
)

const bestDealsLimit = 5

// ReportService summarizes an enriched run for the console.
type ReportService struct {
	logger *utils.Logger
	out    io.Writer
	now    func() time.Time
}

// NewReportService creates a ReportService printing to stdout.
func NewReportService(logger *utils.Logger) *ReportService {
	return &ReportService{logger: logger, out: os.Stdout, now: time.Now}
}

// SetOutput redirects the printed tables. A nil writer is ignored.
func (s *ReportService) SetOutput(out io.Writer) {
	if out != nil {
		s.out = out
	}
}

// Generate computes the valuation report for listings.
func (s *ReportService) Generate(listings []*models.EnrichedListing) *models.ValuationReport {
	report := &models.ValuationReport{
		ByValuation: make(map[models.Valuation]int),
	}
	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)
	now := s.now()

	var ratioSum decimal.Decimal
	var priced []*models.EnrichedListing

	for _, l := range listings {
		if l.Status == models.StatusAnalyzed {
			report.AnalyzedListings++
			if l.Analysis.Valuation != "" {
				report.ByValuation[l.Analysis.Valuation]++
			}
		}
		if l.PriceRatio.Valid {
			ratioSum = ratioSum.Add(l.PriceRatio.Decimal)
			priced = append(priced, l)
		}
		if l.EndTime.After(now) && (report.EndingSoonest == nil || l.EndTime.Before(report.EndingSoonest.EndTime)) {
			report.EndingSoonest = l
		}
	}

	if len(priced) > 0 {
		avg := ratioSum.DivRound(decimal.NewFromInt(int64(len(priced))), 4)
		report.AverageRatio = decimal.NewNullDecimal(avg)

		sort.SliceStable(priced, func(i, j int) bool {
			return priced[i].PriceRatio.Decimal.LessThan(priced[j].PriceRatio.Decimal)
		})
		if len(priced) > bestDealsLimit {
			priced = priced[:bestDealsLimit]
		}
		report.BestDeals = priced
	}

	return report
}

// Print renders the listings table followed by the summary.
func (s *ReportService) Print(listings []*models.EnrichedListing, r *models.ValuationReport) {
	now := s.now()

	t := table.NewWriter()
	t.SetOutputMirror(s.out)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Catawiki watches, valued")
	t.AppendHeader(table.Row{"ID", "Title", "Time Remaining", "Bid", "Final Price", "Estimate", "Ratio", "Valuation"})
	for _, l := range listings {
		t.AppendRow(table.Row{
			l.ID,
			truncate(l.Title, 40),
			FormatTimeRemaining(l.EndTime, now),
			money(l.CurrentBid, l.Currency),
			money(l.FinalPrice, l.Currency),
			estimate(l),
			ratio(l.PriceRatio),
			valuation(l),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	t.Render()

	summary := table.NewWriter()
	summary.SetOutputMirror(s.out)
	summary.SetStyle(table.StyleLight)
	summary.SetTitle("Summary")
	summary.AppendRows([]table.Row{
		{"Lots", r.TotalListings},
		{"Analyzed", r.AnalyzedListings},
		{"Unanalyzed", r.TotalListings - r.AnalyzedListings},
		{"Undervalued", r.ByValuation[models.Undervalued]},
		{"Fairly valued", r.ByValuation[models.FairlyValued]},
		{"Overvalued", r.ByValuation[models.Overvalued]},
		{"Average final/estimate ratio", ratio(r.AverageRatio)},
	})
	if r.EndingSoonest != nil {
		summary.AppendRow(table.Row{"Ending soonest", fmt.Sprintf("%s (%s)",
			truncate(r.EndingSoonest.Title, 30), FormatTimeRemaining(r.EndingSoonest.EndTime, now))})
	}
	summary.Render()

	if len(r.BestDeals) > 0 {
		deals := table.NewWriter()
		deals.SetOutputMirror(s.out)
		deals.SetStyle(table.StyleLight)
		deals.SetTitle(fmt.Sprintf("Top %d deals by final/estimate ratio", len(r.BestDeals)))
		deals.AppendHeader(table.Row{"#", "Title", "Ratio", "URL"})
		for i, l := range r.BestDeals {
			deals.AppendRow(table.Row{i + 1, truncate(l.Title, 40), ratio(l.PriceRatio), l.URL})
		}
		deals.Render()
	}
}

// FormatTimeRemaining renders the time left until end as "2d 3h 15m", or
// "Ended" once it has passed.
func FormatTimeRemaining(end, now time.Time) string {
	delta := end.Sub(now)
	if delta <= 0 {
		return "Ended"
	}

	days := int(delta / (24 * time.Hour))
	hours := int(delta%(24*time.Hour)) / int(time.Hour)
	minutes := int(delta%time.Hour) / int(time.Minute)

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	parts = append(parts, fmt.Sprintf("%dm", minutes))
	return strings.Join(parts, " ")
}

func money(d decimal.Decimal, c models.Currency) string {
	return d.StringFixed(2) + " " + string(c)
}

func estimate(l *models.EnrichedListing) string {
	if l.Analysis == nil {
		return "-"
	}
	return money(l.Analysis.EstimatedValue, l.Currency)
}

func ratio(r decimal.NullDecimal) string {
	if !r.Valid {
		return "-"
	}
	return r.Decimal.StringFixed(2)
}

func valuation(l *models.EnrichedListing) string {
	if l.Analysis == nil {
		return string(models.StatusUnanalyzed)
	}
	if l.Analysis.Valuation == "" {
		return "-"
	}
	return string(l.Analysis.Valuation)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
