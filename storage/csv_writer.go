package storage

import (
	"bytes"
	"encoding/csv"
	"time"

	"github.com/shopspring/decimal"

	"catawiki-scraper/models"
)

// CSVHeader is the header row of the tabular export.
var CSVHeader = []string{
	"id", "title", "subtitle", "url", "thumbnail",
	"bidding_start", "end_time",
	"currency", "current_bid", "buy_now_price",
	"brokerage_fee", "delivery_fee", "final_price",
	"estimated_value", "price_ratio", "valuation", "rationale",
	"analysis_status",
}

// CSVWriter writes enriched listings as comma-separated rows.
type CSVWriter struct{}

func (CSVWriter) Ext() string { return ".csv" }

// Encode renders the header row and one row per listing.
func (CSVWriter) Encode(listings []*models.EnrichedListing) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(CSVHeader); err != nil {
		return nil, err
	}
	for _, l := range listings {
		if err := w.Write(csvRow(l)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func csvRow(l *models.EnrichedListing) []string {
	var estimated, valuation, rationale string
	if l.Analysis != nil {
		estimated = l.Analysis.EstimatedValue.StringFixed(2)
		valuation = string(l.Analysis.Valuation)
		rationale = l.Analysis.Rationale
	}

	return []string{
		l.ID,
		l.Title,
		l.Subtitle,
		l.URL,
		l.Thumbnail,
		formatTimePtr(l.BiddingStart),
		l.EndTime.UTC().Format(time.RFC3339),
		string(l.Currency),
		l.CurrentBid.StringFixed(2),
		formatNull(l.BuyNowPrice, 2),
		l.BrokerageFee.StringFixed(2),
		l.DeliveryFee.StringFixed(2),
		l.FinalPrice.StringFixed(2),
		estimated,
		formatNull(l.PriceRatio, 4),
		valuation,
		rationale,
		string(l.Status),
	}
}

func formatNull(d decimal.NullDecimal, places int32) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(places)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
