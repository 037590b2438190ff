package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawListing is one lot exactly as the marketplace returned it. Numbers are
// kept as json.Number so no precision is lost before normalization.
type RawListing map[string]any

// Currency is an ISO 4217 code of a currency the marketplace quotes bids in.
type Currency string

const (
	EUR Currency = "EUR"
	USD Currency = "USD"
	GBP Currency = "GBP"
	CHF Currency = "CHF"
)

// SupportedCurrencies lists the currencies in fallback order.
var SupportedCurrencies = []Currency{EUR, USD, GBP, CHF}

// ParseCurrency maps a currency code onto a supported Currency.
func ParseCurrency(s string) (Currency, bool) {
	for _, c := range SupportedCurrencies {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// NormalizedListing is the canonical, validated form of a lot.
type NormalizedListing struct {
	ID           string              `json:"id" validate:"required"`
	Title        string              `json:"title" validate:"required"`
	Subtitle     string              `json:"subtitle"`
	CurrentBid   decimal.Decimal     `json:"current_bid" validate:"gte=0"`
	Currency     Currency            `json:"currency" validate:"oneof=EUR USD GBP CHF"`
	BuyNowPrice  decimal.NullDecimal `json:"buy_now_price"`
	BiddingStart *time.Time          `json:"bidding_start"`
	EndTime      time.Time           `json:"end_time"`
	URL          string              `json:"url" validate:"required,url"`
	Thumbnail    string              `json:"thumbnail"`
}

// Valuation is the model's verdict on the buyer's price against its estimate.
type Valuation string

const (
	Undervalued  Valuation = "undervalued"
	FairlyValued Valuation = "fairly valued"
	Overvalued   Valuation = "overvalued"
)

// AnalysisResult is the model's estimate for one lot.
type AnalysisResult struct {
	ID             string
	EstimatedValue decimal.Decimal
	Valuation      Valuation
	Rationale      string
}

// AnalysisStatus tells whether an enriched listing carries an estimate.
type AnalysisStatus string

const (
	StatusAnalyzed   AnalysisStatus = "analyzed"
	StatusUnanalyzed AnalysisStatus = "unanalyzed"
)

// FeeQuote is the buyer's total cost for a lot at its current bid.
type FeeQuote struct {
	BrokerageFee decimal.Decimal
	DeliveryFee  decimal.Decimal
	FinalPrice   decimal.Decimal
}

// EnrichedListing joins a NormalizedListing with its analysis. Analysis is
// nil when Status is StatusUnanalyzed.
type EnrichedListing struct {
	NormalizedListing
	FeeQuote
	Status     AnalysisStatus
	Analysis   *AnalysisResult
	PriceRatio decimal.NullDecimal
}

// ValuationReport holds the summary printed at the end of a run.
type ValuationReport struct {
	TotalListings    int
	AnalyzedListings int
	ByValuation      map[Valuation]int
	AverageRatio     decimal.NullDecimal
	BestDeals        []*EnrichedListing
	EndingSoonest    *EnrichedListing
}
