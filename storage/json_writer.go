package storage

import (
	"encoding/json"
	"time"

	"catawiki-scraper/models"
)

// JSONWriter writes enriched listings as an indented JSON array.
type JSONWriter struct{}

func (JSONWriter) Ext() string { return ".json" }

type jsonListing struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Subtitle       string  `json:"subtitle"`
	URL            string  `json:"url"`
	Thumbnail      string  `json:"thumbnail"`
	BiddingStart   *string `json:"bidding_start"`
	EndTime        string  `json:"end_time"`
	Currency       string  `json:"currency"`
	CurrentBid     string  `json:"current_bid"`
	BuyNowPrice    *string `json:"buy_now_price"`
	BrokerageFee   string  `json:"brokerage_fee"`
	DeliveryFee    string  `json:"delivery_fee"`
	FinalPrice     string  `json:"final_price"`
	EstimatedValue *string `json:"estimated_value"`
	PriceRatio     *string `json:"price_ratio"`
	Valuation      *string `json:"valuation"`
	Rationale      *string `json:"rationale"`
	AnalysisStatus string  `json:"analysis_status"`
}

// Encode renders listings as an indented array. An empty input produces "[]".
func (JSONWriter) Encode(listings []*models.EnrichedListing) ([]byte, error) {
	out := make([]jsonListing, 0, len(listings))
	for _, l := range listings {
		j := jsonListing{
			ID:             l.ID,
			Title:          l.Title,
			Subtitle:       l.Subtitle,
			URL:            l.URL,
			Thumbnail:      l.Thumbnail,
			BiddingStart:   nonEmpty(formatTimePtr(l.BiddingStart)),
			EndTime:        l.EndTime.UTC().Format(time.RFC3339),
			Currency:       string(l.Currency),
			CurrentBid:     l.CurrentBid.StringFixed(2),
			BuyNowPrice:    nonEmpty(formatNull(l.BuyNowPrice, 2)),
			BrokerageFee:   l.BrokerageFee.StringFixed(2),
			DeliveryFee:    l.DeliveryFee.StringFixed(2),
			FinalPrice:     l.FinalPrice.StringFixed(2),
			PriceRatio:     nonEmpty(formatNull(l.PriceRatio, 4)),
			AnalysisStatus: string(l.Status),
		}
		if a := l.Analysis; a != nil {
			j.EstimatedValue = nonEmpty(a.EstimatedValue.StringFixed(2))
			j.Valuation = nonEmpty(string(a.Valuation))
			j.Rationale = nonEmpty(a.Rationale)
		}
		out = append(out, j)
	}

	data, err := json.MarshalIndent(out, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
