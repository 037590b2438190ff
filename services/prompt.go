package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"catawiki-scraper/models"
)

type promptItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle,omitempty"`
	CurrentBid  string `json:"current_bid"`
	BuyNowPrice string `json:"buy_now_price,omitempty"`
	FinalPrice  string `json:"buyer_total_price"`
	Currency    string `json:"currency"`
}

// BuildValuationPrompt renders the instruction for one batch of lots. Each
// lot carries the buyer's total price next to the bid.
func BuildValuationPrompt(batch []*models.NormalizedListing, pricing Pricing) (string, error) {
	items := make([]promptItem, 0, len(batch))
	for _, l := range batch {
		item := promptItem{
			ID:         l.ID,
			Title:      l.Title,
			Subtitle:   l.Subtitle,
			CurrentBid: l.CurrentBid.StringFixed(2),
			FinalPrice: pricing.Quote(l).FinalPrice.StringFixed(2),
			Currency:   string(l.Currency),
		}
		if l.BuyNowPrice.Valid {
			item.BuyNowPrice = l.BuyNowPrice.Decimal.StringFixed(2)
		}
		items = append(items, item)
	}
	payload, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode prompt lots: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("You are an expert appraiser of pre-owned and vintage watches.\n")
	sb.WriteString("For every auction lot below, estimate its current market price and compare it ")
	sb.WriteString("with buyer_total_price (bid plus brokerage and delivery fees).\n\n")
	sb.WriteString("Return ONLY a JSON array with one object per lot:\n")
	sb.WriteString("[{\"id\": string, \"estimated_value\": number, ")
	sb.WriteString("\"valuation\": \"undervalued\" | \"fairly valued\" | \"overvalued\", ")
	sb.WriteString("\"rationale\": string}]\n\n")
	sb.WriteString("IMPORTANT:\n")
	sb.WriteString("- Copy each id exactly as given.\n")
	sb.WriteString("- estimated_value is a plain number in the lot's currency.\n")
	sb.WriteString("- Keep rationale to one or two sentences.\n\n")
	sb.WriteString("Lots:\n")
	sb.Write(payload)
	sb.WriteString("\n")
	return sb.String(), nil
}
