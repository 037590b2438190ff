package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPricingQuote(t *testing.T) {
	p := NewPricing(0.09, 50)

	tests := []struct {
		bid       string
		brokerage string
		final     string
	}{
		{"1000", "90.00", "1140.00"},
		{"0", "0.00", "50.00"},
		{"123.45", "11.11", "184.56"},
	}

	for _, tt := range tests {
		l := newListing("1", 0)
		l.CurrentBid = decimal.RequireFromString(tt.bid)

		q := p.Quote(l)
		assert.Equal(t, tt.brokerage, q.BrokerageFee.StringFixed(2), "brokerage for %s", tt.bid)
		assert.Equal(t, "50.00", q.DeliveryFee.StringFixed(2))
		assert.Equal(t, tt.final, q.FinalPrice.StringFixed(2), "final for %s", tt.bid)
	}
}
