package services

import (
	"github.com/shopspring/decimal"

	"catawiki-scraper/models"
)

// Pricing computes what a buyer pays on top of the hammer price.
type Pricing struct {
	BrokerageRate decimal.Decimal
	DeliveryFee   decimal.Decimal
}

// NewPricing creates a Pricing from a brokerage rate (0.09 for 9%) and a
// flat delivery fee.
func NewPricing(brokerageRate, deliveryFee float64) Pricing {
	return Pricing{
		BrokerageRate: decimal.NewFromFloat(brokerageRate),
		DeliveryFee:   decimal.NewFromFloat(deliveryFee),
	}
}

// Quote returns the fees and final price for the listing's current bid,
// rounded to cents.
func (p Pricing) Quote(l *models.NormalizedListing) models.FeeQuote {
	brokerage := l.CurrentBid.Mul(p.BrokerageRate).Round(2)
	delivery := p.DeliveryFee.Round(2)
	return models.FeeQuote{
		BrokerageFee: brokerage,
		DeliveryFee:  delivery,
		FinalPrice:   l.CurrentBid.Add(brokerage).Add(delivery).Round(2),
	}
}
