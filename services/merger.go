package services

import (
	"catawiki-scraper/models"
	"catawiki-scraper/utils"
)

// Merger joins analysis results back onto the listings they describe.
type Merger struct {
	logger  *utils.Logger
	pricing Pricing
}

// NewMerger creates a Merger that prices every listing with pricing.
func NewMerger(logger *utils.Logger, pricing Pricing) *Merger {
	return &Merger{logger: logger, pricing: pricing}
}

// Merge returns one EnrichedListing per normalized listing, in input order.
// Listings without a result are marked unanalyzed; results that match no
// listing are dropped with a warning.
func (m *Merger) Merge(normalized []*models.NormalizedListing, results []models.AnalysisResult) []*models.EnrichedListing {
	known := utils.NewIDSet()
	for _, l := range normalized {
		known.Add(l.ID)
	}

	byID := make(map[string]*models.AnalysisResult, len(results))
	for i := range results {
		r := &results[i]
		if !known.Contains(r.ID) {
			m.logger.Warn("[merger] Dropping analysis for unknown lot ID %q", r.ID)
			continue
		}
		if _, dup := byID[r.ID]; dup {
			m.logger.Warn("[merger] Ignoring repeated analysis for lot %s", r.ID)
			continue
		}
		byID[r.ID] = r
	}

	enriched := make([]*models.EnrichedListing, 0, len(normalized))
	unanalyzed := 0
	for _, l := range normalized {
		e := &models.EnrichedListing{
			NormalizedListing: *l,
			FeeQuote:          m.pricing.Quote(l),
			Status:            models.StatusUnanalyzed,
		}
		if r, ok := byID[l.ID]; ok {
			analysis := *r
			e.Analysis = &analysis
			e.Status = models.StatusAnalyzed
			if !r.EstimatedValue.IsZero() {
				e.PriceRatio.Decimal = e.FinalPrice.DivRound(r.EstimatedValue, 4)
				e.PriceRatio.Valid = true
			}
		} else {
			unanalyzed++
		}
		enriched = append(enriched, e)
	}

	m.logger.Info("[merger] Merged %d lots (%d analyzed, %d unanalyzed)",
		len(enriched), len(enriched)-unanalyzed, unanalyzed)
	return enriched
}
