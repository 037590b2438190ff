package storage

import "catawiki-scraper/models"

// ListingWriter is the interface any output format must satisfy. Encode
// must be a pure function of listings.
type ListingWriter interface {
	Encode(listings []*models.EnrichedListing) ([]byte, error)
	Ext() string
}
