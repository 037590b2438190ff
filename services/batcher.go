package services

import "catawiki-scraper/models"

// Batch splits listings into consecutive groups of at most size, preserving
// order. The last group may be shorter. A size below 1 puts everything into
// a single group; no listings means no groups.
func Batch(listings []*models.NormalizedListing, size int) [][]*models.NormalizedListing {
	if len(listings) == 0 {
		return nil
	}
	if size < 1 || size > len(listings) {
		size = len(listings)
	}

	batches := make([][]*models.NormalizedListing, 0, (len(listings)+size-1)/size)
	for i := 0; i < len(listings); i += size {
		end := i + size
		if end > len(listings) {
			end = len(listings)
		}
		batches = append(batches, listings[i:end:end])
	}
	return batches
}
