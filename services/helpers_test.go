package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"catawiki-scraper/models"
	"catawiki-scraper/utils"
)

func newTestLogger() *utils.Logger { return utils.Discard() }

var testEndTime = time.Date(2030, 1, 2, 15, 0, 0, 0, time.UTC)

func newListing(id string, bid int64) *models.NormalizedListing {
	return &models.NormalizedListing{
		ID:         id,
		Title:      "Watch " + id,
		CurrentBid: decimal.NewFromInt(bid),
		Currency:   models.EUR,
		EndTime:    testEndTime,
		URL:        "https://www.catawiki.com/en/l/" + id,
	}
}

func rawLot(id any) models.RawListing {
	raw := models.RawListing{
		"title":         "Omega  Seamaster\n300",
		"subtitle":      "Men - 1965",
		"url":           "https://www.catawiki.com/en/l/123",
		"thumbImageUrl": "https://assets.catawiki.com/123.jpg",
		"live": map[string]any{
			"bid":            map[string]any{"EUR": json.Number("1000"), "USD": json.Number("1090")},
			"biddingEndTime": json.Number("1893596400000"),
		},
		"biddingStartTime": "2029-12-25T10:00:00Z",
		"buyNow":           map[string]any{"price_eur": json.Number("2500.5")},
	}
	if id != nil {
		raw["id"] = id
	}
	return raw
}

type fakeReply struct {
	text string
	err  error
}

// fakeLLM replays canned replies; the last one repeats once exhausted.
type fakeLLM struct {
	mu      sync.Mutex
	replies []fakeReply
	prompts []string
}

func (f *fakeLLM) GenerateJSON(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.prompts)
	if i >= len(f.replies) {
		i = len(f.replies) - 1
	}
	f.prompts = append(f.prompts, prompt)
	return f.replies[i].text, f.replies[i].err
}

func (f *fakeLLM) Close() error { return nil }

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}
