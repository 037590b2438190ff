// Package catawiki reads auction lots from Catawiki's Next.js listing data
// endpoint.
package catawiki

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"catawiki-scraper/config"
	"catawiki-scraper/models"
	"catawiki-scraper/utils"
)

// PageSize is the number of lots requested per page.
const PageSize = 24

const requestTimeout = 30 * time.Second

// SearchParams selects the lots to fetch.
type SearchParams struct {
	Keyword string
	Sort    config.SortOrder
	Filters string
	MaxLots int
}

// Scraper fetches paginated listing data from the marketplace.
type Scraper struct {
	cfg        *config.Config
	logger     *utils.Logger
	client     *resty.Client
	retry      *utils.RetryConfig
	renderPage func(ctx context.Context, pageURL string) (string, error)

	baseURL string
}

// New creates a ready-to-use Catawiki Scraper. No request is made until the
// first lot is pulled.
func New(cfg *config.Config, logger *utils.Logger) *Scraper {
	return &Scraper{
		cfg:        cfg,
		logger:     logger,
		client:     newHTTPClient(requestTimeout, cfg.CloudflareBypass),
		renderPage: renderWithBrowser(cfg.ChromeBin, 60*time.Second),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.FetchRetries,
			Logger:      logger,
		},
		baseURL: cfg.MarketplaceBaseURL,
	}
}

// Lots returns an iterator over the lots matching params. Every call starts
// again from page 1.
func (s *Scraper) Lots(params SearchParams) *LotIterator {
	return &LotIterator{s: s, params: params}
}

// Fetch drains Lots into a slice.
func (s *Scraper) Fetch(ctx context.Context, params SearchParams) ([]models.RawListing, error) {
	s.logger.Info("[catawiki] Starting fetch, keyword: %q | sort: %s | max lots: %d",
		params.Keyword, params.Sort, params.MaxLots)

	it := s.Lots(params)
	lots := make([]models.RawListing, 0, params.MaxLots)
	for it.Next(ctx) {
		lots = append(lots, it.Lot())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}

	s.logger.Info("[catawiki] Fetch complete, %d lots over %d pages", len(lots), it.Pages())
	return lots, nil
}

type pageResponse struct {
	PageProps struct {
		CategoryLots struct {
			Lots  []models.RawListing `json:"lots"`
			Total int                 `json:"total"`
		} `json:"categoryLots"`
	} `json:"pageProps"`
}

// fetchPage requests one page, retrying failures immediately.
func (s *Scraper) fetchPage(ctx context.Context, params SearchParams, page int) ([]models.RawListing, int, error) {
	base, err := s.ResolveBaseURL(ctx)
	if err != nil {
		return nil, 0, err
	}

	query := map[string]string{
		"sort":     string(params.Sort),
		"filters":  params.Filters,
		"category": categorySlug(s.cfg.CategoryPageURL),
		"page":     strconv.Itoa(page),
		"per_page": strconv.Itoa(PageSize),
	}
	if params.Keyword != "" {
		query["q"] = params.Keyword
	}

	s.logger.Info("[catawiki] Fetching page %d...", page)

	var body []byte
	var status int
	err = s.retry.Do(ctx, "listing-page-"+strconv.Itoa(page), func(ctx context.Context) error {
		status = 0
		resp, err := s.client.R().
			SetContext(ctx).
			SetQueryParams(query).
			SetHeader("accept", "application/json").
			Get(base)
		if err != nil {
			return err
		}
		if !resp.IsSuccess() {
			status = resp.StatusCode()
			return &statusError{code: status}
		}
		body = resp.Body()
		return nil
	})
	if err != nil {
		return nil, 0, &FetchError{URL: base, Page: page, StatusCode: status, Cause: err}
	}

	var decoded pageResponse
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return nil, 0, &FetchError{URL: base, Page: page, Message: "decode listing page", Cause: err}
	}

	lots := decoded.PageProps.CategoryLots
	s.logger.Debug("[catawiki] Page %d: %d lots (total reported: %d)", page, len(lots.Lots), lots.Total)
	return lots.Lots, lots.Total, nil
}

// LotIterator walks the listing pages lazily, one page request at a time.
type LotIterator struct {
	s      *Scraper
	params SearchParams

	page    int
	buf     []models.RawListing
	fetched int
	total   int
	yielded int
	cur     models.RawListing
	done    bool
	err     error
}

// Next advances to the next lot. It returns false once MaxLots lots were
// yielded, the marketplace ran out of lots, or a page could not be fetched.
func (it *LotIterator) Next(ctx context.Context) bool {
	if it.done || it.err != nil {
		return false
	}
	if it.params.MaxLots > 0 && it.yielded >= it.params.MaxLots {
		it.done = true
		return false
	}

	for len(it.buf) == 0 {
		if it.total > 0 && it.fetched >= it.total {
			it.done = true
			return false
		}

		lots, total, err := it.s.fetchPage(ctx, it.params, it.page+1)
		if err != nil {
			it.err = err
			return false
		}
		it.page++
		if len(lots) == 0 {
			it.s.logger.Info("[catawiki] Page %d returned 0 lots, stopping", it.page)
			it.done = true
			return false
		}
		it.total = total
		it.fetched += len(lots)
		it.buf = lots
	}

	it.cur = it.buf[0]
	it.buf = it.buf[1:]
	it.yielded++
	return true
}

// Lot returns the lot Next advanced to.
func (it *LotIterator) Lot() models.RawListing {
	return it.cur
}

// Err returns the FetchError that stopped iteration, if any.
func (it *LotIterator) Err() error {
	return it.err
}

// Pages returns how many pages were requested so far.
func (it *LotIterator) Pages() int {
	return it.page
}
