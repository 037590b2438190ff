package services

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xeipuuv/gojsonschema"

	"catawiki-scraper/llm"
	"catawiki-scraper/models"
	"catawiki-scraper/utils"
)

//go:embed analysis_response.schema.json
var analysisResponseSchema string

var analysisSchemaLoader = gojsonschema.NewStringLoader(analysisResponseSchema)

// AnalysisError is returned when a batch could not be valued. It is fatal
// to the run. Batch is the 1-based position within AnalyzeAll and 0 for a
// standalone Analyze call.
type AnalysisError struct {
	Batch    int
	Attempts int
	Cause    error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis of %s failed after %d attempt(s): %v", batchName(e.Batch), e.Attempts, e.Cause)
}

func batchName(n int) string {
	if n < 1 {
		return "batch"
	}
	return fmt.Sprintf("batch %d", n)
}

func (e *AnalysisError) Unwrap() error {
	return e.Cause
}

// ResponseError describes a model reply that does not have the expected shape.
type ResponseError struct {
	Problems []string
	Cause    error
}

func (e *ResponseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unexpected model response: %v", e.Cause)
	}
	return "unexpected model response: " + strings.Join(e.Problems, "; ")
}

func (e *ResponseError) Unwrap() error {
	return e.Cause
}

// AnalyzerOptions tunes retries and pacing of model calls.
type AnalyzerOptions struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MinInterval time.Duration
}

// Analyzer asks the model for a market value estimate per lot, one call per
// batch.
type Analyzer struct {
	client   llm.Client
	logger   *utils.Logger
	pricing  Pricing
	retry    *utils.RetryConfig
	throttle *utils.Throttle
}

// NewAnalyzer creates an Analyzer. Only rate-limit rejections are retried.
func NewAnalyzer(client llm.Client, logger *utils.Logger, pricing Pricing, opts AnalyzerOptions) *Analyzer {
	return &Analyzer{
		client:  client,
		logger:  logger,
		pricing: pricing,
		retry: &utils.RetryConfig{
			MaxAttempts: opts.MaxAttempts,
			BaseDelay:   opts.BaseBackoff,
			Retryable:   llm.IsRateLimited,
			Logger:      logger,
		},
		throttle: utils.NewThrottle(opts.MinInterval),
	}
}

// AnalyzeAll values listings in batches of batchSize and returns every
// result in batch order. The first failed batch aborts.
func (a *Analyzer) AnalyzeAll(ctx context.Context, listings []*models.NormalizedListing, batchSize int) ([]models.AnalysisResult, error) {
	batches := Batch(listings, batchSize)
	a.logger.Info("[analyzer] Valuing %d lots in %d batch(es)", len(listings), len(batches))

	var all []models.AnalysisResult
	for i, b := range batches {
		results, err := a.analyzeBatch(ctx, i+1, b)
		if err != nil {
			return nil, err
		}
		all = append(all, results...)
	}
	return all, nil
}

// Analyze values a single batch with one model call. The batch carries no
// position, so an AnalysisError from here has Batch 0.
func (a *Analyzer) Analyze(ctx context.Context, batch []*models.NormalizedListing) ([]models.AnalysisResult, error) {
	return a.analyzeBatch(ctx, 0, batch)
}

func (a *Analyzer) analyzeBatch(ctx context.Context, n int, batch []*models.NormalizedListing) ([]models.AnalysisResult, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	name := batchName(n)
	prompt, err := BuildValuationPrompt(batch, a.pricing)
	if err != nil {
		return nil, &AnalysisError{Batch: n, Cause: err}
	}
	a.logger.Info("[analyzer] %s: requesting estimates for %d lots", name, len(batch))

	attempts := 0
	var reply string
	err = a.retry.Do(ctx, "analysis of "+name, func(ctx context.Context) error {
		if err := a.throttle.Wait(ctx); err != nil {
			return err
		}
		attempts++
		var err error
		reply, err = a.client.GenerateJSON(ctx, prompt)
		return err
	})
	if err != nil {
		return nil, &AnalysisError{Batch: n, Attempts: attempts, Cause: err}
	}

	results, err := parseValuations(reply)
	if err != nil {
		return nil, &AnalysisError{Batch: n, Attempts: attempts, Cause: err}
	}

	if len(results) < len(batch) {
		a.logger.Warn("[analyzer] %s: model returned %d of %d estimates", name, len(results), len(batch))
	}
	a.logger.Debug("[analyzer] %s: %d estimates", name, len(results))
	return results, nil
}

type valuationItem struct {
	ID             json.RawMessage `json:"id"`
	EstimatedValue json.Number     `json:"estimated_value"`
	Valuation      *string         `json:"valuation"`
	Rationale      *string         `json:"rationale"`
}

// parseValuations validates the reply against the response schema and
// decodes it.
func parseValuations(reply string) ([]models.AnalysisResult, error) {
	reply = llm.CleanJSONBlock(reply)

	check, err := gojsonschema.Validate(analysisSchemaLoader, gojsonschema.NewStringLoader(reply))
	if err != nil {
		return nil, &ResponseError{Cause: err}
	}
	if !check.Valid() {
		problems := make([]string, 0, len(check.Errors()))
		for _, desc := range check.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, &ResponseError{Problems: problems}
	}

	dec := json.NewDecoder(strings.NewReader(reply))
	dec.UseNumber()
	var items []valuationItem
	if err := dec.Decode(&items); err != nil {
		return nil, &ResponseError{Cause: err}
	}

	results := make([]models.AnalysisResult, 0, len(items))
	for _, it := range items {
		id, err := decodeID(it.ID)
		if err != nil {
			return nil, &ResponseError{Cause: err}
		}
		value, err := decimal.NewFromString(it.EstimatedValue.String())
		if err != nil {
			return nil, &ResponseError{Cause: fmt.Errorf("estimated_value for %s: %w", id, err)}
		}
		r := models.AnalysisResult{
			ID:             id,
			EstimatedValue: value.Round(2),
		}
		if it.Valuation != nil {
			r.Valuation = parseValuation(*it.Valuation)
		}
		if it.Rationale != nil {
			r.Rationale = strings.TrimSpace(*it.Rationale)
		}
		results = append(results, r)
	}
	return results, nil
}

func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	// 123 and 123.0 name the same lot; decimal drops the trailing zeros.
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return "", fmt.Errorf("id %s: %w", n, err)
		}
		return d.String(), nil
	}
	return "", errors.New("id is neither a string nor a number")
}

func parseValuation(s string) models.Valuation {
	switch v := models.Valuation(strings.ToLower(strings.TrimSpace(s))); v {
	case models.Undervalued, models.FairlyValued, models.Overvalued:
		return v
	}
	return ""
}
