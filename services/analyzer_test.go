package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"catawiki-scraper/llm"
	"catawiki-scraper/models"
)

func newTestAnalyzer(client llm.Client) *Analyzer {
	return NewAnalyzer(client, newTestLogger(), NewPricing(0.09, 50), AnalyzerOptions{
		MaxAttempts: 4,
		BaseBackoff: time.Millisecond,
	})
}

var rateLimited = fmt.Errorf("%w: %w", llm.ErrRateLimited, &googleapi.Error{Code: http.StatusTooManyRequests})

func TestAnalyzeParsesResults(t *testing.T) {
	client := &fakeLLM{replies: []fakeReply{{text: "```json\n" + `[
		{"id": "1", "estimated_value": 1450.5, "valuation": "Undervalued", "rationale": " Strong demand. "},
		{"id": 2, "estimated_value": 800, "valuation": "meh"}
	]` + "\n```"}}}

	got, err := newTestAnalyzer(client).Analyze(context.Background(), listings(2))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "1450.5", got[0].EstimatedValue.String())
	assert.Equal(t, models.Undervalued, got[0].Valuation)
	assert.Equal(t, "Strong demand.", got[0].Rationale)

	assert.Equal(t, "2", got[1].ID, "numeric ids are accepted")
	assert.Equal(t, models.Valuation(""), got[1].Valuation, "unknown valuations are blanked")
	assert.Equal(t, 1, client.calls())
}

func TestAnalyzePromptCarriesLots(t *testing.T) {
	client := &fakeLLM{replies: []fakeReply{{text: `[]`}}}
	batch := []*models.NormalizedListing{newListing("42", 1000)}

	_, err := newTestAnalyzer(client).Analyze(context.Background(), batch)
	require.NoError(t, err)
	require.Equal(t, 1, client.calls())

	prompt := client.prompts[0]
	assert.Contains(t, prompt, `"id": "42"`)
	assert.Contains(t, prompt, `"buyer_total_price": "1140.00"`)
	assert.Contains(t, prompt, `"currency": "EUR"`)
}

func TestAnalyzeRetriesRateLimits(t *testing.T) {
	client := &fakeLLM{replies: []fakeReply{
		{err: rateLimited},
		{err: rateLimited},
		{text: `[{"id": "1", "estimated_value": 10}]`},
	}}

	got, err := newTestAnalyzer(client).Analyze(context.Background(), listings(1))
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 3, client.calls())
}

func TestAnalyzeFailsAfterAttemptCeiling(t *testing.T) {
	client := &fakeLLM{replies: []fakeReply{{err: rateLimited}}}

	_, err := newTestAnalyzer(client).Analyze(context.Background(), listings(1))

	var analysisErr *AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Equal(t, 4, analysisErr.Attempts)
	assert.ErrorIs(t, err, llm.ErrRateLimited)
	assert.Equal(t, 4, client.calls())
}

func TestAnalyzeDoesNotRetryOtherErrors(t *testing.T) {
	boom := errors.New("permission denied")
	client := &fakeLLM{replies: []fakeReply{{err: boom}}}

	_, err := newTestAnalyzer(client).Analyze(context.Background(), listings(1))

	var analysisErr *AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Equal(t, 1, analysisErr.Attempts)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, client.calls())
}

func TestAnalyzeRejectsUnexpectedShapes(t *testing.T) {
	replies := map[string]string{
		"not json":       `Estimated market price: 1000 EUR.`,
		"object":         `{"id": "1", "estimated_value": 10}`,
		"missing value":  `[{"id": "1"}]`,
		"negative value": `[{"id": "1", "estimated_value": -3}]`,
		"string value":   `[{"id": "1", "estimated_value": "10"}]`,
		"empty":          ``,
	}

	for name, reply := range replies {
		t.Run(name, func(t *testing.T) {
			client := &fakeLLM{replies: []fakeReply{{text: reply}}}
			_, err := newTestAnalyzer(client).Analyze(context.Background(), listings(1))

			var analysisErr *AnalysisError
			require.ErrorAs(t, err, &analysisErr)
			var respErr *ResponseError
			assert.ErrorAs(t, err, &respErr)
			assert.Equal(t, 1, client.calls(), "parse failures are not retried")
		})
	}
}

func TestAnalyzeEmptyBatchMakesNoCall(t *testing.T) {
	client := &fakeLLM{replies: []fakeReply{{text: `[]`}}}
	got, err := newTestAnalyzer(client).Analyze(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, client.calls())
}

func TestAnalyzeAllOneCallPerBatch(t *testing.T) {
	client := &fakeLLM{replies: []fakeReply{
		{text: `[{"id": "1", "estimated_value": 10}, {"id": "2", "estimated_value": 20}]`},
		{text: `[{"id": "3", "estimated_value": 30}]`},
	}}

	got, err := newTestAnalyzer(client).AnalyzeAll(context.Background(), listings(3), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls())
	require.Len(t, got, 3)
	assert.Equal(t, "3", got[2].ID)
}

func TestAnalyzeAllAbortsOnFailedBatch(t *testing.T) {
	client := &fakeLLM{replies: []fakeReply{
		{text: `[{"id": "1", "estimated_value": 10}]`},
		{text: `garbage`},
	}}

	got, err := newTestAnalyzer(client).AnalyzeAll(context.Background(), listings(2), 1)
	assert.Nil(t, got)

	var analysisErr *AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Equal(t, 2, analysisErr.Batch)
}

func TestAnalyzeThenMergeWithPartialReply(t *testing.T) {
	client := &fakeLLM{replies: []fakeReply{{text: `[{"id": "2", "estimated_value": 700, "valuation": "undervalued"}]`}}}
	batch := listings(2)

	results, err := newTestAnalyzer(client).Analyze(context.Background(), batch)
	require.NoError(t, err)

	enriched := newTestMerger().Merge(batch, results)
	require.Len(t, enriched, 2)
	assert.Equal(t, models.StatusUnanalyzed, enriched[0].Status)
	assert.Nil(t, enriched[0].Analysis)
	assert.Equal(t, models.StatusAnalyzed, enriched[1].Status)
	assert.Equal(t, "700", enriched[1].Analysis.EstimatedValue.String())
}

func TestAnalyzeHonoursMinInterval(t *testing.T) {
	client := &fakeLLM{replies: []fakeReply{{text: `[]`}}}
	a := NewAnalyzer(client, newTestLogger(), NewPricing(0.09, 50), AnalyzerOptions{
		MaxAttempts: 1,
		MinInterval: 30 * time.Millisecond,
	})

	start := time.Now()
	_, err := a.AnalyzeAll(context.Background(), listings(3), 1)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestAnalyzeCanonicalizesNumericIDs(t *testing.T) {
	client := &fakeLLM{replies: []fakeReply{{text: `[
		{"id": 123.0, "estimated_value": 900},
		{"id": 7, "estimated_value": 50}
	]`}}}
	batch := []*models.NormalizedListing{newListing("123", 500), newListing("7", 20)}

	results, err := newTestAnalyzer(client).Analyze(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "123", results[0].ID)
	assert.Equal(t, "7", results[1].ID)

	enriched := newTestMerger().Merge(batch, results)
	for _, l := range enriched {
		assert.Equal(t, models.StatusAnalyzed, l.Status, l.ID)
	}
}

func TestAnalyzeStandaloneBatchHasNoPosition(t *testing.T) {
	client := &fakeLLM{replies: []fakeReply{{text: `garbage`}}}

	_, err := newTestAnalyzer(client).Analyze(context.Background(), listings(1))

	var analysisErr *AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Equal(t, 0, analysisErr.Batch)
	assert.Contains(t, err.Error(), "analysis of batch failed")
}

func TestAnalyzeAllErrorNamesBatchPosition(t *testing.T) {
	client := &fakeLLM{replies: []fakeReply{
		{text: `[{"id": "1", "estimated_value": 10}]`},
		{err: errors.New("boom")},
	}}

	_, err := newTestAnalyzer(client).AnalyzeAll(context.Background(), listings(2), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis of batch 2 failed")
}
