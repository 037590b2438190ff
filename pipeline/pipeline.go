// Package pipeline runs one scrape → value → export pass.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"catawiki-scraper/config"
	"catawiki-scraper/llm"
	"catawiki-scraper/models"
	"catawiki-scraper/scraper/catawiki"
	"catawiki-scraper/services"
	"catawiki-scraper/storage"
	"catawiki-scraper/utils"
)

// Fetcher returns the raw lots matching params.
type Fetcher interface {
	Fetch(ctx context.Context, params catawiki.SearchParams) ([]models.RawListing, error)
}

// Deps are the collaborators of a run. Nil fields get production defaults:
// the Catawiki scraper, a Gemini client built from the config, the standard
// logger and stdout for the report.
type Deps struct {
	Fetcher   Fetcher
	LLM       llm.Client
	Logger    *utils.Logger
	ReportOut io.Writer
}

// Result describes a finished run.
type Result struct {
	RunID      string
	Fetched    int
	Normalized int
	Listings   []*models.EnrichedListing
	Report     *models.ValuationReport
	Paths      []string
	Elapsed    time.Duration
}

// Run executes every stage in order. Nothing is written to disk unless
// fetching, analysis and merging all succeeded.
func Run(ctx context.Context, cfg *config.Config, deps Deps) (*Result, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()
	runID := uuid.NewString()

	logger := deps.Logger
	if logger == nil {
		logger = utils.NewLogger()
		logger.SetVerbose(cfg.Verbose)
	}
	logger = logger.WithRunID(runID)
	logger.Info("=== Catawiki valuation run starting ===")
	logger.Info("Config, keyword: %q | sort: %s | max lots: %d | batch size: %d | model: %s",
		cfg.Keyword, cfg.Sort, cfg.MaxLots, cfg.BatchSize, cfg.GeminiModel)

	fetcher := deps.Fetcher
	if fetcher == nil {
		fetcher = catawiki.New(cfg, logger)
	}

	client := deps.LLM
	if client == nil {
		llmCfg := llm.DefaultConfig()
		llmCfg.Model = cfg.GeminiModel
		gemini, err := llm.NewGeminiClient(ctx, llmCfg, cfg.GeminiAPIKey)
		if err != nil {
			return nil, fmt.Errorf("create analysis client: %w", err)
		}
		defer gemini.Close()
		client = gemini
	}

	raw, err := fetcher.Fetch(ctx, catawiki.SearchParams{
		Keyword: cfg.Keyword,
		Sort:    cfg.Sort,
		Filters: cfg.Filters,
		MaxLots: cfg.MaxLots,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch lots: %w", err)
	}

	normalized := services.NewNormalizer(logger, cfg.Currency).NormalizeAll(raw)
	if len(normalized) == 0 {
		logger.Warn("No usable lots were fetched, exporting an empty set")
	}

	pricing := services.NewPricing(cfg.BrokerageFeeRate, cfg.DeliveryFee)
	analyzer := services.NewAnalyzer(client, logger, pricing, services.AnalyzerOptions{
		MaxAttempts: cfg.AnalysisRetries,
		BaseBackoff: cfg.AnalysisBackoff,
		MinInterval: cfg.AnalysisMinInterval,
	})
	results, err := analyzer.AnalyzeAll(ctx, normalized, cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	enriched := services.NewMerger(logger, pricing).Merge(normalized, results)

	paths, err := storage.NewExporter(logger).Export(enriched, cfg.OutputPrefix)
	if err != nil {
		return nil, err
	}

	reporter := services.NewReportService(logger)
	reporter.SetOutput(deps.ReportOut)
	report := reporter.Generate(enriched)
	reporter.Print(enriched, report)

	res := &Result{
		RunID:      runID,
		Fetched:    len(raw),
		Normalized: len(normalized),
		Listings:   enriched,
		Report:     report,
		Paths:      paths,
		Elapsed:    time.Since(started),
	}
	logger.Info("=== Run complete in %s: %d fetched, %d normalized, %d analyzed ===",
		res.Elapsed.Round(time.Millisecond), res.Fetched, res.Normalized, report.AnalyzedListings)
	return res, nil
}
