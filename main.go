package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"catawiki-scraper/config"
	"catawiki-scraper/pipeline"
	"catawiki-scraper/utils"
)

var rootCmd = &cobra.Command{
	Use:   "catawiki-scraper",
	Short: "Value Catawiki watch auctions with Gemini",
	Long: `Fetches watch lots from Catawiki, asks Gemini for a market value estimate per lot,
prices in the buyer's fees and writes the result as CSV and JSON.

Settings are read from the YAML file given by --config, then .env and the environment.
Command-line flags override both.`,
	SilenceUsage: true,
	RunE:         runCmd,
}

var (
	flagConfigPath string
	flagKeyword    string
	flagSort       string
	flagFilters    string
	flagMaxLots    int
	flagBatchSize  int
	flagOut        string
	flagModel      string
	flagCurrency   string
	flagNoBrowser  bool
	flagVerbose    bool
)

func init() {
	f := rootCmd.Flags()
	f.StringVar(&flagConfigPath, "config", "catawiki.yaml", "Path to a YAML config file (ignored when absent)")
	f.StringVarP(&flagKeyword, "keyword", "k", "", "Search keyword (empty lists the whole category)")
	f.StringVarP(&flagSort, "sort", "s", "", fmt.Sprintf("Sort order, one of %v", config.SortOrders))
	f.StringVar(&flagFilters, "filters", "", "URL-encoded marketplace filters")
	f.IntVarP(&flagMaxLots, "max-lots", "n", 0, "Maximum number of lots to fetch")
	f.IntVarP(&flagBatchSize, "batch-size", "b", 0, "Lots per Gemini request")
	f.StringVarP(&flagOut, "out", "o", "", "Output path prefix, .csv and .json are appended")
	f.StringVar(&flagModel, "model", "", "Gemini model name")
	f.StringVar(&flagCurrency, "currency", "", "Preferred bid currency (EUR, USD, GBP, CHF)")
	f.BoolVar(&flagNoBrowser, "no-browser", false, "Never fall back to headless Chrome for the build ID")
	f.BoolVarP(&flagVerbose, "verbose", "v", false, "Print debug logs")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := utils.NewLogger()
	logger.SetVerbose(cfg.Verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := pipeline.Run(ctx, cfg, pipeline.Deps{Logger: logger})
	if err != nil {
		return err
	}

	for _, p := range res.Paths {
		logger.Info("Output: %s", p)
	}
	return nil
}

// applyFlags copies every flag the user set onto cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("keyword") {
		cfg.Keyword = flagKeyword
	}
	if changed("sort") {
		cfg.Sort = config.SortOrder(flagSort)
	}
	if changed("filters") {
		cfg.Filters = flagFilters
	}
	if changed("max-lots") {
		cfg.MaxLots = flagMaxLots
	}
	if changed("batch-size") {
		cfg.BatchSize = flagBatchSize
	}
	if changed("out") {
		cfg.OutputPrefix = flagOut
	}
	if changed("model") {
		cfg.GeminiModel = flagModel
	}
	if changed("currency") {
		cfg.Currency = flagCurrency
	}
	if changed("no-browser") {
		cfg.BrowserFallback = !flagNoBrowser
	}
	if changed("verbose") {
		cfg.Verbose = flagVerbose
	}
}
