package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// SortOrder is one of the marketplace's listing sort keys.
type SortOrder string

const (
	SortBiddingEndDesc SortOrder = "bidding_end_desc"
	SortBiddingEndAsc  SortOrder = "bidding_end_asc"
	SortPriceDesc      SortOrder = "price_desc"
	SortPriceAsc       SortOrder = "price_asc"
)

// SortOrders lists every accepted SortOrder.
var SortOrders = []SortOrder{SortBiddingEndDesc, SortBiddingEndAsc, SortPriceDesc, SortPriceAsc}

// Valid reports whether s is a known sort key.
func (s SortOrder) Valid() bool {
	for _, o := range SortOrders {
		if s == o {
			return true
		}
	}
	return false
}

// Config holds all application configuration. It is built once by Load and
// passed explicitly into the pipeline.
type Config struct {
	Keyword  string    `yaml:"keyword"`
	Sort     SortOrder `yaml:"sort"`
	Filters  string    `yaml:"filters"`
	MaxLots  int       `yaml:"max_lots"`
	Currency string    `yaml:"currency"`

	CategoryPageURL    string `yaml:"category_page_url"`
	// MarketplaceBaseURL skips build-ID discovery when set.
	MarketplaceBaseURL string `yaml:"marketplace_base_url"`
	FetchRetries       int    `yaml:"fetch_retries"`
	BrowserFallback    bool   `yaml:"browser_fallback"`
	CloudflareBypass   bool   `yaml:"cloudflare_bypass"`
	ChromeBin          string `yaml:"chrome_bin"`

	GeminiAPIKey        string        `yaml:"gemini_api_key"`
	GeminiModel         string        `yaml:"gemini_model"`
	BatchSize           int           `yaml:"batch_size"`
	AnalysisRetries     int           `yaml:"analysis_retries"`
	AnalysisBackoff     time.Duration `yaml:"analysis_backoff"`
	AnalysisMinInterval time.Duration `yaml:"analysis_min_interval"`

	BrokerageFeeRate float64 `yaml:"brokerage_fee_rate"`
	DeliveryFee      float64 `yaml:"delivery_fee"`

	OutputPrefix string `yaml:"output_prefix"`
	Verbose      bool   `yaml:"verbose"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Sort:     SortBiddingEndDesc,
		Filters:  "reserve_price%5B%5D=0&budget%5B%5D=-100",
		MaxLots:  5,
		Currency: "EUR",

		CategoryPageURL:  "https://www.catawiki.com/en/c/333-watches",
		FetchRetries:     3,
		BrowserFallback:  true,
		CloudflareBypass: true,

		GeminiModel:         "gemini-2.0-flash",
		BatchSize:           10,
		AnalysisRetries:     4,
		AnalysisBackoff:     2 * time.Second,
		AnalysisMinInterval: 1500 * time.Millisecond,

		BrokerageFeeRate: 0.09,
		DeliveryFee:      50,

		OutputPrefix: "./output/catawiki_watches_with_gemini_valuation",
	}
}

// Load builds a Config from defaults, then the optional YAML file at path,
// then the .env file and environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg.Keyword = getEnv("CATAWIKI_KEYWORD", cfg.Keyword)
	cfg.Sort = SortOrder(getEnv("CATAWIKI_SORT", string(cfg.Sort)))
	cfg.Filters = getEnv("CATAWIKI_FILTERS", cfg.Filters)
	cfg.MaxLots = getEnvInt("MAX_LOTS", cfg.MaxLots)
	cfg.Currency = strings.ToUpper(getEnv("CURRENCY", cfg.Currency))

	cfg.CategoryPageURL = getEnv("CATAWIKI_CATEGORY_URL", cfg.CategoryPageURL)
	cfg.MarketplaceBaseURL = getEnv("CATAWIKI_BASE_URL", cfg.MarketplaceBaseURL)
	cfg.FetchRetries = getEnvInt("FETCH_RETRIES", cfg.FetchRetries)
	cfg.BrowserFallback = getEnvBool("BROWSER_FALLBACK", cfg.BrowserFallback)
	cfg.CloudflareBypass = getEnvBool("CLOUDFLARE_BYPASS", cfg.CloudflareBypass)
	cfg.ChromeBin = getEnv("CHROME_BIN", cfg.ChromeBin)

	cfg.GeminiAPIKey = getEnv("GEMINI_API_KEY", cfg.GeminiAPIKey)
	cfg.GeminiModel = getEnv("GEMINI_MODEL", cfg.GeminiModel)
	cfg.BatchSize = getEnvInt("BATCH_SIZE", cfg.BatchSize)
	cfg.AnalysisRetries = getEnvInt("ANALYSIS_RETRIES", cfg.AnalysisRetries)
	cfg.AnalysisBackoff = getEnvDuration("ANALYSIS_BACKOFF", cfg.AnalysisBackoff)
	cfg.AnalysisMinInterval = getEnvDuration("ANALYSIS_MIN_INTERVAL", cfg.AnalysisMinInterval)

	cfg.BrokerageFeeRate = getEnvFloat("BROKERAGE_FEE_RATE", cfg.BrokerageFeeRate)
	cfg.DeliveryFee = getEnvFloat("DELIVERY_FEE", cfg.DeliveryFee)

	cfg.OutputPrefix = getEnv("OUTPUT_PREFIX", cfg.OutputPrefix)
	cfg.Verbose = getEnvBool("VERBOSE", cfg.Verbose)

	return cfg, nil
}

// ValidationError lists every problem found by Validate.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Validate checks the fields the pipeline cannot run without.
func (c *Config) Validate() error {
	var problems []string

	if !c.Sort.Valid() {
		problems = append(problems, fmt.Sprintf("sort %q is not one of %v", c.Sort, SortOrders))
	}
	if c.MaxLots < 1 {
		problems = append(problems, "max lots must be at least 1")
	}
	if c.GeminiAPIKey == "" {
		problems = append(problems, "GEMINI_API_KEY is required")
	}
	if c.BrokerageFeeRate < 0 || c.DeliveryFee < 0 {
		problems = append(problems, "fees must not be negative")
	}
	if c.OutputPrefix == "" {
		problems = append(problems, "output prefix is required")
	}
	if c.MarketplaceBaseURL == "" && c.CategoryPageURL == "" {
		problems = append(problems, "either a category page URL or a marketplace base URL is required")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}
