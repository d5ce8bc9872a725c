package config

import (
	"fmt"
	"time"
)

// Output formats accepted by OutputFormat.
const (
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatDual  = "dual"
	FormatRedis = "redis"
)

// Config holds scraper configuration.
type Config struct {
	Category           string
	CatalogFile        string // optional JSON catalog replacing the built-in one
	MaxPages           int    // follow-up result pages across the whole run, 0 for no limit
	Parallelism        int
	Delay              time.Duration
	RandomDelay        time.Duration
	Timeout            time.Duration
	MaxRetries         int
	RetryBackoff       time.Duration
	RetryBackoffMax    time.Duration
	Render             bool
	ChromePath         string
	RenderTimeout      time.Duration
	FirstPageWait      time.Duration
	NextPageWait       time.Duration
	OutputFile         string
	OutputFormat       string // csv, json, dual, or redis
	RedisAddr          string
	RedisStream        string
	PipelineBufferSize int
	BatchSize          int
	DedupeMaxSize      int
	MetricsAddr        string
	UserAgent          string
	Verbose            bool
	RespectRobotsTxt   bool
}

// DefaultConfig returns conservative defaults for the retailer.
func DefaultConfig() *Config {
	return &Config{
		Category:           "",
		MaxPages:           50,
		Parallelism:        4,
		Delay:              500 * time.Millisecond,
		RandomDelay:        500 * time.Millisecond,
		Timeout:            30 * time.Second,
		MaxRetries:         2,
		RetryBackoff:       500 * time.Millisecond,
		RetryBackoffMax:    5 * time.Second,
		Render:             true,
		RenderTimeout:      45 * time.Second,
		FirstPageWait:      time.Second,
		NextPageWait:       3 * time.Second,
		OutputFile:         "output/products.csv",
		OutputFormat:       FormatCSV,
		RedisAddr:          "localhost:6379",
		RedisStream:        "homedepot:products",
		PipelineBufferSize: 256,
		BatchSize:          32,
		DedupeMaxSize:      100000,
		MetricsAddr:        "",
		UserAgent:          "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		Verbose:            false,
		RespectRobotsTxt:   false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.Category == "" {
		return fmt.Errorf("category cannot be empty")
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("max pages cannot be negative")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.Render && c.RenderTimeout <= 0 {
		return fmt.Errorf("render timeout must be positive")
	}
	if c.FirstPageWait < 0 || c.NextPageWait < 0 {
		return fmt.Errorf("render waits cannot be negative")
	}
	switch c.OutputFormat {
	case FormatCSV, FormatJSON, FormatDual:
		if c.OutputFile == "" {
			return fmt.Errorf("output file cannot be empty")
		}
	case FormatRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis address cannot be empty")
		}
		if c.RedisStream == "" {
			return fmt.Errorf("redis stream cannot be empty")
		}
	default:
		return fmt.Errorf("output format must be csv, json, dual, or redis")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}
