package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-homedepot/catalog"
	"github.com/aluiziolira/go-scrape-homedepot/config"
	"github.com/aluiziolira/go-scrape-homedepot/models"
	"github.com/aluiziolira/go-scrape-homedepot/parser"
	"github.com/aluiziolira/go-scrape-homedepot/pipeline"
	"github.com/aluiziolira/go-scrape-homedepot/render"
	"github.com/aluiziolira/go-scrape-homedepot/scraper"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type options struct {
	category          string
	catalogFile       string
	render            bool
	chromePath        string
	maxPages          int
	parallelism       int
	delayMs           int
	randomDelayMs     int
	maxRetries        int
	retryBackoffMs    int
	retryBackoffMaxMs int
	respectRobots     bool
	outputFile        string
	outputFormat      string
	redisAddr         string
	redisStream       string
	metricsAddr       string
	verbose           bool
}

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, level := newLogger(opts.verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := buildConfig(opts)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	cat := catalog.Default()
	if cfg.CatalogFile != "" {
		if cat, err = catalog.Load(cfg.CatalogFile); err != nil {
			slog.Error("loading catalog", slog.Any("error", err))
			os.Exit(1)
		}
	}
	target, err := cat.Resolve(cfg.Category)
	if err != nil {
		slog.Error("unknown category",
			slog.String("category", cfg.Category),
			slog.Any("available", cat.Keys()),
			slog.Any("error", err),
		)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	var renderer render.Renderer
	if cfg.Render {
		chrome, err := render.NewChromeRenderer(ctx, render.ChromeOptions{
			ExecPath:  cfg.ChromePath,
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.RenderTimeout,
			Headless:  true,
		})
		if err != nil {
			slog.Error("starting renderer", slog.Any("error", err))
			os.Exit(1)
		}
		defer chrome.Close()
		renderer = chrome
	}

	slog.Info("starting scrape",
		slog.String("category", target.Key),
		slog.String("url", target.URL),
		slog.String("layout", string(target.Layout)),
		slog.Any("brands", target.Brands),
		slog.Bool("render", cfg.Render),
		slog.Int("max_pages", cfg.MaxPages),
		slog.Int("workers", cfg.Parallelism),
	)

	s, err := scraper.NewScraper(cfg, target, renderer)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	writer, err := createWriter(ctx, cfg)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	p := pipeline.NewPipeline(ctx, writer, cfg)
	p.Start(cfg.Parallelism)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	startTime := time.Now()
	result, runErr := s.Run(ctx, p)
	if runErr != nil && !errors.Is(runErr, parser.ErrBrandSectionNotFound) {
		slog.Error("scraping failed", slog.Any("error", runErr))
		os.Exit(1)
	}

	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	duration := time.Since(startTime)
	printSummary(result, duration, outputTarget(cfg), p.GetMetrics())

	if runErr != nil {
		slog.Error("category aborted", slog.Any("error", runErr))
		os.Exit(1)
	}
	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	defaults := config.DefaultConfig()
	opts := options{}

	categoryDefault, _ := config.EnvString("SCRAPER_CATEGORY")
	catalogDefault, _ := config.EnvString("SCRAPER_CATALOG")
	chromeDefault, _ := config.EnvString("SCRAPER_CHROME_PATH")

	pagesDefault := defaults.MaxPages
	if value, ok, err := config.EnvInt("SCRAPER_PAGES"); err != nil {
		return opts, fmt.Errorf("invalid SCRAPER_PAGES: %w", err)
	} else if ok {
		pagesDefault = value
	}
	parallelDefault := defaults.Parallelism
	if value, ok, err := config.EnvInt("SCRAPER_PARALLEL"); err != nil {
		return opts, fmt.Errorf("invalid SCRAPER_PARALLEL: %w", err)
	} else if ok {
		parallelDefault = value
	}
	renderDefault := defaults.Render
	if value, ok, err := config.EnvBool("SCRAPER_RENDER"); err != nil {
		return opts, fmt.Errorf("invalid SCRAPER_RENDER: %w", err)
	} else if ok {
		renderDefault = value
	}
	outputDefault := defaults.OutputFile
	if value, ok := config.EnvString("SCRAPER_OUTPUT"); ok {
		outputDefault = value
	}
	redisDefault := defaults.RedisAddr
	if value, ok := config.EnvString("SCRAPER_REDIS_ADDR"); ok {
		redisDefault = value
	}
	metricsDefault := defaults.MetricsAddr
	if value, ok := config.EnvString("SCRAPER_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	fs := flag.NewFlagSet("scraper", flag.ContinueOnError)
	fs.StringVar(&opts.category, "category", categoryDefault, "Category to crawl (dishwasher, refrigerator, mattress)")
	fs.StringVar(&opts.catalogFile, "catalog", catalogDefault, "JSON catalog file replacing the built-in categories")
	fs.BoolVar(&opts.render, "render", renderDefault, "Render result pages in headless Chrome")
	fs.StringVar(&opts.chromePath, "chrome-path", chromeDefault, "Chrome executable (default: search PATH)")
	fs.IntVar(&opts.maxPages, "pages", pagesDefault, "Maximum follow-up result pages, 0 for no limit")
	fs.IntVar(&opts.parallelism, "parallel", parallelDefault, "Number of concurrent requests")
	fs.IntVar(&opts.delayMs, "delay", int(defaults.Delay/time.Millisecond), "Delay between requests (milliseconds)")
	fs.IntVar(&opts.randomDelayMs, "random-delay", int(defaults.RandomDelay/time.Millisecond), "Random jitter added to delay (milliseconds)")
	fs.IntVar(&opts.maxRetries, "max-retries", defaults.MaxRetries, "Maximum retry attempts per URL")
	fs.IntVar(&opts.retryBackoffMs, "retry-backoff", int(defaults.RetryBackoff/time.Millisecond), "Initial retry backoff (milliseconds)")
	fs.IntVar(&opts.retryBackoffMaxMs, "retry-backoff-max", int(defaults.RetryBackoffMax/time.Millisecond), "Maximum retry backoff (milliseconds)")
	fs.BoolVar(&opts.respectRobots, "respect-robots", defaults.RespectRobotsTxt, "Respect robots.txt directives")
	fs.StringVar(&opts.outputFile, "output", outputDefault, "Output file path")
	fs.StringVar(&opts.outputFormat, "format", defaults.OutputFormat, "Output format: csv, json, dual, or redis")
	fs.StringVar(&opts.redisAddr, "redis-addr", redisDefault, "Redis address for the redis format")
	fs.StringVar(&opts.redisStream, "redis-stream", defaults.RedisStream, "Redis stream receiving product records")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	fs.BoolVar(&opts.verbose, "v", false, "Enable verbose logging")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	return opts, nil
}

func buildConfig(opts options) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Category = strings.ToLower(strings.TrimSpace(opts.category))
	cfg.CatalogFile = opts.catalogFile
	cfg.Render = opts.render
	cfg.ChromePath = opts.chromePath
	cfg.MaxPages = opts.maxPages
	cfg.Parallelism = opts.parallelism
	cfg.Delay = time.Duration(opts.delayMs) * time.Millisecond
	cfg.RandomDelay = time.Duration(opts.randomDelayMs) * time.Millisecond
	cfg.MaxRetries = opts.maxRetries
	cfg.RetryBackoff = time.Duration(opts.retryBackoffMs) * time.Millisecond
	cfg.RetryBackoffMax = time.Duration(opts.retryBackoffMaxMs) * time.Millisecond
	cfg.RespectRobotsTxt = opts.respectRobots
	cfg.OutputFile = opts.outputFile
	cfg.OutputFormat = strings.ToLower(opts.outputFormat)
	cfg.RedisAddr = opts.redisAddr
	cfg.RedisStream = opts.redisStream
	cfg.Verbose = opts.verbose
	cfg.MetricsAddr = opts.metricsAddr
	return cfg
}

func createWriter(ctx context.Context, cfg *config.Config) (pipeline.OutputWriter, error) {
	switch cfg.OutputFormat {
	case config.FormatJSON:
		return pipeline.NewJSONWriter(cfg.OutputFile)
	case config.FormatCSV:
		return pipeline.NewCSVWriter(cfg.OutputFile)
	case config.FormatDual:
		return pipeline.NewDualWriter(cfg.OutputFile, jsonCompanion(cfg.OutputFile))
	case config.FormatRedis:
		return pipeline.NewRedisWriter(ctx, cfg.RedisAddr, cfg.RedisStream)
	default:
		return nil, fmt.Errorf("unsupported format: %s", cfg.OutputFormat)
	}
}

func jsonCompanion(filename string) string {
	return strings.TrimSuffix(filename, ".csv") + ".json"
}

func outputTarget(cfg *config.Config) string {
	switch cfg.OutputFormat {
	case config.FormatRedis:
		return fmt.Sprintf("redis://%s/%s", cfg.RedisAddr, cfg.RedisStream)
	case config.FormatDual:
		return cfg.OutputFile + ", " + jsonCompanion(cfg.OutputFile)
	default:
		return cfg.OutputFile
	}
}

func printSummary(result *models.ScraperResult, duration time.Duration, output string, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")

	written := int64(0)
	if processed, ok := metrics["processed_products"].(int64); ok {
		written = processed
	}
	itemsPerSec := 0.0
	if duration.Seconds() > 0 {
		itemsPerSec = float64(written) / duration.Seconds()
	}

	fmt.Printf("  Category:      %s\n", result.Category)
	fmt.Printf("  Brand links:   %d\n", result.BrandLinks)
	fmt.Printf("  Result pages:  %d\n", result.PageCount)
	fmt.Printf("  Product links: %d\n", result.ProductLinks)
	fmt.Printf("  Products:      %d emitted, %d written\n", result.TotalCount, written)
	fmt.Printf("  Skipped:       %d\n", result.SkippedProducts)
	successRate := 0.0
	if result.RequestCount > 0 {
		successRate = float64(result.RequestCount-result.ErrorCount) / float64(result.RequestCount) * 100
	}
	fmt.Printf("  Success rate:  %.2f%%\n", successRate)
	fmt.Printf("  Errors:        %d\n", result.ErrorCount)
	fmt.Printf("  Retries:       %d\n", result.RetryCount)
	fmt.Printf("  Failed URLs:   %d\n", len(result.FailedURLs))
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Printf("  Validation:    %v\n", valErrors)
	}
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Items/sec:     %.2f\n", itemsPerSec)
	fmt.Printf("  Output:        %s\n", output)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
