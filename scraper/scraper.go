package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-scrape-homedepot/catalog"
	"github.com/aluiziolira/go-scrape-homedepot/config"
	"github.com/aluiziolira/go-scrape-homedepot/models"
	"github.com/aluiziolira/go-scrape-homedepot/parser"
	"github.com/aluiziolira/go-scrape-homedepot/pipeline"
	"github.com/aluiziolira/go-scrape-homedepot/render"
	"github.com/gocolly/colly/v2"
)

// Request kinds, stored in the colly request context.
const (
	kindKey = "kind"

	kindListing = "listing"
	kindResults = "results"
	kindProduct = "product"
)

// Scraper crawls one category: the listing page, every allowed brand's
// result pages, and each product page they link to.
type Scraper struct {
	cfg       *config.Config
	target    catalog.Target
	renderer  render.Renderer
	collector *colly.Collector
	retry     *retryManager
	Metrics   *Metrics

	requestCount    int64
	pageCount       int64
	followUps       int64
	errorCount      int64
	brandLinks      int64
	productLinks    int64
	emitted         int64
	skippedProducts int64

	mu           sync.Mutex
	failedURLs   []string
	errorsByType map[string]int
	abortErr     error

	handlersOnce sync.Once
}

// NewScraper builds a scraper for target. Result pages are marked for
// rendering; renderer may be nil, in which case they are fetched directly.
func NewScraper(cfg *config.Config, target catalog.Target, renderer render.Renderer) (*Scraper, error) {
	parsed, err := url.Parse(target.URL)
	if err != nil {
		return nil, fmt.Errorf("parse category url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("category url must include a host")
	}

	collector := colly.NewCollector(
		colly.Async(true),
		colly.AllowedDomains(parsed.Host),
		colly.UserAgent(cfg.UserAgent),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	s := &Scraper{
		cfg:          cfg,
		target:       target,
		renderer:     renderer,
		collector:    collector,
		errorsByType: make(map[string]int),
		Metrics:      NewMetrics(),
	}
	s.UseTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})
	s.retry = newRetryManager(cfg, s.Metrics)
	return s, nil
}

// UseTransport replaces the network transport under the render layer.
func (s *Scraper) UseTransport(base http.RoundTripper) {
	s.collector.WithTransport(render.NewTransport(base, s.renderer, slog.Default()))
}

// Run crawls the category and streams product records through the
// pipeline. When the listing page has no brand section the crawl stops and
// the returned error wraps parser.ErrBrandSectionNotFound; the partial
// result is still returned.
func (s *Scraper) Run(ctx context.Context, p *pipeline.Pipeline) (*models.ScraperResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.retry.SetContext(ctx)
	s.configureHandlers(ctx, p)

	start := time.Now()
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			s.retry.Stop()
		case <-done:
		}
	}()

	if err := s.visit(s.target.URL, kindListing, 0); err != nil {
		return nil, fmt.Errorf("initial visit: %w", err)
	}

	// Retries are re-submitted from timers, so wait until none are pending.
	for {
		s.collector.Wait()
		if !s.retry.Wait() {
			break
		}
	}
	s.retry.Stop()

	result := &models.ScraperResult{
		Category:        s.target.Key,
		StartTime:       start,
		EndTime:         time.Now(),
		TotalCount:      int(atomic.LoadInt64(&s.emitted)),
		ErrorCount:      int(atomic.LoadInt64(&s.errorCount)),
		FailedURLs:      s.snapshotFailedURLs(),
		ErrorsByType:    s.snapshotErrors(),
		RetryCount:      s.retry.TotalRetries(),
		RequestCount:    int(atomic.LoadInt64(&s.requestCount)),
		PageCount:       int(atomic.LoadInt64(&s.pageCount)),
		BrandLinks:      int(atomic.LoadInt64(&s.brandLinks)),
		ProductLinks:    int(atomic.LoadInt64(&s.productLinks)),
		SkippedProducts: int(atomic.LoadInt64(&s.skippedProducts)),
	}

	if err := s.aborted(); err != nil {
		return result, fmt.Errorf("category %s: %w", s.target.Key, err)
	}
	return result, nil
}

func (s *Scraper) configureHandlers(ctx context.Context, p *pipeline.Pipeline) {
	s.handlersOnce.Do(func() {
		s.collector.OnRequest(func(r *colly.Request) {
			r.Ctx.Put("start", time.Now())
			current := atomic.AddInt64(&s.requestCount, 1)
			if s.Metrics != nil {
				s.Metrics.IncRequest("started")
			}
			if current%50 == 0 {
				slog.Debug("scraper request progress",
					slog.Int64("requests", current),
					slog.Int64("pages", atomic.LoadInt64(&s.pageCount)),
					slog.String("url", r.URL.String()),
				)
			}
		})

		s.collector.OnResponse(func(r *colly.Response) {
			if s.Metrics != nil {
				if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
					s.Metrics.ObserveDuration(time.Since(start))
				}
			}

			kind := r.Ctx.Get(kindKey)
			page, err := parser.NewPage(r.Body, r.Request.URL)
			if err != nil {
				slog.Error("unparseable page",
					slog.String("kind", kind),
					slog.String("url", r.Request.URL.String()),
					slog.Any("error", err),
				)
				s.Metrics.IncExtractionFailure("html")
				return
			}
			s.Metrics.IncPage(kind)

			switch kind {
			case kindListing:
				s.handleListing(ctx, page)
			case kindResults:
				s.handleResults(ctx, page)
			case kindProduct:
				s.handleProduct(page, p)
			default:
				slog.Warn("response without request kind", slog.String("url", r.Request.URL.String()))
			}
		})

		s.collector.OnError(func(r *colly.Response, err error) {
			atomic.AddInt64(&s.errorCount, 1)
			statusCode := 0
			if r != nil {
				statusCode = r.StatusCode
			}
			classified := classifyError(err, statusCode)
			category := errorTypeLabel(classified)

			s.mu.Lock()
			s.errorsByType[category]++
			s.mu.Unlock()

			url := ""
			if r != nil && r.Request != nil && r.Request.URL != nil {
				url = r.Request.URL.String()
			}
			slog.Error("request error",
				slog.String("url", url),
				slog.Int("status", statusCode),
				slog.String("category", category),
				slog.Any("error", err),
			)
			if s.Metrics != nil {
				s.Metrics.IncError(category)
			}

			if r == nil || r.Request == nil || !s.retry.Schedule(url, r.Request.Retry) {
				s.mu.Lock()
				s.failedURLs = append(s.failedURLs, url)
				s.mu.Unlock()
			}
		})
	})
}

func (s *Scraper) handleListing(ctx context.Context, page *parser.Page) {
	links, err := parser.ExtractBrandLinks(page, s.target.Layout, s.target.Allow)
	if err != nil {
		slog.Error("listing page rejected",
			slog.String("category", s.target.Key),
			slog.String("url", page.URL.String()),
			slog.Any("error", err),
		)
		s.abort(err)
		return
	}

	atomic.AddInt64(&s.brandLinks, int64(len(links)))
	labels := make([]string, 0, len(links))
	for _, link := range links {
		labels = append(labels, link.Label)
	}
	slog.Info("brand links extracted",
		slog.String("category", s.target.Key),
		slog.Int("count", len(links)),
		slog.Any("brands", labels),
	)

	for _, link := range links {
		if ctx.Err() != nil {
			return
		}
		s.follow(link.URL, kindResults, s.cfg.FirstPageWait)
	}
}

func (s *Scraper) handleResults(ctx context.Context, page *parser.Page) {
	atomic.AddInt64(&s.pageCount, 1)
	result := parser.ExtractResultPage(page)
	atomic.AddInt64(&s.productLinks, int64(len(result.Products)))

	slog.Info("result page parsed",
		slog.String("brand", result.Brand),
		slog.String("url", page.URL.String()),
		slog.Int("products", len(result.Products)),
		slog.String("next", result.Next),
	)

	for _, link := range result.Products {
		if ctx.Err() != nil {
			return
		}
		s.follow(link, kindProduct, 0)
	}

	if !result.HasNext() || ctx.Err() != nil {
		return
	}
	if !s.reserveFollowUp() {
		slog.Info("max pages reached, pagination stopped",
			slog.Int("max_pages", s.cfg.MaxPages),
			slog.String("next", result.Next),
		)
		return
	}
	s.follow(result.Next, kindResults, s.cfg.NextPageWait)
}

func (s *Scraper) handleProduct(page *parser.Page, p *pipeline.Pipeline) {
	product, err := parser.ExtractProduct(page)
	if err != nil {
		atomic.AddInt64(&s.skippedProducts, 1)
		reason := "other"
		var priceErr parser.PriceParseError
		if errors.As(err, &priceErr) {
			reason = "price"
		}
		s.Metrics.IncExtractionFailure(reason)
		slog.Warn("product skipped",
			slog.String("url", page.URL.String()),
			slog.String("reason", reason),
			slog.Any("error", err),
		)
		return
	}

	product.Category = s.target.Key
	product.ScrapedAt = time.Now().UTC()
	if s.Metrics != nil {
		s.Metrics.IncItems()
	}
	if err := p.Process(product); err != nil {
		if !errors.Is(err, pipeline.ErrPipelineClosed) {
			slog.Error("pipeline process error", slog.Any("error", err))
		}
		return
	}
	atomic.AddInt64(&s.emitted, 1)
}

// reserveFollowUp claims one follow-up result page against MaxPages.
func (s *Scraper) reserveFollowUp() bool {
	if s.cfg.MaxPages <= 0 {
		return true
	}
	return atomic.AddInt64(&s.followUps, 1) <= int64(s.cfg.MaxPages)
}

func (s *Scraper) follow(link string, kind string, wait time.Duration) {
	if err := s.visit(link, kind, wait); err != nil {
		if errors.Is(err, colly.ErrAlreadyVisited) {
			slog.Debug("already visited", slog.String("url", link))
			return
		}
		slog.Warn("visit rejected",
			slog.String("kind", kind),
			slog.String("url", link),
			slog.Any("error", err),
		)
	}
}

// visit queues a GET with a fresh context; colly's Request.Visit would share
// the parent's context and overwrite its kind.
func (s *Scraper) visit(link string, kind string, wait time.Duration) error {
	hdr := http.Header{}
	if kind == kindResults {
		render.Mark(hdr, wait)
	}
	rctx := colly.NewContext()
	rctx.Put(kindKey, kind)
	return s.collector.Request(http.MethodGet, link, nil, rctx, hdr)
}

func (s *Scraper) abort(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.abortErr == nil {
		s.abortErr = err
	}
}

func (s *Scraper) aborted() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abortErr
}

func (s *Scraper) snapshotFailedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.failedURLs))
	copy(out, s.failedURLs)
	return out
}

func (s *Scraper) snapshotErrors() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = v
	}
	return out
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch statusCode {
		case http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		}
		if statusCode >= http.StatusInternalServerError {
			return ErrServer{Status: statusCode, Err: wrapped}
		}
	}

	if err == nil {
		return nil
	}
	return err
}
