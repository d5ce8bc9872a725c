package scraper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-homedepot/config"
)

// retryManager re-submits failed requests after an exponential backoff.
// Attempts are counted per URL.
type retryManager struct {
	cfg     *config.Config
	metrics *Metrics
	ctx     context.Context

	mu           sync.Mutex
	idle         *sync.Cond
	attempts     map[string]int
	timers       map[string]*time.Timer
	outstanding  int
	totalRetries int
	stopped      bool
}

func newRetryManager(cfg *config.Config, metrics *Metrics) *retryManager {
	rm := &retryManager{
		cfg:      cfg,
		attempts: make(map[string]int),
		timers:   make(map[string]*time.Timer),
		metrics:  metrics,
		ctx:      context.Background(),
	}
	rm.idle = sync.NewCond(&rm.mu)
	return rm
}

// Schedule arranges for resubmit to run after the next backoff delay.
// It returns false when url has used up its retries or the manager is stopped.
func (rm *retryManager) Schedule(url string, resubmit func() error) bool {
	if rm.cfg.MaxRetries == 0 {
		return false
	}

	if rm.ctx != nil {
		select {
		case <-rm.ctx.Done():
			return false
		default:
		}
	}

	rm.mu.Lock()

	if rm.stopped {
		rm.mu.Unlock()
		return false
	}
	if rm.ctx != nil && rm.ctx.Err() != nil {
		rm.mu.Unlock()
		return false
	}

	attempt := rm.attempts[url]
	if attempt >= rm.cfg.MaxRetries {
		rm.mu.Unlock()
		return false
	}

	attempt++
	rm.attempts[url] = attempt
	rm.totalRetries++
	if rm.metrics != nil {
		rm.metrics.IncRetries()
	}

	delay := rm.backoff(attempt)
	rm.resetTimerLocked(url)
	rm.outstanding++
	rm.timers[url] = time.AfterFunc(delay, func() {
		rm.fireRetry(url, resubmit)
	})
	rm.mu.Unlock()
	return true
}

func (rm *retryManager) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := rm.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := rm.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func (rm *retryManager) resetTimerLocked(url string) {
	if timer, ok := rm.timers[url]; ok {
		if timer.Stop() {
			rm.releaseLocked()
		}
		delete(rm.timers, url)
	}
}

func (rm *retryManager) fireRetry(url string, resubmit func() error) {
	rm.mu.Lock()
	delete(rm.timers, url)
	stopped := rm.stopped
	ctx := rm.ctx
	rm.mu.Unlock()

	if !stopped && (ctx == nil || ctx.Err() == nil) {
		slog.Debug("retrying request", slog.String("url", url))
		if err := resubmit(); err != nil {
			slog.Debug("retry visit failed", slog.String("url", url), slog.Any("error", err))
		}
	}

	rm.mu.Lock()
	rm.releaseLocked()
	rm.mu.Unlock()
}

func (rm *retryManager) releaseLocked() {
	rm.outstanding--
	if rm.outstanding <= 0 {
		rm.outstanding = 0
		rm.idle.Broadcast()
	}
}

// Wait blocks until every scheduled retry has been re-submitted or
// cancelled. It reports whether anything was pending.
func (rm *retryManager) Wait() bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.outstanding == 0 {
		return false
	}
	for rm.outstanding > 0 {
		rm.idle.Wait()
	}
	return true
}

func (rm *retryManager) Stop() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.stopped {
		return
	}

	rm.stopped = true
	for url, timer := range rm.timers {
		if timer.Stop() {
			rm.releaseLocked()
		}
		delete(rm.timers, url)
	}
}

func (rm *retryManager) TotalRetries() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.totalRetries
}

func (rm *retryManager) SetContext(ctx context.Context) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if ctx == nil {
		rm.ctx = context.Background()
		return
	}
	rm.ctx = ctx
}
