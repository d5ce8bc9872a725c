package render

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromeOptions configures the headless browser.
type ChromeOptions struct {
	ExecPath  string
	UserAgent string
	Timeout   time.Duration
	Headless  bool
}

// ChromeRenderer renders pages in tabs of one shared headless Chrome.
type ChromeRenderer struct {
	opts ChromeOptions

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	closeOnce sync.Once
}

// NewChromeRenderer starts a browser. Close must be called to stop it.
func NewChromeRenderer(ctx context.Context, opts ChromeOptions) (*ChromeRenderer, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("mute-audio", true),
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Run with no actions starts the browser so launch errors surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &ChromeRenderer{
		opts:          opts,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Render opens url in a new tab, runs the directive script, waits and
// returns the outer HTML of the document.
func (r *ChromeRenderer) Render(ctx context.Context, url string, d Directive) (string, error) {
	tabCtx, tabCancel := chromedp.NewContext(r.browserCtx)
	defer tabCancel()
	tabCtx, cancel := context.WithTimeout(tabCtx, r.opts.Timeout+d.Wait)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	tasks := chromedp.Tasks{chromedp.Navigate(url)}
	if d.Script != "" {
		tasks = append(tasks, chromedp.Evaluate(d.Script, nil))
	}
	if d.Wait > 0 {
		tasks = append(tasks, chromedp.Sleep(d.Wait))
	}

	var html string
	tasks = append(tasks, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if err := chromedp.Run(tabCtx, tasks); err != nil {
		return "", err
	}
	return html, nil
}

// Close shuts the browser down.
func (r *ChromeRenderer) Close() {
	r.closeOnce.Do(func() {
		r.browserCancel()
		r.allocCancel()
	})
}
