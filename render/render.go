// Package render fetches pages through a headless browser so lazily loaded
// content is present in the returned HTML.
package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// WaitHeader marks a request for rendering. Its value is the settle time
// after scrolling, as accepted by time.ParseDuration.
const WaitHeader = "X-Render-Wait"

// ScrollHalfScript scrolls to the middle of the page so the second block
// of search results is requested.
const ScrollHalfScript = `window.scrollTo(0, document.body.scrollHeight * 1 / 2);`

// Directive describes how a page should be rendered.
type Directive struct {
	Script string
	Wait   time.Duration
}

// Renderer returns the rendered HTML of a page.
type Renderer interface {
	Render(ctx context.Context, url string, d Directive) (string, error)
}

// Mark flags a request for rendering with the given settle time.
func Mark(header http.Header, wait time.Duration) {
	header.Set(WaitHeader, wait.String())
}

// Transport is an http.RoundTripper that sends marked requests to a
// Renderer and everything else to Base.
type Transport struct {
	Base     http.RoundTripper
	Renderer Renderer
	Script   string
	Logger   *slog.Logger
}

// NewTransport wraps base. A nil renderer disables rendering and marked
// requests go to base unchanged.
func NewTransport(base http.RoundTripper, renderer Renderer, logger *slog.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{Base: base, Renderer: renderer, Script: ScrollHalfScript, Logger: logger}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	raw := req.Header.Get(WaitHeader)
	if raw == "" {
		return t.Base.RoundTrip(req)
	}

	clean := req.Clone(req.Context())
	clean.Header.Del(WaitHeader)
	if t.Renderer == nil {
		return t.Base.RoundTrip(clean)
	}

	wait, err := time.ParseDuration(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", WaitHeader, raw, err)
	}

	start := time.Now()
	body, err := t.Renderer.Render(req.Context(), req.URL.String(), Directive{Script: t.Script, Wait: wait})
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", req.URL, err)
	}
	t.Logger.Debug("page rendered",
		slog.String("url", req.URL.String()),
		slog.Duration("wait", wait),
		slog.Duration("duration", time.Since(start)),
		slog.Int("bytes", len(body)),
	)

	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{"text/html; charset=utf-8"}, "Content-Length": []string{strconv.Itoa(len(body))}},
		Body:          io.NopCloser(bytes.NewReader([]byte(body))),
		ContentLength: int64(len(body)),
		Request:       req,
	}, nil
}
