// Package fetcher retrieves marketplace HTML over HTTP using gocolly.
package fetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/ovbagirov/berkat-crawler/internal/advert"
	"github.com/ovbagirov/berkat-crawler/internal/metrics"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	Retry     advert.RetryPolicy
}

// Fetcher implements advert.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	transport := newHTTPTransport()
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch executes an HTTP GET with bounded fixed-delay retries and returns
// the HTML body. Non-HTML responses and 4xx statuses are terminal.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		body, err := f.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !f.cfg.Retry.ShouldRetry(err, attempt+1) {
			break
		}
		metrics.FetchRetry()
		f.logger.Warn("fetch retry",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		if werr := f.cfg.Retry.Wait(ctx); werr != nil {
			return nil, fmt.Errorf("fetch canceled during backoff: %w", werr)
		}
	}
	return nil, lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = true
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	collector.WithTransport(f.transport)

	var (
		body     []byte
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		if err := validateResponse(r); err != nil {
			fetchErr = err
			return
		}
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode >= 400 && r.StatusCode < 500 {
			fetchErr = &advert.TerminalFetchError{
				Reason: fmt.Sprintf("status %d for %s", r.StatusCode, url),
			}
			return
		}
		fetchErr = err
	})

	canceled, visitErr := runCollector(ctx, collector, url)
	if canceled {
		return nil, visitErr
	}
	// OnError carries the classified failure; prefer it over the raw
	// Visit error so terminal statuses are not retried.
	if fetchErr != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, fetchErr)
	}
	if visitErr != nil {
		return nil, visitErr
	}
	return body, nil
}

func validateResponse(r *colly.Response) error {
	ct := r.Headers.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "text/html") {
		return &advert.TerminalFetchError{
			Reason: fmt.Sprintf("unexpected content type %q", ct),
		}
	}
	return nil
}

func runCollector(ctx context.Context, collector *colly.Collector, url string) (bool, error) {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return true, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return false, fmt.Errorf("visit failed: %w", err)
		}
		return false, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
