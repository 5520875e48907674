// Package collyfetcher implements catalog.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/gamecatalog/internal/catalog"
	"github.com/JakeFAU/gamecatalog/internal/metrics"
)

// DefaultUserAgent identifies the client to remote hosts and robots.txt.
const DefaultUserAgent = "gamecatalog-bot/1.0 (+https://github.com/JakeFAU/gamecatalog)"

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxBodyBytes = 10 << 20
	acceptHeader        = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptLanguage      = "en-US,en;q=0.9"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	MaxAttempts   int
	BackoffFactor float64
	MaxBodyBytes  int
}

// Limiter spaces outbound requests.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
	Mark()
}

// Fetcher implements catalog.Fetcher using the Colly collector. Robots
// policies and the limiter state live on the instance.
type Fetcher struct {
	cfg           Config
	limiter       Limiter
	retry         *RetryPolicy
	logger        *zap.Logger
	baseCollector *colly.Collector
	sleep         func(context.Context, time.Duration) error

	robotsMu sync.Mutex
	robots   map[string]*robotsEntry
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type page struct {
	body    []byte
	headers http.Header
}

// New builds a Fetcher.
func New(cfg Config, limiter Limiter, logger *zap.Logger) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false))
	c.UserAgent = cfg.UserAgent
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	c.ParseHTTPErrorResponse = true
	c.MaxBodySize = cfg.MaxBodyBytes
	c.SetRequestTimeout(cfg.Timeout)
	c.WithTransport(&decodingTransport{base: newHTTPTransport()})

	return &Fetcher{
		cfg:           cfg,
		limiter:       limiter,
		retry:         NewRetryPolicy(cfg.MaxAttempts, cfg.BackoffFactor),
		logger:        logger,
		baseCollector: c,
		sleep:         sleepWithContext,
		robots:        make(map[string]*robotsEntry),
	}
}

// FetchText retrieves url and returns its body decoded as UTF-8.
func (f *Fetcher) FetchText(ctx context.Context, url string) (string, http.Header, error) {
	p, err := f.fetch(ctx, url, f.cfg.RespectRobots)
	if err != nil {
		return "", nil, err
	}
	return decodeText(p.body), p.headers, nil
}

// FetchBinary retrieves url and returns the raw body.
func (f *Fetcher) FetchBinary(ctx context.Context, url string) ([]byte, http.Header, error) {
	p, err := f.fetch(ctx, url, f.cfg.RespectRobots)
	if err != nil {
		return nil, nil, err
	}
	return p.body, p.headers, nil
}

func (f *Fetcher) fetch(ctx context.Context, url string, checkRobots bool) (page, error) {
	if checkRobots {
		if err := f.ensureAllowed(ctx, url); err != nil {
			return page{}, err
		}
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt < f.retry.MaxAttempts(); attempt++ {
		if attempt > 0 {
			metrics.ObserveRetry(url)
			if err := f.sleep(ctx, f.retry.Backoff(attempt)); err != nil {
				lastErr = err
				break
			}
		}
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx, url); err != nil {
				lastErr = err
				break
			}
		}

		attempts++
		p, err := f.attempt(ctx, url)
		if f.limiter != nil {
			f.limiter.Mark()
		}
		if err == nil {
			metrics.ObserveFetchAttempt(url, metrics.OutcomeSuccess)
			return p, nil
		}
		lastErr = err

		var statusErr *catalog.HTTPStatusError
		if errors.As(err, &statusErr) {
			metrics.ObserveFetchAttempt(url, metrics.OutcomeHTTPError)
		} else {
			metrics.ObserveFetchAttempt(url, metrics.OutcomeNetworkErr)
		}
		f.logger.Debug("fetch attempt failed",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		if !f.retry.ShouldRetry(err, attempt) {
			break
		}
	}
	return page{}, &catalog.FetchError{URL: url, Attempts: attempts, Err: lastErr}
}

func (f *Fetcher) attempt(ctx context.Context, url string) (page, error) {
	var (
		result   page
		fetchErr error
	)
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	f.configureCollectorHooks(collector, url, &result, &fetchErr)
	if err := f.runCollector(ctx, collector, url, &fetchErr); err != nil {
		return page{}, err
	}
	return result, nil
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	url string,
	result *page,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", f.cfg.UserAgent)
		r.Headers.Set("Accept", acceptHeader)
		r.Headers.Set("Accept-Language", acceptLanguage)
	})

	hooks.OnResponse(func(r *colly.Response) {
		if r.StatusCode < http.StatusOK || r.StatusCode >= http.StatusMultipleChoices {
			*fetchErr = &catalog.HTTPStatusError{URL: url, StatusCode: r.StatusCode}
			return
		}
		headers := http.Header{}
		if r.Headers != nil {
			headers = r.Headers.Clone()
		}
		*result = page{
			body:    append([]byte(nil), r.Body...),
			headers: headers,
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return *fetchErr
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff sleep: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
