package collyfetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/JakeFAU/gamecatalog/internal/catalog"
	"github.com/JakeFAU/gamecatalog/internal/metrics"
)

type robotsEntry struct {
	data *robotstxt.RobotsData
}

// ensureAllowed consults the cached policy for the URL's host and fails
// before any request to a disallowed page is made.
func (f *Fetcher) ensureAllowed(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return nil
	}
	scheme := parsed.Scheme
	if scheme == "" {
		scheme = "https"
	}
	data, err := f.robotsFor(ctx, scheme, parsed.Host)
	if err != nil {
		return err
	}
	target := parsed.EscapedPath()
	if target == "" {
		target = "/"
	}
	if parsed.RawQuery != "" {
		target += "?" + parsed.RawQuery
	}
	if !data.TestAgent(target, f.cfg.UserAgent) {
		metrics.ObserveRobotsDenied(rawURL)
		return fmt.Errorf("%w: %s", catalog.ErrRobotsDisallowed, rawURL)
	}
	return nil
}

// robotsFor returns the policy for scheme://host, fetching it at most once.
// Any failure to retrieve robots.txt is cached as allow-all.
func (f *Fetcher) robotsFor(ctx context.Context, scheme, host string) (*robotstxt.RobotsData, error) {
	key := strings.ToLower(scheme + "://" + host)

	f.robotsMu.Lock()
	entry, ok := f.robots[key]
	f.robotsMu.Unlock()
	if ok {
		return entry.data, nil
	}

	robotsURL := (&url.URL{Scheme: scheme, Host: host, Path: "/robots.txt"}).String()
	data, err := f.loadRobots(ctx, robotsURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("robots lookup: %w", ctxErr)
		}
		f.logger.Warn("robots fetch failed; allowing access",
			zap.String("host", host),
			zap.Error(err),
		)
		data = allowAll()
	}

	f.robotsMu.Lock()
	f.robots[key] = &robotsEntry{data: data}
	f.robotsMu.Unlock()
	return data, nil
}

func (f *Fetcher) loadRobots(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	p, err := f.fetch(ctx, robotsURL, false)
	if err != nil {
		return nil, err
	}
	data, err := robotstxt.FromBytes([]byte(decodeText(p.body)))
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data, nil
}

func allowAll() *robotstxt.RobotsData {
	// A 404 status always yields the allow-all policy.
	data, _ := robotstxt.FromStatusAndBytes(http.StatusNotFound, nil)
	return data
}
