// Package ratelimit spaces outbound requests: a global minimum interval
// between consecutive attempts plus an optional per-host token bucket.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/gamecatalog/internal/metrics"
)

// Config holds rate limiter configuration.
type Config struct {
	// MinInterval is the minimum gap between the end of one attempt and the
	// start of the next, across all hosts.
	MinInterval time.Duration
	// HostRPS caps requests per second per host. Zero disables the cap.
	HostRPS   float64
	HostBurst int
}

// Limiter manages request spacing.
type Limiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	last        time.Time
	now         func() time.Time

	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.HostRPS)
	if cfg.HostRPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.HostBurst
	if burst <= 0 {
		burst = 1
	}
	minInterval := cfg.MinInterval
	if minInterval < 0 {
		minInterval = 0
	}
	return &Limiter{
		minInterval:  minInterval,
		now:          time.Now,
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
	}
}

// Wait blocks until both the global interval and the host's bucket allow a
// request to rawURL, or ctx is done.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	start := time.Now()

	if delay := l.remaining(); delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limit wait: %w", ctx.Err())
		case <-timer.C:
		}
	}

	if err := l.hostLimiter(host).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(host, waited)
	}
	return nil
}

// Mark records the completion of an attempt. The next Wait measures the
// interval from this instant.
func (l *Limiter) Mark() {
	l.mu.Lock()
	l.last = l.now()
	l.mu.Unlock()
}

func (l *Limiter) remaining() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.minInterval == 0 || l.last.IsZero() {
		return 0
	}
	return l.minInterval - l.now().Sub(l.last)
}

func (l *Limiter) hostLimiter(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, exists := l.limiters[host]
	if !exists {
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.limiters[host] = limiter
	}
	return limiter
}
