// Package ratelimit paces outbound requests per host.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter serializes same-host traffic so that consecutive requests to one
// host are spaced at least 1/rps seconds apart. Hosts are tracked for the
// lifetime of the limiter; cardinality is bounded by the crawl frontier.
type Limiter struct {
	mu       sync.Mutex
	perHost  map[string]*rate.Limiter
	hostRate rate.Limit
}

// New creates a Limiter allowing rps requests per second per host.
// A non-positive rps disables pacing.
func New(rps float64) *Limiter {
	r := rate.Limit(rps)
	if rps <= 0 {
		r = rate.Inf
	}
	return &Limiter{
		perHost:  make(map[string]*rate.Limiter),
		hostRate: r,
	}
}

// Wait blocks until the host's minimum interval has elapsed, or the context
// is canceled. The grant time is recorded on return.
func (l *Limiter) Wait(ctx context.Context, host string) error {
	if host == "" {
		return nil
	}
	key := strings.ToLower(host)

	l.mu.Lock()
	limiter, ok := l.perHost[key]
	if !ok {
		// Burst 1 makes the token bucket behave as a strict interval gate.
		limiter = rate.NewLimiter(l.hostRate, 1)
		l.perHost[key] = limiter
	}
	l.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", key, err)
	}
	return nil
}
