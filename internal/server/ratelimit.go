// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package server

import (
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
)

const (
	visitorCleanupInterval = 5 * time.Minute
	visitorStaleAfter      = 10 * time.Minute
	defaultMaxVisitors     = 10000
)

// RateLimitConfig configures per-client-address rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per address. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	// MaxVisitors caps the number of tracked addresses; the least recently
	// seen are evicted first. Zero selects 10000.
	MaxVisitors int
}

// Validate checks the configuration and applies defaults.
func (c *RateLimitConfig) Validate() error {
	if c.RequestsPerSecond < 0 {
		return sqerr.Errorf(sqerr.CodeServerConfigInvalid,
			"rate limit requests per second must not be negative (got %g)", c.RequestsPerSecond)
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		return sqerr.Errorf(sqerr.CodeServerConfigInvalid,
			"rate limit burst must be positive when rate is set (got burst=%d, rate=%g)", c.Burst, c.RequestsPerSecond)
	}
	if c.MaxVisitors < 0 {
		return sqerr.Errorf(sqerr.CodeServerConfigInvalid,
			"rate limit max visitors must not be negative (got %d)", c.MaxVisitors)
	}
	if c.MaxVisitors == 0 {
		c.MaxVisitors = defaultMaxVisitors
	}
	return nil
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitorLimiter hands out one token bucket per client address.
type visitorLimiter struct {
	cfg    RateLimitConfig
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
}

func newVisitorLimiter(cfg RateLimitConfig, logger *slog.Logger) *visitorLimiter {
	return &visitorLimiter{
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
}

func (l *visitorLimiter) allow(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[addr]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst)}
		l.visitors[addr] = v
	}
	now := l.now()
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// cleanup drops stale visitors, then the oldest ones beyond MaxVisitors.
func (l *visitorLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	type entry struct {
		addr     string
		lastSeen time.Time
	}
	entries := make([]entry, 0, len(l.visitors))
	for addr, v := range l.visitors {
		if now.Sub(v.lastSeen) > visitorStaleAfter {
			delete(l.visitors, addr)
			continue
		}
		entries = append(entries, entry{addr: addr, lastSeen: v.lastSeen})
	}

	if l.cfg.MaxVisitors <= 0 || len(entries) <= l.cfg.MaxVisitors {
		return
	}
	slices.SortFunc(entries, func(a, b entry) int { return a.lastSeen.Compare(b.lastSeen) })
	evict := len(entries) - l.cfg.MaxVisitors
	for _, e := range entries[:evict] {
		delete(l.visitors, e.addr)
	}
	l.logger.Warn("rate limiter visitor cap enforced",
		"evicted", evict, "max_visitors", l.cfg.MaxVisitors, "remaining", len(l.visitors))
}

func (l *visitorLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// rateLimitMiddleware enforces per-address limits. It passes everything
// through when cfg.RequestsPerSecond is zero. Closing done stops the
// cleanup goroutine.
func rateLimitMiddleware(cfg RateLimitConfig, done <-chan struct{}, logger *slog.Logger) func(http.Handler) http.Handler {
	if cfg.RequestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	l := newVisitorLimiter(cfg, logger)
	go func() {
		ticker := time.NewTicker(visitorCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.cleanup()
			case <-done:
				return
			}
		}
	}()

	return limitHandler(l)
}

func limitHandler(l *visitorLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Limit by host so that a client opening many connections shares one bucket.
			addr, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				addr = r.RemoteAddr
			}

			if !l.allow(addr) {
				l.logger.Warn("rate limit exceeded", "addr", addr, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
