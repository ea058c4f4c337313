// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func doRequest(h http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notes", nil)
	req.RemoteAddr = remote
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// testLimiter returns a limiter on a manually advanced clock.
func testLimiter(cfg RateLimitConfig) (*visitorLimiter, *time.Time) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newVisitorLimiter(cfg, slog.Default())
	l.now = func() time.Time { return clock }
	return l, &clock
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })

	h := rateLimitMiddleware(RateLimitConfig{Burst: 1}, done, slog.Default())(okHandler)
	for i := 0; i < 50; i++ {
		assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1234").Code)
	}
}

func TestRateLimit_ExceedsBurst(t *testing.T) {
	l, _ := testLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 3})
	h := limitHandler(l)(okHandler)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1234").Code, "request %d", i)
	}

	w := doRequest(h, "10.0.0.1:5678")
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "other ports of the same host share a bucket")
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, w.Body.String())
}

func TestRateLimit_PerAddressIsolation(t *testing.T) {
	l, _ := testLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	h := limitHandler(l)(okHandler)

	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(h, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.2:1").Code)
}

func TestRateLimit_Refill(t *testing.T) {
	l, clock := testLimiter(RateLimitConfig{RequestsPerSecond: 2, Burst: 1})
	h := limitHandler(l)(okHandler)

	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(h, "10.0.0.1:1").Code)

	*clock = clock.Add(500 * time.Millisecond)
	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1").Code)
}

func TestRateLimit_RemoteAddrWithoutPort(t *testing.T) {
	l, _ := testLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	h := limitHandler(l)(okHandler)

	assert.Equal(t, http.StatusOK, doRequest(h, "unix-socket").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(h, "unix-socket").Code)
}

func TestRateLimit_ConcurrentRequestsRespectBurst(t *testing.T) {
	l, _ := testLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 5})
	h := limitHandler(l)(okHandler)

	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if doRequest(h, "10.0.0.9:1").Code == http.StatusOK {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(5), allowed.Load())
}

func TestRateLimit_CleanupDropsStaleVisitors(t *testing.T) {
	l, clock := testLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, MaxVisitors: 100})

	l.allow("10.0.0.1")
	*clock = clock.Add(visitorStaleAfter + time.Second)
	l.allow("10.0.0.2")

	l.cleanup()
	assert.Equal(t, 1, l.size())
}

func TestRateLimit_CleanupEnforcesCap(t *testing.T) {
	l, clock := testLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, MaxVisitors: 3})

	for i := 0; i < 6; i++ {
		l.allow(fmt.Sprintf("10.0.0.%d", i))
		*clock = clock.Add(time.Second)
	}
	l.cleanup()
	require.Equal(t, 3, l.size())

	l.mu.Lock()
	defer l.mu.Unlock()
	for i := 3; i < 6; i++ {
		assert.Contains(t, l.visitors, fmt.Sprintf("10.0.0.%d", i), "most recent visitors survive")
	}
}

func TestRateLimitConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RateLimitConfig
		wantErr bool
		wantMax int
	}{
		{"disabled", RateLimitConfig{}, false, defaultMaxVisitors},
		{"valid", RateLimitConfig{RequestsPerSecond: 5, Burst: 10, MaxVisitors: 7}, false, 7},
		{"negative rate", RateLimitConfig{RequestsPerSecond: -1}, true, 0},
		{"rate without burst", RateLimitConfig{RequestsPerSecond: 5}, true, 0},
		{"negative visitors", RateLimitConfig{MaxVisitors: -1}, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMax, cfg.MaxVisitors)
		})
	}
}
