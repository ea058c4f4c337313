// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package provider

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
	"github.com/squirrel-notes/squirrel/pkg/health"
)

// HealthMetrics is the serializable health snapshot reported in ProviderStatus.
type HealthMetrics = health.Metrics

// HealthTracker tracks whether a provider's upstream is usable.
// A provider is healthy until RecordFailure is called; it then stays
// unhealthy for the cooldown period, after which it may be retried.
// The tracker also counts degraded operations, i.e. calls answered by a
// local heuristic instead of the provider's model.
type HealthTracker struct {
	mu           sync.RWMutex
	healthy      bool
	failedAt     time.Time
	cooldown     time.Duration
	failureCount int64

	degradedCount int64
	degradedAt    time.Time

	nowFunc func() time.Time
}

// DefaultHealthCooldown is the duration after which an unhealthy provider
// becomes eligible for retry.
const DefaultHealthCooldown = 30 * time.Second

// NewHealthTracker creates a HealthTracker that starts healthy.
func NewHealthTracker(cooldown time.Duration) (*HealthTracker, error) {
	if cooldown <= 0 {
		return nil, sqerr.Errorf(sqerr.CodeConfigValidateInvalidValue,
			"health tracker cooldown must be positive, got %s", cooldown)
	}
	return &HealthTracker{
		healthy:  true,
		cooldown: cooldown,
		nowFunc:  time.Now,
	}, nil
}

// MustHealthTracker is NewHealthTracker for constant cooldowns.
func MustHealthTracker(cooldown time.Duration) *HealthTracker {
	h, err := NewHealthTracker(cooldown)
	if err != nil {
		panic(err)
	}
	return h
}

// isHealthyLocked requires at least h.mu.RLock.
func (h *HealthTracker) isHealthyLocked() bool {
	if h.healthy {
		return true
	}
	return h.nowFunc().Sub(h.failedAt) >= h.cooldown
}

// IsHealthy returns true if the provider is healthy or the cooldown has elapsed.
func (h *HealthTracker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.isHealthyLocked()
}

func (h *HealthTracker) RecordSuccess() {
	h.mu.Lock()
	h.healthy = true
	h.mu.Unlock()
}

// RecordFailure marks the provider unhealthy and bumps the failure count.
func (h *HealthTracker) RecordFailure() {
	h.mu.Lock()
	h.healthy = false
	h.failedAt = h.nowFunc()
	h.failureCount++
	h.mu.Unlock()
}

// Observe records the outcome of an upstream call. Cancellation by the
// caller says nothing about the upstream and is ignored.
func (h *HealthTracker) Observe(err error) {
	switch {
	case err == nil:
		h.RecordSuccess()
	case errors.Is(err, context.Canceled):
	default:
		h.RecordFailure()
	}
}

// RecordDegraded counts one operation served by a heuristic fallback and
// logs it at Warn on logger, which is expected to carry the provider name.
// Degradation never changes availability.
func (h *HealthTracker) RecordDegraded(ctx context.Context, logger *slog.Logger, op string, cause error) {
	h.mu.Lock()
	h.degradedCount++
	h.degradedAt = h.nowFunc()
	h.mu.Unlock()

	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		slog.String("operation", op),
		slog.Bool("degraded", true),
	}
	if cause != nil {
		attrs = append(attrs, slog.String("cause", cause.Error()))
	}
	logger.WarnContext(ctx, "provider operation degraded to heuristic", attrs...)
}

// Degraded reports whether any operation has been served by a fallback.
func (h *HealthTracker) Degraded() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.degradedCount > 0
}

// SetNowFunc overrides the time source (for testing).
func (h *HealthTracker) SetNowFunc(fn func() time.Time) {
	h.mu.Lock()
	h.nowFunc = fn
	h.mu.Unlock()
}

// HealthMetrics returns a point-in-time snapshot that shares no state with the tracker.
func (h *HealthTracker) HealthMetrics() HealthMetrics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m := HealthMetrics{
		FailureCount:  h.failureCount,
		DegradedCount: h.degradedCount,
	}

	if h.failureCount > 0 {
		t := h.failedAt
		m.LastFailureAt = &t
	}
	if h.degradedCount > 0 {
		t := h.degradedAt
		m.LastDegradedAt = &t
	}

	m.Available = h.isHealthyLocked()
	if !m.Available {
		cooldownEnd := h.failedAt.Add(h.cooldown)
		m.CooldownUntil = &cooldownEnd
	}
	return m
}

func (h *HealthTracker) HealthMetricsPtr() *HealthMetrics {
	hm := h.HealthMetrics()
	return &hm
}
