// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package health

import "time"

// Metrics is a point-in-time snapshot of a provider's health, safe to
// serialize to JSON.
type Metrics struct {
	FailureCount  int64      `json:"failure_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	Available     bool       `json:"available"`

	// DegradedCount counts operations served by a local heuristic instead
	// of the provider's model.
	DegradedCount  int64      `json:"degraded_count"`
	LastDegradedAt *time.Time `json:"last_degraded_at,omitempty"`
}
