// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package provider

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds the retries of one upstream call.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	// Retryable decides whether an error is transient. Nil retries every
	// error except context cancellation.
	Retryable func(error) bool
}

// DefaultRetryPolicy retries twice within ten seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      2,
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxElapsedTime:  10 * time.Second,
	}
}

// NoRetry runs the call exactly once.
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxRetries: 0, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
}

// PolicyOrDefault dereferences p, falling back to DefaultRetryPolicy.
func PolicyOrDefault(p *RetryPolicy) RetryPolicy {
	if p == nil {
		return DefaultRetryPolicy()
	}
	return *p
}

// RetryableStatus reports whether an HTTP status is worth retrying.
func RetryableStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= http.StatusInternalServerError
}

// Retry runs op with exponential backoff until it succeeds, returns a
// non-retryable error, or the policy is exhausted. The last error is returned.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval
	b.MaxInterval = policy.MaxInterval
	b.MaxElapsedTime = policy.MaxElapsedTime

	var bo backoff.BackOff = b
	if policy.MaxRetries >= 0 {
		bo = backoff.WithMaxRetries(b, uint64(policy.MaxRetries))
	}

	return backoff.RetryWithData(func() (T, error) {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return v, backoff.Permanent(err)
		}
		if policy.Retryable != nil && !policy.Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithContext(bo, ctx))
}
