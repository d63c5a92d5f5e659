// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package ratelimit throttles calls to the paid language-model endpoint.
// A single process-wide token bucket covers every caller; acquiring a token
// is the only way to reach the generator.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimitExceeded indicates no token became available within the
// caller's deadline.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// Config holds token bucket parameters.
type Config struct {
	// RequestsPerSecond is the sustained refill rate.
	RequestsPerSecond float64
	// BurstSize is the bucket capacity.
	BurstSize int
}

// DefaultConfig matches the generator quota: one request per second with a
// small burst allowance for startup.
func DefaultConfig() Config {
	return Config{RequestsPerSecond: 1.0, BurstSize: 1}
}

// Limiter is a token bucket shared by all answer workers.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter creates a limiter from the given configuration.
// Non-positive values fall back to the defaults.
func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = def.BurstSize
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
	}
}

// Acquire blocks until a token is available, the timeout elapses, or ctx is
// cancelled. On timeout it returns ErrRateLimitExceeded so callers can
// distinguish throttling from cancellation; the token is not consumed.
func (l *Limiter) Acquire(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := l.limiter.Wait(ctx); err != nil {
		// Wait fails early when the remaining deadline can't cover the
		// refill; both that and an expired deadline mean throttled.
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrRateLimitExceeded, err)
	}
	return nil
}

// Allow reports whether a token is immediately available, consuming one if so.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}
