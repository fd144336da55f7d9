// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/candorlabs-ai/northstar/services/advisor/capability"
)

// Rate limit bucket names. Each endpoint family draws from its own bucket.
const (
	BucketAnalysis            = "analysis"
	BucketConversationMessage = "conversation_message"
	BucketConversationStart   = "conversation_start"
)

// Limit is a fixed-window request budget.
type Limit struct {
	Requests int
	Window   time.Duration
}

// DefaultLimits are the per-user budgets for each endpoint family.
func DefaultLimits() map[string]Limit {
	return map[string]Limit{
		BucketAnalysis:            {Requests: 10, Window: 15 * time.Minute},
		BucketConversationMessage: {Requests: 60, Window: 5 * time.Minute},
		BucketConversationStart:   {Requests: 6, Window: 15 * time.Minute},
	}
}

// maxTrackedWindows bounds the number of live (bucket, user) counters.
const maxTrackedWindows = 16384

// requestWindow is one user's counter within the current fixed window.
type requestWindow struct {
	start time.Time
	count int
}

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter enforces per-user fixed-window limits. Counters live in an
// expirable LRU so abandoned users age out on their own; the clock is
// injected so tests can step time directly.
type RateLimiter struct {
	clock  capability.Clock
	limits map[string]Limit

	mu      sync.Mutex
	windows *expirable.LRU[string, *requestWindow]
}

// NewRateLimiter builds a limiter over the given budgets. A nil clock uses
// the wall clock; nil limits use DefaultLimits.
func NewRateLimiter(clock capability.Clock, limits map[string]Limit) *RateLimiter {
	if clock == nil {
		clock = capability.SystemClock{}
	}
	if limits == nil {
		limits = DefaultLimits()
	}

	// Entries expire once they are older than the longest window, at which
	// point the counter would have reset anyway.
	var maxWindow time.Duration
	for _, l := range limits {
		if l.Window > maxWindow {
			maxWindow = l.Window
		}
	}

	return &RateLimiter{
		clock:   clock,
		limits:  limits,
		windows: expirable.NewLRU[string, *requestWindow](maxTrackedWindows, nil, maxWindow),
	}
}

// Allow records one request against the bucket for the user and reports
// whether it fits the budget. Buckets without a configured limit always
// allow.
func (r *RateLimiter) Allow(bucket, userID string) Decision {
	limit, ok := r.limits[bucket]
	if !ok {
		return Decision{Allowed: true, Limit: math.MaxInt32, Remaining: math.MaxInt32}
	}

	key := bucket + ":" + userID
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.windows.Get(key)
	if !ok || now.Sub(w.start) >= limit.Window {
		w = &requestWindow{start: now}
		r.windows.Add(key, w)
	}

	if w.count >= limit.Requests {
		return Decision{
			Allowed:    false,
			Limit:      limit.Requests,
			Remaining:  0,
			RetryAfter: w.start.Add(limit.Window).Sub(now),
		}
	}

	w.count++
	return Decision{
		Allowed:   true,
		Limit:     limit.Requests,
		Remaining: limit.Requests - w.count,
	}
}

// RateLimitMiddleware enforces the named bucket for each request. Denied
// requests get 429 with retry_after_seconds; all responses carry
// X-RateLimit-Limit and X-RateLimit-Remaining headers.
func RateLimitMiddleware(limiter *RateLimiter, bucket string) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := limiter.Allow(bucket, UserID(c))

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":               "rate limit exceeded",
				"retry_after_seconds": retryAfter,
			})
			return
		}

		c.Next()
	}
}
