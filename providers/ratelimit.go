/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package providers

import (
	"errors"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// rateLimitPatterns are provider-specific phrasings that indicate rate
// limiting when the error is not a clean HTTP 429.
var rateLimitPatterns = []string{
	"429",
	"reachlimit",
	"concurrent",
	"rate limit",
	"too many requests",
}

// IsRateLimitError reports whether an error from a provider call indicates
// rate limiting, either via a structured 429 or by provider-specific
// phrasing in the error text.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429 {
		return true
	}

	text := strings.ToLower(err.Error())
	for _, pattern := range rateLimitPatterns {
		if strings.Contains(text, pattern) {
			return true
		}
	}
	return false
}

// RateLimiter implements a token bucket rate limiter used as a client-side
// throttle in front of each provider, reducing 429s at the source
type RateLimiter struct {
	maxRequests   int
	periodSeconds int
	requests      []time.Time
	mu            sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(maxRequests, periodSeconds int) *RateLimiter {
	return &RateLimiter{
		maxRequests:   maxRequests,
		periodSeconds: periodSeconds,
		requests:      make([]time.Time, 0, maxRequests),
	}
}

// Wait blocks until the rate limit allows a new request
// Returns the time waited
func (r *RateLimiter) Wait() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-time.Duration(r.periodSeconds) * time.Second)

	// Remove expired requests
	validRequests := make([]time.Time, 0, len(r.requests))
	for _, t := range r.requests {
		if t.After(cutoff) {
			validRequests = append(validRequests, t)
		}
	}
	r.requests = validRequests

	// If under limit, allow immediately
	if len(r.requests) < r.maxRequests {
		r.requests = append(r.requests, now)
		return 0
	}

	// Calculate wait time until oldest request expires
	oldestRequest := r.requests[0]
	waitDuration := oldestRequest.Add(time.Duration(r.periodSeconds) * time.Second).Sub(now)

	// Actually wait (release lock during wait)
	if waitDuration > 0 {
		r.mu.Unlock()
		time.Sleep(waitDuration)
		r.mu.Lock()

		// Re-record this request after waiting
		now = time.Now()
	}

	// Clean up again after wait
	cutoff = now.Add(-time.Duration(r.periodSeconds) * time.Second)
	validRequests = make([]time.Time, 0, len(r.requests))
	for _, t := range r.requests {
		if t.After(cutoff) {
			validRequests = append(validRequests, t)
		}
	}
	r.requests = validRequests
	r.requests = append(r.requests, now)

	return waitDuration
}

// Available returns the number of requests available before hitting the limit
func (r *RateLimiter) Available() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-time.Duration(r.periodSeconds) * time.Second)

	count := 0
	for _, t := range r.requests {
		if t.After(cutoff) {
			count++
		}
	}

	return r.maxRequests - count
}
