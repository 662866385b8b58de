/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package workflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/global"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/logging"
)

const (
	// cachePollInterval is how often a parked duplicate caller re-checks
	// whether the in-flight computation has finished
	cachePollInterval = 500 * time.Millisecond

	// DefaultDedupMaxWaitSecs bounds how long a duplicate caller waits for
	// an in-flight computation before executing independently
	DefaultDedupMaxWaitSecs = 120
)

// Fingerprint derives the deduplication key for one logical expert call.
// The findings hash participates so that the same request id at a later
// workflow step, with different accumulated findings, is a distinct call
// rather than a false cache hit.
func Fingerprint(tool, requestID string, findings *ConsolidatedFindings) string {
	sum := sha256.Sum256([]byte(tool + "|" + requestID + "|" + findings.Hash()))
	return hex.EncodeToString(sum[:])
}

// ExpertCallCache guarantees at-most-one-concurrent-execution per logical
// expert-analysis call, with result sharing for duplicate callers. Results
// are retained for the life of the process; callers needing a re-run must
// use a new request id.
type ExpertCallCache struct {
	mu       sync.Mutex
	results  map[string]map[string]interface{}
	inFlight map[string]struct{}
	logger   *logging.Logger
}

// NewExpertCallCache creates an empty cache
func NewExpertCallCache(logger *logging.Logger) *ExpertCallCache {
	return &ExpertCallCache{
		results:  make(map[string]map[string]interface{}),
		inFlight: make(map[string]struct{}),
		logger:   logger,
	}
}

// Acquire implements the deduplication protocol for a key. Exactly one of
// the following holds on return:
//   - cached != nil: a completed result exists (possibly produced by another
//     caller this caller waited for); use it as-is.
//   - claimed == true: this caller owns the key and must execute the call,
//     then invoke Complete with the outcome.
//   - err != nil: the context was cancelled while waiting for an in-flight
//     computation; nothing was claimed.
//
// When an in-flight computation does not resolve within the maximum wait
// (EXPERT_DEDUP_MAX_WAIT_SECS), the caller claims the key and executes
// anyway. Duplicate work in that case is accepted as an escape hatch
// against a stuck in-flight marker, not a likely path.
func (c *ExpertCallCache) Acquire(ctx context.Context, key string) (cached map[string]interface{}, claimed bool, err error) {
	c.mu.Lock()
	if r, ok := c.results[key]; ok {
		c.mu.Unlock()
		return r, false, nil
	}
	if _, busy := c.inFlight[key]; !busy {
		c.inFlight[key] = struct{}{}
		c.mu.Unlock()
		return nil, true, nil
	}
	c.mu.Unlock()

	maxWait := time.Duration(global.EnvInt(global.EnvDedupMaxWait, DefaultDedupMaxWaitSecs)) * time.Second
	deadline := time.Now().Add(maxWait)
	c.logger.Infof("Expert cache: identical call %s in flight - waiting up to %s", shortKey(key), maxWait)

	ticker := time.NewTicker(cachePollInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-ticker.C:
		}

		c.mu.Lock()
		if r, ok := c.results[key]; ok {
			c.mu.Unlock()
			c.logger.Infof("Expert cache: reusing result for %s", shortKey(key))
			return r, false, nil
		}
		if _, busy := c.inFlight[key]; !busy {
			// The in-flight caller finished without caching a result.
			// Take over the key and execute.
			c.inFlight[key] = struct{}{}
			c.mu.Unlock()
			return nil, true, nil
		}
		c.mu.Unlock()
	}

	c.logger.Errorf("Expert cache: %s still in flight after %s - executing independently", shortKey(key), maxWait)
	return nil, true, nil
}

// Complete records the outcome of an execution and releases the in-flight
// marker. Error payloads are cached too: a persistent upstream failure
// should not cause every duplicate caller to re-fail against the same
// input. Must be called exactly once per successful claim, on every exit
// path.
func (c *ExpertCallCache) Complete(key string, result map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if result != nil {
		c.results[key] = result
	}
	delete(c.inFlight, key)
}

// Stats returns the number of cached results and in-flight keys
func (c *ExpertCallCache) Stats() (results, inFlight int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results), len(c.inFlight)
}

// shortKey abbreviates a fingerprint for log lines
func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
