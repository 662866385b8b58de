/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/config"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/global"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/logging"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/providers"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/schemas"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/store"
)

const (
	// DefaultHeartbeatSecs is how often progress is reported while a
	// provider call runs. Two seconds keeps an interactive caller's UI
	// alive without flooding it.
	DefaultHeartbeatSecs = 2

	// fallbackMinRemaining is the minimum time budget required before a
	// rate-limited call is retried against the other vendor
	fallbackMinRemaining = 3 * time.Second
)

// ModelResolver resolves model names to provider handles. Satisfied by
// *providers.Registry.
type ModelResolver interface {
	ResolveModel(name string) (string, providers.Provider, error)
	BestEffortProvider() (string, providers.Provider)
	FallbackFor(p providers.Provider) (string, providers.Provider)
}

// Invoker performs expert-analysis calls: deduplicated via the call cache,
// executed on a background goroutine with heartbeat polling, degraded
// gracefully on rate limits, timeouts, and malformed responses.
type Invoker struct {
	resolver  ModelResolver
	cache     *ExpertCallCache
	timeouts  *config.TimeoutConfig
	validator *schemas.Validator
	history   *store.Service
	logger    *logging.Logger
}

// NewInvoker creates an Invoker. history may be nil to disable persistence.
func NewInvoker(resolver ModelResolver, cache *ExpertCallCache, timeouts *config.TimeoutConfig,
	validator *schemas.Validator, history *store.Service, logger *logging.Logger) *Invoker {
	return &Invoker{
		resolver:  resolver,
		cache:     cache,
		timeouts:  timeouts,
		validator: validator,
		history:   history,
		logger:    logger,
	}
}

// callOutcome is the result of one polled provider call
type callOutcome struct {
	resp         *providers.GenerateResponse
	err          error
	timedOut     bool
	softExceeded bool
}

// CallExpertAnalysis validates accumulated findings against an external
// model. It never returns nil and never panics out: every failure mode is
// encoded in the payload's "status" field so the caller always has
// something serializable to return.
func (inv *Invoker) CallExpertAnalysis(ctx context.Context, toolName, systemPrompt string,
	req *StepRequest, findings *ConsolidatedFindings, progress ProgressFunc) (result map[string]interface{}) {

	defer func() {
		if r := recover(); r != nil {
			inv.logger.Errorf("Expert analysis for %s panicked: %v", toolName, r)
			result = errorPayload(fmt.Sprintf("internal error: %v", r))
		}
		if result == nil {
			// Reaching this line means an exit path above forgot to set a
			// payload. Surface it as an explicit error, never as absence.
			inv.logger.Errorf("Expert analysis for %s produced no result - code-flow bug", toolName)
			result = errorPayload("expert analysis produced no result (internal bug)")
		}
	}()

	if global.EnvBool(global.EnvMicrostepDraft, false) {
		inv.logger.Infof("Expert analysis for %s skipped: draft mode enabled", toolName)
		return map[string]interface{}{
			"status":  global.StatusAnalysisPartial,
			"summary": "Draft mode enabled: expert validation was skipped for this step",
			"draft":   true,
		}
	}

	key := Fingerprint(toolName, req.EffectiveRequestID(), findings)

	cached, claimed, err := inv.cache.Acquire(ctx, key)
	if err != nil {
		return map[string]interface{}{
			"status": global.StatusAnalysisTimeout,
			"error":  "cancelled while waiting for an identical in-flight analysis",
		}
	}
	if cached != nil {
		return cached
	}
	if !claimed {
		return errorPayload("cache returned neither result nor claim (internal bug)")
	}

	// Complete runs on every exit path so a key can never remain stuck in
	// flight. A panic past this point is converted to an error payload
	// here, before Complete, so the failure is cached like any other
	// outcome and an identical retry gets the cached error.
	defer func() {
		if r := recover(); r != nil {
			inv.logger.Errorf("Expert analysis for %s panicked: %v", toolName, r)
			result = errorPayload(fmt.Sprintf("internal error: %v", r))
		}
		if result == nil {
			inv.logger.Errorf("Expert analysis for %s produced no result - code-flow bug", toolName)
			result = errorPayload("expert analysis produced no result (internal bug)")
		}
		inv.cache.Complete(key, result)
	}()

	result = inv.run(ctx, toolName, systemPrompt, req, findings, progress)
	inv.record(toolName, req, result)
	return result
}

// run executes the provider call with resolution fallback, polling, and
// rate-limit fallback. Runs under no lock; duplicate callers are parked in
// the cache's wait loop, not here.
func (inv *Invoker) run(ctx context.Context, toolName, systemPrompt string,
	req *StepRequest, findings *ConsolidatedFindings, progress ProgressFunc) map[string]interface{} {

	start := time.Now()
	hardTimeout := time.Duration(inv.timeouts.ExpertAnalysisTimeout) * time.Second
	deadline := start.Add(hardTimeout)

	model, provider, err := inv.resolver.ResolveModel(req.Model)
	if err != nil {
		inv.logger.Warnf("Model resolution failed (%v) - trying best-effort provider", err)
		model, provider = inv.resolver.BestEffortProvider()
		if provider == nil {
			return errorPayload(fmt.Sprintf("no provider available: %v", err))
		}
	}

	prompt := BuildExpertPrompt(toolName, findings, req, inv.logger)
	genReq := providers.GenerateRequest{
		Prompt:       prompt,
		ModelName:    model,
		SystemPrompt: systemPrompt,
		Temperature:  req.Temperature,
		ThinkingMode: req.ThinkingMode,
		UseWebsearch: req.UseWebsearch,
		Images:       findings.Images,
	}

	inv.logger.Infof("Expert analysis for %s starting on %s/%s (deadline %ds)",
		toolName, provider.Type(), model, inv.timeouts.ExpertAnalysisTimeout)
	out := inv.launchAndPoll(ctx, provider, genReq, start, deadline, progress, toolName)

	if out.err != nil && providers.IsRateLimitError(out.err) &&
		global.EnvBool(global.EnvFallbackEnabled, true) && time.Until(deadline) > fallbackMinRemaining {
		if fbModel, fbProvider := inv.resolver.FallbackFor(provider); fbProvider != nil {
			inv.logger.Warnf("Rate limited on %s - retrying on %s/%s with %s remaining",
				provider.Type(), fbProvider.Type(), fbModel, time.Until(deadline).Round(time.Second))
			sendProgress(progress, fmt.Sprintf("%s: rate limited, retrying on %s", toolName, fbModel))

			fbReq := genReq
			fbReq.ModelName = fbModel
			fbOut := inv.launchAndPoll(ctx, fbProvider, fbReq, start, deadline, progress, toolName)
			if fbOut.err != nil {
				// Surface the original error, not the fallback's
				inv.logger.Errorf("Fallback provider also failed: %v", fbOut.err)
			} else {
				out = fbOut
				provider = fbProvider
			}
		}
	}

	elapsed := math.Round(time.Since(start).Seconds()*10) / 10

	switch {
	case out.softExceeded:
		inv.logger.Warnf("Expert analysis for %s hit the soft deadline after %.1fs - returning partial result", toolName, elapsed)
		return map[string]interface{}{
			"status":                 global.StatusAnalysisPartial,
			"summary":                "Expert analysis did not finish before the soft deadline; proceed with the local findings",
			"soft_deadline_exceeded": true,
			"elapsed_secs":           elapsed,
		}
	case out.timedOut:
		inv.logger.Errorf("Expert analysis for %s timed out after %.1fs", toolName, elapsed)
		return map[string]interface{}{
			"status":       global.StatusAnalysisTimeout,
			"error":        fmt.Sprintf("expert analysis exceeded %d seconds", inv.timeouts.ExpertAnalysisTimeout),
			"elapsed_secs": elapsed,
		}
	case out.err != nil:
		inv.logger.Errorf("Expert analysis for %s failed: %v", toolName, out.err)
		payload := errorPayload(out.err.Error())
		payload["elapsed_secs"] = elapsed
		return payload
	}

	if out.resp == nil || strings.TrimSpace(out.resp.Content) == "" {
		inv.logger.Warnf("Expert analysis for %s returned empty content", toolName)
		return map[string]interface{}{
			"status":       global.StatusEmptyResponse,
			"elapsed_secs": elapsed,
		}
	}

	payload := inv.parseResponse(toolName, out.resp.Content)
	payload["model"] = genReq.ModelName
	if out.resp.Model != "" {
		payload["model"] = out.resp.Model
	}
	payload["provider"] = provider.Type()
	payload["elapsed_secs"] = elapsed
	return payload
}

// launchAndPoll runs the blocking provider call on a background goroutine
// and polls it with heartbeats until completion, the optional soft
// deadline, or the hard deadline. The context deadline gives the call a
// best-effort cancellation; many providers cannot abort mid-request, so an
// orphaned call may run to completion and be discarded.
func (inv *Invoker) launchAndPoll(ctx context.Context, p providers.Provider, genReq providers.GenerateRequest,
	start, deadline time.Time, progress ProgressFunc, toolName string) callOutcome {

	callCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	done := make(chan callOutcome, 1)
	go func() {
		resp, err := p.GenerateContent(callCtx, genReq)
		done <- callOutcome{resp: resp, err: err}
	}()

	heartbeatSecs := global.EnvInt(global.EnvHeartbeatInterval, DefaultHeartbeatSecs)
	if heartbeatSecs <= 0 {
		heartbeatSecs = DefaultHeartbeatSecs
	}
	ticker := time.NewTicker(time.Duration(heartbeatSecs) * time.Second)
	defer ticker.Stop()

	hardTimer := time.NewTimer(time.Until(deadline))
	defer hardTimer.Stop()

	var softC <-chan time.Time
	if softSecs := global.EnvInt(global.EnvSoftDeadline, 0); softSecs > 0 {
		softAt := start.Add(time.Duration(softSecs) * time.Second)
		if softAt.Before(deadline) {
			softTimer := time.NewTimer(time.Until(softAt))
			defer softTimer.Stop()
			softC = softTimer.C
		}
	}

	total := deadline.Sub(start).Seconds()
	for {
		select {
		case out := <-done:
			// A provider that honors cancellation surfaces the hard
			// deadline as a context error; shape it as a timeout.
			if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) {
				return callOutcome{timedOut: true}
			}
			return out
		case <-softC:
			return callOutcome{softExceeded: true}
		case <-hardTimer.C:
			return callOutcome{timedOut: true}
		case <-ticker.C:
			elapsed := time.Since(start).Seconds()
			pct := int(elapsed / total * 100)
			if pct > 99 {
				pct = 99
			}
			sendProgress(progress, fmt.Sprintf("%s: expert analysis on %s in progress (%.0fs elapsed, ~%.0fs remaining, %d%%)",
				toolName, genReq.ModelName, elapsed, time.Until(deadline).Seconds(), pct))
		}
	}
}

// parseResponse interprets the provider's text as JSON. Malformed JSON is
// never fatal: the raw text is preserved alongside a parse_error note.
func (inv *Invoker) parseResponse(toolName, content string) map[string]interface{} {
	extracted := schemas.ExtractJSON(content)

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(extracted), &parsed); err != nil {
		inv.logger.Warnf("Expert analysis for %s returned non-JSON content (%v) - preserving raw text", toolName, err)
		return map[string]interface{}{
			"status":       global.StatusAnalysisComplete,
			"raw_analysis": content,
			"parse_error":  err.Error(),
		}
	}

	if vr, err := inv.validator.ValidateExpertAnalysis([]byte(extracted)); err == nil && !vr.Valid {
		parsed["schema_warnings"] = vr.Errors
	}
	if _, ok := parsed["status"]; !ok {
		parsed["status"] = global.StatusAnalysisComplete
	}
	return parsed
}

// record persists a completed analysis to history, best effort
func (inv *Invoker) record(toolName string, req *StepRequest, result map[string]interface{}) {
	if inv.history == nil || req.ContinuationID == "" || result == nil {
		return
	}

	rec := store.Record{
		Tool:           toolName,
		RequestID:      req.RequestID,
		ContinuationID: req.ContinuationID,
		Result:         result,
	}
	if s, ok := result["status"].(string); ok {
		rec.Status = s
	}
	if m, ok := result["model"].(string); ok {
		rec.Model = m
	}
	if p, ok := result["provider"].(string); ok {
		rec.Provider = p
	}
	if e, ok := result["elapsed_secs"].(float64); ok {
		rec.ElapsedSecs = e
	}

	if _, err := inv.history.Append(rec); err != nil {
		inv.logger.Warnf("Failed to record %s analysis history: %v", toolName, err)
	}
}

// errorPayload builds the standard analysis_error result
func errorPayload(msg string) map[string]interface{} {
	return map[string]interface{}{
		"status": global.StatusAnalysisError,
		"error":  msg,
	}
}
