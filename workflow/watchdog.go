/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/config"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/global"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/logging"
)

const (
	// DefaultStepTimeoutSecs bounds an intermediate workflow step
	DefaultStepTimeoutSecs = 45

	// DefaultWSCallTimeoutSecs is the assumed outer transport ceiling when
	// the environment does not supply one
	DefaultWSCallTimeoutSecs = 180

	// finalStepBufferSecs is added on top of the expert-analysis timeout
	// for the final step, covering prompt assembly and result handling
	finalStepBufferSecs = 30

	// ceilingMarginSecs keeps the final-step timeout strictly inside the
	// outer transport timeout
	ceilingMarginSecs = 5

	// minStepTimeoutSecs is the floor for any computed step timeout
	minStepTimeoutSecs = 5
)

// ToolSpec describes one workflow tool in the catalog
type ToolSpec struct {
	Name         string
	Description  string
	SystemPrompt string
}

// Tool executes workflow steps for one tool spec under an adaptive
// per-step watchdog timeout.
type Tool struct {
	Spec     ToolSpec
	invoker  *Invoker
	sessions *SessionStore
	timeouts *config.TimeoutConfig
	logger   *logging.Logger
}

// NewTool binds a tool spec to the services step execution needs
func NewTool(spec ToolSpec, invoker *Invoker, sessions *SessionStore,
	timeouts *config.TimeoutConfig, logger *logging.Logger) *Tool {
	return &Tool{
		Spec:     spec,
		invoker:  invoker,
		sessions: sessions,
		timeouts: timeouts,
		logger:   logger,
	}
}

// Execute runs one workflow step under a timeout sized to the step's role:
// the final step with expert validation gets the expert-analysis budget
// plus a buffer, capped below the outer transport ceiling; intermediate
// steps get the fixed step timeout. The returned payload always carries a
// "status" field; timeouts and failures are shaped into structured
// payloads, never raw errors.
func (t *Tool) Execute(ctx context.Context, args map[string]interface{}, progress ProgressFunc) map[string]interface{} {
	req, parseErr := ParseStepRequest(args)

	var isFinal, wantsExpert bool
	var stepNumber int
	if parseErr != nil {
		// A malformed request still gets a timeout computed for it from
		// the raw arguments before it is rejected inside the watchdog.
		t.logger.Warnf("%s: request parse failed (%v) - inspecting raw arguments", t.Spec.Name, parseErr)
		isFinal = RawIsFinalStep(args)
		wantsExpert = RawWantsExpert(args)
		stepNumber = RawStepNumber(args)
	} else {
		isFinal = req.IsFinalStep()
		wantsExpert = req.WantsExpertAnalysis()
		stepNumber = req.StepNumber
	}

	timeout := t.stepTimeout(isFinal && wantsExpert)
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultCh := make(chan map[string]interface{}, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				t.logger.Errorf("%s: step %d panicked: %v", t.Spec.Name, stepNumber, r)
				resultCh <- t.failedPayload(stepNumber, fmt.Sprintf("internal error: %v", r))
			}
		}()
		resultCh <- t.runStep(stepCtx, req, parseErr, args, isFinal, wantsExpert, progress)
	}()

	select {
	case result := <-resultCh:
		return result
	case <-stepCtx.Done():
		t.logger.Errorf("%s: step %d timed out after %s", t.Spec.Name, stepNumber, timeout)
		return map[string]interface{}{
			"status":       t.Spec.Name + "_timeout",
			"step_number":  stepNumber,
			"timeout_secs": int(timeout.Seconds()),
			"error":        fmt.Sprintf("step execution exceeded %s", timeout),
		}
	}
}

// stepTimeout computes the watchdog timeout for this step
func (t *Tool) stepTimeout(expectExpert bool) time.Duration {
	if !expectExpert {
		secs := global.EnvInt(global.EnvStepTimeout, DefaultStepTimeoutSecs)
		if secs < minStepTimeoutSecs {
			secs = minStepTimeoutSecs
		}
		return time.Duration(secs) * time.Second
	}

	ceiling := global.EnvInt(global.EnvWSCallTimeout, DefaultWSCallTimeoutSecs)
	secs := t.timeouts.ExpertAnalysisTimeout + finalStepBufferSecs
	if max := ceiling - ceilingMarginSecs; secs > max {
		secs = max
	}
	if secs < minStepTimeoutSecs {
		secs = minStepTimeoutSecs
	}
	return time.Duration(secs) * time.Second
}

// runStep performs the actual step work: record findings, and on the final
// step optionally run expert validation
func (t *Tool) runStep(ctx context.Context, req *StepRequest, parseErr error,
	args map[string]interface{}, isFinal, wantsExpert bool, progress ProgressFunc) map[string]interface{} {

	if parseErr != nil {
		return t.failedPayload(RawStepNumber(args), fmt.Sprintf("invalid step request: %v", parseErr))
	}

	continuationID, findings := t.sessions.Resolve(req.ContinuationID)
	req.ContinuationID = continuationID
	findings.AddStep(req)

	// Work off a snapshot from here on: if this step times out, this
	// goroutine is orphaned and must not read state a retry is mutating.
	snap := findings.Snapshot()

	if !isFinal {
		return map[string]interface{}{
			"status":             t.Spec.Name + "_in_progress",
			"step_number":        req.StepNumber,
			"total_steps":        req.TotalSteps,
			"next_step_required": true,
			"continuation_id":    continuationID,
			"findings_recorded":  len(snap.Findings),
		}
	}

	result := map[string]interface{}{
		"status":            t.Spec.Name + "_complete",
		"step_number":       req.StepNumber,
		"continuation_id":   continuationID,
		"findings_recorded": len(snap.Findings),
	}

	if wantsExpert {
		result["expert_analysis"] = t.invoker.CallExpertAnalysis(ctx, t.Spec.Name, t.Spec.SystemPrompt, req, snap, progress)
	}
	return result
}

// failedPayload builds the structured failure result for this tool
func (t *Tool) failedPayload(stepNumber int, msg string) map[string]interface{} {
	return map[string]interface{}{
		"status":      t.Spec.Name + "_failed",
		"step_number": stepNumber,
		"error":       msg,
	}
}
