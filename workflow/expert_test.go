/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/config"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/logging"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/providers"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/schemas"
)

// stubProvider is a scriptable Provider for tests
type stubProvider struct {
	id      string
	content string
	err     error
	delay   time.Duration
	calls   int32
}

func (p *stubProvider) Type() string { return p.id }

func (p *stubProvider) GenerateContent(ctx context.Context, req providers.GenerateRequest) (*providers.GenerateResponse, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return &providers.GenerateResponse{Content: p.content, Model: req.ModelName}, nil
}

// stubResolver routes every model name to the primary stub
type stubResolver struct {
	primary    *stubProvider
	fallback   *stubProvider
	resolveErr error
}

func (r *stubResolver) ResolveModel(string) (string, providers.Provider, error) {
	if r.resolveErr != nil {
		return "", nil, r.resolveErr
	}
	return "primary-model", r.primary, nil
}

func (r *stubResolver) BestEffortProvider() (string, providers.Provider) {
	if r.primary == nil {
		return "", nil
	}
	return "primary-model", r.primary
}

func (r *stubResolver) FallbackFor(providers.Provider) (string, providers.Provider) {
	if r.fallback == nil {
		return "", nil
	}
	return "fallback-model", r.fallback
}

func testInvoker(t *testing.T, resolver ModelResolver, expertTimeoutSecs int) *Invoker {
	t.Helper()
	logger, err := logging.New(filepath.Join(t.TempDir(), "test.log"))
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	tc := &config.TimeoutConfig{
		SimpleToolTimeout:     60,
		WorkflowToolTimeout:   120,
		ExpertAnalysisTimeout: expertTimeoutSecs,
		ProviderTimeouts:      map[string]int{},
	}
	return NewInvoker(resolver, NewExpertCallCache(logger), tc, schemas.New(logger), nil, logger)
}

func stepReq(requestID string) *StepRequest {
	return &StepRequest{StepNumber: 1, RequestID: requestID}
}

func TestCallExpertAnalysisSuccess(t *testing.T) {
	primary := &stubProvider{id: "glm", content: `{"status":"analysis_complete","summary":"looks correct"}`}
	inv := testInvoker(t, &stubResolver{primary: primary}, 90)

	result := inv.CallExpertAnalysis(context.Background(), "analyze", "system", stepReq("r1"),
		&ConsolidatedFindings{Findings: []string{"Step 1: ok"}}, nil)

	if result["status"] != "analysis_complete" {
		t.Fatalf("Unexpected status: %v", result["status"])
	}
	if result["summary"] != "looks correct" {
		t.Errorf("Unexpected summary: %v", result["summary"])
	}
	if result["provider"] != "glm" {
		t.Errorf("Expected provider annotation, got %v", result["provider"])
	}
	if _, ok := result["elapsed_secs"]; !ok {
		t.Error("Expected elapsed_secs annotation")
	}
}

func TestConcurrentCallsShareOneProviderCall(t *testing.T) {
	primary := &stubProvider{
		id:      "glm",
		content: `{"status":"analysis_complete","result":"X"}`,
		delay:   300 * time.Millisecond,
	}
	inv := testInvoker(t, &stubResolver{primary: primary}, 90)
	findings := &ConsolidatedFindings{Findings: []string{"Step 1: f1"}}

	const callers = 3
	results := make([]map[string]interface{}, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results[n] = inv.CallExpertAnalysis(context.Background(), "analyze", "system", stepReq("r1"), findings, nil)
		}(i)
	}
	wg.Wait()

	if calls := atomic.LoadInt32(&primary.calls); calls != 1 {
		t.Errorf("Expected exactly one provider call, got %d", calls)
	}
	for i, r := range results {
		if r == nil || r["status"] != "analysis_complete" || r["result"] != "X" {
			t.Errorf("Caller %d got unexpected result: %v", i, r)
		}
	}

	if _, inFlight := inv.cache.Stats(); inFlight != 0 {
		t.Errorf("Expected no keys in flight after completion, got %d", inFlight)
	}
}

func TestDifferentFindingsExecuteIndependently(t *testing.T) {
	primary := &stubProvider{id: "glm", content: `{"status":"analysis_complete"}`}
	inv := testInvoker(t, &stubResolver{primary: primary}, 90)

	inv.CallExpertAnalysis(context.Background(), "analyze", "s", stepReq("r1"),
		&ConsolidatedFindings{Findings: []string{"Step 1: a"}}, nil)
	inv.CallExpertAnalysis(context.Background(), "analyze", "s", stepReq("r1"),
		&ConsolidatedFindings{Findings: []string{"Step 1: a", "Step 2: b"}}, nil)

	if calls := atomic.LoadInt32(&primary.calls); calls != 2 {
		t.Errorf("Expected independent execution for different findings, got %d call(s)", calls)
	}
}

func TestMalformedJSONPreservesRawText(t *testing.T) {
	primary := &stubProvider{id: "glm", content: "The analysis looks fine to me."}
	inv := testInvoker(t, &stubResolver{primary: primary}, 90)

	result := inv.CallExpertAnalysis(context.Background(), "analyze", "s", stepReq("r2"),
		&ConsolidatedFindings{Findings: []string{"Step 1: a"}}, nil)

	if result["status"] != "analysis_complete" {
		t.Fatalf("Unexpected status: %v", result["status"])
	}
	if result["raw_analysis"] != "The analysis looks fine to me." {
		t.Errorf("Expected raw text preserved, got %v", result["raw_analysis"])
	}
	if _, ok := result["parse_error"]; !ok {
		t.Error("Expected parse_error annotation")
	}
}

func TestEmptyResponse(t *testing.T) {
	primary := &stubProvider{id: "glm", content: "   "}
	inv := testInvoker(t, &stubResolver{primary: primary}, 90)

	result := inv.CallExpertAnalysis(context.Background(), "debug", "s", stepReq("r3"),
		&ConsolidatedFindings{}, nil)
	if result["status"] != "empty_response" {
		t.Errorf("Unexpected status: %v", result["status"])
	}
}

func TestProviderErrorBecomesPayload(t *testing.T) {
	primary := &stubProvider{id: "glm", err: errors.New("connection refused")}
	inv := testInvoker(t, &stubResolver{primary: primary}, 90)

	result := inv.CallExpertAnalysis(context.Background(), "debug", "s", stepReq("r4"),
		&ConsolidatedFindings{}, nil)

	if result["status"] != "analysis_error" {
		t.Fatalf("Unexpected status: %v", result["status"])
	}
	if result["error"] != "connection refused" {
		t.Errorf("Expected error text preserved, got %v", result["error"])
	}

	if _, inFlight := inv.cache.Stats(); inFlight != 0 {
		t.Errorf("Expected in-flight cleanup after failure, got %d keys", inFlight)
	}
}

func TestRateLimitFallback(t *testing.T) {
	primary := &stubProvider{id: "kimi", err: errors.New("429 Too Many Requests")}
	fallback := &stubProvider{id: "glm", content: `{"status":"analysis_complete","summary":"from fallback"}`}
	inv := testInvoker(t, &stubResolver{primary: primary, fallback: fallback}, 90)

	result := inv.CallExpertAnalysis(context.Background(), "secaudit", "s", stepReq("r5"),
		&ConsolidatedFindings{Findings: []string{"Step 1: a"}}, nil)

	if result["status"] != "analysis_complete" {
		t.Fatalf("Unexpected status: %v", result["status"])
	}
	if result["provider"] != "glm" {
		t.Errorf("Expected the fallback provider's result, got provider=%v", result["provider"])
	}
	if atomic.LoadInt32(&primary.calls) != 1 || atomic.LoadInt32(&fallback.calls) != 1 {
		t.Errorf("Expected one call each, got primary=%d fallback=%d", primary.calls, fallback.calls)
	}
}

func TestRateLimitWithoutFallbackSurfacesOriginalError(t *testing.T) {
	primary := &stubProvider{id: "kimi", err: errors.New("rate limit exceeded")}
	inv := testInvoker(t, &stubResolver{primary: primary}, 90)

	result := inv.CallExpertAnalysis(context.Background(), "secaudit", "s", stepReq("r6"),
		&ConsolidatedFindings{}, nil)

	if result["status"] != "analysis_error" {
		t.Fatalf("Unexpected status: %v", result["status"])
	}
	if result["error"] != "rate limit exceeded" {
		t.Errorf("Expected the original error, got %v", result["error"])
	}
}

func TestFallbackFailureSurfacesOriginalError(t *testing.T) {
	primary := &stubProvider{id: "kimi", err: errors.New("429 concurrent limit")}
	fallback := &stubProvider{id: "glm", err: errors.New("fallback also broken")}
	inv := testInvoker(t, &stubResolver{primary: primary, fallback: fallback}, 90)

	result := inv.CallExpertAnalysis(context.Background(), "secaudit", "s", stepReq("r7"),
		&ConsolidatedFindings{}, nil)

	if result["status"] != "analysis_error" {
		t.Fatalf("Unexpected status: %v", result["status"])
	}
	if result["error"] != "429 concurrent limit" {
		t.Errorf("Expected the original rate-limit error, got %v", result["error"])
	}
}

func TestHardDeadlineTimeout(t *testing.T) {
	primary := &stubProvider{id: "glm", content: `{"status":"analysis_complete"}`, delay: 5 * time.Second}
	inv := testInvoker(t, &stubResolver{primary: primary}, 1)

	start := time.Now()
	result := inv.CallExpertAnalysis(context.Background(), "thinkdeep", "s", stepReq("r8"),
		&ConsolidatedFindings{}, nil)

	if result["status"] != "analysis_timeout" {
		t.Fatalf("Unexpected status: %v", result["status"])
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Errorf("Timeout overshoot too large: %s", elapsed)
	}
	if _, inFlight := inv.cache.Stats(); inFlight != 0 {
		t.Errorf("Expected in-flight cleanup after timeout, got %d keys", inFlight)
	}
}

func TestSoftDeadlineReturnsPartial(t *testing.T) {
	t.Setenv("EXPERT_SOFT_DEADLINE_SECS", "1")
	primary := &stubProvider{id: "glm", content: `{"status":"analysis_complete"}`, delay: 10 * time.Second}
	inv := testInvoker(t, &stubResolver{primary: primary}, 60)

	result := inv.CallExpertAnalysis(context.Background(), "analyze", "s", stepReq("r9"),
		&ConsolidatedFindings{}, nil)

	if result["status"] != "analysis_partial" {
		t.Fatalf("Unexpected status: %v", result["status"])
	}
	if result["soft_deadline_exceeded"] != true {
		t.Error("Expected soft_deadline_exceeded annotation")
	}
}

func TestDraftModeSkipsProvider(t *testing.T) {
	t.Setenv("EXAI_MICROSTEP_DRAFT_MODE", "true")
	primary := &stubProvider{id: "glm", content: `{"status":"analysis_complete"}`}
	inv := testInvoker(t, &stubResolver{primary: primary}, 90)

	result := inv.CallExpertAnalysis(context.Background(), "analyze", "s", stepReq("r10"),
		&ConsolidatedFindings{}, nil)

	if result["status"] != "analysis_partial" {
		t.Fatalf("Unexpected status: %v", result["status"])
	}
	if atomic.LoadInt32(&primary.calls) != 0 {
		t.Error("Draft mode must not call the provider")
	}
}

func TestResolutionFailureFallsBackToBestEffort(t *testing.T) {
	primary := &stubProvider{id: "glm", content: `{"status":"analysis_complete"}`}
	inv := testInvoker(t, &stubResolver{primary: primary, resolveErr: errors.New("unknown model")}, 90)

	result := inv.CallExpertAnalysis(context.Background(), "analyze", "s", stepReq("r11"),
		&ConsolidatedFindings{}, nil)
	if result["status"] != "analysis_complete" {
		t.Errorf("Expected best-effort resolution to succeed, got %v", result["status"])
	}
}

func TestNoProviderAtAll(t *testing.T) {
	inv := testInvoker(t, &stubResolver{resolveErr: errors.New("unknown model")}, 90)

	result := inv.CallExpertAnalysis(context.Background(), "analyze", "s", stepReq("r12"),
		&ConsolidatedFindings{}, nil)
	if result["status"] != "analysis_error" {
		t.Errorf("Unexpected status: %v", result["status"])
	}
}

func TestPanicOutcomeIsCached(t *testing.T) {
	// A nil resolver panics inside the claimed section. The error payload
	// must still land in the results cache so an identical retry is served
	// from it, and the in-flight marker must clear.
	inv := testInvoker(t, nil, 90)
	findings := &ConsolidatedFindings{Findings: []string{"Step 1: boom"}}

	result := inv.CallExpertAnalysis(context.Background(), "analyze", "s", stepReq("r15"), findings, nil)
	if result["status"] != "analysis_error" {
		t.Fatalf("Unexpected status: %v", result["status"])
	}

	results, inFlight := inv.cache.Stats()
	if results != 1 {
		t.Errorf("Panic outcome must be cached, got %d cached result(s)", results)
	}
	if inFlight != 0 {
		t.Errorf("Expected no in-flight keys after panic, got %d", inFlight)
	}

	retry := inv.CallExpertAnalysis(context.Background(), "analyze", "s", stepReq("r15"), findings, nil)
	if retry["status"] != "analysis_error" || retry["error"] != result["error"] {
		t.Errorf("Retry must return the cached error payload, got %v", retry)
	}
}

func TestProgressHeartbeats(t *testing.T) {
	t.Setenv("EXPERT_HEARTBEAT_INTERVAL_SECS", "1")
	primary := &stubProvider{id: "glm", content: `{"status":"analysis_complete"}`, delay: 2500 * time.Millisecond}
	inv := testInvoker(t, &stubResolver{primary: primary}, 30)

	var beats int32
	progress := func(string) { atomic.AddInt32(&beats, 1) }

	result := inv.CallExpertAnalysis(context.Background(), "analyze", "s", stepReq("r13"),
		&ConsolidatedFindings{}, progress)
	if result["status"] != "analysis_complete" {
		t.Fatalf("Unexpected status: %v", result["status"])
	}
	if atomic.LoadInt32(&beats) < 2 {
		t.Errorf("Expected at least 2 heartbeats during a 2.5s call, got %d", beats)
	}
}

func TestPanickingProgressSinkIsSwallowed(t *testing.T) {
	t.Setenv("EXPERT_HEARTBEAT_INTERVAL_SECS", "1")
	primary := &stubProvider{id: "glm", content: `{"status":"analysis_complete"}`, delay: 1500 * time.Millisecond}
	inv := testInvoker(t, &stubResolver{primary: primary}, 30)

	progress := func(string) { panic("sink exploded") }

	result := inv.CallExpertAnalysis(context.Background(), "analyze", "s", stepReq("r14"),
		&ConsolidatedFindings{}, progress)
	if result["status"] != "analysis_complete" {
		t.Errorf("A panicking progress sink must not affect the call, got %v", result["status"])
	}
}
