/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package workflow

import "testing"

func TestParseStepRequest(t *testing.T) {
	req, err := ParseStepRequest(map[string]interface{}{
		"step":               "inspect",
		"step_number":        float64(2),
		"total_steps":        float64(4),
		"next_step_required": true,
		"findings":           "something",
		"relevant_files":     []interface{}{"a.go", "b.go"},
		"model":              "glm-4.5-flash",
	})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if req.StepNumber != 2 || req.TotalSteps != 4 {
		t.Errorf("Unexpected step counts: %d/%d", req.StepNumber, req.TotalSteps)
	}
	if req.IsFinalStep() {
		t.Error("next_step_required=true must not be final")
	}
	if len(req.RelevantFiles) != 2 {
		t.Errorf("Unexpected relevant files: %v", req.RelevantFiles)
	}
}

func TestParseStepRequestDefaults(t *testing.T) {
	req, err := ParseStepRequest(map[string]interface{}{"step": "x"})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if req.StepNumber != 1 || req.TotalSteps != 1 {
		t.Errorf("Expected defaulted step counts, got %d/%d", req.StepNumber, req.TotalSteps)
	}
	if req.IsFinalStep() {
		t.Error("Absent next_step_required must not be final")
	}
}

func TestParseStepRequestRejectsWrongTypes(t *testing.T) {
	if _, err := ParseStepRequest(map[string]interface{}{"step_number": "two"}); err == nil {
		t.Error("Expected parse error for string step_number")
	}
}

func TestIsFinalStep(t *testing.T) {
	f := false
	tr := true
	if !(&StepRequest{NextStepRequired: &f}).IsFinalStep() {
		t.Error("next_step_required=false must be final")
	}
	if (&StepRequest{NextStepRequired: &tr}).IsFinalStep() {
		t.Error("next_step_required=true must not be final")
	}
}

func TestWantsExpertAnalysis(t *testing.T) {
	f := false
	if (&StepRequest{UseAssistantModel: &f}).WantsExpertAnalysis() {
		t.Error("Explicit false must win")
	}

	t.Setenv("DEFAULT_USE_ASSISTANT_MODEL", "false")
	if (&StepRequest{}).WantsExpertAnalysis() {
		t.Error("Environment default false must apply when the flag is absent")
	}

	t.Setenv("DEFAULT_USE_ASSISTANT_MODEL", "true")
	if !(&StepRequest{}).WantsExpertAnalysis() {
		t.Error("Environment default true must apply when the flag is absent")
	}
}

func TestEffectiveRequestID(t *testing.T) {
	r := &StepRequest{RequestID: "r1", ContinuationID: "c1"}
	if r.EffectiveRequestID() != "r1" {
		t.Error("request_id must win when present")
	}
	r.RequestID = ""
	if r.EffectiveRequestID() != "c1" {
		t.Error("continuation_id must be the fallback")
	}
}

func TestRawHelpers(t *testing.T) {
	args := map[string]interface{}{
		"next_step_required":  false,
		"use_assistant_model": "true",
		"step_number":         "3",
	}
	if !RawIsFinalStep(args) {
		t.Error("Expected raw final-step detection")
	}
	if !RawWantsExpert(args) {
		t.Error("Expected raw expert flag detection")
	}
	if RawStepNumber(args) != 3 {
		t.Errorf("Expected step 3, got %d", RawStepNumber(args))
	}

	if RawIsFinalStep(map[string]interface{}{}) {
		t.Error("Absent flag must default to non-final")
	}
	if RawStepNumber(map[string]interface{}{}) != 1 {
		t.Error("Absent step number must default to 1")
	}
}
