/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package workflow

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/global"
)

// StepRequest represents one workflow step call. Pointer fields distinguish
// "absent" from "explicitly false" for flags whose default is environment
// derived.
type StepRequest struct {
	Step              string   `json:"step"`
	StepNumber        int      `json:"step_number"`
	TotalSteps        int      `json:"total_steps"`
	NextStepRequired  *bool    `json:"next_step_required"`
	Findings          string   `json:"findings"`
	RelevantFiles     []string `json:"relevant_files"`
	FilesChecked      []string `json:"files_checked"`
	RelevantContext   []string `json:"relevant_context"`
	IssuesFound       []Issue  `json:"issues_found"`
	Images            []string `json:"images"`
	ContinuationID    string   `json:"continuation_id"`
	RequestID         string   `json:"request_id"`
	Model             string   `json:"model"`
	Temperature       float64  `json:"temperature"`
	ThinkingMode      string   `json:"thinking_mode"`
	UseWebsearch      bool     `json:"use_websearch"`
	UseAssistantModel *bool    `json:"use_assistant_model"`
	EmbedFiles        bool     `json:"embed_files"`
}

// ParseStepRequest builds a StepRequest from raw tool arguments. Callers
// must tolerate failure here: a malformed request still needs a timeout
// computed for it, via the Raw* helpers below.
func ParseStepRequest(args map[string]interface{}) (*StepRequest, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode arguments: %w", err)
	}

	var req StepRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse step request: %w", err)
	}

	if req.StepNumber <= 0 {
		req.StepNumber = 1
	}
	if req.TotalSteps < req.StepNumber {
		req.TotalSteps = req.StepNumber
	}
	return &req, nil
}

// IsFinalStep reports whether this is the terminal workflow step. An absent
// next_step_required flag means more steps are expected.
func (r *StepRequest) IsFinalStep() bool {
	return r.NextStepRequired != nil && !*r.NextStepRequired
}

// WantsExpertAnalysis reports whether the final step should run expert
// validation: the explicit request flag wins, otherwise the environment
// default applies.
func (r *StepRequest) WantsExpertAnalysis() bool {
	if r.UseAssistantModel != nil {
		return *r.UseAssistantModel
	}
	return global.EnvBool(global.EnvDefaultUseExpert, true)
}

// EffectiveRequestID returns the identifier used for deduplication
func (r *StepRequest) EffectiveRequestID() string {
	if r.RequestID != "" {
		return r.RequestID
	}
	return r.ContinuationID
}

// rawBool reads a boolean-ish value straight from unparsed arguments
func rawBool(args map[string]interface{}, key string, def bool) bool {
	v, ok := args[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(t); err == nil {
			return b
		}
	}
	return def
}

// RawIsFinalStep infers finality from unparsed arguments
func RawIsFinalStep(args map[string]interface{}) bool {
	return !rawBool(args, "next_step_required", true)
}

// RawWantsExpert infers the expert-validation flag from unparsed arguments
func RawWantsExpert(args map[string]interface{}) bool {
	return rawBool(args, "use_assistant_model", global.EnvBool(global.EnvDefaultUseExpert, true))
}

// RawStepNumber extracts the step number from unparsed arguments so that
// error payloads can still carry it
func RawStepNumber(args map[string]interface{}) int {
	switch t := args["step_number"].(type) {
	case float64:
		if t > 0 {
			return int(t)
		}
	case string:
		if n, err := strconv.Atoi(t); err == nil && n > 0 {
			return n
		}
	}
	return 1
}
