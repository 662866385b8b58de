/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package tools declares the workflow tool catalog: each tool shares the
// same step-based execution engine and differs only in its description and
// the system prompt its expert validation runs under.
package tools

import (
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/global"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/workflow"
)

// Catalog returns the workflow tool specs in registration order
func Catalog() []workflow.ToolSpec {
	return []workflow.ToolSpec{
		{
			Name: global.ToolAnalyze,
			Description: "Multi-step code and architecture analysis. Record findings step by step; " +
				"on the final step the accumulated findings are validated by an expert model.",
			SystemPrompt: "You are a senior software architect reviewing an analysis performed by " +
				"another engineer. Assess the accumulated findings for correctness and completeness, " +
				"point out anything the analysis missed, and respond with a single JSON object " +
				"containing status, summary, and optional issues_found and recommendations arrays.",
		},
		{
			Name: global.ToolCodeReview,
			Description: "Multi-step code review workflow. Accumulate review findings across steps; " +
				"the final step can request expert validation of the review.",
			SystemPrompt: "You are an experienced code reviewer validating another reviewer's findings. " +
				"Check each finding for accuracy, flag false positives, identify defects the review " +
				"missed, and respond with a single JSON object containing status, summary, and " +
				"optional issues_found and recommendations arrays.",
		},
		{
			Name: global.ToolDebug,
			Description: "Multi-step root-cause debugging workflow. Record hypotheses and evidence " +
				"step by step; the final step can request expert validation of the diagnosis.",
			SystemPrompt: "You are a senior engineer validating a root-cause diagnosis. Evaluate " +
				"whether the evidence supports the stated cause, suggest alternative explanations if " +
				"the evidence is inconclusive, and respond with a single JSON object containing " +
				"status, summary, and optional issues_found and recommendations arrays.",
		},
		{
			Name: global.ToolSecAudit,
			Description: "Multi-step security audit workflow. Accumulate security findings across " +
				"steps; the final step can request expert validation of the audit.",
			SystemPrompt: "You are a security auditor reviewing another auditor's findings. Verify " +
				"each reported vulnerability, assess severity ratings, identify attack surfaces the " +
				"audit did not cover, and respond with a single JSON object containing status, " +
				"summary, and optional issues_found and recommendations arrays.",
		},
		{
			Name: global.ToolThinkDeep,
			Description: "Multi-step extended reasoning workflow for complex problems. Develop a " +
				"line of reasoning across steps; the final step can request expert validation.",
			SystemPrompt: "You are a critical thinking partner reviewing a chain of reasoning. " +
				"Probe the argument for unstated assumptions, logical gaps, and stronger alternative " +
				"framings, and respond with a single JSON object containing status, summary, and " +
				"optional issues_found and recommendations arrays.",
		},
	}
}
