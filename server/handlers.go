/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/global"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/providers"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/workflow"
)

// Helper function to create JSON tool results safely
func createJSONResult(data interface{}) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(data)
	if err != nil {
		return mcp.NewToolResultError("Failed to create JSON result"), nil
	}
	return result, nil
}

// logToolCall logs an MCP tool invocation at INFO level
func (s *Server) logToolCall(toolName string, params map[string]string) {
	var parts []string
	for k, v := range params {
		if v != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", k, v))
		}
	}
	if len(parts) == 0 {
		s.logger.Infof("Tool %s called", toolName)
	} else {
		s.logger.Infof("Tool %s called: %s", toolName, strings.Join(parts, ", "))
	}
}

// workflowHandler builds the MCP handler for one workflow tool. The tool's
// watchdog owns timeout and failure shaping, so the handler never returns a
// tool error for step execution problems; the structured payload carries
// them.
func (s *Server) workflowHandler(tool *workflow.Tool) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		s.logToolCall(tool.Spec.Name, map[string]string{
			"step_number":     fmt.Sprintf("%d", workflow.RawStepNumber(args)),
			"continuation_id": mcp.ParseString(request, "continuation_id", ""),
		})

		progress := func(message string) {
			s.logger.Infof("Progress: %s", message)
		}

		result := tool.Execute(ctx, args, progress)
		return createJSONResult(result)
	}
}

// handleChat performs a single-call chat completion
func (s *Server) handleChat(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt := mcp.ParseString(request, "prompt", "")
	model := mcp.ParseString(request, "model", "")
	temperature := mcp.ParseFloat64(request, "temperature", 0)
	useWebsearch := mcp.ParseBoolean(request, "use_websearch", false)

	s.logToolCall(global.ToolChat, map[string]string{"model": model})

	if prompt == "" {
		return mcp.NewToolResultError("prompt parameter is required"), nil
	}

	resolved, provider, err := s.registry.ResolveModel(model)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	callCtx, cancel := context.WithTimeout(ctx,
		time.Duration(s.timeouts.SimpleToolTimeout)*time.Second)
	defer cancel()

	resp, err := provider.GenerateContent(callCtx, providers.GenerateRequest{
		Prompt:       prompt,
		ModelName:    resolved,
		Temperature:  temperature,
		UseWebsearch: useWebsearch,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return createJSONResult(map[string]interface{}{
		"content":  resp.Content,
		"model":    resp.Model,
		"provider": provider.Type(),
		"usage":    resp.Usage,
	})
}

// handleTimeoutSummary reports the full timeout hierarchy
func (s *Server) handleTimeoutSummary(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logToolCall(global.ToolTimeoutSummary, nil)
	return createJSONResult(s.timeouts.Summary())
}

// handleProviderList reports provider availability
func (s *Server) handleProviderList(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logToolCall(global.ToolProviderList, nil)
	return createJSONResult(map[string]interface{}{
		"providers":     s.registry.List(),
		"default_model": s.registry.DefaultModel(),
	})
}

// handleAnalysisHistory serves recorded expert analyses
func (s *Server) handleAnalysisHistory(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	continuationID := mcp.ParseString(request, "continuation_id", "")
	recordUUID := mcp.ParseString(request, "uuid", "")

	s.logToolCall(global.ToolAnalysisHistory, map[string]string{
		"continuation_id": continuationID,
		"uuid":            recordUUID,
	})

	if continuationID == "" {
		if recordUUID != "" {
			return mcp.NewToolResultError("continuation_id is required when uuid is provided"), nil
		}
		ids, err := s.history.Continuations()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return createJSONResult(map[string]interface{}{
			"continuation_ids": ids,
			"total":            len(ids),
		})
	}

	if recordUUID != "" {
		rec, err := s.history.Get(continuationID, recordUUID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return createJSONResult(rec)
	}

	result, err := s.history.List(continuationID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return createJSONResult(result)
}
