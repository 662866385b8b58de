/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package server wires the MCP server: the workflow tool catalog, the chat
// tool, and the diagnostic tools, all backed by the provider registry and
// the expert-analysis engine.
package server

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/config"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/global"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/logging"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/providers"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/schemas"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/store"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/tools"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/workflow"
)

// Server wraps the MCP server with our services
type Server struct {
	config    *config.Config
	logger    *logging.Logger
	registry  *providers.Registry
	timeouts  *config.TimeoutConfig
	history   *store.Service
	sessions  *workflow.SessionStore
	invoker   *workflow.Invoker
	workflows map[string]*workflow.Tool
	mcpServer *server.MCPServer
}

// New creates a new server instance
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	timeouts := cfg.Timeouts()
	registry := providers.NewRegistry(cfg, logger)
	validator := schemas.New(logger)
	history := store.NewService(cfg.HistoryDir(), logger)
	sessions := workflow.NewSessionStore()
	cache := workflow.NewExpertCallCache(logger)
	invoker := workflow.NewInvoker(registry, cache, timeouts, validator, history, logger)

	workflows := make(map[string]*workflow.Tool)
	for _, spec := range tools.Catalog() {
		workflows[spec.Name] = workflow.NewTool(spec, invoker, sessions, timeouts, logger)
	}

	mcpServer := server.NewMCPServer(
		global.ProgramName,
		global.Version,
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)

	srv := &Server{
		config:    cfg,
		logger:    logger,
		registry:  registry,
		timeouts:  timeouts,
		history:   history,
		sessions:  sessions,
		invoker:   invoker,
		workflows: workflows,
		mcpServer: mcpServer,
	}

	if err := srv.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return srv, nil
}

// readOnlyTool creates a tool with read-only annotations
// ReadOnly: true, Destructive: false, OpenWorld: false
func (s *Server) readOnlyTool(name string, opts ...mcp.ToolOption) mcp.Tool {
	opts = append(opts, mcp.WithToolAnnotation(mcp.ToolAnnotation{
		ReadOnlyHint:    mcp.ToBoolPtr(true),
		DestructiveHint: mcp.ToBoolPtr(false),
		OpenWorldHint:   mcp.ToBoolPtr(false),
	}))
	return mcp.NewTool(name, opts...)
}

// openWorldTool creates a tool that reaches external AI providers
// ReadOnly: false, Destructive: false, OpenWorld: true
func (s *Server) openWorldTool(name string, opts ...mcp.ToolOption) mcp.Tool {
	opts = append(opts, mcp.WithToolAnnotation(mcp.ToolAnnotation{
		ReadOnlyHint:    mcp.ToBoolPtr(false),
		DestructiveHint: mcp.ToBoolPtr(false),
		OpenWorldHint:   mcp.ToBoolPtr(true),
	}))
	return mcp.NewTool(name, opts...)
}

// workflowToolOptions builds the step parameters shared by every workflow
// tool in the catalog
func workflowToolOptions(description string) []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithDescription(description),
		mcp.WithString("step",
			mcp.Description("What this step investigates or concludes"),
			mcp.Required(),
		),
		mcp.WithNumber("step_number",
			mcp.Description("Current step number, starting at 1"),
			mcp.Required(),
		),
		mcp.WithNumber("total_steps",
			mcp.Description("Estimated total number of steps"),
		),
		mcp.WithBoolean("next_step_required",
			mcp.Description("True if another step follows; false marks the final step"),
			mcp.Required(),
		),
		mcp.WithString("findings",
			mcp.Description("Findings recorded by this step"),
			mcp.Required(),
		),
		mcp.WithArray("relevant_files",
			mcp.Description("Files directly relevant to the findings"),
			mcp.WithStringItems(),
		),
		mcp.WithArray("files_checked",
			mcp.Description("All files examined during this step"),
			mcp.WithStringItems(),
		),
		mcp.WithArray("relevant_context",
			mcp.Description("Functions, classes, or identifiers relevant to the findings"),
			mcp.WithStringItems(),
		),
		mcp.WithArray("images",
			mcp.Description("Image references for vision-capable validation"),
			mcp.WithStringItems(),
		),
		mcp.WithString("continuation_id",
			mcp.Description("Continuation id from a previous step (omit on the first step)"),
		),
		mcp.WithString("request_id",
			mcp.Description("Client request id, used to deduplicate expert-analysis calls"),
		),
		mcp.WithString("model",
			mcp.Description("Model for expert validation (default: configured default model, 'auto' accepted)"),
		),
		mcp.WithNumber("temperature",
			mcp.Description("Sampling temperature for expert validation"),
		),
		mcp.WithString("thinking_mode",
			mcp.Description("Thinking depth hint passed to the provider (e.g. low, medium, high)"),
		),
		mcp.WithBoolean("use_websearch",
			mcp.Description("Allow the expert model to use provider-side web search"),
		),
		mcp.WithBoolean("use_assistant_model",
			mcp.Description("Run expert validation on the final step (default: DEFAULT_USE_ASSISTANT_MODEL)"),
		),
		mcp.WithBoolean("embed_files",
			mcp.Description("Embed relevant file content into the expert prompt"),
		),
	}
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	// Workflow tools share one schema and one execution engine
	for _, spec := range tools.Catalog() {
		tool := s.workflows[spec.Name]
		s.mcpServer.AddTool(
			s.openWorldTool(spec.Name, workflowToolOptions(spec.Description)...),
			s.workflowHandler(tool),
		)
	}

	// Simple chat tool
	s.mcpServer.AddTool(
		s.openWorldTool(global.ToolChat,
			mcp.WithDescription("Send a prompt to a configured model and return its reply."),
			mcp.WithString("prompt",
				mcp.Description("The prompt to send"),
				mcp.Required(),
			),
			mcp.WithString("model",
				mcp.Description("Model name (default: configured default model, 'auto' accepted)"),
			),
			mcp.WithNumber("temperature",
				mcp.Description("Sampling temperature"),
			),
			mcp.WithBoolean("use_websearch",
				mcp.Description("Allow provider-side web search where supported"),
			),
		), s.handleChat)

	// Diagnostic tools
	s.mcpServer.AddTool(
		s.readOnlyTool(global.ToolTimeoutSummary,
			mcp.WithDescription("Show every configured timeout: tool-level, infrastructure layers, providers, and the ratios between them."),
		), s.handleTimeoutSummary)

	s.mcpServer.AddTool(
		s.readOnlyTool(global.ToolProviderList,
			mcp.WithDescription("List configured providers with their availability and models."),
		), s.handleProviderList)

	s.mcpServer.AddTool(
		s.readOnlyTool(global.ToolAnalysisHistory,
			mcp.WithDescription("Retrieve recorded expert analyses for a continuation id, or list continuation ids with history."),
			mcp.WithString("continuation_id",
				mcp.Description("Continuation id to fetch history for (omit to list all ids)"),
			),
			mcp.WithString("uuid",
				mcp.Description("Specific analysis UUID to fetch (requires continuation_id)"),
			),
		), s.handleAnalysisHistory)

	return nil
}

// Run starts the MCP server with graceful shutdown
func (s *Server) Run() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	errChan := make(chan error, 1)
	go func() {
		// ServeStdio returns when stdin is closed (EOF) or on error
		errChan <- server.ServeStdio(s.mcpServer)
	}()

	s.logger.Infof("MCP server started successfully")

	select {
	case <-sigChan:
		s.logger.Info("Shutdown signal received")
		if err := s.logger.Sync(); err != nil {
			s.logger.Warnf("Failed to flush logs on shutdown: %v", err)
		}
		s.logger.Info("Server stopped")
		return nil

	case err := <-errChan:
		if err != nil {
			s.logger.Errorf("Server error: %v", err)
			return fmt.Errorf("server error: %w", err)
		}
		// nil error means stdin was closed (EOF) - normal exit
		s.logger.Info("Connection closed, server exiting")
		return nil
	}
}
