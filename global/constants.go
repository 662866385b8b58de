/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package global

//goland:noinspection GoCommentStart,GoUnusedConst
const (
	// Configuration constants
	ConfigEnvVar          = "EXAI_CONFIG"
	DefaultBaseDir        = "~/.exai"
	DefaultConfigFileName = "config.json"
	DefaultHistoryDir     = "history"
	DefaultLogFile        = "~/.exai/logs/exai.log"

	// Provider identifiers
	ProviderKimi          = "kimi"
	ProviderGLM           = "glm"
	ProviderKimiWebSearch = "kimi_web_search"

	// Expert analysis result statuses
	StatusAnalysisComplete = "analysis_complete"
	StatusAnalysisPartial  = "analysis_partial"
	StatusAnalysisTimeout  = "analysis_timeout"
	StatusAnalysisError    = "analysis_error"
	StatusEmptyResponse    = "empty_response"

	// MCP Tool Names - Workflow tools
	ToolAnalyze    = "analyze"
	ToolCodeReview = "codereview"
	ToolDebug      = "debug"
	ToolSecAudit   = "secaudit"
	ToolThinkDeep  = "thinkdeep"

	// MCP Tool Names - Simple tools
	ToolChat = "chat"

	// MCP Tool Names - Diagnostics
	ToolTimeoutSummary  = "timeout_summary"
	ToolProviderList    = "provider_list"
	ToolAnalysisHistory = "analysis_history"

	// Environment knobs read at call time by the workflow core
	EnvHeartbeatInterval = "EXPERT_HEARTBEAT_INTERVAL_SECS"
	EnvSoftDeadline      = "EXPERT_SOFT_DEADLINE_SECS"
	EnvFallbackEnabled   = "EXPERT_FALLBACK_ENABLED"
	EnvDedupMaxWait      = "EXPERT_DEDUP_MAX_WAIT_SECS"
	EnvMicrostepDraft    = "EXAI_MICROSTEP_DRAFT_MODE"
	EnvWSCallTimeout     = "EXAI_WS_CALL_TIMEOUT"
	EnvStepTimeout       = "WORKFLOW_STEP_TIMEOUT_SECS"
	EnvDefaultUseExpert  = "DEFAULT_USE_ASSISTANT_MODEL"

	// Environment overrides for the timeout hierarchy (read once at load)
	EnvSimpleToolTimeout     = "SIMPLE_TOOL_TIMEOUT_SECS"
	EnvWorkflowToolTimeout   = "WORKFLOW_TOOL_TIMEOUT_SECS"
	EnvExpertAnalysisTimeout = "EXPERT_ANALYSIS_TIMEOUT_SECS"
	EnvGLMTimeout            = "GLM_TIMEOUT_SECS"
	EnvKimiTimeout           = "KIMI_TIMEOUT_SECS"
	EnvKimiWebSearchTimeout  = "KIMI_WEB_SEARCH_TIMEOUT_SECS"

	// Provider API key environment variables
	EnvKimiAPIKey = "KIMI_API_KEY"
	EnvGLMAPIKey  = "GLM_API_KEY"

	// Log levels
	LogLevelDebug = "DEBUG"
	LogLevelInfo  = "INFO"
	LogLevelWarn  = "WARN"
	LogLevelError = "ERROR"
	LogLevelFatal = "FATAL"
)
