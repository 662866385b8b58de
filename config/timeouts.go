/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package config

import (
	"fmt"

	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/global"
)

// Default base timeouts in seconds
const (
	DefaultSimpleToolTimeout     = 60
	DefaultWorkflowToolTimeout   = 120
	DefaultExpertAnalysisTimeout = 90
	DefaultGLMTimeout            = 90
	DefaultKimiTimeout           = 120
	DefaultKimiWebSearchTimeout  = 150
)

// Infrastructure timeout ratios relative to the workflow tool timeout.
// Each outer layer must time out strictly after the layer inside it, so an
// impatient outer layer never cancels and retries a call the inner layer is
// still legitimately working on.
const (
	DaemonRatio = 1.5
	ShimRatio   = 2.0
	ClientRatio = 2.5
)

// TimeoutConfig is the single source of truth for every timeout in the
// system. It is loaded once at startup and read-only afterwards.
type TimeoutConfig struct {
	SimpleToolTimeout     int            // seconds, simple (single-call) tools
	WorkflowToolTimeout   int            // seconds, multi-step workflow tools
	ExpertAnalysisTimeout int            // seconds, a single expert-analysis provider call
	ProviderTimeouts      map[string]int // seconds, per provider identifier
}

// NewTimeoutConfig builds the timeout hierarchy from the config file values,
// applying environment overrides and defaults. Environment wins over file.
func NewTimeoutConfig(t Timeouts) *TimeoutConfig {
	pick := func(envVar string, fileVal, def int) int {
		if fileVal <= 0 {
			fileVal = def
		}
		return global.EnvInt(envVar, fileVal)
	}

	tc := &TimeoutConfig{
		SimpleToolTimeout:     pick(global.EnvSimpleToolTimeout, t.SimpleTool, DefaultSimpleToolTimeout),
		WorkflowToolTimeout:   pick(global.EnvWorkflowToolTimeout, t.WorkflowTool, DefaultWorkflowToolTimeout),
		ExpertAnalysisTimeout: pick(global.EnvExpertAnalysisTimeout, t.ExpertAnalysis, DefaultExpertAnalysisTimeout),
		ProviderTimeouts: map[string]int{
			global.ProviderGLM:           pick(global.EnvGLMTimeout, t.Providers[global.ProviderGLM], DefaultGLMTimeout),
			global.ProviderKimi:          pick(global.EnvKimiTimeout, t.Providers[global.ProviderKimi], DefaultKimiTimeout),
			global.ProviderKimiWebSearch: pick(global.EnvKimiWebSearchTimeout, t.Providers[global.ProviderKimiWebSearch], DefaultKimiWebSearchTimeout),
		},
	}

	return tc
}

// DaemonTimeout returns the daemon-layer timeout in seconds (1.5x workflow).
func (t *TimeoutConfig) DaemonTimeout() int {
	return int(float64(t.WorkflowToolTimeout) * DaemonRatio)
}

// ShimTimeout returns the shim-layer timeout in seconds (2.0x workflow).
func (t *TimeoutConfig) ShimTimeout() int {
	return int(float64(t.WorkflowToolTimeout) * ShimRatio)
}

// ClientTimeout returns the client-layer timeout in seconds (2.5x workflow).
func (t *TimeoutConfig) ClientTimeout() int {
	return int(float64(t.WorkflowToolTimeout) * ClientRatio)
}

// ProviderTimeout returns the timeout for a provider identifier, falling
// back to the workflow tool timeout for unknown providers.
func (t *TimeoutConfig) ProviderTimeout(provider string) int {
	if v, ok := t.ProviderTimeouts[provider]; ok && v > 0 {
		return v
	}
	return t.WorkflowToolTimeout
}

// ValidateHierarchy recomputes all four layers and asserts strict ordering
// tool < daemon < shim < client. It must be called once at process startup;
// a failure is a fatal configuration error, not a warning. The returned
// error names the inequality that failed.
func (t *TimeoutConfig) ValidateHierarchy() error {
	tool := t.WorkflowToolTimeout
	daemon := t.DaemonTimeout()
	shim := t.ShimTimeout()
	client := t.ClientTimeout()

	if tool <= 0 {
		return fmt.Errorf("workflow tool timeout must be positive, got %ds", tool)
	}
	if tool >= daemon {
		return fmt.Errorf("timeout hierarchy violated: tool (%ds) >= daemon (%ds)", tool, daemon)
	}
	if daemon >= shim {
		return fmt.Errorf("timeout hierarchy violated: daemon (%ds) >= shim (%ds)", daemon, shim)
	}
	if shim >= client {
		return fmt.Errorf("timeout hierarchy violated: shim (%ds) >= client (%ds)", shim, client)
	}
	return nil
}

// Summary returns all tool-level, infrastructure, and provider timeouts plus
// the configured ratios for diagnostics. Safe to expose to callers.
func (t *TimeoutConfig) Summary() map[string]interface{} {
	providers := make(map[string]interface{}, len(t.ProviderTimeouts))
	for id, secs := range t.ProviderTimeouts {
		providers[id] = secs
	}

	return map[string]interface{}{
		"tool": map[string]interface{}{
			"simple":          t.SimpleToolTimeout,
			"workflow":        t.WorkflowToolTimeout,
			"expert_analysis": t.ExpertAnalysisTimeout,
		},
		"infrastructure": map[string]interface{}{
			"daemon": t.DaemonTimeout(),
			"shim":   t.ShimTimeout(),
			"client": t.ClientTimeout(),
		},
		"providers": providers,
		"ratios": map[string]interface{}{
			"daemon": DaemonRatio,
			"shim":   ShimRatio,
			"client": ClientRatio,
		},
	}
}
