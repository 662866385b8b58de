/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package config

import (
	"strings"
	"testing"

	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/global"
)

func TestNewTimeoutConfigDefaults(t *testing.T) {
	tc := NewTimeoutConfig(Timeouts{})

	if tc.SimpleToolTimeout != DefaultSimpleToolTimeout {
		t.Errorf("SimpleToolTimeout = %d, want %d", tc.SimpleToolTimeout, DefaultSimpleToolTimeout)
	}
	if tc.WorkflowToolTimeout != DefaultWorkflowToolTimeout {
		t.Errorf("WorkflowToolTimeout = %d, want %d", tc.WorkflowToolTimeout, DefaultWorkflowToolTimeout)
	}
	if tc.ExpertAnalysisTimeout != DefaultExpertAnalysisTimeout {
		t.Errorf("ExpertAnalysisTimeout = %d, want %d", tc.ExpertAnalysisTimeout, DefaultExpertAnalysisTimeout)
	}
	if got := tc.ProviderTimeout(global.ProviderKimiWebSearch); got != DefaultKimiWebSearchTimeout {
		t.Errorf("ProviderTimeout(kimi_web_search) = %d, want %d", got, DefaultKimiWebSearchTimeout)
	}
}

func TestDerivedTimeouts(t *testing.T) {
	tc := NewTimeoutConfig(Timeouts{WorkflowTool: 120})

	if got := tc.DaemonTimeout(); got != 180 {
		t.Errorf("DaemonTimeout() = %d, want 180", got)
	}
	if got := tc.ShimTimeout(); got != 240 {
		t.Errorf("ShimTimeout() = %d, want 240", got)
	}
	if got := tc.ClientTimeout(); got != 300 {
		t.Errorf("ClientTimeout() = %d, want 300", got)
	}
}

func TestValidateHierarchy(t *testing.T) {
	tests := []struct {
		name     string
		workflow int
		wantErr  bool
		errPart  string
	}{
		{name: "default", workflow: 120, wantErr: false},
		{name: "small", workflow: 10, wantErr: false},
		{name: "large", workflow: 3600, wantErr: false},
		{name: "zero", workflow: 0, wantErr: true, errPart: "positive"},
		{name: "negative", workflow: -5, wantErr: true, errPart: "positive"},
		// 1s: daemon = int(1.5) = 1, so tool >= daemon
		{name: "one second collapses hierarchy", workflow: 1, wantErr: true, errPart: "tool"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := &TimeoutConfig{
				SimpleToolTimeout:     60,
				WorkflowToolTimeout:   tt.workflow,
				ExpertAnalysisTimeout: 90,
				ProviderTimeouts:      map[string]int{},
			}
			err := tc.ValidateHierarchy()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ValidateHierarchy() = nil, want error")
				}
				if tt.errPart != "" && !strings.Contains(err.Error(), tt.errPart) {
					t.Errorf("error %q does not mention %q", err.Error(), tt.errPart)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateHierarchy() = %v, want nil", err)
			}
		})
	}
}

func TestProviderTimeoutFallback(t *testing.T) {
	tc := NewTimeoutConfig(Timeouts{WorkflowTool: 200})

	if got := tc.ProviderTimeout("unknown"); got != 200 {
		t.Errorf("ProviderTimeout(unknown) = %d, want workflow timeout 200", got)
	}
}

func TestSummary(t *testing.T) {
	tc := NewTimeoutConfig(Timeouts{WorkflowTool: 120})
	summary := tc.Summary()

	infra, ok := summary["infrastructure"].(map[string]interface{})
	if !ok {
		t.Fatalf("summary missing infrastructure section")
	}
	if infra["daemon"] != 180 || infra["shim"] != 240 || infra["client"] != 300 {
		t.Errorf("infrastructure = %v, want daemon=180 shim=240 client=300", infra)
	}

	ratios, ok := summary["ratios"].(map[string]interface{})
	if !ok {
		t.Fatalf("summary missing ratios section")
	}
	if ratios["daemon"] != 1.5 {
		t.Errorf("daemon ratio = %v, want 1.5", ratios["daemon"])
	}
}
