/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeTestConfig(t *testing.T, dir string, data map[string]interface{}) string {
	t.Helper()
	content, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("failed to marshal test config: %v", err)
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func validTestConfig(dir string) map[string]interface{} {
	return map[string]interface{}{
		"version":  1,
		"base_dir": dir,
		"providers": []map[string]interface{}{
			{
				"id":           "kimi",
				"display_name": "Kimi",
				"enabled":      true,
				"base_url":     "https://api.moonshot.ai/v1",
				"api_key_env":  "KIMI_API_KEY",
				"models":       []string{"kimi-k2-0711-preview"},
			},
		},
		"logging": map[string]interface{}{"file": filepath.Join(dir, "test.log"), "level": "DEBUG"},
	}
}

func TestLoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, validTestConfig(dir))

	cfg := New(WithConfigPath(path))
	if err := cfg.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.IsFirstRun() {
		t.Error("IsFirstRun() = true, want false for existing config")
	}
	if cfg.LogLevel() != "DEBUG" {
		t.Errorf("LogLevel() = %s, want DEBUG", cfg.LogLevel())
	}
	if len(cfg.Providers()) != 1 {
		t.Errorf("Providers() count = %d, want 1", len(cfg.Providers()))
	}
	if cfg.Timeouts() == nil {
		t.Fatal("Timeouts() = nil")
	}
	if err := cfg.Timeouts().ValidateHierarchy(); err != nil {
		t.Errorf("default timeouts fail hierarchy validation: %v", err)
	}
}

func TestLoadRejectsMissingProviders(t *testing.T) {
	dir := t.TempDir()
	data := validTestConfig(dir)
	data["providers"] = []map[string]interface{}{}
	path := writeTestConfig(t, dir, data)

	cfg := New(WithConfigPath(path))
	if err := cfg.Load(); err == nil {
		t.Fatal("Load() = nil, want error for empty providers")
	}
}

func TestLoadRejectsDuplicateProviderIDs(t *testing.T) {
	dir := t.TempDir()
	data := validTestConfig(dir)
	p := data["providers"].([]map[string]interface{})[0]
	data["providers"] = []map[string]interface{}{p, p}
	path := writeTestConfig(t, dir, data)

	cfg := New(WithConfigPath(path))
	if err := cfg.Load(); err == nil {
		t.Fatal("Load() = nil, want error for duplicate provider ids")
	}
}

func TestLoadRejectsUnknownDefaultModel(t *testing.T) {
	dir := t.TempDir()
	data := validTestConfig(dir)
	data["default_model"] = "gpt-nonexistent"
	path := writeTestConfig(t, dir, data)

	cfg := New(WithConfigPath(path))
	if err := cfg.Load(); err == nil {
		t.Fatal("Load() = nil, want error for default model not declared by any provider")
	}
}

func TestLoadRejectsWrongVersion(t *testing.T) {
	dir := t.TempDir()
	data := validTestConfig(dir)
	data["version"] = 2
	path := writeTestConfig(t, dir, data)

	cfg := New(WithConfigPath(path))
	if err := cfg.Load(); err == nil {
		t.Fatal("Load() = nil, want error for unsupported version")
	}
}

func TestTimeoutEnvOverride(t *testing.T) {
	t.Setenv("WORKFLOW_TOOL_TIMEOUT_SECS", "200")

	tc := NewTimeoutConfig(Timeouts{WorkflowTool: 120})
	if tc.WorkflowToolTimeout != 200 {
		t.Errorf("WorkflowToolTimeout = %d, want env override 200", tc.WorkflowToolTimeout)
	}
}
