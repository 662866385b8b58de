/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package providers

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/config"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/logging"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	t.Setenv("KIMI_API_KEY", "test-key-kimi")
	t.Setenv("GLM_API_KEY", "test-key-glm")

	dir := t.TempDir()
	cfgData := map[string]interface{}{
		"version":       1,
		"base_dir":      dir,
		"default_model": "glm-4.5-flash",
		"providers": []map[string]interface{}{
			{
				"id":           "kimi",
				"display_name": "Kimi",
				"enabled":      true,
				"base_url":     "https://api.moonshot.ai/v1",
				"api_key_env":  "KIMI_API_KEY",
				"models":       []string{"kimi-k2-0711-preview", "kimi-thinking-preview"},
			},
			{
				"id":           "glm",
				"display_name": "GLM",
				"enabled":      true,
				"base_url":     "https://api.z.ai/api/paas/v4",
				"api_key_env":  "GLM_API_KEY",
				"models":       []string{"glm-4.5-flash", "glm-4.5"},
			},
		},
		"logging": map[string]interface{}{"file": filepath.Join(dir, "test.log"), "level": "ERROR"},
	}
	content, err := json.Marshal(cfgData)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := config.New(config.WithConfigPath(path))
	if err := cfg.Load(); err != nil {
		t.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(filepath.Join(dir, "test.log"))
	if err != nil {
		t.Fatalf("create logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })

	return NewRegistry(cfg, logger)
}

func TestResolveModelKnown(t *testing.T) {
	r := testRegistry(t)

	model, p, err := r.ResolveModel("kimi-thinking-preview")
	if err != nil {
		t.Fatalf("ResolveModel() error: %v", err)
	}
	if model != "kimi-thinking-preview" {
		t.Errorf("model = %s, want kimi-thinking-preview", model)
	}
	if p.Type() != "kimi" {
		t.Errorf("provider = %s, want kimi", p.Type())
	}
}

func TestResolveModelDefault(t *testing.T) {
	r := testRegistry(t)

	for _, name := range []string{"", "auto", "AUTO"} {
		model, p, err := r.ResolveModel(name)
		if err != nil {
			t.Fatalf("ResolveModel(%q) error: %v", name, err)
		}
		if model != "glm-4.5-flash" {
			t.Errorf("ResolveModel(%q) model = %s, want glm-4.5-flash", name, model)
		}
		if p.Type() != "glm" {
			t.Errorf("ResolveModel(%q) provider = %s, want glm", name, p.Type())
		}
	}
}

func TestResolveModelPrefixHeuristic(t *testing.T) {
	r := testRegistry(t)

	model, p, err := r.ResolveModel("moonshot-v1-32k")
	if err != nil {
		t.Fatalf("ResolveModel() error: %v", err)
	}
	if model != "moonshot-v1-32k" || p.Type() != "kimi" {
		t.Errorf("got (%s, %s), want (moonshot-v1-32k, kimi)", model, p.Type())
	}
}

func TestResolveModelUnknown(t *testing.T) {
	r := testRegistry(t)

	if _, _, err := r.ResolveModel("gpt-4o"); err == nil {
		t.Fatal("ResolveModel(gpt-4o) = nil error, want unknown model error")
	}
}

func TestFallbackForSwitchesVendor(t *testing.T) {
	r := testRegistry(t)

	_, kimi, err := r.ResolveModel("kimi-k2-0711-preview")
	if err != nil {
		t.Fatalf("resolve kimi: %v", err)
	}

	model, fb := r.FallbackFor(kimi)
	if fb == nil {
		t.Fatal("FallbackFor(kimi) = nil, want glm provider")
	}
	if fb.Type() != "glm" {
		t.Errorf("fallback provider = %s, want glm", fb.Type())
	}
	if model != "glm-4.5-flash" {
		t.Errorf("fallback model = %s, want glm-4.5-flash", model)
	}
}

func TestListReportsAvailability(t *testing.T) {
	r := testRegistry(t)

	infos := r.List()
	if len(infos) != 2 {
		t.Fatalf("List() count = %d, want 2", len(infos))
	}
	for _, info := range infos {
		if !info.Available {
			t.Errorf("provider %s not available, want available with key set", info.ID)
		}
	}
}
