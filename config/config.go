/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package config loads and validates the server configuration from a JSON
// file, with environment overrides for the timeout hierarchy and provider
// API keys. A default configuration is written on first run.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/global"
)

// Config provides access to application configuration
type Config struct {
	configPath string      // resolved path to config file
	data       *configData // parsed configuration
	firstRun   bool        // true if config was just created
	timeouts   *TimeoutConfig
	historyDir string // resolved history directory
}

// configData holds the parsed configuration (internal)
type configData struct {
	Version      int       `json:"version"`
	BaseDir      string    `json:"base_dir"`
	DefaultModel string    `json:"default_model,omitempty"`
	Providers    []Provider `json:"providers"`
	Timeouts     Timeouts  `json:"timeouts,omitempty"`
	RateLimit    RateLimit `json:"rate_limit,omitempty"`
	HistoryDir   string    `json:"history_dir,omitempty"`
	Logging      Logging   `json:"logging"`
}

// Provider represents an LLM provider configuration
type Provider struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Description string   `json:"description,omitempty"`
	Enabled     bool     `json:"enabled,omitempty"`
	BaseURL     string   `json:"base_url"`
	APIKeyEnv   string   `json:"api_key_env"`
	Models      []string `json:"models"`
}

// Timeouts represents the configurable base timeouts in seconds.
// Zero values fall back to defaults (and environment overrides).
type Timeouts struct {
	SimpleTool     int            `json:"simple_tool,omitempty"`
	WorkflowTool   int            `json:"workflow_tool,omitempty"`
	ExpertAnalysis int            `json:"expert_analysis,omitempty"`
	Providers      map[string]int `json:"providers,omitempty"`
}

// RateLimit represents client-side provider throttling configuration
type RateLimit struct {
	MaxRequests   int `json:"max_requests,omitempty"`
	PeriodSeconds int `json:"period_seconds,omitempty"`
}

// Logging represents logging configuration
type Logging struct {
	File  string `json:"file"`
	Level string `json:"level"`
}

// Option is a functional option for configuring Config
type Option func(*Config)

// New creates a new Config instance with optional configuration
func New(opts ...Option) *Config {
	c := &Config{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithConfigPath sets an explicit config file path
func WithConfigPath(path string) Option {
	return func(c *Config) {
		c.configPath = path
	}
}

// Load loads and validates configuration from file.
// If the base directory or config file doesn't exist, it creates them with defaults.
func (c *Config) Load() error {
	configPath, err := c.resolveConfigPath()
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}
	c.configPath = configPath

	baseDir := expandHomePath(global.DefaultBaseDir)
	if !global.DirExists(baseDir) {
		if err := os.MkdirAll(baseDir, 0755); err != nil {
			return fmt.Errorf("failed to create base directory %s: %w", baseDir, err)
		}
	}

	if !global.FileExists(configPath) {
		c.firstRun = true
		if err := c.setupDefaultConfig(configPath); err != nil {
			return fmt.Errorf("failed to create default config at %s: %w", configPath, err)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// First pass: detect unknown fields using strict parsing
	var cfg configData
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "unknown field") {
			_, _ = fmt.Fprintf(os.Stderr, "Warning: config file %s: %v\n", configPath, err)
			// Re-parse without strict mode to still load the config
			if err := json.Unmarshal(data, &cfg); err != nil {
				return fmt.Errorf("failed to parse config file %s: %w", configPath, err)
			}
		} else {
			return fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}

	c.data = &cfg

	if err := c.resolveBaseDir(); err != nil {
		return err
	}

	if err := c.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	c.timeouts = NewTimeoutConfig(c.data.Timeouts)

	historyDir := c.data.HistoryDir
	if historyDir == "" {
		historyDir = global.DefaultHistoryDir
	}
	c.historyDir = c.resolvePath(historyDir)
	if err := global.EnsureDir(c.historyDir); err != nil {
		return fmt.Errorf("failed to create history directory %s: %w", c.historyDir, err)
	}

	return nil
}

// resolveConfigPath determines the config file path using precedence rules
func (c *Config) resolveConfigPath() (string, error) {
	// 1. Explicit path (from WithConfigPath option)
	if c.configPath != "" {
		return resolveToAbsolute(c.configPath)
	}

	// 2. Environment variable
	if envPath := os.Getenv(global.ConfigEnvVar); envPath != "" {
		return resolveToAbsolute(envPath)
	}

	// 3. Default: base_dir/config.json
	return filepath.Join(expandHomePath(global.DefaultBaseDir), global.DefaultConfigFileName), nil
}

// resolveBaseDir resolves and validates the base_dir from config
func (c *Config) resolveBaseDir() error {
	if c.data.BaseDir == "" {
		c.data.BaseDir = expandHomePath(global.DefaultBaseDir)
		return nil
	}

	resolved := expandHomePath(c.data.BaseDir)
	if !filepath.IsAbs(resolved) {
		_, _ = fmt.Fprintf(os.Stderr, "Warning: base_dir '%s' is not absolute, using default '%s'\n",
			c.data.BaseDir, global.DefaultBaseDir)
		resolved = expandHomePath(global.DefaultBaseDir)
	}

	c.data.BaseDir = resolved
	return nil
}

// resolveToAbsolute converts a path to absolute, expanding ~/ if needed
func resolveToAbsolute(path string) (string, error) {
	expanded := expandHomePath(path)
	if filepath.IsAbs(expanded) {
		return expanded, nil
	}
	return filepath.Abs(expanded)
}

// resolvePath resolves a path relative to base_dir
func (c *Config) resolvePath(path string) string {
	if path == "" {
		return ""
	}
	expanded := expandHomePath(path)
	if filepath.IsAbs(expanded) {
		return expanded
	}
	return filepath.Join(c.data.BaseDir, expanded)
}

// expandHomePath expands ~/ to the user's home directory
func expandHomePath(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.data.Version != 1 {
		if c.data.Version < 1 {
			return fmt.Errorf("config version %d is too old (expected 1)", c.data.Version)
		}
		return fmt.Errorf("config version %d is newer than supported (expected 1)", c.data.Version)
	}

	if len(c.data.Providers) == 0 {
		return fmt.Errorf("providers cannot be empty - please define at least one provider")
	}

	providerIDs := make(map[string]bool)
	for _, p := range c.data.Providers {
		if p.ID == "" {
			return fmt.Errorf("provider id cannot be empty")
		}
		if p.DisplayName == "" {
			return fmt.Errorf("provider display_name cannot be empty for provider %s", p.ID)
		}
		if p.BaseURL == "" {
			return fmt.Errorf("provider base_url cannot be empty for provider %s", p.ID)
		}
		if p.APIKeyEnv == "" {
			return fmt.Errorf("provider api_key_env cannot be empty for provider %s", p.ID)
		}
		if len(p.Models) == 0 {
			return fmt.Errorf("provider models cannot be empty for provider %s", p.ID)
		}
		if providerIDs[p.ID] {
			return fmt.Errorf("duplicate provider id: %s", p.ID)
		}
		providerIDs[p.ID] = true
	}

	if c.data.DefaultModel != "" {
		found := false
		for _, p := range c.data.Providers {
			for _, m := range p.Models {
				if m == c.data.DefaultModel {
					found = true
				}
			}
		}
		if !found {
			return fmt.Errorf("default_model %s is not declared by any provider", c.data.DefaultModel)
		}
	}

	return nil
}

// setupDefaultConfig writes the default configuration on first run
func (c *Config) setupDefaultConfig(configPath string) error {
	def := configData{
		Version:      1,
		DefaultModel: "glm-4.5-flash",
		Providers: []Provider{
			{
				ID:          global.ProviderKimi,
				DisplayName: "Kimi (Moonshot)",
				Description: "Moonshot AI Kimi models via the OpenAI-compatible endpoint",
				Enabled:     true,
				BaseURL:     "https://api.moonshot.ai/v1",
				APIKeyEnv:   global.EnvKimiAPIKey,
				Models: []string{
					"kimi-k2-0711-preview",
					"kimi-k2-turbo-preview",
					"kimi-thinking-preview",
					"moonshot-v1-128k",
				},
			},
			{
				ID:          global.ProviderGLM,
				DisplayName: "GLM (Z.ai)",
				Description: "Zhipu GLM models via the OpenAI-compatible endpoint",
				Enabled:     true,
				BaseURL:     "https://api.z.ai/api/paas/v4",
				APIKeyEnv:   global.EnvGLMAPIKey,
				Models: []string{
					"glm-4.5",
					"glm-4.5-air",
					"glm-4.5-flash",
				},
			},
		},
		Timeouts: Timeouts{
			SimpleTool:     DefaultSimpleToolTimeout,
			WorkflowTool:   DefaultWorkflowToolTimeout,
			ExpertAnalysis: DefaultExpertAnalysisTimeout,
			Providers: map[string]int{
				global.ProviderGLM:           DefaultGLMTimeout,
				global.ProviderKimi:          DefaultKimiTimeout,
				global.ProviderKimiWebSearch: DefaultKimiWebSearchTimeout,
			},
		},
		RateLimit: RateLimit{MaxRequests: 30, PeriodSeconds: 60},
		Logging:   Logging{File: global.DefaultLogFile, Level: global.LogLevelInfo},
	}

	content, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}
	return global.AtomicWrite(configPath, content)
}

// ConfigPath returns the resolved configuration file path
func (c *Config) ConfigPath() string {
	return c.configPath
}

// IsFirstRun returns true if the config file was just created
func (c *Config) IsFirstRun() bool {
	return c.firstRun
}

// BaseDir returns the resolved base directory
func (c *Config) BaseDir() string {
	return c.data.BaseDir
}

// HistoryDir returns the resolved analysis history directory
func (c *Config) HistoryDir() string {
	return c.historyDir
}

// Providers returns the configured providers
func (c *Config) Providers() []Provider {
	return c.data.Providers
}

// HasEnabledProvider returns true if at least one provider is enabled
// and has its API key set in the environment.
func (c *Config) HasEnabledProvider() bool {
	for _, p := range c.data.Providers {
		if p.Enabled && os.Getenv(p.APIKeyEnv) != "" {
			return true
		}
	}
	return false
}

// DefaultModel returns the configured default model
func (c *Config) DefaultModel() string {
	return c.data.DefaultModel
}

// Timeouts returns the loaded timeout hierarchy
func (c *Config) Timeouts() *TimeoutConfig {
	return c.timeouts
}

// RateLimitConfig returns the client-side throttle configuration
func (c *Config) RateLimitConfig() RateLimit {
	return c.data.RateLimit
}

// LogFile returns the configured log file path
func (c *Config) LogFile() string {
	if c.data.Logging.File == "" {
		return global.DefaultLogFile
	}
	return c.data.Logging.File
}

// LogLevel returns the configured log level
func (c *Config) LogLevel() string {
	if c.data.Logging.Level == "" {
		return global.LogLevelInfo
	}
	return c.data.Logging.Level
}
