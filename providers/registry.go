/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package providers

import (
	"fmt"
	"os"
	"strings"

	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/config"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/global"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/logging"
)

// Info describes a configured provider for diagnostics
type Info struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Description string   `json:"description,omitempty"`
	Enabled     bool     `json:"enabled"`
	Available   bool     `json:"available"` // enabled and API key present
	Models      []string `json:"models"`
}

// Registry resolves model names to providers and owns the provider handles
type Registry struct {
	logger       *logging.Logger
	providers    map[string]Provider // by provider id
	modelOwner   map[string]string   // model name -> provider id
	primaryModel map[string]string   // provider id -> its first configured model
	infos        []Info
	defaultModel string
}

// NewRegistry builds providers from configuration. Providers that are
// disabled or missing their API key are registered as unavailable rather
// than failing startup; the server can still serve diagnostics.
func NewRegistry(cfg *config.Config, logger *logging.Logger) *Registry {
	r := &Registry{
		logger:       logger,
		providers:    make(map[string]Provider),
		modelOwner:   make(map[string]string),
		primaryModel: make(map[string]string),
		defaultModel: cfg.DefaultModel(),
	}

	rl := cfg.RateLimitConfig()
	timeouts := cfg.Timeouts()

	for _, pc := range cfg.Providers() {
		info := Info{
			ID:          pc.ID,
			DisplayName: pc.DisplayName,
			Description: pc.Description,
			Enabled:     pc.Enabled,
			Models:      pc.Models,
		}

		for _, m := range pc.Models {
			r.modelOwner[m] = pc.ID
		}
		if len(pc.Models) > 0 {
			r.primaryModel[pc.ID] = pc.Models[0]
		}

		if !pc.Enabled {
			r.infos = append(r.infos, info)
			continue
		}

		apiKey := os.Getenv(pc.APIKeyEnv)
		if apiKey == "" {
			logger.Warnf("Provider %s is enabled but %s is not set - marking unavailable", pc.ID, pc.APIKeyEnv)
			r.infos = append(r.infos, info)
			continue
		}

		var limiter *RateLimiter
		if rl.MaxRequests > 0 && rl.PeriodSeconds > 0 {
			limiter = NewRateLimiter(rl.MaxRequests, rl.PeriodSeconds)
		}

		switch pc.ID {
		case global.ProviderKimi:
			r.providers[pc.ID] = NewKimiProvider(apiKey, pc.BaseURL,
				timeouts.ProviderTimeout(global.ProviderKimi),
				timeouts.ProviderTimeout(global.ProviderKimiWebSearch),
				limiter, logger)
		case global.ProviderGLM:
			r.providers[pc.ID] = NewGLMProvider(apiKey, pc.BaseURL,
				timeouts.ProviderTimeout(global.ProviderGLM),
				limiter, logger)
		default:
			logger.Warnf("Unknown provider id %s in configuration - skipping", pc.ID)
			r.infos = append(r.infos, info)
			continue
		}

		info.Available = true
		r.infos = append(r.infos, info)
		logger.Infof("Provider %s registered with %d model(s)", pc.ID, len(pc.Models))
	}

	return r
}

// List returns provider information for diagnostics
func (r *Registry) List() []Info {
	return r.infos
}

// DefaultModel returns the configured default model, or the first model of
// the first available provider if none is configured.
func (r *Registry) DefaultModel() string {
	if r.defaultModel != "" {
		return r.defaultModel
	}
	for _, info := range r.infos {
		if info.Available && len(info.Models) > 0 {
			return info.Models[0]
		}
	}
	return ""
}

// ResolveModel maps a requested model name to (model, provider). An empty
// or "auto" name resolves to the default model. Unknown names fall back to
// a vendor-prefix heuristic, and finally to the default provider, to
// preserve forward progress rather than hard-failing.
func (r *Registry) ResolveModel(name string) (string, Provider, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "auto") {
		name = r.DefaultModel()
		if name == "" {
			return "", nil, fmt.Errorf("no model requested and no provider is available")
		}
	}

	if owner, ok := r.modelOwner[name]; ok {
		if p, ok := r.providers[owner]; ok {
			return name, p, nil
		}
		return "", nil, fmt.Errorf("model %s belongs to provider %s which is not available", name, owner)
	}

	// Unknown model: infer the vendor from the name prefix
	var owner string
	switch {
	case strings.HasPrefix(name, "kimi-"), strings.HasPrefix(name, "moonshot-"):
		owner = global.ProviderKimi
	case strings.HasPrefix(name, "glm-"):
		owner = global.ProviderGLM
	}
	if owner != "" {
		if p, ok := r.providers[owner]; ok {
			r.logger.Warnf("Model %s is not declared in configuration, routing to %s by prefix", name, owner)
			return name, p, nil
		}
	}

	return "", nil, fmt.Errorf("unknown model: %s", name)
}

// BestEffortProvider returns any available provider and its primary model.
// Used as the last-resort resolution path when normal resolution failed.
func (r *Registry) BestEffortProvider() (string, Provider) {
	for id, p := range r.providers {
		return r.primaryModel[id], p
	}
	return "", nil
}

// FallbackFor returns a different vendor's provider and its primary model,
// used when the primary provider reports a rate limit. Returns ("", nil)
// when no alternative vendor is available.
func (r *Registry) FallbackFor(p Provider) (string, Provider) {
	if p == nil {
		return r.BestEffortProvider()
	}
	for id, candidate := range r.providers {
		if id != p.Type() {
			return r.primaryModel[id], candidate
		}
	}
	return "", nil
}
