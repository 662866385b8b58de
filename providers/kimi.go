/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package providers

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/global"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/logging"
)

// kimiWebSearchTool is Moonshot's builtin web search function. Declaring it
// in the tools list enables server-side search without any tool-call round
// trip on our side.
var kimiWebSearchTool = openai.Tool{
	Type: openai.ToolType("builtin_function"),
	Function: &openai.FunctionDefinition{
		Name: "$web_search",
	},
}

// KimiProvider implements Provider for Moonshot's Kimi models
type KimiProvider struct {
	client           *openai.Client
	limiter          *RateLimiter
	logger           *logging.Logger
	timeout          time.Duration // plain calls
	websearchTimeout time.Duration // calls with builtin web search enabled
}

// NewKimiProvider creates a Kimi provider against the given endpoint
func NewKimiProvider(apiKey, baseURL string, timeoutSecs, websearchTimeoutSecs int, limiter *RateLimiter, logger *logging.Logger) *KimiProvider {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL

	return &KimiProvider{
		client:           openai.NewClientWithConfig(cfg),
		limiter:          limiter,
		logger:           logger,
		timeout:          time.Duration(timeoutSecs) * time.Second,
		websearchTimeout: time.Duration(websearchTimeoutSecs) * time.Second,
	}
}

// Type returns the provider identifier
func (p *KimiProvider) Type() string {
	return global.ProviderKimi
}

// GenerateContent performs a single chat completion call against Kimi
func (p *KimiProvider) GenerateContent(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if p.limiter != nil {
		if waited := p.limiter.Wait(); waited > 0 {
			p.logger.Debugf("Kimi: throttled %v before dispatch", waited)
		}
	}

	timeout := p.timeout
	if req.UseWebsearch {
		timeout = p.websearchTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ccReq := openai.ChatCompletionRequest{
		Model:       req.ModelName,
		Messages:    buildMessages(req),
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}
	if req.UseWebsearch {
		ccReq.Tools = []openai.Tool{kimiWebSearchTool}
	}

	p.logger.Debugf("Kimi: dispatching model=%s websearch=%v timeout=%v", req.ModelName, req.UseWebsearch, timeout)

	resp, err := p.client.CreateChatCompletion(callCtx, ccReq)
	if err != nil {
		return nil, fmt.Errorf("kimi chat completion failed: %w", err)
	}

	return responseFrom(resp), nil
}
