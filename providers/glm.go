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

// GLMProvider implements Provider for Zhipu's GLM models
type GLMProvider struct {
	client  *openai.Client
	limiter *RateLimiter
	logger  *logging.Logger
	timeout time.Duration
}

// NewGLMProvider creates a GLM provider against the given endpoint
func NewGLMProvider(apiKey, baseURL string, timeoutSecs int, limiter *RateLimiter, logger *logging.Logger) *GLMProvider {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL

	return &GLMProvider{
		client:  openai.NewClientWithConfig(cfg),
		limiter: limiter,
		logger:  logger,
		timeout: time.Duration(timeoutSecs) * time.Second,
	}
}

// Type returns the provider identifier
func (p *GLMProvider) Type() string {
	return global.ProviderGLM
}

// GenerateContent performs a single chat completion call against GLM.
// GLM exposes web search and thinking control through request extensions the
// OpenAI-compatible endpoint does not carry; both are logged and skipped.
func (p *GLMProvider) GenerateContent(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if p.limiter != nil {
		if waited := p.limiter.Wait(); waited > 0 {
			p.logger.Debugf("GLM: throttled %v before dispatch", waited)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if req.UseWebsearch {
		p.logger.Debugf("GLM: use_websearch requested but not supported on this endpoint, ignoring")
	}

	ccReq := openai.ChatCompletionRequest{
		Model:       req.ModelName,
		Messages:    buildMessages(req),
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}

	p.logger.Debugf("GLM: dispatching model=%s timeout=%v", req.ModelName, p.timeout)

	resp, err := p.client.CreateChatCompletion(callCtx, ccReq)
	if err != nil {
		return nil, fmt.Errorf("glm chat completion failed: %w", err)
	}

	return responseFrom(resp), nil
}
