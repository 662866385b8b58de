/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package providers implements the LLM provider layer. Kimi (Moonshot) and
// GLM (Z.ai) both expose OpenAI-compatible chat completion endpoints, so
// both providers are built on the go-openai client with custom base URLs.
package providers

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// GenerateRequest represents a single content-generation call
type GenerateRequest struct {
	Prompt       string   `json:"prompt"`
	ModelName    string   `json:"model_name"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	Temperature  float64  `json:"temperature,omitempty"`
	ThinkingMode string   `json:"thinking_mode,omitempty"`
	UseWebsearch bool     `json:"use_websearch,omitempty"`
	Images       []string `json:"images,omitempty"`
	MaxTokens    int      `json:"max_tokens,omitempty"`
}

// Usage reports token consumption for a call
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerateResponse represents the provider's reply
type GenerateResponse struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   Usage  `json:"usage"`
}

// Provider is the interface the workflow core calls into. Implementations
// are responsible for authentication, request conversion, and applying
// their own per-provider timeout.
type Provider interface {
	// Type returns the provider identifier ("kimi", "glm").
	Type() string

	// GenerateContent performs a single blocking chat completion call.
	GenerateContent(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// buildMessages converts a GenerateRequest into OpenAI-format chat messages.
// Images, when present, are attached as parts of the user message so that
// vision-capable models receive them alongside the prompt.
func buildMessages(req GenerateRequest) []openai.ChatCompletionMessage {
	var messages []openai.ChatCompletionMessage

	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}

	if len(req.Images) == 0 {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: req.Prompt,
		})
		return messages
	}

	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
	}
	for _, img := range req.Images {
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: img},
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:         openai.ChatMessageRoleUser,
		MultiContent: parts,
	})
	return messages
}

// responseFrom extracts the content and usage from a chat completion
func responseFrom(resp openai.ChatCompletionResponse) *GenerateResponse {
	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}
	return &GenerateResponse{
		Content: content,
		Model:   resp.Model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
}
