/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package schemas provides JSON extraction and schema validation for
// expert-analysis responses. Providers are asked to answer in JSON but
// frequently wrap it in markdown fences or prose; extraction recovers the
// JSON and validation annotates (never rejects) non-conforming payloads.
package schemas

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/logging"
)

// Validator validates JSON data against named schemas with compiled-schema
// caching. Safe for concurrent use; parallel expert analyses share one
// instance.
type Validator struct {
	logger      *logging.Logger
	mu          sync.Mutex
	schemaCache map[string]*gojsonschema.Schema
}

// ValidationResult represents the result of a validation
type ValidationResult struct {
	Valid     bool     `json:"valid"`
	Errors    []string `json:"errors,omitempty"`     // User-friendly error messages
	RawErrors []string `json:"raw_errors,omitempty"` // Original error messages from validator
}

// New creates a new Validator
func New(logger *logging.Logger) *Validator {
	return &Validator{
		logger:      logger,
		schemaCache: make(map[string]*gojsonschema.Schema),
	}
}

// ValidateJSON validates JSON data against a schema string. The compiled
// schema is cached under name for subsequent calls.
func (v *Validator) ValidateJSON(name string, data []byte, schemaJSON string) (*ValidationResult, error) {
	schema, err := v.compiledSchema(name, schemaJSON)
	if err != nil {
		return nil, err
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	validationResult := &ValidationResult{
		Valid: result.Valid(),
	}

	if !result.Valid() {
		for _, desc := range result.Errors() {
			rawError := desc.String()
			validationResult.RawErrors = append(validationResult.RawErrors, rawError)
			validationResult.Errors = append(validationResult.Errors, formatValidationError(rawError))
		}
	}

	return validationResult, nil
}

// compiledSchema returns the cached compiled schema for name, compiling and
// caching it on first use
func (v *Validator) compiledSchema(name, schemaJSON string) (*gojsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if schema, ok := v.schemaCache[name]; ok {
		return schema, nil
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema %s: %w", name, err)
	}
	v.schemaCache[name] = schema
	return schema, nil
}

// ValidateExpertAnalysis validates a parsed expert-analysis response against
// the default expert schema.
func (v *Validator) ValidateExpertAnalysis(data []byte) (*ValidationResult, error) {
	return v.ValidateJSON("expert_analysis", data, DefaultExpertSchema())
}

// DefaultExpertSchema returns the permissive schema expert-analysis
// responses are checked against. Unknown fields are allowed; the schema
// only pins down the types of the fields the workflow layer reads back.
func DefaultExpertSchema() string {
	return `{
  "type": "object",
  "properties": {
    "status": {"type": "string"},
    "summary": {"type": "string"},
    "raw_analysis": {"type": "string"},
    "findings": {"type": "array", "items": {"type": ["string", "object"]}},
    "issues_found": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "severity": {"type": "string"},
          "description": {"type": "string"}
        }
      }
    },
    "recommendations": {"type": "array"},
    "confidence": {"type": ["string", "number"]}
  },
  "additionalProperties": true
}`
}

// formatValidationError converts technical validation errors to user-friendly messages
func formatValidationError(rawError string) string {
	// Handle "is required" errors
	if strings.Contains(rawError, "is required") {
		parts := strings.SplitN(rawError, ": ", 2)
		if len(parts) == 2 {
			fieldName := strings.TrimSuffix(parts[1], " is required")
			if strings.HasPrefix(parts[0], "(root).") {
				context := strings.TrimPrefix(parts[0], "(root).")
				return fmt.Sprintf("Missing required field: %s (in %s)", fieldName, context)
			}
			return fmt.Sprintf("Missing required field: %s", fieldName)
		}
	}

	// Handle "Invalid type" errors
	if strings.Contains(rawError, "Invalid type") {
		parts := strings.SplitN(rawError, ": Invalid type. ", 2)
		if len(parts) == 2 {
			field := parts[0]
			if field == "(root)" {
				field = "root object"
			}
			typeInfo := strings.ReplaceAll(parts[1], "Expected: ", "expected ")
			typeInfo = strings.ReplaceAll(typeInfo, ", given: ", ", got ")
			return fmt.Sprintf("Field '%s': %s", field, typeInfo)
		}
	}

	// Default: clean up (root) prefix at minimum
	if strings.HasPrefix(rawError, "(root): ") {
		return strings.TrimPrefix(rawError, "(root): ")
	}
	if strings.HasPrefix(rawError, "(root).") {
		return strings.TrimPrefix(rawError, "(root).")
	}

	return rawError
}

// ExtractJSON extracts JSON from a provider response that may be wrapped:
// 1. Markdown code fences: ```json\n{...}\n```
// 2. Prose before/after the JSON object or array
//
// It returns the innermost valid JSON, or the original string if none found.
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)

	if extracted := extractFromCodeFence(response); extracted != "" {
		return extracted
	}

	firstBrace := strings.Index(response, "{")
	firstBracket := strings.Index(response, "[")

	if firstBrace != -1 && (firstBracket == -1 || firstBrace < firstBracket) {
		if extracted := extractJSONObject(response); extracted != "" {
			return extracted
		}
		if extracted := extractJSONArray(response); extracted != "" {
			return extracted
		}
	} else if firstBracket != -1 {
		if extracted := extractJSONArray(response); extracted != "" {
			return extracted
		}
		if extracted := extractJSONObject(response); extracted != "" {
			return extracted
		}
	}

	return response
}

// extractFromCodeFence extracts JSON from markdown code fences like ```json\n{...}\n```
func extractFromCodeFence(response string) string {
	patterns := []string{"```json\n", "```json\r\n", "```\n{", "```\r\n{"}

	for _, pattern := range patterns {
		startIdx := strings.Index(response, pattern)
		if startIdx == -1 {
			continue
		}

		contentStart := startIdx + len(pattern)
		if strings.HasSuffix(pattern, "{") {
			contentStart-- // Include the opening brace
		}

		remaining := response[contentStart:]
		endIdx := strings.Index(remaining, "```")
		if endIdx == -1 {
			continue
		}

		content := strings.TrimSpace(remaining[:endIdx])

		var js json.RawMessage
		if json.Unmarshal([]byte(content), &js) == nil {
			return content
		}
	}

	return ""
}

// extractJSONObject finds the first valid JSON object in the response
func extractJSONObject(response string) string {
	firstBrace := strings.Index(response, "{")
	if firstBrace == -1 {
		return ""
	}

	lastBrace := strings.LastIndex(response, "}")
	if lastBrace == -1 || lastBrace <= firstBrace {
		return ""
	}

	// Fast path: first { to last } covers clean JSON with optional prose around it
	candidate := response[firstBrace : lastBrace+1]
	var js json.RawMessage
	if json.Unmarshal([]byte(candidate), &js) == nil {
		return candidate
	}

	// Fallback: scan for the first closing brace that yields valid JSON
	for i := firstBrace; i < len(response); i++ {
		if response[i] == '}' {
			candidate := response[firstBrace : i+1]
			if json.Unmarshal([]byte(candidate), &js) == nil {
				return candidate
			}
		}
	}

	return ""
}

// extractJSONArray finds the first valid JSON array in the response
func extractJSONArray(response string) string {
	firstBracket := strings.Index(response, "[")
	if firstBracket == -1 {
		return ""
	}

	lastBracket := strings.LastIndex(response, "]")
	if lastBracket == -1 || lastBracket <= firstBracket {
		return ""
	}

	candidate := response[firstBracket : lastBracket+1]
	var js json.RawMessage
	if json.Unmarshal([]byte(candidate), &js) == nil {
		return candidate
	}

	for i := firstBracket; i < len(response); i++ {
		if response[i] == ']' {
			candidate := response[firstBracket : i+1]
			if json.Unmarshal([]byte(candidate), &js) == nil {
				return candidate
			}
		}
	}

	return ""
}
