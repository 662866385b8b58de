/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package schemas

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/logging"
)

func testValidator(t *testing.T) *Validator {
	t.Helper()
	logger, err := logging.New(filepath.Join(t.TempDir(), "test.log"))
	if err != nil {
		t.Fatalf("create logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })
	return New(logger)
}

func TestValidateExpertAnalysisValid(t *testing.T) {
	v := testValidator(t)

	data := []byte(`{"status":"analysis_complete","summary":"looks fine","confidence":"high","extra_field":42}`)
	result, err := v.ValidateExpertAnalysis(data)
	if err != nil {
		t.Fatalf("ValidateExpertAnalysis() error: %v", err)
	}
	if !result.Valid {
		t.Errorf("Valid = false, want true; errors: %v", result.Errors)
	}
}

func TestValidateExpertAnalysisWrongTypes(t *testing.T) {
	v := testValidator(t)

	data := []byte(`{"status":123,"summary":["not","a","string"]}`)
	result, err := v.ValidateExpertAnalysis(data)
	if err != nil {
		t.Fatalf("ValidateExpertAnalysis() error: %v", err)
	}
	if result.Valid {
		t.Error("Valid = true, want false for wrong field types")
	}
	if len(result.Errors) == 0 {
		t.Error("Errors is empty, want formatted messages")
	}
}

func TestValidateExpertAnalysisConcurrent(t *testing.T) {
	// Parallel expert analyses share one validator; the first-use schema
	// compile must be safe under concurrent callers.
	v := testValidator(t)
	data := []byte(`{"status":"analysis_complete","summary":"ok"}`)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := v.ValidateExpertAnalysis(data)
			if err != nil {
				t.Errorf("ValidateExpertAnalysis() error: %v", err)
				return
			}
			if !result.Valid {
				t.Errorf("Valid = false, want true; errors: %v", result.Errors)
			}
		}()
	}
	wg.Wait()
}

func TestValidateJSONCachesSchema(t *testing.T) {
	v := testValidator(t)
	schema := `{"type":"object","properties":{"x":{"type":"number"}}}`

	if _, err := v.ValidateJSON("cached", []byte(`{"x":1}`), schema); err != nil {
		t.Fatalf("first ValidateJSON() error: %v", err)
	}
	// Second call with garbage schema text must still work via the cache
	if _, err := v.ValidateJSON("cached", []byte(`{"x":2}`), "not a schema"); err != nil {
		t.Fatalf("cached ValidateJSON() error: %v", err)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "clean object",
			input: `{"status":"analysis_complete"}`,
			want:  `{"status":"analysis_complete"}`,
		},
		{
			name:  "json code fence",
			input: "Here is my analysis:\n```json\n{\"status\":\"ok\"}\n```\nLet me know.",
			want:  `{"status":"ok"}`,
		},
		{
			name:  "bare code fence",
			input: "```\n{\"a\":1}\n```",
			want:  `{"a":1}`,
		},
		{
			name:  "prose around object",
			input: `The result is {"verdict":"pass"} as requested.`,
			want:  `{"verdict":"pass"}`,
		},
		{
			name:  "array",
			input: `Issues: [{"severity":"high"}]`,
			want:  `[{"severity":"high"}]`,
		},
		{
			name:  "no json at all",
			input: "I could not produce JSON, sorry.",
			want:  "I could not produce JSON, sorry.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.input); got != tt.want {
				t.Errorf("ExtractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatValidationError(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "required field",
			raw:  "(root): status is required",
			want: "Missing required field: status",
		},
		{
			name: "invalid type",
			raw:  "status: Invalid type. Expected: string, given: number",
			want: "Field 'status': expected string, got number",
		},
		{
			name: "root prefix stripped",
			raw:  "(root): something odd",
			want: "something odd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatValidationError(tt.raw); got != tt.want {
				t.Errorf("formatValidationError(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
