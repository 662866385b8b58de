/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tenebris-tech/x2md/convert"

	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/global"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/logging"
)

// maxEmbeddedFileBytes caps how much of any single file is embedded into
// the expert prompt
const maxEmbeddedFileBytes = 64 * 1024

// convertibleExt lists document formats converted to markdown before
// embedding. Conversion writes a sibling .md file which is then read in
// place of the original.
var convertibleExt = map[string]bool{
	".docx": true,
	".pptx": true,
	".xlsx": true,
	".pdf":  true,
	".html": true,
	".htm":  true,
}

// BuildExpertPrompt assembles the analysis prompt from the accumulated
// findings. File content is embedded only when the step opted in.
func BuildExpertPrompt(toolName string, findings *ConsolidatedFindings, req *StepRequest, logger *logging.Logger) string {
	var b strings.Builder

	b.WriteString("=== INVESTIGATION FINDINGS ===\n")
	if len(findings.Findings) == 0 {
		b.WriteString("(no findings recorded)\n")
	}
	for _, f := range findings.Findings {
		b.WriteString(f)
		b.WriteString("\n")
	}

	if len(findings.IssuesFound) > 0 {
		b.WriteString("\n=== ISSUES FOUND ===\n")
		for _, issue := range findings.IssuesFound {
			b.WriteString(fmt.Sprintf("[%s] %s\n", issue.Severity, issue.Description))
		}
	}

	if len(findings.RelevantContext) > 0 {
		b.WriteString("\n=== RELEVANT CONTEXT ===\n")
		for _, c := range findings.RelevantContext {
			b.WriteString(c)
			b.WriteString("\n")
		}
	}

	if len(findings.RelevantFiles) > 0 {
		b.WriteString("\n=== RELEVANT FILES ===\n")
		for _, path := range findings.RelevantFiles {
			b.WriteString(path)
			b.WriteString("\n")
		}
	}

	if req.EmbedFiles && len(findings.RelevantFiles) > 0 {
		b.WriteString("\n=== FILE CONTENT ===\n")
		for _, path := range findings.RelevantFiles {
			content, ok := readFileForPrompt(path, logger)
			if !ok {
				continue
			}
			b.WriteString(fmt.Sprintf("\n--- %s ---\n", path))
			b.WriteString(content)
			b.WriteString("\n")
		}
	}

	b.WriteString(fmt.Sprintf("\n=== TASK ===\n"+
		"You are performing expert validation of the %s investigation above. "+
		"Assess the findings, identify anything missed or misdiagnosed, and respond "+
		"with a single JSON object containing at least a \"status\" field, a \"summary\" "+
		"field, and optional \"issues_found\" and \"recommendations\" arrays.\n", toolName))

	return b.String()
}

// readFileForPrompt loads a file for embedding, converting document formats
// to markdown first. Returns ok=false for unreadable or binary content.
func readFileForPrompt(path string, logger *logging.Logger) (string, bool) {
	if convertibleExt[strings.ToLower(filepath.Ext(path))] {
		converter := convert.New(
			convert.WithRecursion(false),
			convert.WithSkipExisting(true),
		)
		if result, err := converter.Convert(path); err != nil {
			logger.Warnf("Prompt: conversion of %s failed: %v", path, err)
		} else if result.Failed > 0 {
			logger.Warnf("Prompt: conversion of %s reported %d failure(s)", path, result.Failed)
		}
		twin := strings.TrimSuffix(path, filepath.Ext(path)) + ".md"
		if global.FileExists(twin) {
			path = twin
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warnf("Prompt: cannot read %s: %v", path, err)
		return "", false
	}
	if !global.IsValidUTF8(data) {
		logger.Warnf("Prompt: skipping %s - not valid UTF-8 text", path)
		return "", false
	}
	if len(data) > maxEmbeddedFileBytes {
		data = append(data[:maxEmbeddedFileBytes], []byte("\n[truncated]")...)
	}
	return string(data), true
}
