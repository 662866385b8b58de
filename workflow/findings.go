/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package workflow implements the multi-step workflow tool engine: findings
// accumulation across steps, deduplicated expert-analysis calls against the
// LLM providers, and the adaptive per-step watchdog that keeps every call
// safely inside the outer transport timeout.
package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
)

// Issue is one structured finding recorded during a workflow step
type Issue struct {
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// ConsolidatedFindings accumulates evidence across the steps of one workflow
// invocation. Steps mutate it additively; the expert invoker only reads it.
// A step abandoned by the watchdog may still be reading while a retry of the
// same step appends, so mutation and the Hash/Snapshot reads are locked.
type ConsolidatedFindings struct {
	mu              sync.Mutex
	Findings        []string
	RelevantFiles   []string
	FilesChecked    []string
	RelevantContext []string
	IssuesFound     []Issue
	Images          []string
}

// AddStep merges one step's evidence into the consolidated state. Merging is
// idempotent: a retry of a byte-identical step (the outer-layer timeout
// scenario) leaves the state, and therefore the dedup fingerprint, unchanged.
func (f *ConsolidatedFindings) AddStep(req *StepRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if strings.TrimSpace(req.Findings) != "" {
		line := fmt.Sprintf("Step %d: %s", req.StepNumber, req.Findings)
		if !containsString(f.Findings, line) {
			f.Findings = append(f.Findings, line)
		}
	}
	f.RelevantFiles = mergeUnique(f.RelevantFiles, req.RelevantFiles)
	f.FilesChecked = mergeUnique(f.FilesChecked, req.FilesChecked)
	f.RelevantContext = mergeUnique(f.RelevantContext, req.RelevantContext)
	f.IssuesFound = mergeIssues(f.IssuesFound, req.IssuesFound)
	f.Images = mergeUnique(f.Images, req.Images)
}

// Snapshot returns a deep copy the caller can read freely while later steps
// keep mutating the original.
func (f *ConsolidatedFindings) Snapshot() *ConsolidatedFindings {
	f.mu.Lock()
	defer f.mu.Unlock()

	return &ConsolidatedFindings{
		Findings:        append([]string(nil), f.Findings...),
		RelevantFiles:   append([]string(nil), f.RelevantFiles...),
		FilesChecked:    append([]string(nil), f.FilesChecked...),
		RelevantContext: append([]string(nil), f.RelevantContext...),
		IssuesFound:     append([]Issue(nil), f.IssuesFound...),
		Images:          append([]string(nil), f.Images...),
	}
}

// Hash returns a stable hex digest of the accumulated findings content.
// Only the findings text participates: two workflow states with the same
// step findings are the same logical state for deduplication purposes.
func (f *ConsolidatedFindings) Hash() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	sum := sha256.Sum256([]byte(strings.Join(f.Findings, "\n")))
	return hex.EncodeToString(sum[:])
}

// containsString reports whether list holds s
func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// mergeIssues appends the issues dst does not already contain, matching on
// severity and description
func mergeIssues(dst, add []Issue) []Issue {
	for _, issue := range add {
		dup := false
		for _, have := range dst {
			if have == issue {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, issue)
		}
	}
	return dst
}

// mergeUnique appends the elements of add that dst does not already contain,
// preserving first-seen order
func mergeUnique(dst, add []string) []string {
	if len(add) == 0 {
		return dst
	}
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range add {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		dst = append(dst, s)
	}
	return dst
}
