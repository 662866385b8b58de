/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

// Package store persists completed expert analyses to disk, one JSON file
// per continuation id, so a client can retrieve the history of a workflow
// after the fact. Files are guarded with file-level locks because multiple
// server processes may share the same base directory.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/global"
	"github.com/Zazzles2908/EX-AI-MCP-Server-sub002/logging"
)

// idRegex validates continuation ids used as file names
var idRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// Service provides persistence for expert-analysis results
type Service struct {
	baseDir string
	logger  *logging.Logger
}

// Record represents one persisted expert analysis
type Record struct {
	UUID           string                 `json:"uuid"`
	Tool           string                 `json:"tool"`
	RequestID      string                 `json:"request_id,omitempty"`
	ContinuationID string                 `json:"continuation_id"`
	Status         string                 `json:"status"`
	Model          string                 `json:"model,omitempty"`
	Provider       string                 `json:"provider,omitempty"`
	ElapsedSecs    float64                `json:"elapsed_secs,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	Result         map[string]interface{} `json:"result"`
}

// historyFile is the on-disk layout for one continuation id
type historyFile struct {
	ContinuationID string   `json:"continuation_id"`
	Records        []Record `json:"records"`
}

// ListResult represents the response for history list operations
type ListResult struct {
	ContinuationID string   `json:"continuation_id"`
	Records        []Record `json:"records"`
	Total          int      `json:"total"`
}

// NewService creates a new history store rooted at baseDir
func NewService(baseDir string, logger *logging.Logger) *Service {
	return &Service{
		baseDir: baseDir,
		logger:  logger,
	}
}

// validateID validates a continuation id before it is used in a file path
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("continuation id cannot be empty")
	}
	if len(id) > 128 {
		return fmt.Errorf("continuation id too long")
	}
	if !idRegex.MatchString(id) {
		return fmt.Errorf("invalid continuation id: %s", id)
	}
	return nil
}

// filePath returns the history file path for a continuation id
func (s *Service) filePath(continuationID string) (string, error) {
	if err := validateID(continuationID); err != nil {
		return "", err
	}
	return global.ValidatePathWithinDir(s.baseDir, continuationID+".json")
}

// withLock executes a function while holding the file-level lock for a
// continuation id
func (s *Service) withLock(continuationID string, fn func() error) error {
	path, err := s.filePath(continuationID)
	if err != nil {
		return err
	}
	lockPath := path + ".lock"

	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	lock := flock.New(lockPath)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	return fn()
}

// load reads the history file for a continuation id; missing files yield an
// empty history
func (s *Service) load(continuationID string) (*historyFile, error) {
	path, err := s.filePath(continuationID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &historyFile{ContinuationID: continuationID}, nil
		}
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	var hf historyFile
	if err := json.Unmarshal(data, &hf); err != nil {
		return nil, fmt.Errorf("failed to parse history: %w", err)
	}
	if hf.ContinuationID == "" {
		hf.ContinuationID = continuationID
	}
	return &hf, nil
}

// save writes the history file atomically
func (s *Service) save(hf *historyFile) error {
	path, err := s.filePath(hf.ContinuationID)
	if err != nil {
		return err
	}

	content, err := json.MarshalIndent(hf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	return global.AtomicWrite(path, content)
}

// Append records a completed expert analysis. A missing record UUID is
// filled in; CreatedAt defaults to now.
func (s *Service) Append(rec Record) (string, error) {
	if rec.ContinuationID == "" {
		return "", fmt.Errorf("continuation_id is required")
	}
	if rec.Tool == "" {
		return "", fmt.Errorf("tool is required")
	}
	if rec.UUID == "" {
		rec.UUID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	err := s.withLock(rec.ContinuationID, func() error {
		hf, err := s.load(rec.ContinuationID)
		if err != nil {
			return err
		}
		hf.Records = append(hf.Records, rec)
		return s.save(hf)
	})
	if err != nil {
		return "", err
	}

	s.logger.Debugf("History: recorded %s analysis %s for continuation %s", rec.Tool, rec.UUID, rec.ContinuationID)
	return rec.UUID, nil
}

// List returns all recorded analyses for a continuation id, oldest first
func (s *Service) List(continuationID string) (*ListResult, error) {
	var hf *historyFile
	err := s.withLock(continuationID, func() error {
		var loadErr error
		hf, loadErr = s.load(continuationID)
		return loadErr
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(hf.Records, func(i, j int) bool {
		return hf.Records[i].CreatedAt.Before(hf.Records[j].CreatedAt)
	})

	return &ListResult{
		ContinuationID: continuationID,
		Records:        hf.Records,
		Total:          len(hf.Records),
	}, nil
}

// Get returns a single recorded analysis by its UUID
func (s *Service) Get(continuationID, recordUUID string) (*Record, error) {
	result, err := s.List(continuationID)
	if err != nil {
		return nil, err
	}
	for i := range result.Records {
		if result.Records[i].UUID == recordUUID {
			return &result.Records[i], nil
		}
	}
	return nil, fmt.Errorf("analysis not found: %s", recordUUID)
}

// Continuations lists the continuation ids with recorded history
func (s *Service) Continuations() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}
