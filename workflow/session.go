/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package workflow

import (
	"sync"

	"github.com/google/uuid"
)

// SessionStore maps continuation ids to their in-progress findings. Each
// ConsolidatedFindings guards its own state; a retried step can share it
// with a step the watchdog abandoned.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*ConsolidatedFindings
}

// NewSessionStore creates an empty session store
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*ConsolidatedFindings),
	}
}

// Resolve returns the findings for a continuation id, creating a fresh
// session (and generating an id) when the client did not supply one.
func (s *SessionStore) Resolve(continuationID string) (string, *ConsolidatedFindings) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if continuationID == "" {
		continuationID = uuid.New().String()
	}
	findings, ok := s.sessions[continuationID]
	if !ok {
		findings = &ConsolidatedFindings{}
		s.sessions[continuationID] = findings
	}
	return continuationID, findings
}

// Forget drops a continuation's findings. Used when a workflow completes.
func (s *SessionStore) Forget(continuationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, continuationID)
}

// Count returns the number of active sessions
func (s *SessionStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
