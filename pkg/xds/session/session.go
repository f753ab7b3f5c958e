// Package session tracks per-stream ADS bookkeeping: what a connected
// proxy has been sent, what it has acked, and what it last rejected.
// Mirrors the subscriber-table idiom in pkg/events (a map guarded by one
// RWMutex), generalized from "channel per subscriber" to "typed
// discovery state per stream".
package session

import (
	"sync"
	"time"

	"github.com/flowplane/flowplane/pkg/types"
	"github.com/flowplane/flowplane/pkg/xds/scope"
)

// TypeState is one (type_url) slice of a session's discovery state.
type TypeState struct {
	LastSentVersion  uint64
	LastAckedVersion uint64
	PendingNonce     string
	LastNack         bool
	LastNackDetail   string
	LastSentNames    []string // not set or read by pkg/xds/server
}

// Session is the per-stream state of one connected proxy, live for the
// duration of one StreamAggregatedResources call.
type Session struct {
	ID         string
	NodeID     string
	Scope      scope.Scope
	ConnectedAt time.Time
	LastSeen   time.Time

	mu    sync.Mutex
	types map[types.TypeURL]*TypeState
}

func newSession(id, nodeID string, sc scope.Scope) *Session {
	now := time.Now()
	return &Session{
		ID:          id,
		NodeID:      nodeID,
		Scope:       sc,
		ConnectedAt: now,
		LastSeen:    now,
		types:       make(map[types.TypeURL]*TypeState),
	}
}

// State returns (creating if absent) the TypeState for typeURL. Callers
// must hold no external lock; State takes the session's own lock.
func (s *Session) State(typeURL types.TypeURL) *TypeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.types[typeURL]
	if !ok {
		st = &TypeState{}
		s.types[typeURL] = st
	}
	return st
}

// Touch records activity for the session's idle-TTL sweep.
func (s *Session) Touch() {
	s.mu.Lock()
	s.LastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.LastSeen)
}

// Table is the set of all live sessions, keyed by stream id.
type Table struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewTable returns an empty session table.
func NewTable() *Table {
	return &Table{sessions: make(map[string]*Session)}
}

// Open registers a new session for a just-accepted stream.
func (t *Table) Open(id, nodeID string, sc scope.Scope) *Session {
	s := newSession(id, nodeID, sc)
	t.mu.Lock()
	t.sessions[id] = s
	t.mu.Unlock()
	return s
}

// Close removes a session when its stream ends.
func (t *Table) Close(id string) {
	t.mu.Lock()
	delete(t.sessions, id)
	t.mu.Unlock()
}

// Get returns the session for id, if still open.
func (t *Table) Get(id string) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[id]
	return s, ok
}

// Len reports the number of live sessions, surfaced as a gauge by
// pkg/metrics.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// SweepIdle closes every session that has not been touched within ttl,
// returning the ids it closed so the caller can log them. A proxy that
// reconnects after being swept simply opens a fresh session — nothing
// about eviction is visible on the wire.
func (t *Table) SweepIdle(ttl time.Duration) []string {
	now := time.Now()
	var evicted []string

	t.mu.Lock()
	for id, s := range t.sessions {
		if s.idleSince(now) > ttl {
			evicted = append(evicted, id)
			delete(t.sessions, id)
		}
	}
	t.mu.Unlock()

	return evicted
}
