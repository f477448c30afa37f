// Package session keeps per-session chat history in memory.
package session

import (
	"sync"
	"time"

	"github.com/tbocquet/course-rag-assistant/internal/core/domain"
)

type entry struct {
	turns    []domain.Turn
	lastSeen time.Time
}

type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	maxTurns int
	now      func() time.Time
}

func NewStore(maxTurns int) *Store {
	if maxTurns <= 0 {
		maxTurns = domain.MaxHistoryTurns
	}
	return &Store{
		sessions: make(map[string]*entry),
		maxTurns: maxTurns,
		now:      time.Now,
	}
}

// History returns a copy; callers may slice and append freely.
func (s *Store) History(sessionID string) []domain.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[sessionID]
	if !ok || len(e.turns) == 0 {
		return nil
	}
	out := make([]domain.Turn, len(e.turns))
	copy(out, e.turns)
	return out
}

func (s *Store) Append(sessionID string, turns ...domain.Turn) {
	if sessionID == "" || len(turns) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		e = &entry{}
		s.sessions[sessionID] = e
	}
	e.turns = append(e.turns, turns...)
	e.lastSeen = s.now()

	if over := len(e.turns) - s.maxTurns; over > 0 {
		// Evict whole user/assistant exchanges so the history never
		// starts with an orphan answer.
		if over%2 == 1 {
			over++
		}
		if over >= len(e.turns) {
			e.turns = nil
			return
		}
		e.turns = append([]domain.Turn(nil), e.turns[over:]...)
	}
}

func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Prune drops sessions idle for longer than maxIdle and reports how many
// were removed.
func (s *Store) Prune(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
