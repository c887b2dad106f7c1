package history

import (
	"errors"
	"strings"
	"sync"

	"talk-bridge/internal/domain"
)

// DefaultCap is the maximum number of messages kept per session, including
// the pinned system message.
const DefaultCap = 10

// Store maps session keys to bounded, ordered conversation histories. Index 0
// of every history is the system message and is never evicted.
//
// Individual operations are atomic. Sequences of operations on the same key
// from concurrent requests are not, so the last writer wins.
type Store struct {
	mu           sync.Mutex
	systemPrompt string
	limit        int
	sessions     map[string][]domain.ChatMessage
}

func NewStore(systemPrompt string, limit int) (*Store, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, errors.New("history: system prompt must not be empty")
	}
	if limit <= 0 {
		limit = DefaultCap
	}
	if limit < 2 {
		return nil, errors.New("history: cap must leave room for at least one turn")
	}
	return &Store{
		systemPrompt: systemPrompt,
		limit:        limit,
		sessions:     make(map[string][]domain.ChatMessage),
	}, nil
}

// Cap returns the configured per-session length bound.
func (s *Store) Cap() int {
	return s.limit
}

// GetOrCreate returns a copy of the session history, creating it with the
// system message if the key has never been seen.
func (s *Store) GetOrCreate(key string) []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.ensure(key))
}

// Append adds a message to the session and trims it back to the cap.
func (s *Store) Append(key, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := append(s.ensure(key), domain.ChatMessage{Role: role, Content: content})
	s.sessions[key] = trimmed(msgs, s.limit)
}

// Trim drops the oldest messages after the system message until the session
// holds at most maxLen entries.
func (s *Store) Trim(key string, maxLen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = trimmed(s.ensure(key), maxLen)
}

// Snapshot returns a copy of the session history, or nil for unknown keys.
func (s *Store) Snapshot(key string) []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs, ok := s.sessions[key]
	if !ok {
		return nil
	}
	return clone(msgs)
}

func (s *Store) Len(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions[key])
}

func (s *Store) ensure(key string) []domain.ChatMessage {
	msgs, ok := s.sessions[key]
	if !ok {
		msgs = []domain.ChatMessage{{Role: domain.RoleSystem, Content: s.systemPrompt}}
		s.sessions[key] = msgs
	}
	return msgs
}

func trimmed(msgs []domain.ChatMessage, maxLen int) []domain.ChatMessage {
	if maxLen < 1 {
		maxLen = 1
	}
	if len(msgs) <= maxLen {
		return msgs
	}
	drop := len(msgs) - maxLen
	out := make([]domain.ChatMessage, 0, maxLen)
	out = append(out, msgs[0])
	return append(out, msgs[1+drop:]...)
}

func clone(msgs []domain.ChatMessage) []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}
