// Package session keeps short per-conversation history so follow-up
// questions resolve against recent exchanges. History is bounded: only the
// most recent exchanges survive, oldest evicted first.
package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
)

// Store holds conversation history in memory, keyed by session ID. Sessions
// never expire and are lost on restart; the history bound keeps memory flat
// regardless of conversation length.
//
// Store is safe for concurrent use.
type Store struct {
	mu         sync.Mutex
	maxHistory int
	sessions   map[string][]llms.MessageContent
}

// NewStore returns a store retaining at most maxHistory exchanges (a user
// message and its assistant reply) per session.
func NewStore(maxHistory int) *Store {
	return &Store{
		maxHistory: maxHistory,
		sessions:   make(map[string][]llms.MessageContent),
	}
}

// NewSession creates a fresh session and returns its ID.
func (s *Store) NewSession() string {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = nil
	s.mu.Unlock()
	return id
}

// History returns the session's retained messages, oldest first, alternating
// user/assistant. Unknown sessions yield an empty history.
func (s *Store) History(id string) []llms.MessageContent {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.sessions[id]
	if len(msgs) == 0 {
		return nil
	}
	out := make([]llms.MessageContent, len(msgs))
	copy(out, msgs)
	return out
}

// AppendExchange records one completed query/answer pair, creating the
// session if needed and evicting the oldest exchange beyond the bound.
func (s *Store) AppendExchange(id, query, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := append(s.sessions[id],
		llms.TextParts(llms.ChatMessageTypeHuman, query),
		llms.TextParts(llms.ChatMessageTypeAI, answer),
	)
	if limit := 2 * s.maxHistory; len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	s.sessions[id] = msgs
}

// Len reports how many sessions exist.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
