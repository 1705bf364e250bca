package services

import "sync"

// SessionStore keeps per-sender conversation history. Implementations own
// their concurrency discipline; the bot only gets and puts whole histories.
type SessionStore interface {
	Get(senderID string) []Turn
	Put(senderID string, turns []Turn)
}

// MemorySessionStore is the default process-lifetime session store. History
// is lost on restart; the number of distinct senders is unbounded while
// each sender's history is capped by the bot.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string][]Turn
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: map[string][]Turn{}}
}

func (s *MemorySessionStore) Get(senderID string) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Turn(nil), s.sessions[senderID]...)
}

func (s *MemorySessionStore) Put(senderID string, turns []Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[senderID] = turns
}
