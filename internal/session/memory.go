package session

import (
	"context"
	"sync"
	"time"

	"mindcheck-bot/internal/models"
)

type memoryEntry struct {
	conv    models.Conversation
	touched time.Time
}

// MemoryStore is an in-process Store with TTL eviction.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[int64]*memoryEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[int64]*memoryEntry),
	}
}

func (s *MemoryStore) Get(_ context.Context, chatID int64) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[chatID]
	if !ok {
		return nil, nil
	}
	if s.expired(e, s.now()) {
		delete(s.entries, chatID)
		return nil, nil
	}
	return cloneConversation(&e.conv), nil
}

func (s *MemoryStore) Put(_ context.Context, chatID int64, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c := cloneConversation(conv)
	c.UpdatedAt = now
	s.entries[chatID] = &memoryEntry{conv: *c, touched: now}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, chatID)
	return nil
}

// Sweep evicts expired entries and returns how many were removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		if s.expired(e, now) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of live and not yet swept entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) expired(e *memoryEntry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.touched) > s.ttl
}

// cloneConversation copies the maps and slices so callers never share state with the store.
func cloneConversation(c *models.Conversation) *models.Conversation {
	out := *c
	if c.Answers != nil {
		out.Answers = make(map[string]*string, len(c.Answers))
		for k, v := range c.Answers {
			if v == nil {
				out.Answers[k] = nil
				continue
			}
			s := *v
			out.Answers[k] = &s
		}
	}
	if c.History != nil {
		out.History = append([]models.ChatTurn(nil), c.History...)
	}
	return &out
}
