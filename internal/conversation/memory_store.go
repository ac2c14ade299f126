package conversation

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps conversations in process memory. Used for local runs and tests.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]*Conversation
	now   Clock
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]*Conversation),
		now:   time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, senderID string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.items[senderID]; ok {
		return conv.Clone(), nil
	}
	conv := NewConversation(senderID, s.now().UTC())
	s.items[senderID] = &conv
	return conv.Clone(), nil
}

func (s *MemoryStore) SetState(_ context.Context, senderID string, state State) error {
	return s.update(senderID, func(c *Conversation) { c.State = state })
}

func (s *MemoryStore) SetDescription(_ context.Context, senderID string, description string) error {
	return s.update(senderID, func(c *Conversation) {
		d := description
		c.Description = &d
	})
}

func (s *MemoryStore) SetLocation(_ context.Context, senderID string, loc Location) error {
	return s.update(senderID, func(c *Conversation) {
		l := loc
		c.Location = &l
	})
}

func (s *MemoryStore) Finalize(_ context.Context, senderID string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.items[senderID]
	if !ok {
		return Conversation{}, ErrConversationNotFound
	}
	snapshot := conv.Clone()
	conv.Description = nil
	conv.Location = nil
	conv.State = StateComplete
	conv.Version++
	conv.UpdatedAt = s.now().UTC()
	return snapshot, nil
}

// Len returns the number of stored conversations.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *MemoryStore) update(senderID string, fn func(*Conversation)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.items[senderID]
	if !ok {
		return ErrConversationNotFound
	}
	fn(conv)
	conv.Version++
	conv.UpdatedAt = s.now().UTC()
	return nil
}
