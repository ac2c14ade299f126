package events

import (
	"context"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMemoryDedupSize = 10000

// MemoryDeduper keeps the most recent event ids in a bounded LRU.
type MemoryDeduper struct {
	mu    sync.Mutex
	cache *lru.Cache[string, struct{}]
}

var _ Deduper = (*MemoryDeduper)(nil)

func NewMemoryDeduper(size int) (*MemoryDeduper, error) {
	if size <= 0 {
		size = defaultMemoryDedupSize
	}
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("events: init dedup cache: %w", err)
	}
	return &MemoryDeduper{cache: cache}, nil
}

func (d *MemoryDeduper) MarkProcessed(_ context.Context, provider, eventID string) (bool, error) {
	if strings.TrimSpace(eventID) == "" {
		return true, nil
	}
	key := provider + ":" + eventID
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cache.Contains(key) {
		return false, nil
	}
	d.cache.Add(key, struct{}{})
	return true, nil
}
