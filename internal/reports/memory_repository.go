package reports

import (
	"context"
	"sort"
	"sync"

	"github.com/Yardman-Mzansi/potholematic/internal/conversation"
)

// MemoryRepository keeps reports in process memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]conversation.Report
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]conversation.Report)}
}

func (r *MemoryRepository) Insert(_ context.Context, report conversation.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[report.ID]; !ok {
		r.items[report.ID] = report
	}
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (conversation.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	report, ok := r.items[id]
	if !ok {
		return conversation.Report{}, ErrNotFound
	}
	return report, nil
}

func (r *MemoryRepository) ListRecent(_ context.Context, limit int) ([]conversation.Report, error) {
	r.mu.RLock()
	out := make([]conversation.Report, 0, len(r.items))
	for _, report := range r.items {
		out = append(out, report)
	}
	r.mu.RUnlock()
	return newestFirst(out, clampLimit(limit)), nil
}

func newestFirst(items []conversation.Report, limit int) []conversation.Report {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}
