package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Memory is an in-process Index used by tests and dependency-free runs.
type Memory struct {
	mu          sync.RWMutex
	collections map[string][]Item
}

var _ Index = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{collections: make(map[string][]Item)}
}

func (m *Memory) Upsert(_ context.Context, documentID string, items []Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.collections[documentID]
	for _, item := range items {
		replaced := false
		for i := range existing {
			if existing[i].ID == item.ID {
				existing[i] = item
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, item)
		}
	}
	m.collections[documentID] = existing
	return nil
}

func (m *Memory) Query(ctx context.Context, documentID string, vector []float32, k int) ([]Match, error) {
	m.mu.RLock()
	items, ok := m.collections[documentID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrCollectionNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(items))
	for _, item := range items {
		matches = append(matches, Match{
			ID:       item.ID,
			Content:  item.Content,
			Metadata: item.Metadata,
			Distance: cosineDistance(vector, item.Vector),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (m *Memory) DeleteCollection(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, documentID)
	return nil
}

// Count reports how many chunks a document's collection holds.
func (m *Memory) Count(documentID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[documentID])
}

func cosineDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
