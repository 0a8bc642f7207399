package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/mightyhouseinc/polyfile/pkg/types"
)

// MemoryStore implements Store using in-memory data structures.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	reports []*Report
}

// NewMemory creates a new in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// AddReport stores a scan report.
func (m *MemoryStore) AddReport(path string, roots []*types.Record) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.reports = append(m.reports, &Report{
		ID:        id,
		Path:      path,
		CreatedAt: time.Now().UTC(),
		Roots:     roots,
	})
	return id, nil
}

// GetReport retrieves one report by ID.
func (m *MemoryStore) GetReport(id int64) (*Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.reports {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("report %d not found", id)
}

// ListReports retrieves all reports, oldest first.
func (m *MemoryStore) ListReports() ([]*Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Report, len(m.reports))
	copy(out, m.reports)
	return out, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
