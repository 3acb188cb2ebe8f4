package store

import (
	"context"
	"sync"
)

// MemoryLeadRepository is an in-memory implementation of LeadRepository,
// used when no SQLite path is configured and in tests.
type MemoryLeadRepository struct {
	mu    sync.Mutex
	leads []Lead
}

// NewMemoryLeadRepository creates an empty in-memory lead repository.
func NewMemoryLeadRepository() *MemoryLeadRepository {
	return &MemoryLeadRepository{}
}

// Save stores the lead in memory.
func (r *MemoryLeadRepository) Save(_ context.Context, lead Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leads = append(r.leads, lead)
	return nil
}

// List returns the most recently saved leads, newest first.
func (r *MemoryLeadRepository) List(_ context.Context, limit int) ([]Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 || limit > len(r.leads) {
		limit = len(r.leads)
	}
	out := make([]Lead, 0, limit)
	for i := len(r.leads) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.leads[i])
	}
	return out, nil
}

// Close is a no-op for the in-memory repository.
func (r *MemoryLeadRepository) Close() error {
	return nil
}
