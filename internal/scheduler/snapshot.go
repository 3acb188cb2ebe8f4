package scheduler

import (
	"sync/atomic"

	"github.com/assetfin/quote-engine/internal/ratetable"
)

// Snapshot holds the current rate table behind an atomic pointer. Readers
// always observe one complete table, never a torn mix of old and new entries.
// The generation counter advances with every swap so keys derived from it
// (the quote cache) go stale together with the table.
type Snapshot struct {
	table atomic.Pointer[ratetable.Table]
	gen   atomic.Uint64
}

// NewSnapshot creates a Snapshot holding the given table.
func NewSnapshot(table *ratetable.Table) *Snapshot {
	s := &Snapshot{}
	s.table.Store(table)
	return s
}

// Current returns the table in effect right now.
func (s *Snapshot) Current() *ratetable.Table {
	return s.table.Load()
}

// Swap atomically replaces the table and advances the generation.
func (s *Snapshot) Swap(table *ratetable.Table) {
	s.table.Store(table)
	s.gen.Add(1)
}

// Generation returns the number of swaps performed so far.
func (s *Snapshot) Generation() uint64 {
	return s.gen.Load()
}
