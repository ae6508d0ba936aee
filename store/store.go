// Package store provides SwappableStore, the handle through which query
// handlers read the currently-installed Index while the reload scheduler
// replaces it behind their backs.
package store

import (
	"sync/atomic"

	"github.com/mwangi/occlusion/index"
)

// SwappableStore owns exactly one [index.Index] at any instant. Replacing it
// via [SwappableStore.Swap] is the only mutation it supports.
//
// It is built on [atomic.Pointer] rather than a mutex-guarded
// [conc.Lockable] shape: a reader/writer lock would serialize every lookup
// behind a mutex acquisition, which is incompatible with the single-digit
// nanosecond budget on the read path. The atomic pointer swap gives readers
// a lock-free load and gives the writer a single atomic store once the new
// Index is fully built off to the side.
//
// The zero value is not valid; use [New]. A SwappableStore is cheap to copy
// by reference — multiple handles constructed by assigning a *SwappableStore
// alias the same backing pointer, and a Swap made through any of them is
// visible to all.
type SwappableStore struct {
	ptr atomic.Pointer[index.Index]
}

// New creates a SwappableStore that initially holds idx.
func New(idx index.Index) *SwappableStore {
	s := &SwappableStore{}
	s.ptr.Store(&idx)
	return s
}

// Swap atomically replaces the held Index with idx. Readers that obtained
// their Index via [SwappableStore.snapshot] before the swap keep querying
// the old Index to completion; nothing about their call observes the swap.
func (s *SwappableStore) Swap(idx index.Index) {
	s.ptr.Store(&idx)
}

// snapshot returns the currently installed Index. The returned value is
// stable for the duration of the caller's use of it even if a concurrent
// Swap happens immediately after this call returns.
func (s *SwappableStore) snapshot() index.Index {
	return *s.ptr.Load()
}

// IsVisible delegates to the currently installed Index.
func (s *SwappableStore) IsVisible(uuid index.UUID, mask uint8) bool {
	return s.snapshot().IsVisible(uuid, mask)
}

// CheckBatch delegates to the currently installed Index.
func (s *SwappableStore) CheckBatch(uuids []index.UUID, mask uint8) bool {
	return s.snapshot().CheckBatch(uuids, mask)
}

// Len delegates to the currently installed Index.
func (s *SwappableStore) Len() int {
	return s.snapshot().Len()
}

// IsEmpty delegates to the currently installed Index.
func (s *SwappableStore) IsEmpty() bool {
	return s.snapshot().IsEmpty()
}

// VisibilityDistribution delegates to the currently installed Index.
func (s *SwappableStore) VisibilityDistribution() map[uint8]int {
	return s.snapshot().VisibilityDistribution()
}
