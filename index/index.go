// Package index implements the immutable, polymorphic UUID→visibility-level
// store at the center of the lookup engine. An Index is built once from a
// slice of Entry and thereafter answers is-visible and batch queries without
// mutation, so it needs no synchronization beyond whatever keeps the pointer
// to it alive (see the store package).
package index

import (
	"fmt"

	"github.com/mwangi/occlusion/id"
)

// UUID is the object identifier type used by the index. It is a plain alias
// for [id.UUID] — there is no separate identity here, the two packages agree
// on the wire-level 128-bit value.
type UUID = id.UUID

// Level is an 8-bit visibility classifier: smaller is more public.
type Level = uint8

// Entry is a single (UUID, Level) pair as produced by the loader.
type Entry struct {
	UUID  UUID
	Level Level
}

// Variant selects which concrete Index implementation Build produces.
type Variant string

// The four variants named in the data model, matching the original
// implementation's algorithm selector one for one.
const (
	VariantMap        Variant = "hashmap"
	VariantSorted     Variant = "sorted"
	VariantHybrid     Variant = "hybrid"
	VariantStratified Variant = "stratified"
)

// String implements [fmt.Stringer].
func (v Variant) String() string { return string(v) }

// Valid reports whether v names one of the four known variants.
func (v Variant) Valid() bool {
	switch v {
	case VariantMap, VariantSorted, VariantHybrid, VariantStratified:
		return true
	default:
		return false
	}
}

// Index is the abstract contract implemented by all four concrete
// representations. Every method is safe to call from many goroutines
// concurrently once Build has returned.
type Index interface {
	// IsVisible reports whether uuid is present and its level is <= mask.
	// An absent uuid is never visible, at any mask.
	IsVisible(uuid UUID, mask uint8) bool

	// CheckBatch reports whether every uuid in uuids is visible at mask.
	// The empty batch is vacuously true.
	CheckBatch(uuids []UUID, mask uint8) bool

	// Len returns the total number of entries held by the index.
	Len() int

	// IsEmpty reports whether the index holds zero entries.
	IsEmpty() bool

	// VisibilityDistribution returns, for each level that has at least one
	// entry, its entry count. Levels with zero entries are omitted.
	VisibilityDistribution() map[uint8]int
}

// DuplicateUUIDError is returned by Build when the same UUID appears more
// than once in entries, regardless of whether the levels agree.
type DuplicateUUIDError struct {
	UUID UUID
}

func (e *DuplicateUUIDError) Error() string {
	return fmt.Sprintf("index: duplicate uuid %s", e.UUID)
}

// Build constructs an Index of the given variant from entries. It fails iff
// any UUID appears more than once; the first offending UUID encountered
// during the variant's own duplicate-detection strategy is reported, since
// no particular scan order is guaranteed across variants.
// Entry order in the input is never observable in query results.
func Build(variant Variant, entries []Entry) (Index, error) {
	switch variant {
	case VariantMap, "":
		return buildMap(entries)
	case VariantSorted:
		return buildSorted(entries)
	case VariantHybrid:
		return buildHybrid(entries)
	case VariantStratified:
		return buildStratified(entries)
	default:
		return nil, fmt.Errorf("index: unknown variant %q", variant)
	}
}

func visibilityDistribution(entries []Entry) map[uint8]int {
	dist := make(map[uint8]int)
	for _, e := range entries {
		dist[e.Level]++
	}
	return dist
}
