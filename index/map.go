package index

import "github.com/cespare/xxhash/v2"

// mapIndex is the default variant: an open-addressing hash table keyed by
// raw [16]byte UUIDs. We hand-roll this instead of using Go's built-in map
// so we control the hash function (xxhash, not map's internal AES/runtime
// hash), the load factor, and the slot layout — a bare `map[UUID]uint8`
// would give up all three for no benefit on a read-only, pre-sized table.
type mapIndex struct {
	slots []mapSlot
	mask  uint64 // len(slots)-1; len(slots) is always a power of two.
	size  int
	dist  map[uint8]int
}

type mapSlot struct {
	used  bool
	key   UUID
	level uint8
}

func buildMap(entries []Entry) (Index, error) {
	capacity := nextPowerOfTwo(len(entries)*2 + 1) // keep load factor under ~0.5.
	if capacity < 8 {
		capacity = 8
	}

	idx := &mapIndex{
		slots: make([]mapSlot, capacity),
		mask:  uint64(capacity - 1),
	}

	for _, e := range entries {
		if !idx.insert(e.UUID, e.Level) {
			return nil, &DuplicateUUIDError{UUID: e.UUID}
		}
	}

	idx.size = len(entries)
	idx.dist = visibilityDistribution(entries)
	return idx, nil
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func hashUUID(u UUID) uint64 {
	return xxhash.Sum64(u[:])
}

// insert places (key, level) into the table using linear probing. It
// reports false if key is already present (a duplicate).
func (idx *mapIndex) insert(key UUID, level uint8) bool {
	h := hashUUID(key) & idx.mask
	for {
		s := &idx.slots[h]
		if !s.used {
			s.used = true
			s.key = key
			s.level = level
			return true
		}
		if s.key == key {
			return false
		}
		h = (h + 1) & idx.mask
	}
}

func (idx *mapIndex) lookup(key UUID) (level uint8, ok bool) {
	h := hashUUID(key) & idx.mask
	for {
		s := &idx.slots[h]
		if !s.used {
			return 0, false
		}
		if s.key == key {
			return s.level, true
		}
		h = (h + 1) & idx.mask
	}
}

func (idx *mapIndex) IsVisible(uuid UUID, mask uint8) bool {
	level, ok := idx.lookup(uuid)
	return ok && level <= mask
}

func (idx *mapIndex) CheckBatch(uuids []UUID, mask uint8) bool {
	for _, u := range uuids {
		if !idx.IsVisible(u, mask) {
			return false
		}
	}
	return true
}

func (idx *mapIndex) Len() int { return idx.size }

func (idx *mapIndex) IsEmpty() bool { return idx.size == 0 }

func (idx *mapIndex) VisibilityDistribution() map[uint8]int {
	out := make(map[uint8]int, len(idx.dist))
	for k, v := range idx.dist {
		out[k] = v
	}
	return out
}
