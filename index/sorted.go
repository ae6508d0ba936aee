package index

import "slices"

// sortedIndex stores entries sorted by UUID and answers queries with binary
// search. It trades lookup latency (O(log n) vs the map's O(1)) for roughly
// 30% less memory per entry, useful when the dataset barely fits.
type sortedIndex struct {
	entries []Entry
	dist    map[uint8]int
}

func buildSorted(entries []Entry) (Index, error) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)

	slices.SortFunc(sorted, func(a, b Entry) int {
		return compareUUID(a.UUID, b.UUID)
	})

	for i := 1; i < len(sorted); i++ {
		if sorted[i].UUID == sorted[i-1].UUID {
			return nil, &DuplicateUUIDError{UUID: sorted[i].UUID}
		}
	}

	return &sortedIndex{
		entries: sorted,
		dist:    visibilityDistribution(entries),
	}, nil
}

func compareUUID(a, b UUID) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (idx *sortedIndex) search(key UUID) (level uint8, ok bool) {
	n := len(idx.entries)
	i, j := 0, n
	for i < j {
		mid := (i + j) / 2
		switch compareUUID(idx.entries[mid].UUID, key) {
		case 0:
			return idx.entries[mid].Level, true
		case -1:
			i = mid + 1
		default:
			j = mid
		}
	}
	return 0, false
}

func (idx *sortedIndex) IsVisible(uuid UUID, mask uint8) bool {
	level, ok := idx.search(uuid)
	return ok && level <= mask
}

func (idx *sortedIndex) CheckBatch(uuids []UUID, mask uint8) bool {
	for _, u := range uuids {
		if !idx.IsVisible(u, mask) {
			return false
		}
	}
	return true
}

func (idx *sortedIndex) Len() int { return len(idx.entries) }

func (idx *sortedIndex) IsEmpty() bool { return len(idx.entries) == 0 }

func (idx *sortedIndex) VisibilityDistribution() map[uint8]int {
	out := make(map[uint8]int, len(idx.dist))
	for k, v := range idx.dist {
		out[k] = v
	}
	return out
}
