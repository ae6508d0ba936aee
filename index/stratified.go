package index

// stratifiedIndex keeps a sparse set of UUIDs per level. IsVisible walks
// levels 0..=mask in ascending order and returns on the first hit, which
// makes small-mask queries — the common case when most callers carry a
// restrictive mask — cheap regardless of how populated the higher levels
// are.
type stratifiedIndex struct {
	levels [256]map[UUID]struct{} // lazily allocated.
	size   int
	dist   map[uint8]int
}

func buildStratified(entries []Entry) (Index, error) {
	idx := &stratifiedIndex{}

	seen := make(map[UUID]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.UUID]; dup {
			return nil, &DuplicateUUIDError{UUID: e.UUID}
		}
		seen[e.UUID] = struct{}{}

		set := idx.levels[e.Level]
		if set == nil {
			set = make(map[UUID]struct{})
			idx.levels[e.Level] = set
		}
		set[e.UUID] = struct{}{}
	}

	idx.size = len(entries)
	idx.dist = visibilityDistribution(entries)
	return idx, nil
}

func (idx *stratifiedIndex) IsVisible(uuid UUID, mask uint8) bool {
	for l := 0; l <= int(mask); l++ {
		set := idx.levels[l]
		if set == nil {
			continue
		}
		if _, ok := set[uuid]; ok {
			return true
		}
	}
	return false
}

func (idx *stratifiedIndex) CheckBatch(uuids []UUID, mask uint8) bool {
	for _, u := range uuids {
		if !idx.IsVisible(u, mask) {
			return false
		}
	}
	return true
}

func (idx *stratifiedIndex) Len() int { return idx.size }

func (idx *stratifiedIndex) IsEmpty() bool { return idx.size == 0 }

func (idx *stratifiedIndex) VisibilityDistribution() map[uint8]int {
	out := make(map[uint8]int, len(idx.dist))
	for k, v := range idx.dist {
		out[k] = v
	}
	return out
}
