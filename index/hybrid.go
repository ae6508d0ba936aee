package index

import "slices"

// hybridIndex splits entries into a level-0 set (the hot path) and a sorted
// slice of everything else, on the assumption that most real-world
// visibility data skews heavily toward the most-public level.
type hybridIndex struct {
	levelZero map[UUID]struct{}
	rest      []Entry // level > 0, sorted by UUID.
	dist      map[uint8]int
}

func buildHybrid(entries []Entry) (Index, error) {
	levelZero := make(map[UUID]struct{})
	rest := make([]Entry, 0, len(entries))

	for _, e := range entries {
		if e.Level == 0 {
			if _, dup := levelZero[e.UUID]; dup {
				return nil, &DuplicateUUIDError{UUID: e.UUID}
			}
			levelZero[e.UUID] = struct{}{}
		} else {
			rest = append(rest, e)
		}
	}

	slices.SortFunc(rest, func(a, b Entry) int {
		return compareUUID(a.UUID, b.UUID)
	})
	for i := 1; i < len(rest); i++ {
		if rest[i].UUID == rest[i-1].UUID {
			return nil, &DuplicateUUIDError{UUID: rest[i].UUID}
		}
	}
	for _, e := range rest {
		if _, inLevelZero := levelZero[e.UUID]; inLevelZero {
			return nil, &DuplicateUUIDError{UUID: e.UUID}
		}
	}

	return &hybridIndex{
		levelZero: levelZero,
		rest:      rest,
		dist:      visibilityDistribution(entries),
	}, nil
}

func (idx *hybridIndex) searchRest(key UUID) (level uint8, ok bool) {
	n := len(idx.rest)
	i, j := 0, n
	for i < j {
		mid := (i + j) / 2
		switch compareUUID(idx.rest[mid].UUID, key) {
		case 0:
			return idx.rest[mid].Level, true
		case -1:
			i = mid + 1
		default:
			j = mid
		}
	}
	return 0, false
}

func (idx *hybridIndex) IsVisible(uuid UUID, mask uint8) bool {
	if _, ok := idx.levelZero[uuid]; ok {
		return true // level 0 is visible at any mask.
	}
	level, ok := idx.searchRest(uuid)
	return ok && level <= mask
}

func (idx *hybridIndex) CheckBatch(uuids []UUID, mask uint8) bool {
	for _, u := range uuids {
		if !idx.IsVisible(u, mask) {
			return false
		}
	}
	return true
}

func (idx *hybridIndex) Len() int { return len(idx.levelZero) + len(idx.rest) }

func (idx *hybridIndex) IsEmpty() bool { return idx.Len() == 0 }

func (idx *hybridIndex) VisibilityDistribution() map[uint8]int {
	out := make(map[uint8]int, len(idx.dist))
	for k, v := range idx.dist {
		out[k] = v
	}
	return out
}
