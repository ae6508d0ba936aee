package index

import (
	"testing"

	"github.com/mwangi/occlusion/id"
	"go.akshayshah.org/attest"
)

func TestMapNextPowerOfTwo(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct{ n, want int }{
		{0, 1}, {1, 1}, {2, 2}, {3, 4}, {5, 8}, {16, 16}, {17, 32},
	} {
		attest.Equal(t, nextPowerOfTwo(tt.n), tt.want)
	}
}

func TestMapLoadFactor(t *testing.T) {
	t.Parallel()

	entries := make([]Entry, 0, 1000)
	for i := 0; i < 1000; i++ {
		u := id.NewUUID()
		entries = append(entries, Entry{UUID: u, Level: uint8(i % 256)})
	}

	idx, err := buildMap(entries)
	attest.Ok(t, err)

	m := idx.(*mapIndex)
	loadFactor := float64(m.size) / float64(len(m.slots))
	attest.True(t, loadFactor < 0.7)
}
