package index

import (
	"testing"

	"go.akshayshah.org/attest"
)

func TestHybridDuplicateAcrossPartitions(t *testing.T) {
	t.Parallel()

	u1 := mustUUID(t, "00000000-0000-0000-0000-000000000001")

	t.Run("twice in level zero", func(t *testing.T) {
		_, err := buildHybrid([]Entry{{UUID: u1, Level: 0}, {UUID: u1, Level: 0}})
		attest.Error(t, err)
	})

	t.Run("twice in non-zero", func(t *testing.T) {
		_, err := buildHybrid([]Entry{{UUID: u1, Level: 3}, {UUID: u1, Level: 7}})
		attest.Error(t, err)
	})

	t.Run("once in each partition", func(t *testing.T) {
		_, err := buildHybrid([]Entry{{UUID: u1, Level: 0}, {UUID: u1, Level: 7}})
		attest.Error(t, err)
	})
}

func TestHybridSkewedDistribution(t *testing.T) {
	t.Parallel()

	u1 := mustUUID(t, "00000000-0000-0000-0000-000000000001")
	u2 := mustUUID(t, "00000000-0000-0000-0000-000000000002")

	idx, err := buildHybrid([]Entry{{UUID: u1, Level: 0}, {UUID: u2, Level: 9}})
	attest.Ok(t, err)

	attest.True(t, idx.IsVisible(u1, 0))
	attest.False(t, idx.IsVisible(u2, 8))
	attest.True(t, idx.IsVisible(u2, 9))
}
