//go:build unit

package hash

import (
	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestXXHashAlgorithm_HashFunc1(t *testing.T) {
	t.Run("creates a valid start slot", func(t *testing.T) {
		// Prepare
		a := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
		h := NewXXHashAlgorithm(11)

		// Execute
		slot := h.HashFunc1(a)

		// Check
		assert.Equal(t, int64(xxhash.Sum64(a)%11), slot, "xxhash mod table size")
		assert.GreaterOrEqual(t, slot, int64(0), "not below zero")
		assert.Less(t, slot, int64(11), "inside table")
	})

	t.Run("table size set later", func(t *testing.T) {
		// Prepare
		h := NewXXHashAlgorithm(0)

		// Execute
		before := h.HashFunc1([]byte("key"))
		h.SetTableSize(7)

		// Check
		assert.Equal(t, int64(0), before, "no table")
		assert.Equal(t, int64(7), h.GetTableSize(), "table size")
		assert.Less(t, h.HashFunc1([]byte("key")), int64(7), "inside table")
	})
}

func TestXXHashAlgorithm_ProbeIteration(t *testing.T) {
	t.Run("visits every slot once stepping forward", func(t *testing.T) {
		// Prepare
		h := NewXXHashAlgorithm(5)
		seen := make(map[int64]bool)

		// Execute
		var probes []int64
		for i := int64(0); i < 5; i++ {
			p := h.ProbeIteration(3, i)
			probes = append(probes, p)
			seen[p] = true
		}

		// Check
		assert.Equal(t, []int64{3, 4, 0, 1, 2}, probes, "wrapping sequence")
		assert.Len(t, seen, 5, "every slot")
	})
}
