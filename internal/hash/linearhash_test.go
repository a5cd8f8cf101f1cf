//go:build unit

package hash

import (
	"github.com/gostonefire/chunkmap/internal/conf"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestLinearProbingHashAlgorithm_GetTableSize(t *testing.T) {
	t.Run("keeps table size as given", func(t *testing.T) {
		// Prepare
		h := NewLinearProbingHashAlgorithm(10, conf.DefaultHashSeed)

		// Execute
		tableSize := h.GetTableSize()

		// Check
		assert.Equal(t, int64(10), tableSize, "correct tableSize value")
	})
}

func TestLinearProbingHashAlgorithm_Sum(t *testing.T) {
	t.Run("mixes bytes into seeded state", func(t *testing.T) {
		// Prepare
		h := NewLinearProbingHashAlgorithm(10, 7)
		seed := uint64(7)
		expected := (seed^1)*conf.HashMultiplier + conf.HashIncrement
		expected = (expected^2)*conf.HashMultiplier + conf.HashIncrement

		// Execute
		sum := h.Sum([]byte{1, 2})

		// Check
		assert.Equal(t, expected, sum, "LCG mix per byte")
		assert.Equal(t, uint64(7), h.Sum(nil), "empty key hashes to seed")
	})

	t.Run("seed changes hash", func(t *testing.T) {
		a := NewLinearProbingHashAlgorithm(10, 1)
		b := NewLinearProbingHashAlgorithm(10, 2)
		assert.NotEqual(t, a.Sum([]byte("key")), b.Sum([]byte("key")), "different seeds")
	})
}

func TestLinearProbingHashAlgorithm_HashFunc1(t *testing.T) {
	t.Run("never starts in last slot", func(t *testing.T) {
		// Prepare
		h := NewLinearProbingHashAlgorithm(17, conf.DefaultHashSeed)
		starts := make(map[int64]int)

		// Execute
		for i := 0; i < 2000; i++ {
			starts[h.HashFunc1([]byte{byte(i), byte(i >> 8)})]++
		}

		// Check
		for start := range starts {
			assert.GreaterOrEqual(t, start, int64(0), "start not negative")
			assert.Less(t, start, int64(16), "start below table size - 1")
		}
		assert.Len(t, starts, 16, "all other slots used as start")
	})

	t.Run("is deterministic", func(t *testing.T) {
		a := NewLinearProbingHashAlgorithm(100, conf.DefaultHashSeed)
		b := NewLinearProbingHashAlgorithm(100, conf.DefaultHashSeed)
		assert.Equal(t, a.HashFunc1([]byte("abc")), b.HashFunc1([]byte("abc")), "same start slot")
	})
}

func TestLinearProbingHashAlgorithm_SetTableSize(t *testing.T) {
	t.Run("sets table size", func(t *testing.T) {
		// Prepare
		h := NewLinearProbingHashAlgorithm(10, conf.DefaultHashSeed)

		// Execute
		h.SetTableSize(16 + 7)

		// Check
		assert.Equal(t, int64(23), h.GetTableSize(), "correct tableSize value")
	})
}

func TestLinearProbingHashAlgorithm_ProbeIteration(t *testing.T) {
	t.Run("iterates through table", func(t *testing.T) {
		// Prepare
		h := NewLinearProbingHashAlgorithm(10, conf.DefaultHashSeed)
		tableSize := h.GetTableSize()

		a := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

		slot := h.HashFunc1(a)

		visit := make([]int, tableSize)

		// Execute
		for i := int64(0); i < tableSize; i++ {
			probe := h.ProbeIteration(slot, i)
			assert.GreaterOrEqualf(t, probe, int64(0), "probe not negative in iteration #%d", i)
			assert.Lessf(t, probe, tableSize, "probe less than table size in iteration #%d", i)
			visit[probe]++
		}

		// Check
		for i := int64(0); i < tableSize; i++ {
			assert.Equalf(t, 1, visit[i], "exactly one visit in slot #%d", i)
		}
	})

	t.Run("wraps at end of table", func(t *testing.T) {
		h := NewLinearProbingHashAlgorithm(10, conf.DefaultHashSeed)
		assert.Equal(t, int64(9), h.ProbeIteration(8, 1), "last slot reached by probing")
		assert.Equal(t, int64(0), h.ProbeIteration(8, 2), "wraps to first slot")
	})
}
