package hash

import (
	"github.com/gostonefire/chunkmap/internal/conf"
)

// LinearProbingHashAlgorithm - The internally used slot selection algorithm. It mixes the key bytes one at a time
// into a seeded 64 bit LCG state and starts probing at state mod (tableSize - 1), then steps one slot at a time
// wrapping around at the end of the table.
type LinearProbingHashAlgorithm struct {
	tableSize int64
	seed      uint64
}

// NewLinearProbingHashAlgorithm - Returns a pointer to a new LinearProbingHashAlgorithm instance
//   - tableSize is the number of slots to probe
//   - seed is the initial hash state, conf.DefaultHashSeed is used by map stores
func NewLinearProbingHashAlgorithm(tableSize int64, seed uint64) *LinearProbingHashAlgorithm {
	ha := &LinearProbingHashAlgorithm{seed: seed}
	ha.SetTableSize(tableSize)
	return ha
}

// SetTableSize - Sets the table size for the hash algorithm, it is used as is
func (L *LinearProbingHashAlgorithm) SetTableSize(tableSize int64) {
	L.tableSize = tableSize
}

// Sum - Returns the raw 64 bit hash of key
func (L *LinearProbingHashAlgorithm) Sum(key []byte) uint64 {
	h := L.seed
	for _, b := range key {
		h = (h^uint64(b))*conf.HashMultiplier + conf.HashIncrement
	}

	return h
}

// HashFunc1 - Given key it generates the start slot between 0 and table size - 2.
// The last slot is never a start slot, it is only reached by wrapping probes.
func (L *LinearProbingHashAlgorithm) HashFunc1(key []byte) int64 {
	if L.tableSize < 2 {
		return 0
	}

	// Low bits of an LCG state are weak, fold the high half in
	h := L.Sum(key)
	h ^= h >> 32

	return int64(h % uint64(L.tableSize-1))
}

// GetTableSize - Returns the table size the implemented hash functions are supporting
func (L *LinearProbingHashAlgorithm) GetTableSize() int64 {
	return L.tableSize
}

// ProbeIteration - Implements Linear Probing
func (L *LinearProbingHashAlgorithm) ProbeIteration(hf1Value, iteration int64) int64 {
	probe := hf1Value + iteration
	if probe >= L.tableSize {
		probe %= L.tableSize
	}

	return probe
}
