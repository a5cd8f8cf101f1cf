package hash

import (
	"github.com/cespare/xxhash/v2"
)

// XXHashAlgorithm - Slot selection using xxhash over the key, then stepping one slot at a time wrapping around
// at the end of the table. It spreads keys sharing long prefixes better than the built in algorithm.
type XXHashAlgorithm struct {
	tableSize int64
}

// NewXXHashAlgorithm - Returns a pointer to a new XXHashAlgorithm instance
func NewXXHashAlgorithm(tableSize int64) *XXHashAlgorithm {
	return &XXHashAlgorithm{tableSize: tableSize}
}

// SetTableSize - Sets the number of slots to probe
func (X *XXHashAlgorithm) SetTableSize(tableSize int64) {
	X.tableSize = tableSize
}

// HashFunc1 - Given key it generates the start slot between 0 and table size - 1
func (X *XXHashAlgorithm) HashFunc1(key []byte) int64 {
	if X.tableSize < 1 {
		return 0
	}

	return int64(xxhash.Sum64(key) % uint64(X.tableSize))
}

// GetTableSize - Returns the table size the implemented hash functions are supporting
func (X *XXHashAlgorithm) GetTableSize() int64 {
	return X.tableSize
}

// ProbeIteration - Implements Linear Probing
func (X *XXHashAlgorithm) ProbeIteration(hf1Value, iteration int64) int64 {
	return (hf1Value + iteration) % X.tableSize
}
