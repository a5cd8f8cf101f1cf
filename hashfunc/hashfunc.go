package hashfunc

// HashAlgorithm - Interface that permits a map store user to supply a custom slot selection algorithm suited
// for its particular distribution of keys.
type HashAlgorithm interface {
	// SetTableSize - Sets the table size for the hash algorithm.
	// It is called both when creating a new map store and when opening an existing one. Hence, if a custom
	// hash algorithm is supplied and the instance already has a table size, it will be overwritten by the
	// capacity stored in the map store header.
	//   - tableSize is the number of slots the map store holds
	SetTableSize(tableSize int64)

	// HashFunc1 - Given key it generates the slot where probing starts, between 0 and table size - 1.
	// Any number returned outside the table size will result in an error down stream.
	HashFunc1(key []byte) int64

	// GetTableSize - Returns the table size the implemented hash functions are supporting.
	// The map store never rounds its capacity, so this must be exactly what SetTableSize was given.
	GetTableSize() int64

	// ProbeIteration - Returns the slot to visit in iteration given the value from HashFunc1.
	// The sequence of iterations 0 to table size - 1 must visit every slot exactly once, since the map store
	// relies on it both to find free slots and to conclude that a key is absent. Removal compacts tombstones
	// by looking at neighbouring slots, so the sequence must step one slot forward at a time, wrapping.
	ProbeIteration(hf1Value, iteration int64) int64
}
