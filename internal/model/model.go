package model

// ModeEmpty - State indicating a slot that is or has never been in use
const ModeEmpty int8 = 0

// ModeTombstone - State indicating a slot that has been in use but was removed
const ModeTombstone int8 = -1

// ModeOccupied - State indicating a slot that is in use, any positive mode is occupied
const ModeOccupied int8 = 1

// Record - Represents one map store slot
type Record struct {
	Mode          int8
	Index         int64
	RecordAddress int64
	Key           []byte
	Payload       []byte
}

// IsOccupied - Returns true if the record holds a live entry
func (R Record) IsOccupied() bool {
	return R.Mode > 0
}

// ChunkHeader - Represents the header of one chunk in a chunk store
type ChunkHeader struct {
	Offset   int64
	Magic    uint64
	Power    int64
	NextFree int64
	Length   int64
}

// IsFree - Returns true if the chunk has been recycled into a free list
func (C ChunkHeader) IsFree() bool {
	return C.Length < 0
}

// Span - Returns the number of region bytes the chunk occupies including its header
func (C ChunkHeader) Span(headerLength int64) int64 {
	return headerLength + int64(1)<<C.Power
}
