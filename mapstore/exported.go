// Package mapstore implements a fixed capacity open addressing hash map whose entire state lives in a byte range.
//
// The range starts with a 23 byte header followed by capacity equally sized slots. Each slot is a one byte mode
// (empty, tombstone or occupied) followed by the key and the payload, both optionally behind a four byte length
// prefix. Nothing is cached besides the header fields, so a map store can be reopened from its bytes at any time.
package mapstore

import (
	"errors"
	"fmt"
	"github.com/gostonefire/chunkmap/hashfunc"
	"github.com/gostonefire/chunkmap/internal/conf"
	"github.com/gostonefire/chunkmap/internal/model"
	"github.com/gostonefire/chunkmap/storeerr"
	"io"
)

// Record - One slot as returned from Get, Entry and ForEach
type Record = model.Record

// Slot modes, any positive mode is occupied
const (
	ModeEmpty     = model.ModeEmpty
	ModeTombstone = model.ModeTombstone
	ModeOccupied  = model.ModeOccupied
)

// Storage - The byte range a map store is laid out in, typically a chunk view
type Storage interface {
	io.ReaderAt
	io.WriterAt
	Length() (int64, error)
}

// Params - Is a struct to be passed in the call to Create
//   - MaxCount is the number of entries the map store accepts, the slot count is derived from it
//   - KeySize is the key length, or the max key length if VariableKey is set
//   - VariableKey set to true stores keys behind a length prefix, otherwise keys are zero padded to KeySize
//   - PayloadSize is the payload length, or the max payload length if VariablePayload is set
//   - VariablePayload set to true stores payloads behind a length prefix, otherwise payloads are zero padded
//   - HashAlgorithm is an optional custom slot selection algorithm, nil means the internal one
type Params struct {
	MaxCount        int64
	KeySize         int64
	VariableKey     bool
	PayloadSize     int64
	VariablePayload bool
	HashAlgorithm   hashfunc.HashAlgorithm
}

// MapStore - One open addressing hash map over a Storage. It is not safe for concurrent use, callers serialize
// access with a lock of their own.
type MapStore struct {
	storage           Storage
	version           uint8
	count             int64
	maxCount          int64
	capacity          int64
	keySize           int64
	variableKey       bool
	payloadSize       int64
	variablePayload   bool
	entrySize         int64
	hashAlgorithm     hashfunc.HashAlgorithm
	internalAlgorithm bool
}

// CapacityFor - Returns the slot count for a max count, max count divided by the load factor rounded up
func CapacityFor(maxCount int64) int64 {
	// maxCount / 0.6 in integer arithmetic
	capacity := (maxCount*5 + 2) / 3
	if capacity < 2 {
		capacity = 2
	}

	return capacity
}

// EntrySizeFor - Returns the length of one slot for the given parameters
func EntrySizeFor(params Params) (entrySize int64) {
	entrySize = conf.ModeBytes + params.KeySize + params.PayloadSize
	if params.VariableKey {
		entrySize += conf.LengthPrefixBytes
	}
	if params.VariablePayload {
		entrySize += conf.LengthPrefixBytes
	}

	return
}

// SizeFor - Returns the number of bytes a map store with the given parameters occupies
func SizeFor(params Params) int64 {
	return conf.MapHeaderLength + CapacityFor(params.MaxCount)*EntrySizeFor(params)
}

// Create - Lays out an empty map store at the start of storage and returns a pointer to it.
// Storage must be at least SizeFor(params) long, any existing slot contents are wiped.
//   - storage is the byte range to use
//   - params is a Params struct
//
// It returns:
//   - mapStore which is a pointer to the created instance
//   - err which is a standard Go type of error
func Create(storage Storage, params Params) (mapStore *MapStore, err error) {
	err = validateParams(params)
	if err != nil {
		return
	}

	capacity := CapacityFor(params.MaxCount)
	if capacity > conf.MaxUint32 {
		err = storeerr.NewInvalidArgument("capacity %d for max count %d does not fit a map store header", capacity, params.MaxCount)
		return
	}

	mapStore = &MapStore{
		storage:         storage,
		version:         conf.MapVersion,
		maxCount:        params.MaxCount,
		capacity:        capacity,
		keySize:         params.KeySize,
		variableKey:     params.VariableKey,
		payloadSize:     params.PayloadSize,
		variablePayload: params.VariablePayload,
		entrySize:       EntrySizeFor(params),
	}
	mapStore.setHashAlgorithm(params.HashAlgorithm)

	err = mapStore.checkStorageLength()
	if err != nil {
		mapStore = nil
		return
	}

	err = mapStore.writeHeader()
	if err != nil {
		mapStore = nil
		return
	}

	err = mapStore.clearSlots()
	if err != nil {
		mapStore = nil
		return
	}

	return
}

// Open - Reads the header of an existing map store. Slots are not validated, damage in them is detected
// when they are visited.
//   - storage is the byte range the map store was created in
//   - hashAlgorithm is the custom algorithm used when creating the map store, nil for the internal one
//
// It returns:
//   - mapStore which is a pointer to the opened instance
//   - err which is a standard Go type of error
func Open(storage Storage, hashAlgorithm hashfunc.HashAlgorithm) (mapStore *MapStore, err error) {
	mapStore = &MapStore{storage: storage}

	err = mapStore.readHeader()
	if err != nil {
		mapStore = nil
		return
	}

	mapStore.setHashAlgorithm(hashAlgorithm)

	err = mapStore.checkStorageLength()
	if err != nil {
		mapStore = nil
		return
	}

	return
}

// Params - Returns the parameters the map store was created with, MaxCount included
func (M *MapStore) Params() Params {
	params := Params{
		MaxCount:        M.maxCount,
		KeySize:         M.keySize,
		VariableKey:     M.variableKey,
		PayloadSize:     M.payloadSize,
		VariablePayload: M.variablePayload,
	}
	if !M.internalAlgorithm {
		params.HashAlgorithm = M.hashAlgorithm
	}

	return params
}

// Count - Returns the number of occupied slots
func (M *MapStore) Count() int64 {
	return M.count
}

// MaxCount - Returns the number of entries the map store accepts
func (M *MapStore) MaxCount() int64 {
	return M.maxCount
}

// Capacity - Returns the number of slots
func (M *MapStore) Capacity() int64 {
	return M.capacity
}

// KeySize - Returns the (max) key length
func (M *MapStore) KeySize() int64 {
	return M.keySize
}

// PayloadSize - Returns the (max) payload length
func (M *MapStore) PayloadSize() int64 {
	return M.payloadSize
}

// EntrySize - Returns the length of one slot
func (M *MapStore) EntrySize() int64 {
	return M.entrySize
}

// Version - Returns the layout version read from or written to the header
func (M *MapStore) Version() uint8 {
	return M.version
}

// Add - Adds key with payload, or updates the payload if key is already present
//   - key is at most KeySize long
//   - payload is at most PayloadSize long
//
// It returns:
//   - index which is the slot the entry lives in
//   - err which is storeerr.OverCapacity if the map store is full, or a standard error
func (M *MapStore) Add(key, payload []byte) (index int64, err error) {
	return M.AddMode(model.ModeOccupied, key, payload)
}

// AddMode - Same as Add but stores a caller chosen mode, any positive mode marks an occupied slot
func (M *MapStore) AddMode(mode int8, key, payload []byte) (index int64, err error) {
	if mode <= model.ModeEmpty {
		err = storeerr.NewInvalidArgument("mode %d does not mark an occupied slot", mode)
		return
	}

	key, err = M.storedKey(key)
	if err != nil {
		return
	}
	err = M.checkPayload(payload)
	if err != nil {
		return
	}

	record, err := M.probingForSet(key)
	if err != nil {
		return
	}

	isNew := !record.IsOccupied()
	if isNew && M.count >= M.maxCount {
		err = storeerr.NewOverCapacity("map store holds max count %d entries", M.maxCount)
		return
	}

	record.Mode = mode
	record.Key = key
	record.Payload = payload
	err = M.setRecord(record)
	if err != nil {
		err = fmt.Errorf("error while adding record to slot %d: %w", record.Index, err)
		return
	}

	if isNew {
		err = M.setCount(M.count + 1)
		if err != nil {
			return
		}
	}
	index = record.Index

	return
}

// Get - Returns the record held for key. Fixed size keys and payloads are returned zero padded.
//   - key is the key to look for
//
// It returns:
//   - record which is the slot contents, including its index
//   - err which is storeerr.NoRecordFound if key is absent, or a standard error
func (M *MapStore) Get(key []byte) (record model.Record, err error) {
	key, err = M.storedKey(key)
	if err != nil {
		return
	}

	record, err = M.probingForGet(key)

	return
}

// Contains - Returns true if key is present
func (M *MapStore) Contains(key []byte) (found bool, err error) {
	_, err = M.Get(key)
	if err == nil {
		found = true
		return
	}

	if errors.Is(err, storeerr.NoRecordFound{}) {
		err = nil
	}

	return
}

// Remove - Removes key. The slot becomes empty if the next slot is empty, together with any run of
// tombstones right before it, otherwise it becomes a tombstone.
//   - key is the key to remove
//
// It returns:
//   - index which is the slot the entry lived in
//   - err which is storeerr.NoRecordFound if key is absent, or a standard error
func (M *MapStore) Remove(key []byte) (index int64, err error) {
	key, err = M.storedKey(key)
	if err != nil {
		return
	}

	record, err := M.probingForGet(key)
	if err != nil {
		return
	}
	index = record.Index

	next, err := M.getMode(M.nextSlot(index))
	if err != nil {
		return
	}

	if next != model.ModeEmpty {
		err = M.clearRecord(index, model.ModeTombstone)
		if err != nil {
			return
		}
	} else {
		err = M.clearRecord(index, model.ModeEmpty)
		if err != nil {
			return
		}
		err = M.compactTombstones(index)
		if err != nil {
			return
		}
	}

	err = M.setCount(M.count - 1)

	return
}

// Entry - Returns the record in slot index whatever its mode
func (M *MapStore) Entry(index int64) (record model.Record, err error) {
	err = M.checkIndex(index)
	if err != nil {
		return
	}

	record, err = M.getRecord(index)

	return
}

// ForEach - Calls visitor for every occupied slot in slot order, stops when visitor returns false
func (M *MapStore) ForEach(visitor func(record model.Record) bool) (err error) {
	var record model.Record
	for i := int64(0); i < M.capacity; i++ {
		record, err = M.getRecord(i)
		if err != nil {
			return
		}
		if record.IsOccupied() && !visitor(record) {
			return
		}
	}

	return
}

// ReadPayloadAt - Reads len(p) bytes of the payload field of slot index starting at offset, the length
// prefix of variable payloads is not taken into account
func (M *MapStore) ReadPayloadAt(index, offset int64, p []byte) (err error) {
	address, err := M.payloadFieldAddress(index, offset, int64(len(p)))
	if err != nil {
		return
	}

	_, err = M.storage.ReadAt(p, address)
	if err != nil {
		err = fmt.Errorf("error while reading payload of slot %d: %w", index, err)
	}

	return
}

// WritePayloadAt - Writes p into the payload field of slot index starting at offset, the length prefix of
// variable payloads is left as is
func (M *MapStore) WritePayloadAt(index, offset int64, p []byte) (err error) {
	address, err := M.payloadFieldAddress(index, offset, int64(len(p)))
	if err != nil {
		return
	}

	_, err = M.storage.WriteAt(p, address)
	if err != nil {
		err = fmt.Errorf("error while writing payload of slot %d: %w", index, err)
	}

	return
}

// ReplacePayloadTail - Overwrites the payload of slot index from offset to its end with p. A variable payload
// gets length offset+len(p), the remainder of a fixed payload is zero filled.
func (M *MapStore) ReplacePayloadTail(index, offset int64, p []byte) (err error) {
	n := offset + int64(len(p))
	if offset < 0 || n > M.payloadSize {
		err = storeerr.NewOutOfBounds("payload tail of %d bytes at %d exceeds payload size %d", len(p), offset, M.payloadSize)
		return
	}

	tail := make([]byte, M.payloadSize-offset)
	_ = copy(tail, p)
	err = M.WritePayloadAt(index, offset, tail)
	if err != nil || !M.variablePayload {
		return
	}

	address := M.slotAddress(index) + M.payloadPrefixOffset()
	err = M.writeUint32(address, n)

	return
}

// CopyTo - Adds every occupied entry of this map store to dst, in slot order, and calls relocate with the
// source and destination slot of each entry so dependent structures can follow. Dst must have the same key
// and payload layout and room for all entries.
//   - dst is the map store to copy into
//   - relocate may be nil, an error from it stops the copy
func (M *MapStore) CopyTo(dst *MapStore, relocate func(from, to int64) error) (err error) {
	if dst.keySize != M.keySize || dst.variableKey != M.variableKey ||
		dst.payloadSize != M.payloadSize || dst.variablePayload != M.variablePayload {
		err = storeerr.NewInvalidArgument("destination map store layout differs from source")
		return
	}

	var to int64
	var copyErr error
	err = M.ForEach(func(record model.Record) bool {
		to, copyErr = dst.AddMode(record.Mode, record.Key, record.Payload)
		if copyErr != nil {
			copyErr = fmt.Errorf("error while copying slot %d: %w", record.Index, copyErr)
			return false
		}
		if relocate != nil {
			copyErr = relocate(record.Index, to)
		}
		return copyErr == nil
	})
	if err == nil {
		err = copyErr
	}

	return
}
