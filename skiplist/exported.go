// Package skiplist embeds an ordered skip list in a map store so its keys can be scanned in order.
//
// Every node is a map store entry. Its payload starts with a column, one height byte followed by max height
// four byte slot indices, and the user payload follows the column. Column index 0 points back to the
// predecessor, index 1 and up point forward, level 1 chaining all keys in order. A sentinel head entry with a
// full height column is created together with the map store. Its key is key size zero bytes, so that key is
// reserved and can not be added.
package skiplist

import (
	"bytes"
	"errors"
	"fmt"
	"github.com/gostonefire/chunkmap/internal/conf"
	"github.com/gostonefire/chunkmap/internal/utils"
	"github.com/gostonefire/chunkmap/mapstore"
	"github.com/gostonefire/chunkmap/storeerr"
	"math/rand"
)

// NullIndex - Column pointer value meaning no node
const NullIndex = int64(conf.NullIndex)

// Comparator - Orders two user keys, negative if a sorts before b, zero if equal, positive otherwise
type Comparator func(a, b []byte) int

// RandomSource - Source of node heights, *rand.Rand and rand.Source both qualify
type RandomSource interface {
	Int63() int64
}

// Range - Half open key range [Lo, Hi), a nil Lo starts at the first key and a nil Hi never ends
type Range struct {
	Lo []byte
	Hi []byte
}

// Params - Is a struct to be passed in the call to Create
//   - MaxCount is the number of user keys the skip list accepts
//   - KeySize is the key length, or the max key length if VariableKey is set
//   - VariableKey set to true stores keys behind a length prefix, otherwise keys are zero padded to KeySize
//   - PayloadSize is the user payload length, or the max length if VariablePayload is set
//   - VariablePayload set to true stores user payloads behind a length prefix
//   - Comparator orders keys, nil means bytes.Compare
//   - Random picks node heights, nil means a source seeded with 1
type Params struct {
	MaxCount        int64
	KeySize         int64
	VariableKey     bool
	PayloadSize     int64
	VariablePayload bool
	Comparator      Comparator
	Random          RandomSource
}

// SkipList - An ordered index over one map store. Like the map store it is not safe for concurrent use.
type SkipList struct {
	store       *mapstore.MapStore
	headIndex   int64
	headKey     []byte
	maxHeight   int64
	columnSize  int64
	maxCount    int64
	keySize     int64
	payloadSize int64
	comparator  Comparator
	random      RandomSource
}

// MaxHeightFor - Returns the max column height for a map store of capacity slots
func MaxHeightFor(capacity int64) int64 {
	return max(conf.MinMaxHeight, min(conf.MaxMaxHeight, utils.Log2(capacity)))
}

// ColumnSize - Returns the number of payload bytes a column of maxHeight occupies
func ColumnSize(maxHeight int64) int64 {
	return conf.HeightBytes + conf.ForwardBytes*maxHeight
}

// StoreParams - Returns the parameters of the map store underneath a skip list
func StoreParams(params Params) mapstore.Params {
	maxCount := params.MaxCount + 2
	columnSize := ColumnSize(MaxHeightFor(mapstore.CapacityFor(maxCount)))

	return mapstore.Params{
		MaxCount:        maxCount,
		KeySize:         params.KeySize,
		VariableKey:     params.VariableKey,
		PayloadSize:     params.PayloadSize + columnSize,
		VariablePayload: params.VariablePayload,
	}
}

// SizeFor - Returns the number of bytes a skip list with the given parameters occupies
func SizeFor(params Params) int64 {
	return mapstore.SizeFor(StoreParams(params))
}

// Create - Creates the map store and its head entry in storage and returns a pointer to the skip list.
// Storage must be at least SizeFor(params) long.
//   - storage is the byte range to use
//   - params is a Params struct
//
// It returns:
//   - skipList which is a pointer to the created instance
//   - err which is a standard Go type of error
func Create(storage mapstore.Storage, params Params) (skipList *SkipList, err error) {
	if params.MaxCount < 1 || params.KeySize < 1 || params.PayloadSize < 0 {
		err = storeerr.NewInvalidArgument("max count %d, key size %d and payload size %d must be positive",
			params.MaxCount, params.KeySize, params.PayloadSize)
		return
	}

	store, err := mapstore.Create(storage, StoreParams(params))
	if err != nil {
		return
	}

	skipList = newSkipList(store, params.Comparator, params.Random)

	head := make([]byte, skipList.columnSize)
	writeColumn(head, skipList.maxHeight, skipList.nullColumn())
	skipList.headIndex, err = store.Add(skipList.headKey, head)
	if err != nil {
		skipList = nil
		err = fmt.Errorf("error while adding skip list head: %w", err)
		return
	}

	return
}

// Open - Opens a skip list created earlier in storage and locates its head entry
//   - storage is the byte range the skip list was created in
//   - comparator must order keys like the one given at creation, nil means bytes.Compare
//   - random picks node heights, nil means a source seeded with 1
//
// It returns:
//   - skipList which is a pointer to the opened instance
//   - err which is a standard Go type of error
func Open(storage mapstore.Storage, comparator Comparator, random RandomSource) (skipList *SkipList, err error) {
	store, err := mapstore.Open(storage, nil)
	if err != nil {
		return
	}

	sl := newSkipList(store, comparator, random)
	if store.MaxCount() < 3 || store.KeySize() < 1 || store.PayloadSize() < sl.columnSize {
		err = storeerr.NewCorruption(0, "map store with max count %d, key size %d and payload size %d holds no skip list",
			store.MaxCount(), store.KeySize(), store.PayloadSize())
		return
	}

	record, err := store.Get(sl.headKey)
	if err != nil {
		if errors.Is(err, storeerr.NoRecordFound{}) {
			err = storeerr.NewCorruption(0, "skip list head missing")
		}
		return
	}
	sl.headIndex = record.Index

	height, err := sl.height(sl.headIndex)
	if err != nil {
		return
	}
	if height != sl.maxHeight {
		err = storeerr.NewCorruption(record.RecordAddress, "skip list head height %d, expected %d", height, sl.maxHeight)
		return
	}

	skipList = sl

	return
}

// Store - Returns the map store underneath
func (S *SkipList) Store() *mapstore.MapStore {
	return S.store
}

// Count - Returns the number of user keys
func (S *SkipList) Count() int64 {
	return S.store.Count() - 1
}

// MaxCount - Returns the number of user keys the skip list accepts
func (S *SkipList) MaxCount() int64 {
	return S.maxCount
}

// MaxHeight - Returns the max column height
func (S *SkipList) MaxHeight() int64 {
	return S.maxHeight
}

// HeadIndex - Returns the slot of the head entry
func (S *SkipList) HeadIndex() int64 {
	return S.headIndex
}

// Params - Returns the parameters the skip list was created with, comparator and random source included
func (S *SkipList) Params() Params {
	sp := S.store.Params()
	return Params{
		MaxCount:        S.maxCount,
		KeySize:         S.keySize,
		VariableKey:     sp.VariableKey,
		PayloadSize:     S.payloadSize,
		VariablePayload: sp.VariablePayload,
		Comparator:      S.comparator,
		Random:          S.random,
	}
}

// Add - Adds key with payload. If key is present only its payload is replaced, its column stays as is.
//   - key is at most KeySize long and not KeySize zero bytes
//   - payload is at most PayloadSize long
//
// It returns:
//   - index which is the slot the entry lives in
//   - err which is storeerr.OverCapacity if MaxCount keys are present, or a standard error
func (S *SkipList) Add(key, payload []byte) (index int64, err error) {
	stored, err := S.storedKey(key)
	if err != nil {
		return
	}
	if S.isHeadKey(stored) {
		err = storeerr.NewInvalidArgument("key of %d zero bytes is reserved for the skip list head", S.keySize)
		return
	}
	if int64(len(payload)) > S.payloadSize {
		err = storeerr.NewInvalidArgument("payload length %d exceeds payload size %d", len(payload), S.payloadSize)
		return
	}

	record, err := S.store.Get(stored)
	if err == nil {
		index = record.Index
		err = S.store.ReplacePayloadTail(index, S.columnSize, payload)
		return
	}
	if !errors.Is(err, storeerr.NoRecordFound{}) {
		return
	}

	if S.Count() >= S.maxCount {
		err = storeerr.NewOverCapacity("skip list holds max count %d keys", S.maxCount)
		return
	}

	update, err := S.predecessors(stored)
	if err != nil {
		return
	}

	height := S.randomHeight()
	column := S.nullColumn()
	column[0] = update[1]
	for l := int64(1); l < height; l++ {
		column[l], err = S.forward(update[l], l)
		if err != nil {
			return
		}
	}

	buf := make([]byte, S.columnSize+int64(len(payload)))
	writeColumn(buf, height, column)
	_ = copy(buf[S.columnSize:], payload)

	index, err = S.store.Add(stored, buf)
	if err != nil {
		return
	}

	for l := int64(1); l < height; l++ {
		err = S.setPointer(update[l], l, index)
		if err != nil {
			return
		}
	}
	if column[1] != NullIndex {
		err = S.setPointer(column[1], 0, index)
	}

	return
}

// Remove - Unlinks key from every level and removes its entry
//   - key is the key to remove
//
// It returns:
//   - index which is the slot the entry lived in
//   - err which is storeerr.NoRecordFound if key is absent, or a standard error
func (S *SkipList) Remove(key []byte) (index int64, err error) {
	stored, err := S.storedKey(key)
	if err != nil {
		return
	}

	if S.isHeadKey(stored) {
		err = storeerr.NoRecordFound{}
		return
	}

	record, err := S.store.Get(stored)
	if err != nil {
		return
	}
	index = record.Index

	update, err := S.predecessors(stored)
	if err != nil {
		return
	}

	height, err := S.height(index)
	if err != nil {
		return
	}

	var next int64
	for l := int64(1); l < height; l++ {
		next, err = S.forward(index, l)
		if err != nil {
			return
		}

		var current int64
		current, err = S.forward(update[l], l)
		if err != nil {
			return
		}
		if current != index {
			err = storeerr.NewCorruption(record.RecordAddress, "slot %d not linked from its predecessor at level %d", index, l)
			return
		}

		err = S.setPointer(update[l], l, next)
		if err != nil {
			return
		}

		if l == 1 && next != NullIndex {
			err = S.setPointer(next, 0, update[1])
			if err != nil {
				return
			}
		}
	}

	_, err = S.store.Remove(stored)

	return
}

// Get - Returns the user payload held for key and the slot it lives in
//
// It returns:
//   - payload which is the user payload, zero padded if payloads are fixed size
//   - index which is the slot of the entry
//   - err which is storeerr.NoRecordFound if key is absent, or a standard error
func (S *SkipList) Get(key []byte) (payload []byte, index int64, err error) {
	stored, err := S.storedKey(key)
	if err != nil {
		return
	}

	if S.isHeadKey(stored) {
		err = storeerr.NoRecordFound{}
		return
	}

	record, err := S.store.Get(stored)
	if err != nil {
		return
	}

	payload = record.Payload[S.columnSize:]
	index = record.Index

	return
}

// Contains - Returns true if key is present
func (S *SkipList) Contains(key []byte) (found bool, err error) {
	_, _, err = S.Get(key)
	if err == nil {
		found = true
		return
	}

	if errors.Is(err, storeerr.NoRecordFound{}) {
		err = nil
	}

	return
}

// Entry - Returns the user key and payload held in slot index, storeerr.NoRecordFound if the slot holds no key
func (S *SkipList) Entry(index int64) (key, payload []byte, err error) {
	record, err := S.store.Entry(index)
	if err != nil {
		return
	}
	if !record.IsOccupied() || index == S.headIndex {
		err = storeerr.NoRecordFound{}
		return
	}

	key = record.Key
	payload = record.Payload[S.columnSize:]

	return
}

// FindWouldInsertAtOrAfter - Walks the levels like Add does without changing anything and returns the slot of
// the last key sorting before key. That is the head index if no key does.
func (S *SkipList) FindWouldInsertAtOrAfter(key []byte) (index int64, err error) {
	stored, err := S.storedKey(key)
	if err != nil {
		return
	}

	update, err := S.predecessors(stored)
	if err != nil {
		return
	}
	index = update[1]

	return
}

// Next - Returns the slot following index in key order, NullIndex after the last key. Index may be the head index.
func (S *SkipList) Next(index int64) (next int64, err error) {
	return S.forward(index, 1)
}

// Prev - Returns the slot preceding index in key order, NullIndex before the first key
func (S *SkipList) Prev(index int64) (prev int64, err error) {
	if index == S.headIndex {
		prev = NullIndex
		return
	}

	_, _, err = S.Entry(index)
	if err != nil {
		return
	}

	prev, err = S.pointer(index, 0)
	if err == nil && prev == S.headIndex {
		prev = NullIndex
	}

	return
}

// StreamKeys - Calls visitor with every key in ranges, in key order within each range and ranges in the given
// order. With no ranges it visits every key in slot order, which is not key order. Streaming stops when
// visitor returns false.
//   - ranges are half open [Lo, Hi) key ranges
//   - visitor gets the user key
func (S *SkipList) StreamKeys(ranges []Range, visitor func(key []byte) bool) (err error) {
	if ranges == nil {
		return S.store.ForEach(func(record mapstore.Record) bool {
			if record.Index == S.headIndex {
				return true
			}
			return visitor(record.Key)
		})
	}

	for _, r := range ranges {
		var more bool
		more, err = S.streamRange(r, func(key, payload []byte) bool {
			return visitor(key)
		})
		if err != nil || !more {
			return
		}
	}

	return
}

// Ascend - Calls visitor with every key and payload in key order, stops when visitor returns false
func (S *SkipList) Ascend(visitor func(key, payload []byte) bool) (err error) {
	_, err = S.streamRange(Range{}, visitor)

	return
}

// AscendRange - Calls visitor with every key and payload in r in key order, stops when visitor returns false
func (S *SkipList) AscendRange(r Range, visitor func(key, payload []byte) bool) (err error) {
	_, err = S.streamRange(r, visitor)

	return
}

// CopyTo - Adds every user entry of this skip list to dst, rebuilding the columns of dst from scratch, and calls
// relocate with the source and destination slot of each entry. Dst must have the same key and payload layout.
//   - dst is the skip list to copy into
//   - relocate may be nil, an error from it stops the copy
func (S *SkipList) CopyTo(dst *SkipList, relocate func(from, to int64) error) (err error) {
	sp, dp := S.store.Params(), dst.store.Params()
	if S.keySize != dst.keySize || S.payloadSize != dst.payloadSize ||
		sp.VariableKey != dp.VariableKey || sp.VariablePayload != dp.VariablePayload {
		err = storeerr.NewInvalidArgument("destination skip list layout differs from source")
		return
	}

	var to int64
	var copyErr error
	err = S.store.ForEach(func(record mapstore.Record) bool {
		if record.Index == S.headIndex {
			return true
		}

		to, copyErr = dst.Add(record.Key, record.Payload[S.columnSize:])
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

// DefaultRandom - Returns the random source used when none is given, seeded for reproducible heights
func DefaultRandom(seed int64) RandomSource {
	return rand.New(rand.NewSource(seed))
}

// DefaultComparator - Orders keys byte by byte
func DefaultComparator(a, b []byte) int {
	return bytes.Compare(a, b)
}
