package chunkmap

import (
	"context"
	"github.com/gostonefire/chunkmap/skiplist"
)

// Range - Half open [Lo, Hi) key range, a nil bound is open
type Range = skiplist.Range

// SortedMapParams - Parameters of a sorted map
//   - KeySize is the key length, or the max key length if VariableKey is set
//   - VariableKey set to true stores keys behind a length prefix, otherwise keys are zero padded to KeySize
//   - PayloadSize is the payload length, or the max payload length if VariablePayload is set
//   - VariablePayload set to true stores payloads behind a length prefix
//   - MaxCount is the initial max count, zero means Conf.InitialMapSize
//   - Comparator orders keys, nil means byte order
type SortedMapParams struct {
	KeySize         int64
	VariableKey     bool
	PayloadSize     int64
	VariablePayload bool
	MaxCount        int64
	Comparator      skiplist.Comparator
}

// SortedMap - A skip list ordered map living in a chunk of an engine. Calls are safe for concurrent use and
// are serialized per map.
type SortedMap struct {
	c *container[*skiplist.SkipList]
}

// CreateSortedMap - Allocates a chunk and creates an empty sorted map in it. Node heights are drawn from a
// source seeded with Conf.SkipListSeed.
func (E *Engine) CreateSortedMap(params SortedMapParams) (m *SortedMap, err error) {
	maxCount := params.MaxCount
	if maxCount == 0 {
		maxCount = E.conf.InitialMapSize
	}

	layout := sortedLayout{params: skiplist.Params{
		KeySize:         params.KeySize,
		VariableKey:     params.VariableKey,
		PayloadSize:     params.PayloadSize,
		VariablePayload: params.VariablePayload,
		Comparator:      params.Comparator,
		Random:          skiplist.DefaultRandom(E.conf.SkipListSeed),
	}}

	c, err := newContainer[*skiplist.SkipList](E, layout, "sorted map", maxCount)
	if err != nil {
		return
	}

	m = &SortedMap{c: c}

	return
}

// OpenSortedMap - Opens the sorted map held in the chunk at address
//   - address is the value of Address when the map was last in use
//   - comparator must order keys the way the map was created with, nil means byte order
func (E *Engine) OpenSortedMap(address int64, comparator skiplist.Comparator) (m *SortedMap, err error) {
	layout := sortedLayout{params: skiplist.Params{
		Comparator: comparator,
		Random:     skiplist.DefaultRandom(E.conf.SkipListSeed),
	}}

	c, err := openContainer[*skiplist.SkipList](E, layout, "sorted map", address)
	if err != nil {
		return
	}
	c.layout = sortedLayout{params: c.store.Params()}

	m = &SortedMap{c: c}

	return
}

// Set - Adds or updates key, growing the map if it is full
func (S *SortedMap) Set(ctx context.Context, key, payload []byte) (err error) {
	err = S.c.lock(ctx)
	if err != nil {
		return
	}
	defer S.c.unlock()

	_, err = S.c.set(func(store *skiplist.SkipList) (int64, error) {
		return store.Add(key, payload)
	})

	return
}

// Get - Returns the payload of key, storeerr.NoRecordFound if key is absent
func (S *SortedMap) Get(ctx context.Context, key []byte) (payload []byte, err error) {
	err = S.c.lock(ctx)
	if err != nil {
		return
	}
	defer S.c.unlock()

	payload, _, err = S.c.store.Get(key)

	return
}

// Contains - Returns true if key is present
func (S *SortedMap) Contains(ctx context.Context, key []byte) (found bool, err error) {
	err = S.c.lock(ctx)
	if err != nil {
		return
	}
	defer S.c.unlock()

	found, err = S.c.store.Contains(key)

	return
}

// Remove - Removes key and any object attached to it
func (S *SortedMap) Remove(ctx context.Context, key []byte) (err error) {
	err = S.c.lock(ctx)
	if err != nil {
		return
	}
	defer S.c.unlock()

	index, err := S.c.store.Remove(key)
	if err != nil {
		return
	}
	S.c.detach(index)

	return
}

// Count - Returns the number of entries
func (S *SortedMap) Count(ctx context.Context) (count int64, err error) {
	err = S.c.lock(ctx)
	if err != nil {
		return
	}
	defer S.c.unlock()

	count = S.c.store.Count()

	return
}

// StreamKeys - Calls visitor with every key in ranges, in key order within each range. With no ranges every key
// is visited in storage order.
func (S *SortedMap) StreamKeys(ctx context.Context, ranges []Range, visitor func(key []byte) bool) (err error) {
	err = S.c.lock(ctx)
	if err != nil {
		return
	}
	defer S.c.unlock()

	err = S.c.store.StreamKeys(ranges, visitor)

	return
}

// Ascend - Calls visitor with every key and payload in key order until it returns false
func (S *SortedMap) Ascend(ctx context.Context, visitor func(key, payload []byte) bool) (err error) {
	err = S.c.lock(ctx)
	if err != nil {
		return
	}
	defer S.c.unlock()

	err = S.c.store.Ascend(visitor)

	return
}

// AscendRange - Calls visitor with every key and payload in r in key order until it returns false
func (S *SortedMap) AscendRange(ctx context.Context, r Range, visitor func(key, payload []byte) bool) (err error) {
	err = S.c.lock(ctx)
	if err != nil {
		return
	}
	defer S.c.unlock()

	err = S.c.store.AscendRange(r, visitor)

	return
}

// Attach - Attaches an in memory object to key, kept across growth but not persisted
func (S *SortedMap) Attach(ctx context.Context, key []byte, obj any) (err error) {
	err = S.c.lock(ctx)
	if err != nil {
		return
	}
	defer S.c.unlock()

	_, index, err := S.c.store.Get(key)
	if err != nil {
		return
	}
	S.c.attach(index, obj)

	return
}

// Attached - Returns the object attached to key, nil if none
func (S *SortedMap) Attached(ctx context.Context, key []byte) (obj any, err error) {
	err = S.c.lock(ctx)
	if err != nil {
		return
	}
	defer S.c.unlock()

	_, index, err := S.c.store.Get(key)
	if err != nil {
		return
	}
	obj = S.c.attached[index]

	return
}

// Address - Returns the address of the chunk the map lives in now
func (S *SortedMap) Address(ctx context.Context) (int64, error) {
	return S.c.currentAddress(ctx)
}

// Close - Releases the map, its chunk stays allocated
func (S *SortedMap) Close(ctx context.Context) error {
	return S.c.close(ctx, false)
}

// Drop - Releases the map and recycles its chunk
func (S *SortedMap) Drop(ctx context.Context) error {
	return S.c.close(ctx, true)
}
