package chunkmap

import (
	"context"
	"github.com/gostonefire/chunkmap/hashfunc"
	"github.com/gostonefire/chunkmap/internal/hash"
	"github.com/gostonefire/chunkmap/mapstore"
)

// MapParams - Parameters of a hash map
//   - KeySize is the key length, or the max key length if VariableKey is set
//   - VariableKey set to true stores keys behind a length prefix, otherwise keys are zero padded to KeySize
//   - PayloadSize is the payload length, or the max payload length if VariablePayload is set
//   - VariablePayload set to true stores payloads behind a length prefix
//   - MaxCount is the initial max count, zero means Conf.InitialMapSize
//   - HashAlgorithm is an optional custom hash algorithm, nil means the built in linear probing one
type MapParams struct {
	KeySize         int64
	VariableKey     bool
	PayloadSize     int64
	VariablePayload bool
	MaxCount        int64
	HashAlgorithm   hashfunc.HashAlgorithm
}

// Map - A hash map living in a chunk of an engine. Calls are safe for concurrent use and are serialized per map.
// The map moves to a bigger chunk when it fills up, so Address may change after Set.
type Map struct {
	c *container[*mapstore.MapStore]
}

// CreateMap - Allocates a chunk and creates an empty hash map in it
func (E *Engine) CreateMap(params MapParams) (m *Map, err error) {
	maxCount := params.MaxCount
	if maxCount == 0 {
		maxCount = E.conf.InitialMapSize
	}

	c, err := newContainer[*mapstore.MapStore](E, mapLayout{params: params.storeParams()}, "map", maxCount)
	if err != nil {
		return
	}

	m = &Map{c: c}

	return
}

// OpenMap - Opens the hash map held in the chunk at address
//   - address is the value of Address when the map was last in use
//   - hashAlgorithm must be the one the map was created with, nil means the built in one
func (E *Engine) OpenMap(address int64, hashAlgorithm hashfunc.HashAlgorithm) (m *Map, err error) {
	layout := mapLayout{params: mapstore.Params{HashAlgorithm: hashAlgorithm}}
	c, err := openContainer[*mapstore.MapStore](E, layout, "map", address)
	if err != nil {
		return
	}

	// Later chunks are laid out with the parameters found in the chunk
	params := c.store.Params()
	params.HashAlgorithm = hashAlgorithm
	c.layout = mapLayout{params: params}

	m = &Map{c: c}

	return
}

// Set - Adds or updates key, growing the map if it is full
func (M *Map) Set(ctx context.Context, key, payload []byte) (err error) {
	err = M.c.lock(ctx)
	if err != nil {
		return
	}
	defer M.c.unlock()

	_, err = M.c.set(func(store *mapstore.MapStore) (int64, error) {
		return store.Add(key, payload)
	})

	return
}

// Get - Returns the payload of key, storeerr.NoRecordFound if key is absent
func (M *Map) Get(ctx context.Context, key []byte) (payload []byte, err error) {
	err = M.c.lock(ctx)
	if err != nil {
		return
	}
	defer M.c.unlock()

	record, err := M.c.store.Get(key)
	if err != nil {
		return
	}
	payload = record.Payload

	return
}

// Contains - Returns true if key is present
func (M *Map) Contains(ctx context.Context, key []byte) (found bool, err error) {
	err = M.c.lock(ctx)
	if err != nil {
		return
	}
	defer M.c.unlock()

	found, err = M.c.store.Contains(key)

	return
}

// Remove - Removes key and any object attached to it
func (M *Map) Remove(ctx context.Context, key []byte) (err error) {
	err = M.c.lock(ctx)
	if err != nil {
		return
	}
	defer M.c.unlock()

	index, err := M.c.store.Remove(key)
	if err != nil {
		return
	}
	M.c.detach(index)

	return
}

// ForEach - Calls visitor for every entry in slot order until it returns false
func (M *Map) ForEach(ctx context.Context, visitor func(key, payload []byte) bool) (err error) {
	err = M.c.lock(ctx)
	if err != nil {
		return
	}
	defer M.c.unlock()

	err = M.c.store.ForEach(func(record mapstore.Record) bool {
		return visitor(record.Key, record.Payload)
	})

	return
}

// Count - Returns the number of entries
func (M *Map) Count(ctx context.Context) (count int64, err error) {
	err = M.c.lock(ctx)
	if err != nil {
		return
	}
	defer M.c.unlock()

	count = M.c.store.Count()

	return
}

// Attach - Attaches an in memory object to key. Attached objects follow their entry when the map grows
// but are not persisted.
func (M *Map) Attach(ctx context.Context, key []byte, obj any) (err error) {
	err = M.c.lock(ctx)
	if err != nil {
		return
	}
	defer M.c.unlock()

	record, err := M.c.store.Get(key)
	if err != nil {
		return
	}
	M.c.attach(record.Index, obj)

	return
}

// Attached - Returns the object attached to key, nil if none
func (M *Map) Attached(ctx context.Context, key []byte) (obj any, err error) {
	err = M.c.lock(ctx)
	if err != nil {
		return
	}
	defer M.c.unlock()

	record, err := M.c.store.Get(key)
	if err != nil {
		return
	}
	obj = M.c.attached[record.Index]

	return
}

// Address - Returns the address of the chunk the map lives in now
func (M *Map) Address(ctx context.Context) (int64, error) {
	return M.c.currentAddress(ctx)
}

// Close - Releases the map, its chunk stays allocated
func (M *Map) Close(ctx context.Context) error {
	return M.c.close(ctx, false)
}

// Drop - Releases the map and recycles its chunk
func (M *Map) Drop(ctx context.Context) error {
	return M.c.close(ctx, true)
}

// XXHashAlgorithm - Returns a hash algorithm built on xxhash, for key sets where the built in one clusters.
// Pass a new instance to CreateMap and OpenMap, instances are not shared between maps.
func XXHashAlgorithm() hashfunc.HashAlgorithm {
	return hash.NewXXHashAlgorithm(0)
}

// storeParams - Returns map store parameters, MaxCount is set per chunk
func (P MapParams) storeParams() mapstore.Params {
	return mapstore.Params{
		KeySize:         P.KeySize,
		VariableKey:     P.VariableKey,
		PayloadSize:     P.PayloadSize,
		VariablePayload: P.VariablePayload,
		HashAlgorithm:   P.HashAlgorithm,
	}
}
