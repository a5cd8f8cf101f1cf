package chunkmap

import (
	"context"
	"errors"
	"fmt"
	"github.com/gostonefire/chunkmap/metrics"
	"github.com/gostonefire/chunkmap/region"
	"github.com/gostonefire/chunkmap/storeerr"
	"github.com/gostonefire/chunkmap/stripe"
	"go.uber.org/zap"
)

// errClosed - Returned by calls on a closed map
var errClosed = errors.New("map is closed")

// container - A structure of type H living in one chunk, moved to a chunk twice the size when it is full.
// Objects attached to entries are kept in a slice parallel to the slots of the structure.
type container[H any] struct {
	engine   *Engine
	layout   Layout[H]
	kind     string
	token    *stripe.Token
	address  int64
	view     *region.BoundedView
	store    H
	attached []any
	closed   bool
}

// newContainer - Allocates a chunk and creates a structure for maxCount entries in it
func newContainer[H any](engine *Engine, layout Layout[H], kind string, maxCount int64) (c *container[H], err error) {
	address, view, store, err := createIn(engine, layout, maxCount)
	if err != nil {
		return
	}

	c = &container[H]{
		engine:   engine,
		layout:   layout,
		kind:     kind,
		token:    engine.locks.ForAddress(address),
		address:  address,
		view:     view,
		store:    store,
		attached: make([]any, layout.Capacity(store)),
	}

	engine.logger.Debug("map created",
		zap.String("kind", kind),
		zap.Int64("address", address),
		zap.Int64("maxCount", maxCount))

	return
}

// openContainer - Opens the structure held in the chunk at address
func openContainer[H any](engine *Engine, layout Layout[H], kind string, address int64) (c *container[H], err error) {
	view, err := engine.allocator.GetChunk(address)
	if err != nil {
		return
	}

	store, err := layout.Open(view)
	if err != nil {
		_ = view.Close()
		err = fmt.Errorf("error while opening %s at %d: %w", kind, address, err)
		return
	}

	c = &container[H]{
		engine:   engine,
		layout:   layout,
		kind:     kind,
		token:    engine.locks.ForAddress(address),
		address:  address,
		view:     view,
		store:    store,
		attached: make([]any, layout.Capacity(store)),
	}

	return
}

// createIn - Allocates a chunk sized for maxCount entries and creates a structure in it, the chunk is
// recycled again on failure
func createIn[H any](engine *Engine, layout Layout[H], maxCount int64) (address int64, view *region.BoundedView, store H, err error) {
	address, err = engine.allocator.NewChunk(layout.SizeFor(maxCount))
	if err != nil {
		return
	}

	view, err = engine.allocator.GetChunk(address)
	if err != nil {
		_ = engine.allocator.RemoveChunk(address)
		return
	}

	store, err = layout.Create(view, maxCount)
	if err != nil {
		view.MarkForRecycle()
		_ = view.Close()
		view = nil
	}

	return
}

// lock - Acquires the lock of the container, fails if ctx is done first or the container is closed
func (C *container[H]) lock(ctx context.Context) (err error) {
	err = C.token.LockContext(ctx)
	if err != nil {
		return
	}

	if C.closed {
		C.token.Unlock()
		err = errClosed
	}

	return
}

// unlock - Releases the lock of the container
func (C *container[H]) unlock() {
	C.token.Unlock()
}

// set - Calls add and, if the structure is over capacity, grows it and calls add once more
func (C *container[H]) set(add func(store H) (int64, error)) (index int64, err error) {
	index, err = add(C.store)
	if !errors.Is(err, storeerr.OverCapacity{}) {
		return
	}

	err = C.grow()
	if err != nil {
		return
	}

	index, err = add(C.store)

	return
}

// grow - Copies the structure into a new chunk sized for twice the max count and recycles the old chunk
func (C *container[H]) grow() (err error) {
	from := C.layout.MaxCount(C.store)
	to := from * 2

	address, view, store, err := createIn(C.engine, C.layout, to)
	if err != nil {
		C.layout.Resume(C.store)
		err = fmt.Errorf("error while allocating %s for max count %d: %w", C.kind, to, err)
		return
	}

	attached := make([]any, C.layout.Capacity(store))
	err = C.layout.CopyTo(C.store, store, func(from, to int64) error {
		attached[to] = C.attached[from]
		return nil
	})
	if err != nil {
		view.MarkForRecycle()
		_ = view.Close()
		C.layout.Resume(C.store)
		err = fmt.Errorf("error while copying %s to max count %d: %w", C.kind, to, err)
		return
	}

	old := C.view
	oldAddress := C.address
	C.address, C.view, C.store, C.attached = address, view, store, attached

	old.MarkForRecycle()
	err = old.Close()
	if err != nil {
		err = fmt.Errorf("error while recycling old %s chunk at %d: %w", C.kind, oldAddress, err)
		return
	}

	C.engine.metrics.Counter(metrics.MapsGrown).Inc()
	C.engine.logger.Debug("map grown",
		zap.String("kind", C.kind),
		zap.Int64("from", oldAddress),
		zap.Int64("to", address),
		zap.Int64("maxCount", to))

	return
}

// attach - Sets the object attached to slot index
func (C *container[H]) attach(index int64, obj any) {
	C.attached[index] = obj
}

// detach - Clears the object attached to slot index
func (C *container[H]) detach(index int64) {
	C.attached[index] = nil
}

// close - Closes the view of the container, recycling its chunk if drop is set
func (C *container[H]) close(ctx context.Context, drop bool) (err error) {
	err = C.lock(ctx)
	if err != nil {
		return
	}
	defer C.unlock()

	if drop {
		C.view.MarkForRecycle()
	}
	err = C.view.Close()
	C.closed = true
	C.attached = nil

	return
}

// currentAddress - Returns the chunk address the structure lives in now
func (C *container[H]) currentAddress(ctx context.Context) (address int64, err error) {
	err = C.lock(ctx)
	if err != nil {
		return
	}
	defer C.unlock()

	address = C.address

	return
}
