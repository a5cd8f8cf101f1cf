// Package chunkmap is an embedded storage engine turning one byte region into power of two sized chunks that hold
// hash maps and sorted maps. Maps grow by copying themselves into a chunk twice their size when they fill up.
package chunkmap

import (
	"context"
	"fmt"
	"github.com/gostonefire/chunkmap/chunkstore"
	"github.com/gostonefire/chunkmap/metrics"
	"github.com/gostonefire/chunkmap/region"
	"github.com/gostonefire/chunkmap/stripe"
	"go.uber.org/zap"
)

// Engine - Owns a region, the chunk allocator laid out in it and the locks maps are serialized on
type Engine struct {
	region       region.Region
	allocator    *chunkstore.Allocator
	conf         Conf
	logger       *zap.Logger
	metrics      *metrics.Registry
	locks        *stripe.Locks
	addressLocks *stripe.AddressLocks
}

// NewEngine - Formats the region as an empty chunk store and returns an engine on top of it
//   - r is the region to take ownership of
//   - cfg is a Conf struct, typically DefaultConf or from LoadConf
//   - logger is the logger to use, nil means no logging
//   - registry is the metrics registry to report into, may be nil
//
// It returns:
//   - engine which is a pointer to the created instance
//   - err which is a standard Go type of error
func NewEngine(r region.Region, cfg Conf, logger *zap.Logger, registry *metrics.Registry) (engine *Engine, err error) {
	engine, err = newEngine(r, cfg, logger, registry)
	if err != nil {
		return
	}

	engine.allocator, err = chunkstore.New(r, engine.chunkStoreConf())
	if err != nil {
		engine = nil
		err = fmt.Errorf("error while creating chunk store: %w", err)
		return
	}

	engine.logger.Info("engine created", zap.Int64("minChunkPower", cfg.MinChunkPower))

	return
}

// OpenEngine - Returns an engine on top of a region already holding a chunk store
//   - r is the region to take ownership of
//   - cfg is a Conf struct, MinChunkPower must be the one the chunk store was created with
//   - logger is the logger to use, nil means no logging
//   - registry is the metrics registry to report into, may be nil
//
// It returns:
//   - engine which is a pointer to the opened instance
//   - err which is a standard Go type of error
func OpenEngine(r region.Region, cfg Conf, logger *zap.Logger, registry *metrics.Registry) (engine *Engine, err error) {
	engine, err = newEngine(r, cfg, logger, registry)
	if err != nil {
		return
	}

	engine.allocator, err = chunkstore.Open(r, engine.chunkStoreConf())
	if err != nil {
		engine = nil
		err = fmt.Errorf("error while opening chunk store: %w", err)
		return
	}

	engine.logger.Info("engine opened", zap.Int64("totalLength", engine.allocator.TotalLength()))

	return
}

// Allocator - Returns the chunk allocator underneath
func (E *Engine) Allocator() *chunkstore.Allocator {
	return E.allocator
}

// Conf - Returns the configuration the engine runs with
func (E *Engine) Conf() Conf {
	return E.conf
}

// Root - Returns the reference number kept in the chunk store header, typically the address of a root map
func (E *Engine) Root() (int64, error) {
	return E.allocator.ReferenceNumber()
}

// SetRoot - Stores a reference number in the chunk store header
func (E *Engine) SetRoot(address int64) error {
	return E.allocator.SetReferenceNumber(address)
}

// Stat - Returns chunk usage statistics
func (E *Engine) Stat() (chunkstore.ChunkStoreStat, error) {
	return E.allocator.Stat()
}

// NewChunk - Allocates a raw chunk with room for capacity bytes and returns its address
func (E *Engine) NewChunk(capacity int64) (address int64, err error) {
	return E.allocator.NewChunk(capacity)
}

// Chunk - Runs fn with a view of the raw chunk at address while holding the lock of that address.
// The view is closed when fn returns, use MarkForRecycle on it to have the chunk recycled at that point.
//   - ctx bounds the wait for the address lock
//   - address is a chunk address as returned from NewChunk
//   - fn gets the view
func (E *Engine) Chunk(ctx context.Context, address int64, fn func(view *region.BoundedView) error) (err error) {
	err = E.addressLocks.LockContext(ctx, address)
	if err != nil {
		return
	}
	defer E.addressLocks.Unlock(address)

	view, err := E.allocator.GetChunk(address)
	if err != nil {
		return
	}
	defer func() {
		closeErr := view.Close()
		if err == nil {
			err = closeErr
		}
	}()

	err = fn(view)

	return
}

// RemoveChunk - Recycles the raw chunk at address while holding the lock of that address
func (E *Engine) RemoveChunk(ctx context.Context, address int64) (err error) {
	err = E.addressLocks.LockContext(ctx, address)
	if err != nil {
		return
	}
	defer E.addressLocks.Unlock(address)

	err = E.allocator.RemoveChunk(address)

	return
}

// Flush - Flushes the region
func (E *Engine) Flush() error {
	return E.region.Flush()
}

// Close - Flushes and closes the region. Maps must be closed first.
func (E *Engine) Close() (err error) {
	err = E.region.Flush()
	if err != nil {
		_ = E.region.Close()
		err = fmt.Errorf("error while flushing region: %w", err)
		return
	}

	err = E.region.Close()

	return
}

// newEngine - Validates configuration and sets up everything but the allocator
func newEngine(r region.Region, cfg Conf, logger *zap.Logger, registry *metrics.Registry) (engine *Engine, err error) {
	err = cfg.Validate()
	if err != nil {
		return
	}

	locks, err := stripe.New(cfg.LockStripes)
	if err != nil {
		return
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	engine = &Engine{
		region:       r,
		conf:         cfg,
		logger:       logger,
		metrics:      registry,
		locks:        locks,
		addressLocks: stripe.NewAddressLocks(cfg.AddressLockPool),
	}

	return
}

// chunkStoreConf - Returns the allocator configuration derived from the engine configuration
func (E *Engine) chunkStoreConf() chunkstore.Conf {
	return chunkstore.Conf{
		MinPower: E.conf.MinChunkPower,
		ZeroFill: E.conf.ZeroFill,
		Logger:   E.logger.Named("chunkstore"),
		Metrics:  E.metrics,
	}
}
