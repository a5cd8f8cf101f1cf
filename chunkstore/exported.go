// Package chunkstore carves one growable region into power of two sized chunks.
//
// The region starts with a global header (total length, reference number) followed by one free
// list head per size class. Chunks follow back to back, each one a 32 byte header and a payload
// of 2^power bytes. Removed chunks are zero filled and pushed onto the free list of their size
// class, space is never handed back to the region.
package chunkstore

import (
	"fmt"
	"github.com/gostonefire/chunkmap/internal/conf"
	"github.com/gostonefire/chunkmap/internal/model"
	"github.com/gostonefire/chunkmap/metrics"
	"github.com/gostonefire/chunkmap/region"
	"github.com/gostonefire/chunkmap/storeerr"
	"go.uber.org/zap"
	"sync"
)

// Conf - Is a struct to be passed in the call to New or Open and contains configuration that affects
// chunk allocation.
//   - MinPower is the power of the smallest chunk payload, 0 means conf.DefaultMinPower
//   - ZeroFill set to true overwrites chunk payloads with zeros when chunks are removed
//   - Logger is the logger to use, nil means no logging
//   - Metrics is the registry to report into, may be nil
type Conf struct {
	MinPower int64
	ZeroFill bool
	Logger   *zap.Logger
	Metrics  *metrics.Registry
}

// ChunkStoreStat - Statistics on chunk usage
//   - LiveChunks is the number of chunks in use
//   - FreeChunks is the number of recycled chunks waiting in free lists
//   - LiveBytes is the sum of payload capacities of chunks in use
//   - FreeBytes is the sum of payload capacities of recycled chunks
//   - TotalLength is the length of the chunk store including all headers
type ChunkStoreStat struct {
	LiveChunks  int64
	FreeChunks  int64
	LiveBytes   int64
	FreeBytes   int64
	TotalLength int64
}

// Allocator - Manages the chunks of one region. Header mutations of a single call are serialized on
// an internal lock, the payloads of chunks are guarded by the callers.
type Allocator struct {
	mutex       sync.Mutex
	region      region.Region
	minPower    int64
	zeroFill    bool
	dataStart   int64
	totalLength int64
	logger      *zap.Logger
	metrics     *metrics.Registry
}

// New - Formats the region as an empty chunk store. Any existing content is overwritten.
//   - r is the region to take ownership of
//   - cfg is a Conf struct
//
// It returns:
//   - allocator which is a pointer to the created instance
//   - err which is a standard Go type of error
func New(r region.Region, cfg Conf) (allocator *Allocator, err error) {
	allocator, err = newAllocator(r, cfg)
	if err != nil {
		return
	}

	err = allocator.format()
	if err != nil {
		allocator = nil
		return
	}

	allocator.logger.Debug("chunk store created",
		zap.Int64("minPower", allocator.minPower),
		zap.Int64("dataStart", allocator.dataStart))

	return
}

// Open - Returns an allocator for a region that already holds a chunk store. The min power must be the
// same as when the chunk store was created.
//   - r is the region to take ownership of
//   - cfg is a Conf struct
//
// It returns:
//   - allocator which is a pointer to the opened instance
//   - err which is a standard Go type of error
func Open(r region.Region, cfg Conf) (allocator *Allocator, err error) {
	allocator, err = newAllocator(r, cfg)
	if err != nil {
		return
	}

	length, err := r.Length()
	if err != nil {
		allocator = nil
		return
	}

	totalLength, err := allocator.readInt64(conf.TotalLengthOffset)
	if err != nil {
		allocator = nil
		err = fmt.Errorf("unable to read chunk store header: %w", err)
		return
	}

	if totalLength < allocator.dataStart || totalLength > length {
		allocator.metrics.Counter(metrics.CorruptionDetected).Inc()
		err = storeerr.NewCorruption(conf.TotalLengthOffset,
			"chunk store total length %d outside [%d, %d]", totalLength, allocator.dataStart, length)
		allocator = nil
		return
	}
	allocator.totalLength = totalLength

	if totalLength > allocator.dataStart {
		_, err = allocator.readHeader(allocator.dataStart)
		if err != nil {
			allocator = nil
			return
		}
	}

	return
}

// TotalLength - Returns the length of the chunk store, headers and free chunks included
func (A *Allocator) TotalLength() int64 {
	A.mutex.Lock()
	defer A.mutex.Unlock()

	return A.totalLength
}

// HeaderLength - Returns the length of a chunk header
func (A *Allocator) HeaderLength() int64 {
	return conf.ChunkHeaderLength
}

// ReferenceNumber - Returns the reference number kept in the global header. It is free for use by
// higher layers, typically to find their root record.
func (A *Allocator) ReferenceNumber() (referenceNumber int64, err error) {
	A.mutex.Lock()
	defer A.mutex.Unlock()

	return A.readInt64(conf.ReferenceNumberOffset)
}

// SetReferenceNumber - Stores a reference number in the global header
func (A *Allocator) SetReferenceNumber(referenceNumber int64) error {
	A.mutex.Lock()
	defer A.mutex.Unlock()

	return A.writeInt64(conf.ReferenceNumberOffset, referenceNumber)
}

// NewChunk - Returns the offset of a chunk with room for at least capacity bytes. A recycled chunk of
// the same size class is reused if there is one, otherwise a new chunk is appended at the tail of the region.
//   - capacity is the payload length of the chunk
func (A *Allocator) NewChunk(capacity int64) (offset int64, err error) {
	if capacity < 0 {
		err = storeerr.NewInvalidArgument("negative chunk capacity %d", capacity)
		return
	}

	power := A.powerFor(capacity)
	if power >= conf.MaxPower-1 {
		err = storeerr.NewInvalidArgument("chunk capacity %d too big", capacity)
		return
	}

	A.mutex.Lock()
	defer A.mutex.Unlock()

	offset, err = A.reuse(power, capacity)
	if err != nil || offset != conf.NoChunk {
		return
	}

	offset, err = A.appendChunk(power, capacity)

	return
}

// GetChunk - Returns a view scoped to the payload of the chunk at offset. It fails with a storeerr.Corruption
// if there is no live chunk at offset.
//   - offset is the chunk offset as returned from NewChunk
func (A *Allocator) GetChunk(offset int64) (view *region.BoundedView, err error) {
	A.mutex.Lock()
	header, err := A.readLiveHeader(offset)
	A.mutex.Unlock()
	if err != nil {
		return
	}

	start := offset + conf.ChunkHeaderLength
	view, err = region.NewChunkView(A.region, start, start+header.Length, offset, A)

	return
}

// RemoveChunk - Zero fills (if configured) the chunk at offset and pushes it onto the free list of its size class
//   - offset is the chunk offset as returned from NewChunk
func (A *Allocator) RemoveChunk(offset int64) (err error) {
	A.mutex.Lock()
	defer A.mutex.Unlock()

	header, err := A.readLiveHeader(offset)
	if err != nil {
		return
	}

	if A.zeroFill {
		err = A.zeroPayload(offset+conf.ChunkHeaderLength, int64(1)<<header.Power)
		if err != nil {
			return
		}
	}

	head, err := A.readInt64(A.freeListSlot(header.Power))
	if err != nil {
		return
	}

	header.NextFree = head
	header.Length = conf.FreeChunkLength
	err = A.writeHeader(header)
	if err != nil {
		return
	}

	err = A.writeInt64(A.freeListSlot(header.Power), offset)
	if err != nil {
		return
	}

	A.metrics.Counter(metrics.ChunksRecycled).Inc()
	A.logger.Debug("chunk recycled", zap.Int64("offset", offset), zap.Int64("power", header.Power))

	return
}

// AllChunks - Walks every chunk from the start of the data area to the end of the chunk store and calls
// visitor for each live chunk. The walk stops when visitor returns false.
//   - visitor gets the chunk offset and its payload length
func (A *Allocator) AllChunks(visitor func(offset, length int64) bool) error {
	return A.walk(func(header model.ChunkHeader) bool {
		if header.IsFree() {
			return true
		}
		return visitor(header.Offset, header.Length)
	})
}

// Stat - Walks through all chunks and free lists and produces a ChunkStoreStat
func (A *Allocator) Stat() (stat ChunkStoreStat, err error) {
	err = A.walk(func(h model.ChunkHeader) bool {
		if h.IsFree() {
			stat.FreeChunks++
			stat.FreeBytes += int64(1) << h.Power
		} else {
			stat.LiveChunks++
			stat.LiveBytes += int64(1) << h.Power
		}
		return true
	})
	stat.TotalLength = A.TotalLength()

	return
}

// FreeChunks - Returns the offsets held in the free list of the size class that capacity falls in,
// head first
func (A *Allocator) FreeChunks(capacity int64) (offsets []int64, err error) {
	A.mutex.Lock()
	defer A.mutex.Unlock()

	power := A.powerFor(capacity)
	next, err := A.readInt64(A.freeListSlot(power))
	for err == nil && next != conf.NoChunk {
		if int64(len(offsets)) > A.totalLength/conf.ChunkHeaderLength {
			err = storeerr.NewCorruption(next, "free list of power %d does not terminate", power)
			return
		}
		offsets = append(offsets, next)

		var header model.ChunkHeader
		header, err = A.readHeader(next)
		if err == nil && !header.IsFree() {
			err = storeerr.NewCorruption(next, "live chunk in free list of power %d", power)
		}
		next = header.NextFree
	}

	return
}
