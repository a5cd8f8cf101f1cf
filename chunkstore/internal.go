package chunkstore

import (
	"encoding/binary"
	"fmt"
	"github.com/gostonefire/chunkmap/internal/conf"
	"github.com/gostonefire/chunkmap/internal/model"
	"github.com/gostonefire/chunkmap/internal/utils"
	"github.com/gostonefire/chunkmap/metrics"
	"github.com/gostonefire/chunkmap/region"
	"github.com/gostonefire/chunkmap/storeerr"
	"go.uber.org/zap"
)

// largeZeros and smallZeros - Zero buffers used when wiping payloads of removed chunks
var (
	largeZeros = make([]byte, 1<<16)
	smallZeros = make([]byte, 1<<conf.DefaultMinPower)
)

// newAllocator - Validates configuration and returns an allocator not yet bound to any header data
func newAllocator(r region.Region, cfg Conf) (allocator *Allocator, err error) {
	if r == nil {
		err = storeerr.NewInvalidArgument("region can not be nil")
		return
	}

	minPower := cfg.MinPower
	if minPower == 0 {
		minPower = conf.DefaultMinPower
	}
	if minPower < 0 || minPower >= conf.MaxPower-1 {
		err = storeerr.NewInvalidArgument("min power %d outside [0, %d)", minPower, conf.MaxPower-1)
		return
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	allocator = &Allocator{
		region:    r,
		minPower:  minPower,
		zeroFill:  cfg.ZeroFill,
		dataStart: conf.FreeListOffset + (conf.MaxPower-minPower)*conf.FreeListSlotLength,
		logger:    logger,
		metrics:   cfg.Metrics,
	}

	return
}

// format - Writes an empty global header and free list table and cuts the region right after them
func (A *Allocator) format() (err error) {
	err = A.region.SetLength(0)
	if err != nil {
		return
	}

	noChunk := conf.NoChunk
	buf := make([]byte, A.dataStart)
	binary.BigEndian.PutUint64(buf[conf.TotalLengthOffset:], uint64(A.dataStart))
	for slot := conf.FreeListOffset; slot < A.dataStart; slot += conf.FreeListSlotLength {
		binary.BigEndian.PutUint64(buf[slot:], uint64(noChunk))
	}

	_, err = A.region.WriteAt(buf, 0)
	if err != nil {
		err = fmt.Errorf("error while writing chunk store header: %w", err)
		return
	}

	A.totalLength = A.dataStart

	return
}

// powerFor - Returns the size class power for a payload capacity
func (A *Allocator) powerFor(capacity int64) int64 {
	return utils.PowerFor(capacity, A.minPower)
}

// freeListSlot - Returns the global header offset of the free list head of a size class
func (A *Allocator) freeListSlot(power int64) int64 {
	return conf.FreeListOffset + (power-A.minPower)*conf.FreeListSlotLength
}

// readInt64 - Reads one big endian 8 byte value
func (A *Allocator) readInt64(offset int64) (value int64, err error) {
	buf := make([]byte, 8)
	_, err = A.region.ReadAt(buf, offset)
	if err != nil {
		err = fmt.Errorf("error while reading at %d: %w", offset, err)
		return
	}

	value = int64(binary.BigEndian.Uint64(buf))

	return
}

// writeInt64 - Writes one big endian 8 byte value
func (A *Allocator) writeInt64(offset, value int64) (err error) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(value))

	_, err = A.region.WriteAt(buf, offset)
	if err != nil {
		err = fmt.Errorf("error while writing at %d: %w", offset, err)
	}

	return
}

// readHeader - Reads and validates the magic number of the chunk header at offset
func (A *Allocator) readHeader(offset int64) (header model.ChunkHeader, err error) {
	if offset < A.dataStart || offset+conf.ChunkHeaderLength > A.totalLength {
		err = A.corruption(offset, "chunk offset outside data area [%d, %d)", A.dataStart, A.totalLength)
		return
	}

	buf := make([]byte, conf.ChunkHeaderLength)
	_, err = A.region.ReadAt(buf, offset)
	if err != nil {
		err = fmt.Errorf("error while reading chunk header at %d: %w", offset, err)
		return
	}

	header = bytesToHeader(buf, offset)

	if header.Magic != conf.ChunkMagic {
		err = A.corruption(offset, "chunk magic number mismatch %#x", header.Magic)
		return
	}
	if header.Power < A.minPower || header.Power >= conf.MaxPower-1 {
		err = A.corruption(offset, "chunk power %d outside [%d, %d)", header.Power, A.minPower, conf.MaxPower-1)
		return
	}

	return
}

// readLiveHeader - Reads a chunk header and makes sure the chunk is in use
func (A *Allocator) readLiveHeader(offset int64) (header model.ChunkHeader, err error) {
	header, err = A.readHeader(offset)
	if err != nil {
		return
	}

	if header.IsFree() {
		err = A.corruption(offset, "chunk is free")
		return
	}
	if header.Length > int64(1)<<header.Power {
		err = A.corruption(offset, "chunk length %d exceeds capacity of power %d", header.Length, header.Power)
	}

	return
}

// writeHeader - Writes a chunk header
func (A *Allocator) writeHeader(header model.ChunkHeader) (err error) {
	_, err = A.region.WriteAt(headerToBytes(header), header.Offset)
	if err != nil {
		err = fmt.Errorf("error while writing chunk header at %d: %w", header.Offset, err)
	}

	return
}

// reuse - Pops a chunk off the free list of power, returns conf.NoChunk if the list is empty
func (A *Allocator) reuse(power, capacity int64) (offset int64, err error) {
	offset, err = A.readInt64(A.freeListSlot(power))
	if err != nil || offset == conf.NoChunk {
		return
	}

	header, err := A.readHeader(offset)
	if err != nil {
		return
	}
	if !header.IsFree() || header.Power != power {
		err = A.corruption(offset, "free list of power %d holds chunk of power %d and length %d",
			power, header.Power, header.Length)
		return
	}

	err = A.writeInt64(A.freeListSlot(power), header.NextFree)
	if err != nil {
		return
	}

	header.NextFree = conf.NoChunk
	header.Length = capacity
	err = A.writeHeader(header)
	if err != nil {
		return
	}

	A.metrics.Counter(metrics.ChunksReused).Inc()
	A.logger.Debug("chunk reused", zap.Int64("offset", offset), zap.Int64("power", power))

	return
}

// appendChunk - Grows the region by one chunk of power at the tail
func (A *Allocator) appendChunk(power, capacity int64) (offset int64, err error) {
	offset = A.totalLength
	header := model.ChunkHeader{
		Offset:   offset,
		Magic:    conf.ChunkMagic,
		Power:    power,
		NextFree: conf.NoChunk,
		Length:   capacity,
	}
	newTotal := offset + header.Span(conf.ChunkHeaderLength)

	length, err := A.region.Length()
	if err != nil {
		offset = conf.NoChunk
		return
	}
	if newTotal > length {
		err = A.region.SetLength(newTotal)
		if err != nil {
			offset = conf.NoChunk
			err = fmt.Errorf("error while growing region to %d for chunk of power %d: %w", newTotal, power, err)
			return
		}
	}

	err = A.writeHeader(header)
	if err != nil {
		offset = conf.NoChunk
		return
	}

	err = A.writeInt64(conf.TotalLengthOffset, newTotal)
	if err != nil {
		offset = conf.NoChunk
		return
	}
	A.totalLength = newTotal

	A.metrics.Counter(metrics.ChunksAllocated).Inc()
	A.logger.Debug("chunk appended",
		zap.Int64("offset", offset),
		zap.Int64("power", power),
		zap.Int64("totalLength", newTotal))

	return
}

// zeroPayload - Overwrites length bytes at offset with zeros using as few writes as possible
func (A *Allocator) zeroPayload(offset, length int64) (err error) {
	end := offset + length
	for offset < end {
		zeros := largeZeros
		if end-offset < int64(len(largeZeros)) {
			zeros = smallZeros
		}
		if end-offset < int64(len(zeros)) {
			zeros = zeros[:end-offset]
		}

		_, err = A.region.WriteAt(zeros, offset)
		if err != nil {
			err = fmt.Errorf("error while zero filling chunk payload at %d: %w", offset, err)
			return
		}
		offset += int64(len(zeros))
	}

	return
}

// walk - Visits every chunk header, free ones included, in region order
func (A *Allocator) walk(visitor func(header model.ChunkHeader) bool) (err error) {
	A.mutex.Lock()
	offset := A.dataStart
	A.mutex.Unlock()

	for {
		A.mutex.Lock()
		totalLength := A.totalLength
		var header model.ChunkHeader
		if offset < totalLength {
			header, err = A.readHeader(offset)
		}
		A.mutex.Unlock()

		if offset >= totalLength || err != nil {
			return
		}

		next := offset + header.Span(conf.ChunkHeaderLength)
		if next > totalLength {
			err = A.corruption(offset, "chunk of power %d runs past end of chunk store %d", header.Power, totalLength)
			return
		}

		if !visitor(header) {
			return
		}
		offset = next
	}
}

// corruption - Counts, logs and returns a storeerr.Corruption
func (A *Allocator) corruption(offset int64, format string, a ...any) error {
	err := storeerr.NewCorruption(offset, format, a...)
	A.metrics.Counter(metrics.CorruptionDetected).Inc()
	A.logger.Error("chunk store corruption", zap.Int64("offset", offset), zap.Error(err))

	return err
}

// bytesToHeader - Converts chunk header raw data to a model.ChunkHeader struct
func bytesToHeader(buf []byte, offset int64) model.ChunkHeader {
	return model.ChunkHeader{
		Offset:   offset,
		Magic:    binary.BigEndian.Uint64(buf[conf.ChunkMagicOffset:]),
		Power:    int64(binary.BigEndian.Uint64(buf[conf.ChunkPowerOffset:])),
		NextFree: int64(binary.BigEndian.Uint64(buf[conf.ChunkNextFreeOffset:])),
		Length:   int64(binary.BigEndian.Uint64(buf[conf.ChunkLengthOffset:])),
	}
}

// headerToBytes - Converts a model.ChunkHeader struct to a slice of bytes
func headerToBytes(header model.ChunkHeader) (buf []byte) {
	buf = make([]byte, conf.ChunkHeaderLength)

	binary.BigEndian.PutUint64(buf[conf.ChunkMagicOffset:], header.Magic)
	binary.BigEndian.PutUint64(buf[conf.ChunkPowerOffset:], uint64(header.Power))
	binary.BigEndian.PutUint64(buf[conf.ChunkNextFreeOffset:], uint64(header.NextFree))
	binary.BigEndian.PutUint64(buf[conf.ChunkLengthOffset:], uint64(header.Length))

	return
}
