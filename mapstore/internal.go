package mapstore

import (
	"encoding/binary"
	"fmt"
	"github.com/gostonefire/chunkmap/hashfunc"
	"github.com/gostonefire/chunkmap/internal/conf"
	"github.com/gostonefire/chunkmap/internal/hash"
	"github.com/gostonefire/chunkmap/internal/model"
	"github.com/gostonefire/chunkmap/internal/utils"
	"github.com/gostonefire/chunkmap/storeerr"
)

// zeros - Zero buffer used when wiping the slot array of a new map store
var zeros = make([]byte, 1<<16)

// validateParams - Checks that params describe a map store layout that fits its header fields
func validateParams(params Params) (err error) {
	switch {
	case params.MaxCount < 1 || params.MaxCount > conf.MaxUint32:
		err = storeerr.NewInvalidArgument("max count %d outside [1, %d]", params.MaxCount, conf.MaxUint32)
	case params.KeySize < 1 || params.KeySize > conf.MaxUint32:
		err = storeerr.NewInvalidArgument("key size %d outside [1, %d]", params.KeySize, conf.MaxUint32)
	case params.PayloadSize < 0 || params.PayloadSize > conf.MaxUint32:
		err = storeerr.NewInvalidArgument("payload size %d outside [0, %d]", params.PayloadSize, conf.MaxUint32)
	}

	return
}

// setHashAlgorithm - Uses the given algorithm or falls back on the internal one, in both cases sized to capacity
func (M *MapStore) setHashAlgorithm(hashAlgorithm hashfunc.HashAlgorithm) {
	if hashAlgorithm == nil {
		M.hashAlgorithm = hash.NewLinearProbingHashAlgorithm(M.capacity, conf.DefaultHashSeed)
		M.internalAlgorithm = true
		return
	}

	hashAlgorithm.SetTableSize(M.capacity)
	M.hashAlgorithm = hashAlgorithm
	M.internalAlgorithm = false
}

// checkStorageLength - Makes sure the storage can hold the header and all slots
func (M *MapStore) checkStorageLength() (err error) {
	length, err := M.storage.Length()
	if err != nil {
		err = fmt.Errorf("error while getting map store storage length: %w", err)
		return
	}

	needed := conf.MapHeaderLength + M.capacity*M.entrySize
	if length < needed {
		err = storeerr.NewInvalidArgument("map store needs %d bytes but storage holds %d", needed, length)
	}

	return
}

// writeHeader - Writes all header fields
func (M *MapStore) writeHeader() (err error) {
	buf := make([]byte, conf.MapHeaderLength)
	buf[conf.MapVersionOffset] = M.version
	binary.BigEndian.PutUint32(buf[conf.MapCountOffset:], uint32(M.count))
	binary.BigEndian.PutUint32(buf[conf.MapMaxCountOffset:], uint32(M.maxCount))
	binary.BigEndian.PutUint32(buf[conf.MapCapacityOffset:], uint32(M.capacity))
	binary.BigEndian.PutUint32(buf[conf.MapKeySizeOffset:], uint32(M.keySize))
	buf[conf.MapKeyVariableOffset] = boolToByte(M.variableKey)
	binary.BigEndian.PutUint32(buf[conf.MapPayloadSizeOffset:], uint32(M.payloadSize))
	buf[conf.MapPayloadVariableOffset] = boolToByte(M.variablePayload)

	_, err = M.storage.WriteAt(buf, 0)
	if err != nil {
		err = fmt.Errorf("error while writing map store header: %w", err)
	}

	return
}

// readHeader - Reads and sanity checks all header fields
func (M *MapStore) readHeader() (err error) {
	buf := make([]byte, conf.MapHeaderLength)
	_, err = M.storage.ReadAt(buf, 0)
	if err != nil {
		err = fmt.Errorf("unable to read map store header: %w", err)
		return
	}

	M.version = buf[conf.MapVersionOffset]
	M.count = int64(binary.BigEndian.Uint32(buf[conf.MapCountOffset:]))
	M.maxCount = int64(binary.BigEndian.Uint32(buf[conf.MapMaxCountOffset:]))
	M.capacity = int64(binary.BigEndian.Uint32(buf[conf.MapCapacityOffset:]))
	M.keySize = int64(binary.BigEndian.Uint32(buf[conf.MapKeySizeOffset:]))
	M.variableKey = buf[conf.MapKeyVariableOffset] != 0
	M.payloadSize = int64(binary.BigEndian.Uint32(buf[conf.MapPayloadSizeOffset:]))
	M.variablePayload = buf[conf.MapPayloadVariableOffset] != 0

	switch {
	case M.version != conf.MapVersion:
		err = storeerr.NewCorruption(conf.MapVersionOffset, "unknown map store version %d", M.version)
	case M.capacity < 2 || M.maxCount < 1 || M.maxCount > M.capacity:
		err = storeerr.NewCorruption(conf.MapCapacityOffset, "max count %d and capacity %d do not match", M.maxCount, M.capacity)
	case M.count > M.maxCount:
		err = storeerr.NewCorruption(conf.MapCountOffset, "count %d exceeds max count %d", M.count, M.maxCount)
	case M.keySize < 1:
		err = storeerr.NewCorruption(conf.MapKeySizeOffset, "zero key size")
	}
	if err != nil {
		return
	}

	M.entrySize = EntrySizeFor(Params{
		KeySize:         M.keySize,
		VariableKey:     M.variableKey,
		PayloadSize:     M.payloadSize,
		VariablePayload: M.variablePayload,
	})

	return
}

// clearSlots - Zero fills the slot array, marking every slot empty
func (M *MapStore) clearSlots() (err error) {
	offset := conf.MapHeaderLength
	end := offset + M.capacity*M.entrySize
	for offset < end {
		n := min(end-offset, int64(len(zeros)))
		_, err = M.storage.WriteAt(zeros[:n], offset)
		if err != nil {
			err = fmt.Errorf("error while clearing map store slots: %w", err)
			return
		}
		offset += n
	}

	return
}

// storedKey - Validates key and returns it the way it is stored and hashed, padded if keys are fixed size
func (M *MapStore) storedKey(key []byte) (stored []byte, err error) {
	if int64(len(key)) > M.keySize {
		err = storeerr.NewInvalidArgument("key length %d exceeds key size %d", len(key), M.keySize)
		return
	}

	if M.variableKey {
		stored = key
		return
	}
	stored = utils.PadTo(key, M.keySize)

	return
}

// checkPayload - Validates the payload length
func (M *MapStore) checkPayload(payload []byte) (err error) {
	if int64(len(payload)) > M.payloadSize {
		err = storeerr.NewInvalidArgument("payload length %d exceeds payload size %d", len(payload), M.payloadSize)
	}

	return
}

// checkIndex - Validates a slot index
func (M *MapStore) checkIndex(index int64) (err error) {
	if index < 0 || index >= M.capacity {
		err = storeerr.NewOutOfBounds("slot %d outside [0, %d)", index, M.capacity)
	}

	return
}

// slotAddress - Returns the storage offset of slot index
func (M *MapStore) slotAddress(index int64) int64 {
	return conf.MapHeaderLength + index*M.entrySize
}

// nextSlot - Returns the slot following index, wrapping at the end of the table
func (M *MapStore) nextSlot(index int64) int64 {
	return (index + 1) % M.capacity
}

// prevSlot - Returns the slot preceding index, wrapping at the start of the table
func (M *MapStore) prevSlot(index int64) int64 {
	return (index - 1 + M.capacity) % M.capacity
}

// keyFieldLength - Returns the number of slot bytes used by the key, length prefix included
func (M *MapStore) keyFieldLength() int64 {
	if M.variableKey {
		return conf.LengthPrefixBytes + M.keySize
	}
	return M.keySize
}

// payloadPrefixOffset - Returns the slot offset of the payload field, length prefix included
func (M *MapStore) payloadPrefixOffset() int64 {
	return conf.ModeBytes + M.keyFieldLength()
}

// payloadFieldAddress - Returns the storage offset of n payload bytes at offset in slot index
func (M *MapStore) payloadFieldAddress(index, offset, n int64) (address int64, err error) {
	err = M.checkIndex(index)
	if err != nil {
		return
	}
	if offset < 0 || offset+n > M.payloadSize {
		err = storeerr.NewOutOfBounds("payload access of %d bytes at %d exceeds payload size %d", n, offset, M.payloadSize)
		return
	}

	address = M.slotAddress(index) + M.payloadPrefixOffset() + offset
	if M.variablePayload {
		address += conf.LengthPrefixBytes
	}

	return
}

// getMode - Reads the mode of slot index
func (M *MapStore) getMode(index int64) (mode int8, err error) {
	buf := make([]byte, conf.ModeBytes)
	_, err = M.storage.ReadAt(buf, M.slotAddress(index))
	if err != nil {
		err = fmt.Errorf("error while reading mode of slot %d: %w", index, err)
		return
	}
	mode = int8(buf[0])

	return
}

// setMode - Writes the mode of slot index
func (M *MapStore) setMode(index int64, mode int8) (err error) {
	_, err = M.storage.WriteAt([]byte{byte(mode)}, M.slotAddress(index))
	if err != nil {
		err = fmt.Errorf("error while writing mode of slot %d: %w", index, err)
	}

	return
}

// getRecord - Reads slot index into a model.Record
func (M *MapStore) getRecord(index int64) (record model.Record, err error) {
	address := M.slotAddress(index)

	buf := make([]byte, M.entrySize)
	_, err = M.storage.ReadAt(buf, address)
	if err != nil {
		err = fmt.Errorf("error while reading slot %d: %w", index, err)
		return
	}

	record, err = M.bytesToRecord(buf, index, address)

	return
}

// setRecord - Writes a complete slot from a model.Record
func (M *MapStore) setRecord(record model.Record) (err error) {
	_, err = M.storage.WriteAt(M.recordToBytes(record), M.slotAddress(record.Index))

	return
}

// clearRecord - Zero fills key and payload of slot index and sets its mode
func (M *MapStore) clearRecord(index int64, mode int8) (err error) {
	buf := make([]byte, M.entrySize)
	buf[0] = byte(mode)

	_, err = M.storage.WriteAt(buf, M.slotAddress(index))
	if err != nil {
		err = fmt.Errorf("error while clearing slot %d: %w", index, err)
	}

	return
}

// compactTombstones - Turns the run of tombstones preceding the now empty slot index into empty slots
func (M *MapStore) compactTombstones(index int64) (err error) {
	var mode int8
	prev := M.prevSlot(index)
	for n := int64(1); n < M.capacity; n++ {
		mode, err = M.getMode(prev)
		if err != nil || mode != model.ModeTombstone {
			return
		}

		err = M.setMode(prev, model.ModeEmpty)
		if err != nil {
			return
		}
		prev = M.prevSlot(prev)
	}

	return
}

// setCount - Writes count to the header
func (M *MapStore) setCount(count int64) (err error) {
	err = M.writeUint32(conf.MapCountOffset, count)
	if err != nil {
		err = fmt.Errorf("error while updating map store count: %w", err)
		return
	}
	M.count = count

	return
}

// writeUint32 - Writes one big endian 4 byte value
func (M *MapStore) writeUint32(offset, value int64) (err error) {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(value))
	_, err = M.storage.WriteAt(buf, offset)

	return
}

// bytesToRecord - Converts slot raw data to a model.Record struct
func (M *MapStore) bytesToRecord(buf []byte, index, address int64) (record model.Record, err error) {
	record = model.Record{
		Mode:          int8(buf[0]),
		Index:         index,
		RecordAddress: address,
	}
	if record.Mode < model.ModeTombstone {
		err = storeerr.NewCorruption(address, "unknown slot mode %d", record.Mode)
		return
	}

	pos := conf.ModeBytes
	record.Key, pos, err = M.readField(buf, pos, M.keySize, M.variableKey, address)
	if err != nil {
		return
	}
	record.Payload, _, err = M.readField(buf, pos, M.payloadSize, M.variablePayload, address)

	return
}

// readField - Copies one possibly length prefixed field out of slot raw data and returns the position after it
func (M *MapStore) readField(buf []byte, pos, size int64, variable bool, address int64) (field []byte, next int64, err error) {
	n := size
	if variable {
		n = int64(binary.BigEndian.Uint32(buf[pos:]))
		pos += conf.LengthPrefixBytes
		if n > size {
			err = storeerr.NewCorruption(address+pos, "field length %d exceeds size %d", n, size)
			return
		}
	}

	field = make([]byte, n)
	_ = copy(field, buf[pos:pos+n])
	next = pos + size

	return
}

// recordToBytes - Converts a model.Record struct to slot raw data
func (M *MapStore) recordToBytes(record model.Record) (buf []byte) {
	buf = make([]byte, M.entrySize)
	buf[0] = byte(record.Mode)

	pos := conf.ModeBytes
	pos = writeField(buf, pos, M.keySize, M.variableKey, record.Key)
	_ = writeField(buf, pos, M.payloadSize, M.variablePayload, record.Payload)

	return
}

// writeField - Copies one field into slot raw data, prefixing its length if variable, and returns the position after it
func writeField(buf []byte, pos, size int64, variable bool, field []byte) int64 {
	if variable {
		binary.BigEndian.PutUint32(buf[pos:], uint32(len(field)))
		pos += conf.LengthPrefixBytes
	}
	_ = copy(buf[pos:pos+size], field)

	return pos + size
}

// probingForGet - Is the linear probing algorithm for getting a record.
func (M *MapStore) probingForGet(key []byte) (record model.Record, err error) {
	var probe int64

	hf1Value := M.hashAlgorithm.HashFunc1(key)

	for i := int64(0); i < M.capacity; i++ {
		probe = M.hashAlgorithm.ProbeIteration(hf1Value, i)
		err = M.checkIndex(probe)
		if err != nil {
			err = fmt.Errorf("hash algorithm probed outside table: %w", err)
			return
		}

		record, err = M.getRecord(probe)
		if err != nil {
			return
		}

		switch {
		case record.Mode == model.ModeEmpty:
			record = model.Record{}
			err = storeerr.NoRecordFound{}
			return

		case record.IsOccupied():
			if utils.IsEqual(key, record.Key) {
				return
			}
		}
	}

	record = model.Record{}
	err = storeerr.NoRecordFound{}

	return
}

// probingForSet - Is the linear probing algorithm for finding the slot to set a key in. It returns the slot
// already holding key if there is one, otherwise the first tombstone or empty slot on the probe path.
func (M *MapStore) probingForSet(key []byte) (record model.Record, err error) {
	var deletedRecord model.Record
	var hasCached bool
	var probe int64

	hf1Value := M.hashAlgorithm.HashFunc1(key)

	for i := int64(0); i < M.capacity; i++ {
		probe = M.hashAlgorithm.ProbeIteration(hf1Value, i)
		err = M.checkIndex(probe)
		if err != nil {
			err = fmt.Errorf("hash algorithm probed outside table: %w", err)
			return
		}

		record, err = M.getRecord(probe)
		if err != nil {
			return
		}

		switch {
		case record.Mode == model.ModeEmpty:
			if hasCached {
				record = deletedRecord
			}
			return

		case record.IsOccupied():
			if utils.IsEqual(key, record.Key) {
				return
			}

		case record.Mode == model.ModeTombstone:
			if !hasCached {
				deletedRecord = record
				hasCached = true
			}
		}
	}

	if hasCached {
		record = deletedRecord
		return
	}

	record = model.Record{}
	err = storeerr.NewOverCapacity("no free slot among %d slots", M.capacity)

	return
}

// boolToByte - Returns 1 for true and 0 for false
func boolToByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
