package skiplist

import (
	"bytes"
	"encoding/binary"
	"github.com/gostonefire/chunkmap/internal/conf"
	"github.com/gostonefire/chunkmap/internal/model"
	"github.com/gostonefire/chunkmap/internal/utils"
	"github.com/gostonefire/chunkmap/mapstore"
	"github.com/gostonefire/chunkmap/storeerr"
)

// newSkipList - Derives the skip list fields from the map store underneath. The head key is key size zero bytes.
func newSkipList(store *mapstore.MapStore, comparator Comparator, random RandomSource) *SkipList {
	if comparator == nil {
		comparator = DefaultComparator
	}
	if random == nil {
		random = DefaultRandom(1)
	}

	maxHeight := MaxHeightFor(store.Capacity())
	columnSize := ColumnSize(maxHeight)

	return &SkipList{
		store:       store,
		headKey:     make([]byte, store.KeySize()),
		maxHeight:   maxHeight,
		columnSize:  columnSize,
		maxCount:    store.MaxCount() - 2,
		keySize:     store.KeySize(),
		payloadSize: store.PayloadSize() - columnSize,
		comparator:  comparator,
		random:      random,
	}
}

// storedKey - Validates key and returns it the way it is compared, padded if keys are fixed size
func (S *SkipList) storedKey(key []byte) (stored []byte, err error) {
	if int64(len(key)) > S.keySize {
		err = storeerr.NewInvalidArgument("key length %d exceeds key size %d", len(key), S.keySize)
		return
	}

	stored = S.boundKey(key)

	return
}

// boundKey - Returns a range bound the way it is compared, padded if keys are fixed size
func (S *SkipList) boundKey(key []byte) []byte {
	if S.store.Params().VariableKey {
		return key
	}
	return utils.PadTo(key, S.keySize)
}

// isHeadKey - Returns true if a stored key is the head key, which no user entry can have
func (S *SkipList) isHeadKey(stored []byte) bool {
	return bytes.Equal(stored, S.headKey)
}

// nullColumn - Returns column pointers all set to NullIndex
func (S *SkipList) nullColumn() []int64 {
	column := make([]int64, S.maxHeight)
	for l := range column {
		column[l] = NullIndex
	}

	return column
}

// randomHeight - Flips coins for the height of a new column, starting at conf.MinNodeHeight
func (S *SkipList) randomHeight() int64 {
	height := conf.MinNodeHeight
	for height < S.maxHeight && S.random.Int63()&1 == 1 {
		height++
	}

	return height
}

// predecessors - Returns, per level, the last slot whose key sorts before key. Level 0 repeats level 1.
func (S *SkipList) predecessors(key []byte) (update []int64, err error) {
	update = make([]int64, S.maxHeight)
	current := S.headIndex
	steps := int64(0)
	limit := S.store.Capacity() * S.maxHeight

	var next int64
	var nextKey []byte
	for l := S.maxHeight - 1; l >= 1; l-- {
		for {
			next, err = S.forward(current, l)
			if err != nil {
				return
			}
			if next == NullIndex {
				break
			}

			nextKey, err = S.userKey(next)
			if err != nil {
				return
			}
			if S.comparator(nextKey, key) >= 0 {
				break
			}

			current = next
			steps++
			if steps > limit {
				err = storeerr.NewCorruption(0, "skip list level %d does not terminate", l)
				return
			}
		}
		update[l] = current
	}
	update[0] = update[1]

	return
}

// streamRange - Walks level 1 from the first key not before r.Lo until r.Hi. More is false if visitor stopped the walk.
func (S *SkipList) streamRange(r Range, visitor func(key, payload []byte) bool) (more bool, err error) {
	start := S.headIndex
	if r.Lo != nil {
		var update []int64
		update, err = S.predecessors(S.boundKey(r.Lo))
		if err != nil {
			return
		}
		start = update[1]
	}

	var hi []byte
	if r.Hi != nil {
		hi = S.boundKey(r.Hi)
	}

	current, err := S.forward(start, 1)
	if err != nil {
		return
	}

	var record model.Record
	for steps := int64(0); current != NullIndex; steps++ {
		if steps > S.store.Capacity() {
			err = storeerr.NewCorruption(0, "skip list base level does not terminate")
			return
		}

		record, err = S.node(current)
		if err != nil {
			return
		}

		key := record.Key
		if hi != nil && S.comparator(key, hi) >= 0 {
			break
		}
		if !visitor(key, record.Payload[S.columnSize:]) {
			return
		}

		current, err = S.forward(current, 1)
		if err != nil {
			return
		}
	}
	more = true

	return
}

// node - Returns the entry of a slot reached through a column pointer, it has to hold a user key
func (S *SkipList) node(index int64) (record model.Record, err error) {
	record, err = S.store.Entry(index)
	if err != nil {
		return
	}

	if !record.IsOccupied() || index == S.headIndex {
		err = storeerr.NewCorruption(record.RecordAddress, "skip list pointer to slot %d holding no key", index)
	}

	return
}

// userKey - Returns the user key of a slot reached through a column pointer
func (S *SkipList) userKey(index int64) (key []byte, err error) {
	record, err := S.node(index)
	if err != nil {
		return
	}
	key = record.Key

	return
}

// height - Reads and validates the column height of slot index
func (S *SkipList) height(index int64) (height int64, err error) {
	buf := make([]byte, conf.HeightBytes)
	err = S.store.ReadPayloadAt(index, 0, buf)
	if err != nil {
		return
	}

	height = int64(buf[0])
	if height < conf.MinNodeHeight || height > S.maxHeight {
		err = storeerr.NewCorruption(0, "column height %d of slot %d outside [%d, %d]", height, index, conf.MinNodeHeight, S.maxHeight)
	}

	return
}

// forward - Returns the forward pointer of slot index at level, level 1 and up
func (S *SkipList) forward(index, level int64) (next int64, err error) {
	return S.pointer(index, level)
}

// pointer - Reads and validates column entry level of slot index, level 0 is the back pointer
func (S *SkipList) pointer(index, level int64) (pointer int64, err error) {
	buf := make([]byte, conf.ForwardBytes)
	err = S.store.ReadPayloadAt(index, conf.HeightBytes+conf.ForwardBytes*level, buf)
	if err != nil {
		return
	}

	pointer = int64(int32(binary.BigEndian.Uint32(buf)))
	if pointer != NullIndex && (pointer < 0 || pointer >= S.store.Capacity()) {
		err = storeerr.NewCorruption(0, "column pointer %d of slot %d at level %d outside table", pointer, index, level)
	}

	return
}

// setPointer - Writes column entry level of slot index
func (S *SkipList) setPointer(index, level, pointer int64) (err error) {
	buf := make([]byte, conf.ForwardBytes)
	binary.BigEndian.PutUint32(buf, uint32(int32(pointer)))

	return S.store.WritePayloadAt(index, conf.HeightBytes+conf.ForwardBytes*level, buf)
}

// writeColumn - Encodes height and pointers at the start of buf
func writeColumn(buf []byte, height int64, pointers []int64) {
	buf[0] = byte(height)
	for l, pointer := range pointers {
		binary.BigEndian.PutUint32(buf[conf.HeightBytes+conf.ForwardBytes*int64(l):], uint32(int32(pointer)))
	}
}
