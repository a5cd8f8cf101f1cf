//go:build unit

package mapstore

import (
	"encoding/binary"
	"fmt"
	"github.com/gostonefire/chunkmap/chunkstore"
	"github.com/gostonefire/chunkmap/internal/conf"
	"github.com/gostonefire/chunkmap/region"
	"github.com/gostonefire/chunkmap/storeerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"math/rand"
	"testing"
)

// fixedStart - Hash algorithm starting every probe in slot 0, makes slot positions predictable
type fixedStart struct {
	tableSize int64
}

func (F *fixedStart) SetTableSize(tableSize int64) { F.tableSize = tableSize }

func (F *fixedStart) HashFunc1(key []byte) int64 { return 0 }

func (F *fixedStart) GetTableSize() int64 { return F.tableSize }

func (F *fixedStart) ProbeIteration(hf1Value, i int64) int64 { return (hf1Value + i) % F.tableSize }

func newTestStorage(t *testing.T, params Params) *region.MemRegion {
	r := region.NewGrowableMemRegion(64)
	require.NoError(t, r.SetLength(SizeFor(params)), "sizes storage")
	return r
}

func newTestMap(t *testing.T, params Params) (*MapStore, *region.MemRegion) {
	r := newTestStorage(t, params)
	m, err := Create(r, params)
	require.NoError(t, err, "creates map store")
	return m, r
}

func intKey(i int) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, uint32(i))
	return key
}

func TestCapacityFor(t *testing.T) {
	t.Run("divides by load factor rounding up", func(t *testing.T) {
		for maxCount, capacity := range map[int64]int64{0: 2, 1: 2, 3: 5, 6: 10, 10: 17, 60: 100, 100: 167} {
			assert.Equalf(t, capacity, CapacityFor(maxCount), "capacity for max count %d", maxCount)
		}
	})
}

func TestCreate(t *testing.T) {
	t.Run("writes header", func(t *testing.T) {
		// Prepare
		params := Params{MaxCount: 10, KeySize: 4, PayloadSize: 8, VariablePayload: true}

		// Execute
		m, r := newTestMap(t, params)

		// Check
		b := r.Bytes()
		assert.Equal(t, conf.MapVersion, b[0], "version")
		assert.Equal(t, uint32(0), binary.BigEndian.Uint32(b[1:]), "count")
		assert.Equal(t, uint32(10), binary.BigEndian.Uint32(b[5:]), "max count")
		assert.Equal(t, uint32(17), binary.BigEndian.Uint32(b[9:]), "capacity")
		assert.Equal(t, uint32(4), binary.BigEndian.Uint32(b[13:]), "key size")
		assert.Equal(t, byte(0), b[17], "fixed key")
		assert.Equal(t, uint32(8), binary.BigEndian.Uint32(b[18:]), "payload size")
		assert.Equal(t, byte(1), b[22], "variable payload")
		assert.Equal(t, int64(1+4+4+8), m.EntrySize(), "entry size")
		assert.Equal(t, int64(23+17*17), SizeFor(params), "size for")
	})

	t.Run("wipes old slot contents", func(t *testing.T) {
		// Prepare
		params := Params{MaxCount: 4, KeySize: 4, PayloadSize: 4}
		r := newTestStorage(t, params)
		junk := make([]byte, SizeFor(params))
		for i := range junk {
			junk[i] = 0x01
		}
		_, err := r.WriteAt(junk, 0)
		require.NoError(t, err)

		// Execute
		m, err := Create(r, params)

		// Check
		assert.NoError(t, err, "creates map store")
		for i := int64(0); i < m.Capacity(); i++ {
			record, err := m.Entry(i)
			assert.NoError(t, err, "reads slot")
			assert.Equal(t, ModeEmpty, record.Mode, "slot empty")
		}
	})

	t.Run("rejects too short storage and bad params", func(t *testing.T) {
		params := Params{MaxCount: 10, KeySize: 4, PayloadSize: 8}
		r := region.NewGrowableMemRegion(64)
		require.NoError(t, r.SetLength(SizeFor(params)-1))

		_, err := Create(r, params)
		assert.ErrorIs(t, err, storeerr.InvalidArgument{}, "storage too short")

		_, err = Create(r, Params{MaxCount: 0, KeySize: 4})
		assert.ErrorIs(t, err, storeerr.InvalidArgument{}, "zero max count")

		_, err = Create(r, Params{MaxCount: 1, KeySize: 0})
		assert.ErrorIs(t, err, storeerr.InvalidArgument{}, "zero key size")
	})

	t.Run("lives inside a chunk", func(t *testing.T) {
		// Prepare
		params := Params{MaxCount: 50, KeySize: 4, PayloadSize: 4}
		a, err := chunkstore.New(region.NewGrowableMemRegion(1024), chunkstore.Conf{})
		require.NoError(t, err)
		offset, err := a.NewChunk(SizeFor(params))
		require.NoError(t, err)
		view, err := a.GetChunk(offset)
		require.NoError(t, err)

		// Execute
		m, err := Create(view, params)
		require.NoError(t, err)
		for i := 0; i < 50; i++ {
			_, err = m.Add(intKey(i), intKey(i*2))
			require.NoError(t, err)
		}

		// Check
		for i := 0; i < 50; i++ {
			record, err := m.Get(intKey(i))
			assert.NoError(t, err, "gets key")
			assert.Equal(t, intKey(i*2), record.Payload, "payload")
		}
		assert.NoError(t, view.Close(), "closes view")
	})
}

func TestMapStore_Add(t *testing.T) {
	t.Run("round trips key and payload", func(t *testing.T) {
		// Prepare
		m, _ := newTestMap(t, Params{MaxCount: 100, KeySize: 4, PayloadSize: 8})

		// Execute
		for i := 0; i < 100; i++ {
			payload := []byte(fmt.Sprintf("p%07d", i))
			_, err := m.Add(intKey(i), payload)
			require.NoErrorf(t, err, "adds key %d", i)
		}

		// Check
		assert.Equal(t, int64(100), m.Count(), "count")
		for i := 0; i < 100; i++ {
			record, err := m.Get(intKey(i))
			assert.NoErrorf(t, err, "gets key %d", i)
			assert.Equal(t, []byte(fmt.Sprintf("p%07d", i)), record.Payload, "payload")
			assert.Equal(t, intKey(i), record.Key, "key")
			assert.Equal(t, ModeOccupied, record.Mode, "mode")
		}
	})

	t.Run("updates existing key in place", func(t *testing.T) {
		// Prepare
		m, _ := newTestMap(t, Params{MaxCount: 10, KeySize: 4, PayloadSize: 4})
		index, err := m.Add(intKey(7), []byte("aaaa"))
		require.NoError(t, err)

		// Execute
		updated, err := m.Add(intKey(7), []byte("bbbb"))

		// Check
		assert.NoError(t, err, "updates key")
		assert.Equal(t, index, updated, "same slot")
		assert.Equal(t, int64(1), m.Count(), "count unchanged")
		record, err := m.Get(intKey(7))
		assert.NoError(t, err, "gets key")
		assert.Equal(t, []byte("bbbb"), record.Payload, "new payload")
	})

	t.Run("pads short fixed keys and payloads", func(t *testing.T) {
		// Prepare
		m, _ := newTestMap(t, Params{MaxCount: 10, KeySize: 4, PayloadSize: 4})

		// Execute
		_, err := m.Add([]byte{1}, []byte{2})
		require.NoError(t, err)

		// Check
		record, err := m.Get([]byte{1, 0})
		assert.NoError(t, err, "found with other padding")
		assert.Equal(t, []byte{1, 0, 0, 0}, record.Key, "padded key")
		assert.Equal(t, []byte{2, 0, 0, 0}, record.Payload, "padded payload")
	})

	t.Run("rejects too long key or payload and non occupied mode", func(t *testing.T) {
		m, _ := newTestMap(t, Params{MaxCount: 10, KeySize: 4, PayloadSize: 4})

		_, err := m.Add([]byte{1, 2, 3, 4, 5}, nil)
		assert.ErrorIs(t, err, storeerr.InvalidArgument{}, "key too long")

		_, err = m.Add(intKey(1), []byte{1, 2, 3, 4, 5})
		assert.ErrorIs(t, err, storeerr.InvalidArgument{}, "payload too long")

		_, err = m.AddMode(ModeTombstone, intKey(1), nil)
		assert.ErrorIs(t, err, storeerr.InvalidArgument{}, "tombstone mode")
	})

	t.Run("keeps caller mode", func(t *testing.T) {
		m, _ := newTestMap(t, Params{MaxCount: 10, KeySize: 4, PayloadSize: 4})

		index, err := m.AddMode(5, intKey(1), nil)
		require.NoError(t, err)

		record, err := m.Entry(index)
		assert.NoError(t, err, "reads slot")
		assert.Equal(t, int8(5), record.Mode, "mode kept")
		assert.True(t, record.IsOccupied(), "occupied")
	})

	t.Run("raises over capacity past max count", func(t *testing.T) {
		// Prepare
		m, _ := newTestMap(t, Params{MaxCount: 10, KeySize: 4, PayloadSize: 4})
		for i := 0; i < 10; i++ {
			_, err := m.Add(intKey(i), nil)
			require.NoErrorf(t, err, "adds key %d", i)
		}

		// Execute
		_, errNew := m.Add(intKey(10), nil)
		_, errUpdate := m.Add(intKey(3), []byte("x"))

		// Check
		assert.ErrorIs(t, errNew, storeerr.OverCapacity{}, "new key rejected")
		assert.NoError(t, errUpdate, "existing key still updatable")
		assert.Equal(t, int64(10), m.Count(), "count at max")
		found, err := m.Contains(intKey(10))
		assert.NoError(t, err, "contains")
		assert.False(t, found, "rejected key absent")
	})

	t.Run("reuses first tombstone without duplicating keys", func(t *testing.T) {
		// Prepare
		m, _ := newTestMap(t, Params{MaxCount: 10, KeySize: 4, PayloadSize: 4, HashAlgorithm: &fixedStart{}})
		for i := 1; i <= 3; i++ {
			index, err := m.Add(intKey(i), nil)
			require.NoError(t, err)
			require.Equal(t, int64(i-1), index, "slots in order")
		}
		_, err := m.Remove(intKey(1))
		require.NoError(t, err)

		// Execute
		indexUpdate, errUpdate := m.Add(intKey(3), []byte("u"))
		indexNew, errNew := m.Add(intKey(4), nil)

		// Check
		assert.NoError(t, errUpdate, "updates key")
		assert.Equal(t, int64(2), indexUpdate, "update stays in its slot")
		assert.NoError(t, errNew, "adds key")
		assert.Equal(t, int64(0), indexNew, "new key takes tombstone")
		assert.Equal(t, int64(3), m.Count(), "count")
	})
}

func TestMapStore_Remove(t *testing.T) {
	t.Run("leaves tombstone when next slot is in use", func(t *testing.T) {
		// Prepare
		m, _ := newTestMap(t, Params{MaxCount: 10, KeySize: 4, PayloadSize: 4, HashAlgorithm: &fixedStart{}})
		for i := 1; i <= 3; i++ {
			_, err := m.Add(intKey(i), []byte{byte(i)})
			require.NoError(t, err)
		}

		// Execute
		index, err := m.Remove(intKey(2))

		// Check
		assert.NoError(t, err, "removes key")
		assert.Equal(t, int64(1), index, "removed slot")
		record, err := m.Entry(1)
		assert.NoError(t, err, "reads slot")
		assert.Equal(t, ModeTombstone, record.Mode, "tombstone")
		assert.Equal(t, make([]byte, 4), record.Key, "key zeroed")
		assert.Equal(t, make([]byte, 4), record.Payload, "payload zeroed")
		record, err = m.Get(intKey(3))
		assert.NoError(t, err, "key behind tombstone found")
		assert.Equal(t, []byte{3, 0, 0, 0}, record.Payload, "payload")
	})

	t.Run("compacts trailing tombstones", func(t *testing.T) {
		// Prepare
		m, _ := newTestMap(t, Params{MaxCount: 10, KeySize: 4, PayloadSize: 4, HashAlgorithm: &fixedStart{}})
		for i := 1; i <= 4; i++ {
			_, err := m.Add(intKey(i), nil)
			require.NoError(t, err)
		}
		for _, i := range []int{2, 3} {
			_, err := m.Remove(intKey(i))
			require.NoError(t, err)
		}

		// Execute
		_, err := m.Remove(intKey(4))

		// Check
		assert.NoError(t, err, "removes key")
		expected := []int8{ModeOccupied, ModeEmpty, ModeEmpty, ModeEmpty}
		for i, mode := range expected {
			record, err := m.Entry(int64(i))
			assert.NoError(t, err, "reads slot")
			assert.Equalf(t, mode, record.Mode, "mode of slot %d", i)
		}
		assert.Equal(t, int64(1), m.Count(), "count")
	})

	t.Run("fails for absent key", func(t *testing.T) {
		m, _ := newTestMap(t, Params{MaxCount: 10, KeySize: 4, PayloadSize: 4})
		_, err := m.Remove(intKey(1))
		assert.ErrorIs(t, err, storeerr.NoRecordFound{}, "absent key")
	})

	t.Run("survives random churn", func(t *testing.T) {
		// Prepare
		params := Params{MaxCount: 40, KeySize: 4, PayloadSize: 4}
		m, _ := newTestMap(t, params)
		ref := make(map[int]int)
		rnd := rand.New(rand.NewSource(42))

		// Execute
		for op := 0; op < 5000; op++ {
			k := rnd.Intn(int(m.Capacity()))
			_, present := ref[k]
			if present && rnd.Intn(2) == 0 {
				_, err := m.Remove(intKey(k))
				require.NoErrorf(t, err, "removes key %d in op %d", k, op)
				delete(ref, k)
				continue
			}
			if !present && len(ref) >= int(params.MaxCount) {
				continue
			}
			_, err := m.Add(intKey(k), intKey(op))
			require.NoErrorf(t, err, "adds key %d in op %d", k, op)
			ref[k] = op
		}

		// Check
		assert.Equal(t, int64(len(ref)), m.Count(), "count matches")
		for k := 0; k < int(m.Capacity()); k++ {
			record, err := m.Get(intKey(k))
			op, present := ref[k]
			if present {
				assert.NoErrorf(t, err, "gets key %d", k)
				assert.Equal(t, intKey(op), record.Payload, "latest payload")
			} else {
				assert.ErrorIsf(t, err, storeerr.NoRecordFound{}, "key %d absent", k)
			}
		}
	})
}

func TestMapStore_VariableFields(t *testing.T) {
	t.Run("keeps exact key and payload lengths", func(t *testing.T) {
		// Prepare
		m, _ := newTestMap(t, Params{MaxCount: 10, KeySize: 16, VariableKey: true, PayloadSize: 32, VariablePayload: true})

		// Execute
		_, errA := m.Add([]byte("a"), []byte("x"))
		_, errB := m.Add([]byte("abc"), nil)
		_, errLong := m.Add([]byte("0123456789abcdefg"), nil)

		// Check
		assert.NoError(t, errA, "adds a")
		assert.NoError(t, errB, "adds abc")
		assert.ErrorIs(t, errLong, storeerr.InvalidArgument{}, "key too long")

		record, err := m.Get([]byte("a"))
		assert.NoError(t, err, "gets a")
		assert.Equal(t, []byte("a"), record.Key, "key a")
		assert.Equal(t, []byte("x"), record.Payload, "payload x")

		record, err = m.Get([]byte("abc"))
		assert.NoError(t, err, "gets abc")
		assert.Empty(t, record.Payload, "empty payload")

		found, err := m.Contains([]byte("a\x00"))
		assert.NoError(t, err, "contains")
		assert.False(t, found, "no padding with variable keys")
	})
}

func TestMapStore_PayloadAccess(t *testing.T) {
	t.Run("variable payload", func(t *testing.T) {
		// Prepare
		m, _ := newTestMap(t, Params{MaxCount: 4, KeySize: 4, PayloadSize: 10, VariablePayload: true})
		index, err := m.Add(intKey(1), []byte("abcdef"))
		require.NoError(t, err)

		// Execute
		errWrite := m.WritePayloadAt(index, 1, []byte("ZZ"))
		buf := make([]byte, 3)
		errRead := m.ReadPayloadAt(index, 0, buf)
		record1, _ := m.Get(intKey(1))
		errTail := m.ReplacePayloadTail(index, 2, []byte("q"))
		record2, _ := m.Get(intKey(1))

		// Check
		assert.NoError(t, errWrite, "writes payload")
		assert.NoError(t, errRead, "reads payload")
		assert.Equal(t, []byte("aZZ"), buf, "read back")
		assert.Equal(t, []byte("aZZdef"), record1.Payload, "length unchanged")
		assert.NoError(t, errTail, "replaces tail")
		assert.Equal(t, []byte("aZq"), record2.Payload, "length follows tail")
	})

	t.Run("fixed payload", func(t *testing.T) {
		// Prepare
		m, _ := newTestMap(t, Params{MaxCount: 4, KeySize: 4, PayloadSize: 5})
		index, err := m.Add(intKey(1), []byte("abcde"))
		require.NoError(t, err)

		// Execute
		errTail := m.ReplacePayloadTail(index, 2, []byte("q"))
		errPast := m.WritePayloadAt(index, 4, []byte("xy"))
		errIndex := m.ReadPayloadAt(m.Capacity(), 0, make([]byte, 1))

		// Check
		assert.NoError(t, errTail, "replaces tail")
		record, _ := m.Get(intKey(1))
		assert.Equal(t, []byte{'a', 'b', 'q', 0, 0}, record.Payload, "tail zero filled")
		assert.ErrorIs(t, errPast, storeerr.OutOfBounds{}, "write past payload")
		assert.ErrorIs(t, errIndex, storeerr.OutOfBounds{}, "slot past capacity")
	})
}

func TestMapStore_ForEach(t *testing.T) {
	t.Run("visits occupied slots and stops on request", func(t *testing.T) {
		// Prepare
		m, _ := newTestMap(t, Params{MaxCount: 20, KeySize: 4, PayloadSize: 4})
		for i := 0; i < 20; i++ {
			_, err := m.Add(intKey(i), nil)
			require.NoError(t, err)
		}
		_, err := m.Remove(intKey(5))
		require.NoError(t, err)

		// Execute
		seen := make(map[string]bool)
		errAll := m.ForEach(func(record Record) bool {
			seen[string(record.Key)] = true
			return true
		})
		n := 0
		errStop := m.ForEach(func(record Record) bool {
			n++
			return n < 3
		})

		// Check
		assert.NoError(t, errAll, "visits all")
		assert.Len(t, seen, 19, "live keys only")
		assert.False(t, seen[string(intKey(5))], "removed key not visited")
		assert.NoError(t, errStop, "visits some")
		assert.Equal(t, 3, n, "stopped early")
	})
}

func TestMapStore_CopyTo(t *testing.T) {
	t.Run("grows into bigger map store", func(t *testing.T) {
		// Prepare
		params := Params{MaxCount: 20, KeySize: 4, PayloadSize: 4}
		src, _ := newTestMap(t, params)
		for i := 0; i < 20; i++ {
			_, err := src.Add(intKey(i), intKey(i+1000))
			require.NoError(t, err)
		}
		params.MaxCount *= 2
		dst, _ := newTestMap(t, params)
		values := make([]int, src.Capacity())
		for i := range values {
			values[i] = -1
		}
		err := src.ForEach(func(record Record) bool {
			values[record.Index] = int(binary.BigEndian.Uint32(record.Key))
			return true
		})
		require.NoError(t, err)
		moved := make([]int, dst.Capacity())

		// Execute
		err = src.CopyTo(dst, func(from, to int64) error {
			moved[to] = values[from]
			return nil
		})

		// Check
		assert.NoError(t, err, "copies")
		assert.Equal(t, int64(20), dst.Count(), "count")
		for i := 0; i < 20; i++ {
			record, err := dst.Get(intKey(i))
			assert.NoErrorf(t, err, "gets key %d", i)
			assert.Equal(t, intKey(i+1000), record.Payload, "payload")
			assert.Equal(t, i, moved[record.Index], "parallel value followed entry")
		}
	})

	t.Run("rejects different layout and full destination", func(t *testing.T) {
		src, _ := newTestMap(t, Params{MaxCount: 4, KeySize: 4, PayloadSize: 4})
		for i := 0; i < 4; i++ {
			_, err := src.Add(intKey(i), nil)
			require.NoError(t, err)
		}

		other, _ := newTestMap(t, Params{MaxCount: 4, KeySize: 8, PayloadSize: 4})
		err := src.CopyTo(other, nil)
		assert.ErrorIs(t, err, storeerr.InvalidArgument{}, "layout differs")

		small, _ := newTestMap(t, Params{MaxCount: 2, KeySize: 4, PayloadSize: 4})
		err = src.CopyTo(small, nil)
		assert.ErrorIs(t, err, storeerr.OverCapacity{}, "destination full")
	})

	t.Run("relocate error stops copy", func(t *testing.T) {
		src, _ := newTestMap(t, Params{MaxCount: 4, KeySize: 4, PayloadSize: 4})
		for i := 0; i < 4; i++ {
			_, err := src.Add(intKey(i), nil)
			require.NoError(t, err)
		}
		dst, _ := newTestMap(t, Params{MaxCount: 8, KeySize: 4, PayloadSize: 4})

		err := src.CopyTo(dst, func(from, to int64) error {
			return fmt.Errorf("stop")
		})

		assert.EqualError(t, err, "stop", "relocate error returned")
		assert.Equal(t, int64(1), dst.Count(), "one entry copied")
	})
}

func TestOpen(t *testing.T) {
	t.Run("reads back existing map store", func(t *testing.T) {
		// Prepare
		params := Params{MaxCount: 30, KeySize: 4, VariableKey: true, PayloadSize: 6}
		m, r := newTestMap(t, params)
		for i := 0; i < 30; i++ {
			_, err := m.Add(intKey(i), []byte{byte(i)})
			require.NoError(t, err)
		}

		// Execute
		reopened, err := Open(r, nil)

		// Check
		assert.NoError(t, err, "opens map store")
		assert.Equal(t, int64(30), reopened.Count(), "count")
		assert.Equal(t, params.MaxCount, reopened.MaxCount(), "max count")
		assert.Equal(t, m.Capacity(), reopened.Capacity(), "capacity")
		assert.Equal(t, m.Params(), reopened.Params(), "params")
		for i := 0; i < 30; i++ {
			record, err := reopened.Get(intKey(i))
			assert.NoErrorf(t, err, "gets key %d", i)
			assert.Equal(t, byte(i), record.Payload[0], "payload")
		}
	})

	t.Run("rejects unknown version", func(t *testing.T) {
		// Prepare
		_, r := newTestMap(t, Params{MaxCount: 3, KeySize: 4, PayloadSize: 4})
		_, err := r.WriteAt([]byte{9}, 0)
		require.NoError(t, err)

		// Execute
		_, err = Open(r, nil)

		// Check
		assert.ErrorIs(t, err, storeerr.Corruption{}, "unknown version")
	})

	t.Run("detects damaged length prefix on lookup", func(t *testing.T) {
		// Prepare
		m, r := newTestMap(t, Params{MaxCount: 3, KeySize: 4, VariableKey: true, PayloadSize: 4})
		index, err := m.Add([]byte("k"), nil)
		require.NoError(t, err)
		prefix := make([]byte, 4)
		binary.BigEndian.PutUint32(prefix, 99)
		_, err = r.WriteAt(prefix, 23+index*m.EntrySize()+1)
		require.NoError(t, err)

		// Execute
		_, err = m.Get([]byte("k"))

		// Check
		assert.ErrorIs(t, err, storeerr.Corruption{}, "damaged prefix")
	})
}
