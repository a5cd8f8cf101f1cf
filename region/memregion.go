package region

import (
	"github.com/gostonefire/chunkmap/storeerr"
	"io"
	"sync"
)

// MemRegion - Region backed by a memory buffer. A fixed region never grows beyond the capacity
// given at creation while a growable region reallocates and copies its buffer when it overflows.
type MemRegion struct {
	mutex    sync.RWMutex
	buf      []byte
	length   int64
	pos      int64
	growable bool
}

// NewMemRegion - Returns a region backed by a fixed capacity memory buffer of zero length
//   - capacity is the hard limit the region length can reach
func NewMemRegion(capacity int64) *MemRegion {
	return &MemRegion{buf: make([]byte, capacity)}
}

// NewGrowableMemRegion - Returns a region backed by a memory buffer that doubles when it overflows
//   - initial is the initial buffer capacity
func NewGrowableMemRegion(initial int64) *MemRegion {
	if initial < 1 {
		initial = 1
	}
	return &MemRegion{buf: make([]byte, initial), growable: true}
}

// Capacity - Returns the current buffer capacity
func (M *MemRegion) Capacity() int64 {
	M.mutex.RLock()
	defer M.mutex.RUnlock()

	return int64(len(M.buf))
}

// Bytes - Returns the region contents up to its length, the slice aliases the buffer
func (M *MemRegion) Bytes() []byte {
	M.mutex.RLock()
	defer M.mutex.RUnlock()

	return M.buf[:M.length]
}

// Read - Implements io.Reader, returns io.EOF at the end of the region
func (M *MemRegion) Read(p []byte) (n int, err error) {
	M.mutex.Lock()
	defer M.mutex.Unlock()

	n, err = M.readAt(p, M.pos)
	M.pos += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}

	return
}

// Write - Implements io.Writer, writing past the end extends the region
func (M *MemRegion) Write(p []byte) (n int, err error) {
	M.mutex.Lock()
	defer M.mutex.Unlock()

	n, err = M.writeAt(p, M.pos)
	M.pos += int64(n)

	return
}

// ReadAt - Implements io.ReaderAt
func (M *MemRegion) ReadAt(p []byte, off int64) (n int, err error) {
	M.mutex.RLock()
	defer M.mutex.RUnlock()

	return M.readAt(p, off)
}

// WriteAt - Implements io.WriterAt, writing past the end extends the region
func (M *MemRegion) WriteAt(p []byte, off int64) (n int, err error) {
	M.mutex.Lock()
	defer M.mutex.Unlock()

	return M.writeAt(p, off)
}

// Seek - Implements io.Seeker
func (M *MemRegion) Seek(offset int64, whence int) (pos int64, err error) {
	M.mutex.Lock()
	defer M.mutex.Unlock()

	pos, err = seekPosition(offset, whence, M.pos, M.length)
	if err != nil {
		return
	}

	M.pos = pos

	return
}

// Length - Returns the current region length
func (M *MemRegion) Length() (int64, error) {
	M.mutex.RLock()
	defer M.mutex.RUnlock()

	return M.length, nil
}

// SetLength - Changes the region length, new bytes are zero
func (M *MemRegion) SetLength(length int64) error {
	M.mutex.Lock()
	defer M.mutex.Unlock()

	return M.setLength(length)
}

// Flush - Nothing to flush for memory
func (M *MemRegion) Flush() error {
	return nil
}

// Close - Nothing to release for memory
func (M *MemRegion) Close() error {
	return nil
}

// readAt - Copies from the buffer, io.EOF when the read is cut short by the region end
func (M *MemRegion) readAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		err = storeerr.NewOutOfBounds("negative read offset %d", off)
		return
	}
	if off >= M.length {
		err = io.EOF
		return
	}

	n = copy(p, M.buf[off:M.length])
	if n < len(p) {
		err = io.EOF
	}

	return
}

// writeAt - Copies into the buffer, extending the region when needed
func (M *MemRegion) writeAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		err = storeerr.NewOutOfBounds("negative write offset %d", off)
		return
	}

	end := off + int64(len(p))
	if end > M.length {
		err = M.setLength(end)
		if err != nil {
			return
		}
	}

	n = copy(M.buf[off:end], p)

	return
}

// setLength - Resizes the region, reallocating the buffer of a growable region
func (M *MemRegion) setLength(length int64) (err error) {
	if length < 0 {
		err = storeerr.NewInvalidArgument("negative region length %d", length)
		return
	}

	if length > int64(len(M.buf)) {
		if !M.growable {
			err = storeerr.NewRegionFull("length %d exceeds fixed capacity %d", length, len(M.buf))
			return
		}

		newCap := int64(len(M.buf))
		for newCap < length {
			newCap *= 2
		}
		buf := make([]byte, newCap)
		_ = copy(buf, M.buf[:M.length])
		M.buf = buf
	}

	if length < M.length {
		clear(M.buf[length:M.length])
	}
	M.length = length

	return
}
