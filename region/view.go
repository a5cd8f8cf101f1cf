package region

import (
	"github.com/gostonefire/chunkmap/storeerr"
	"io"
	"math"
)

// Unbounded - End of a view that follows the length of its region
const Unbounded int64 = math.MaxInt64

// Recycler - Interface for whatever owns the chunk a view is scoped to, used when a view marked
// for recycling is closed.
type Recycler interface {
	RemoveChunk(offset int64) error
}

// BoundedView - Zero based window [start, end) onto a region. The view never owns the region.
type BoundedView struct {
	region   Region
	start    int64
	end      int64
	pos      int64
	address  int64
	recycler Recycler
	recycle  bool
	closed   bool
}

// NewBoundedView - Returns a view of [start, end) of the region, use Unbounded as end to
// let the view follow the region length.
func NewBoundedView(r Region, start, end int64) (view *BoundedView, err error) {
	if start < 0 || end < start {
		err = storeerr.NewOutOfBounds("invalid view window [%d, %d)", start, end)
		return
	}

	view = &BoundedView{region: r, start: start, end: end, address: -1}

	return
}

// NewChunkView - Returns a view scoped to the payload of a chunk. Closing the view after a call to
// MarkForRecycle hands address back to the recycler.
func NewChunkView(r Region, start, end, address int64, recycler Recycler) (view *BoundedView, err error) {
	view, err = NewBoundedView(r, start, end)
	if err != nil {
		return
	}

	view.address = address
	view.recycler = recycler

	return
}

// Start - Returns the absolute region offset the view starts at
func (B *BoundedView) Start() int64 {
	return B.start
}

// Address - Returns the address of the chunk the view is scoped to, -1 when not a chunk
func (B *BoundedView) Address() int64 {
	return B.address
}

// IsBounded - Returns false for views following the region length
func (B *BoundedView) IsBounded() bool {
	return B.end != Unbounded
}

// Length - Returns the number of addressable bytes in the view
func (B *BoundedView) Length() (length int64, err error) {
	if B.IsBounded() {
		length = B.end - B.start
		return
	}

	length, err = B.region.Length()
	if err != nil {
		return
	}
	length -= B.start
	if length < 0 {
		length = 0
	}

	return
}

// SetLength - Changes the length of an unbounded view, bounded views reject it since a chunk
// only changes size by being reallocated.
func (B *BoundedView) SetLength(length int64) error {
	if B.IsBounded() {
		return storeerr.NewOutOfBounds("bounded view of length %d can not change length", B.end-B.start)
	}
	if length < 0 {
		return storeerr.NewOutOfBounds("negative view length %d", length)
	}

	return B.region.SetLength(B.start + length)
}

// Seek - Implements io.Seeker, seeking past the end of a bounded view fails
func (B *BoundedView) Seek(offset int64, whence int) (pos int64, err error) {
	length, err := B.Length()
	if err != nil {
		return
	}

	pos, err = seekPosition(offset, whence, B.pos, length)
	if err != nil {
		err = storeerr.NewOutOfBounds("seek outside view: %s", err)
		return
	}
	if B.IsBounded() && pos > length {
		err = storeerr.NewOutOfBounds("seek to %d outside view of length %d", pos, length)
		return
	}

	B.pos = pos

	return
}

// Read - Implements io.Reader, at the end of the view it returns io.EOF
func (B *BoundedView) Read(p []byte) (n int, err error) {
	n, err = B.ReadAt(p, B.pos)
	B.pos += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}

	return
}

// Write - Implements io.Writer, writing past the end of a bounded view fails
func (B *BoundedView) Write(p []byte) (n int, err error) {
	n, err = B.WriteAt(p, B.pos)
	B.pos += int64(n)

	return
}

// ReadAt - Implements io.ReaderAt, reads crossing the end of the view are cut short with io.EOF
func (B *BoundedView) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		err = storeerr.NewOutOfBounds("negative read offset %d", off)
		return
	}

	length, err := B.Length()
	if err != nil {
		return
	}
	if off >= length {
		err = io.EOF
		return
	}

	want := int64(len(p))
	if off+want > length {
		want = length - off
	}

	n, err = B.region.ReadAt(p[:want], B.start+off)
	if err == nil && want < int64(len(p)) {
		err = io.EOF
	}

	return
}

// WriteAt - Implements io.WriterAt, writes crossing the end of a bounded view fail before anything is written
func (B *BoundedView) WriteAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		err = storeerr.NewOutOfBounds("negative write offset %d", off)
		return
	}
	if B.IsBounded() && off+int64(len(p)) > B.end-B.start {
		err = storeerr.NewOutOfBounds("write of %d bytes at %d outside view of length %d", len(p), off, B.end-B.start)
		return
	}

	return B.region.WriteAt(p, B.start+off)
}

// Flush - Flushes the underlying region
func (B *BoundedView) Flush() error {
	return B.region.Flush()
}

// MarkForRecycle - Makes Close return the chunk of the view to its recycler
func (B *BoundedView) MarkForRecycle() {
	B.recycle = true
}

// Close - Releases the view, recycling its chunk if it was marked. The region stays open.
// Calling Close more than once is a no-op.
func (B *BoundedView) Close() (err error) {
	if B.closed {
		return
	}
	B.closed = true

	if B.recycle && B.recycler != nil && B.address >= 0 {
		err = B.recycler.RemoveChunk(B.address)
	}

	return
}
