// Package region provides the byte regions the chunk store and the map stores live in.
//
// A Region is a seekable, growable range of bytes. Three backings are provided: a fixed
// capacity memory buffer, an auto growing memory buffer and files (plain random access or
// memory mapped). A BoundedView remaps a sub range of a Region to start at offset 0 and
// refuses any access outside of it.
//
// Positional access (ReadAt, WriteAt) of the provided backings is safe for concurrent use,
// so views onto different chunks of one region can be used under different locks. The
// cursor based Read, Write and Seek share one position and need the caller's lock.
package region

import (
	"fmt"
	"io"
)

// Region - Interface for any byte region backing a chunk store or a map store
type Region interface {
	io.ReadWriteSeeker
	io.ReaderAt
	io.WriterAt
	io.Closer

	// Length - Returns the current length of the region
	Length() (int64, error)

	// SetLength - Grows or shrinks the region to exactly length bytes
	SetLength(length int64) error

	// Flush - Commits written data to the underlying medium
	Flush() error
}

// seekPosition - Resolves a Seek request into an absolute position
func seekPosition(offset int64, whence int, current, length int64) (pos int64, err error) {
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = current + offset
	case io.SeekEnd:
		pos = length + offset
	default:
		err = fmt.Errorf("invalid whence %d", whence)
		return
	}

	if pos < 0 {
		err = fmt.Errorf("negative position %d", pos)
	}

	return
}
