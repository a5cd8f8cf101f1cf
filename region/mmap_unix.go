//go:build unix

package region

import (
	"fmt"
	"github.com/gostonefire/chunkmap/storeerr"
	"golang.org/x/sys/unix"
	"io"
	"os"
	"sync"
)

// MmapRegion - Region backed by a memory mapped file. The mapping covers the whole file and doubles when the
// region outgrows it, the region length is tracked apart from it and the file is cut to that length on Close.
type MmapRegion struct {
	mutex  sync.RWMutex
	file   *os.File
	data   []byte
	length int64
	pos    int64
}

// minMmapCapacity - Smallest mapping made when a region grows
const minMmapCapacity int64 = 4096

// OpenMmapRegion - Opens, or creates, a file and maps it into memory
//   - fileName is the file to map
//   - initial is the minimum length of the file, a longer existing file keeps its length
func OpenMmapRegion(fileName string, initial int64) (mmapRegion *MmapRegion, err error) {
	file, err := os.OpenFile(fileName, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		err = fmt.Errorf("error while open/create mmap region file: %w", err)
		return
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return
	}

	mmapRegion = &MmapRegion{file: file}
	length := stat.Size()
	if length < initial {
		length = initial
	}

	err = mmapRegion.remap(length)
	if err != nil {
		_ = file.Close()
		mmapRegion = nil
		return
	}
	mmapRegion.length = length

	return
}

// Capacity - Returns the mapped length, which is at least the region length
func (M *MmapRegion) Capacity() int64 {
	M.mutex.RLock()
	defer M.mutex.RUnlock()

	return int64(len(M.data))
}

// remap - Resizes the file to length and maps it again
func (M *MmapRegion) remap(length int64) (err error) {
	if M.data != nil {
		err = unix.Munmap(M.data)
		if err != nil {
			err = fmt.Errorf("error while unmapping region: %w", err)
			return
		}
		M.data = nil
	}

	err = M.file.Truncate(length)
	if err != nil {
		err = fmt.Errorf("error while truncate mmap region file to length %d: %w", length, err)
		return
	}

	if length == 0 {
		return
	}

	M.data, err = unix.Mmap(int(M.file.Fd()), 0, int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		err = fmt.Errorf("error while mapping region of length %d: %w", length, err)
	}

	return
}

// Read - Implements io.Reader
func (M *MmapRegion) Read(p []byte) (n int, err error) {
	M.mutex.Lock()
	defer M.mutex.Unlock()

	n, err = M.readAt(p, M.pos)
	M.pos += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}

	return
}

// Write - Implements io.Writer, writing past the end extends the file
func (M *MmapRegion) Write(p []byte) (n int, err error) {
	M.mutex.Lock()
	defer M.mutex.Unlock()

	n, err = M.writeAt(p, M.pos)
	M.pos += int64(n)

	return
}

// ReadAt - Implements io.ReaderAt
func (M *MmapRegion) ReadAt(p []byte, off int64) (int, error) {
	M.mutex.RLock()
	defer M.mutex.RUnlock()

	return M.readAt(p, off)
}

// WriteAt - Implements io.WriterAt, writing past the end extends the file
func (M *MmapRegion) WriteAt(p []byte, off int64) (int, error) {
	M.mutex.Lock()
	defer M.mutex.Unlock()

	return M.writeAt(p, off)
}

// Seek - Implements io.Seeker
func (M *MmapRegion) Seek(offset int64, whence int) (pos int64, err error) {
	M.mutex.Lock()
	defer M.mutex.Unlock()

	pos, err = seekPosition(offset, whence, M.pos, M.length)
	if err != nil {
		return
	}

	M.pos = pos

	return
}

// Length - Returns the region length
func (M *MmapRegion) Length() (int64, error) {
	M.mutex.RLock()
	defer M.mutex.RUnlock()

	return M.length, nil
}

// SetLength - Grows or shrinks the region, the mapping is only redone when it is too short
func (M *MmapRegion) SetLength(length int64) error {
	M.mutex.Lock()
	defer M.mutex.Unlock()

	return M.setLength(length)
}

// Flush - Syncs the mapping to the file
func (M *MmapRegion) Flush() error {
	M.mutex.RLock()
	defer M.mutex.RUnlock()

	if M.data == nil {
		return nil
	}
	return unix.Msync(M.data, unix.MS_SYNC)
}

// Close - Flushes, unmaps and closes the file
func (M *MmapRegion) Close() (err error) {
	M.mutex.Lock()
	defer M.mutex.Unlock()

	if M.file == nil {
		return
	}

	if M.data != nil {
		_ = unix.Msync(M.data, unix.MS_SYNC)
		err = unix.Munmap(M.data)
		M.data = nil
	}
	if terr := M.file.Truncate(M.length); err == nil && terr != nil {
		err = fmt.Errorf("error while truncate mmap region file to length %d: %w", M.length, terr)
	}
	if cerr := M.file.Close(); err == nil {
		err = cerr
	}
	M.file = nil

	return
}

// readAt - Copies from the mapping, io.EOF when the read is cut short by the region end
func (M *MmapRegion) readAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		err = storeerr.NewOutOfBounds("negative read offset %d", off)
		return
	}
	if off >= M.length {
		err = io.EOF
		return
	}

	n = copy(p, M.data[off:M.length])
	if n < len(p) {
		err = io.EOF
	}

	return
}

// writeAt - Copies into the mapping, remapping a longer file when needed
func (M *MmapRegion) writeAt(p []byte, off int64) (n int, err error) {
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

	n = copy(M.data[off:end], p)

	return
}

// setLength - Sets the region length, doubling the mapping until it covers length. Bytes cut off by a
// shrink are zeroed so growing again reads zeros.
func (M *MmapRegion) setLength(length int64) (err error) {
	if length < 0 {
		err = storeerr.NewInvalidArgument("negative region length %d", length)
		return
	}

	if length < M.length {
		clear(M.data[length:M.length])
		M.length = length
		return
	}

	capacity := int64(len(M.data))
	if length > capacity {
		newCap := max(capacity, minMmapCapacity)
		for newCap < length {
			newCap *= 2
		}
		err = M.remap(newCap)
		if err != nil {
			if M.data == nil {
				M.length = 0
			}
			return
		}
	}
	M.length = length

	return
}
