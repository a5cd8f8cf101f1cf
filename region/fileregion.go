package region

import (
	"fmt"
	"os"
)

// FileRegion - Region backed by a random access file
type FileRegion struct {
	fileName string
	file     *os.File
}

// CreateFileRegion - Creates a new file region. If the file already exists it will be truncated
// to zero length, hence deleting all existing data.
func CreateFileRegion(fileName string) (fileRegion *FileRegion, err error) {
	file, err := os.OpenFile(fileName, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0644)
	if err != nil {
		err = fmt.Errorf("error while open/create new region file: %w", err)
		return
	}

	fileRegion = &FileRegion{fileName: fileName, file: file}

	return
}

// OpenFileRegion - Opens an existing file as a region
func OpenFileRegion(fileName string) (fileRegion *FileRegion, err error) {
	stat, err := os.Stat(fileName)
	if err != nil {
		err = fmt.Errorf("region file not found: %w", err)
		return
	}
	if stat.IsDir() {
		err = fmt.Errorf("region file %s is a directory", fileName)
		return
	}

	file, err := os.OpenFile(fileName, os.O_RDWR, 0644)
	if err != nil {
		err = fmt.Errorf("unable to open existing region file: %w", err)
		return
	}

	fileRegion = &FileRegion{fileName: fileName, file: file}

	return
}

// Name - Returns the file name of the region
func (F *FileRegion) Name() string {
	return F.fileName
}

// Read - Implements io.Reader
func (F *FileRegion) Read(p []byte) (int, error) {
	return F.file.Read(p)
}

// Write - Implements io.Writer
func (F *FileRegion) Write(p []byte) (int, error) {
	return F.file.Write(p)
}

// ReadAt - Implements io.ReaderAt
func (F *FileRegion) ReadAt(p []byte, off int64) (int, error) {
	return F.file.ReadAt(p, off)
}

// WriteAt - Implements io.WriterAt
func (F *FileRegion) WriteAt(p []byte, off int64) (int, error) {
	return F.file.WriteAt(p, off)
}

// Seek - Implements io.Seeker
func (F *FileRegion) Seek(offset int64, whence int) (int64, error) {
	return F.file.Seek(offset, whence)
}

// Length - Returns the file size
func (F *FileRegion) Length() (length int64, err error) {
	stat, err := F.file.Stat()
	if err != nil {
		return
	}

	length = stat.Size()

	return
}

// SetLength - Truncates or extends the file
func (F *FileRegion) SetLength(length int64) (err error) {
	err = F.file.Truncate(length)
	if err != nil {
		err = fmt.Errorf("error while truncate region file to length %d: %w", length, err)
	}

	return
}

// Flush - Syncs the file to stable storage
func (F *FileRegion) Flush() error {
	return F.file.Sync()
}

// Close - Syncs and closes the file
func (F *FileRegion) Close() (err error) {
	if F.file == nil {
		return
	}

	_ = F.file.Sync()
	err = F.file.Close()
	F.file = nil

	return
}

// Remove - Removes the region file, make sure to close it first
func (F *FileRegion) Remove() (err error) {
	if stat, ok := os.Stat(F.fileName); ok == nil {
		if !stat.IsDir() {
			err = os.Remove(F.fileName)
			if err != nil {
				err = fmt.Errorf("error while removing region file: %w", err)
			}
		}
	}

	return
}
