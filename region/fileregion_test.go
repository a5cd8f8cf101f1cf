//go:build unit

package region

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"path/filepath"
	"testing"
)

func TestFileRegion(t *testing.T) {
	t.Run("persists data across reopen", func(t *testing.T) {
		// Prepare
		name := filepath.Join(t.TempDir(), "region.bin")
		r, err := CreateFileRegion(name)
		require.NoError(t, err)
		require.NoError(t, r.SetLength(128))
		require.NoError(t, writeAt(r, []byte("chunk"), 100))
		require.NoError(t, r.Close())

		// Execute
		r, err = OpenFileRegion(name)
		require.NoError(t, err)
		buf := make([]byte, 5)
		err = readAt(r, buf, 100)

		// Check
		assert.NoError(t, err, "reads back")
		assert.Equal(t, "chunk", string(buf), "same data")
		length, err := r.Length()
		assert.NoError(t, err, "gets length")
		assert.Equal(t, int64(128), length, "same length")

		// Clean up
		assert.NoError(t, r.Close(), "closes")
		assert.NoError(t, r.Remove(), "removes")
	})

	t.Run("opening a missing file fails", func(t *testing.T) {
		_, err := OpenFileRegion(filepath.Join(t.TempDir(), "missing.bin"))
		assert.Error(t, err, "file not found")
	})
}
