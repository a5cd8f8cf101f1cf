//go:build unit

package utils

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestIsEqual(t *testing.T) {
	t.Run("two byte slices are equal in length and values", func(t *testing.T) {
		// Prepare
		a := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
		b := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

		// Execute
		isEqual := IsEqual(a, b)

		// Check
		assert.True(t, isEqual, "slices equal in length and values")
	})

	t.Run("two byte slices are unequal in length", func(t *testing.T) {
		// Prepare
		a := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
		b := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

		// Execute
		isEqual := IsEqual(a, b)

		// Check
		assert.False(t, isEqual, "slices unequal in length")
	})

	t.Run("two byte slices are unequal in values", func(t *testing.T) {
		// Prepare
		a := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
		b := []byte{0, 1, 5, 3, 4, 5, 6, 7, 8, 9}

		// Execute
		isEqual := IsEqual(a, b)

		// Check
		assert.False(t, isEqual, "slices unequal in values")
	})
}

func TestPadTo(t *testing.T) {
	t.Run("pads short slice with zeros", func(t *testing.T) {
		// Prepare
		a := []byte{1, 2, 3}

		// Execute
		b := PadTo(a, 6)

		// Check
		assert.Equal(t, []byte{1, 2, 3, 0, 0, 0}, b, "padded with zeros")
		b[0] = 9
		assert.Equal(t, uint8(1), a[0], "original untouched")
	})

	t.Run("copies slice that is long enough", func(t *testing.T) {
		assert.Equal(t, []byte{1, 2, 3}, PadTo([]byte{1, 2, 3}, 2), "plain copy")
	})
}

func TestPowerFor(t *testing.T) {
	t.Run("respects min power", func(t *testing.T) {
		assert.Equal(t, int64(8), PowerFor(100, 8), "100 fits in 2^8")
		assert.Equal(t, int64(8), PowerFor(256, 8), "256 fits in 2^8")
		assert.Equal(t, int64(9), PowerFor(257, 8), "257 needs 2^9")
		assert.Equal(t, int64(10), PowerFor(1000, 8), "1000 needs 2^10")
		assert.Equal(t, int64(8), PowerFor(0, 8), "zero gets min power")
	})
}

func TestLog2(t *testing.T) {
	t.Run("floors log2", func(t *testing.T) {
		assert.Equal(t, int64(0), Log2(1), "log2(1)")
		assert.Equal(t, int64(3), Log2(8), "log2(8)")
		assert.Equal(t, int64(3), Log2(15), "log2(15)")
		assert.Equal(t, int64(10), Log2(1024), "log2(1024)")
		assert.Equal(t, int64(0), Log2(0), "log2(0)")
	})
}
