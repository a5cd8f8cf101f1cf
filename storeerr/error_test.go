//go:build unit

package storeerr

import (
	"errors"
	"fmt"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	t.Run("matches wrapped errors regardless of message", func(t *testing.T) {
		// Prepare
		tests := []struct {
			err    error
			target error
		}{
			{err: NoRecordFound{msg: "key 12 missing"}, target: NoRecordFound{}},
			{err: NewOverCapacity("count %d reached max %d", 10, 10), target: OverCapacity{}},
			{err: NewCorruption(464, "bad magic"), target: Corruption{}},
			{err: NewOutOfBounds("seek %d", 99), target: OutOfBounds{}},
			{err: NewRegionFull("capacity %d", 1024), target: RegionFull{}},
			{err: NewInvalidArgument("key size %d", 0), target: InvalidArgument{}},
		}

		for _, test := range tests {
			// Execute
			wrapped := fmt.Errorf("while doing things: %w", test.err)

			// Check
			assert.ErrorIs(t, wrapped, test.target, "wrapped error matches")
			assert.False(t, errors.Is(wrapped, errors.New("other")), "does not match unrelated error")
		}
	})

	t.Run("distinct kinds do not match", func(t *testing.T) {
		assert.NotErrorIs(t, NewOverCapacity("full"), Corruption{}, "over capacity is not corruption")
		assert.NotErrorIs(t, NewCorruption(0, "bad"), OutOfBounds{}, "corruption is not out of bounds")
	})
}

func TestCorruption_Error(t *testing.T) {
	t.Run("includes offset", func(t *testing.T) {
		// Execute
		msg := NewCorruption(4096, "magic mismatch").Error()

		// Check
		assert.Equal(t, "magic mismatch (offset 4096)", msg, "formatted message")
		assert.Equal(t, "corrupted data at offset 7", Corruption{Offset: 7}.Error(), "default message")
	})
}
