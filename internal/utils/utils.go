package utils

import "math/bits"

// IsEqual - Returns true if a and b are equal both in size and contents
func IsEqual(a, b []byte) bool {
	lenA := len(a)
	if lenA != len(b) {
		return false
	}

	for i := 0; i < lenA; i++ {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

// PadTo - Returns a copy of a extended with trailing zero bytes to the given length.
// If a is already at least length long a plain copy is returned.
func PadTo(a []byte, length int64) (b []byte) {
	n := int64(len(a))
	if n < length {
		n = length
	}
	b = make([]byte, n)
	_ = copy(b, a)

	return
}

// PowerFor - Returns the smallest power p, not lower than minPower, such that 2^p >= n
func PowerFor(n, minPower int64) (power int64) {
	power = minPower
	if n > 1 {
		if p := int64(bits.Len64(uint64(n - 1))); p > power {
			power = p
		}
	}

	return
}

// Log2 - Returns floor(log2(n)) for n > 0 and 0 otherwise
func Log2(n int64) int64 {
	if n <= 0 {
		return 0
	}

	return int64(bits.Len64(uint64(n))) - 1
}
