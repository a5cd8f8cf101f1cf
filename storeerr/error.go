package storeerr

import "fmt"

// NoRecordFound - Custom error to inform that no record was found
type NoRecordFound struct {
	msg string
}

// Error - Used to notify that no record was found
func (E NoRecordFound) Error() string {
	if E.msg == "" {
		return "no record found"
	}
	return E.msg
}

// Is - Makes errors.Is match any NoRecordFound regardless of message
func (E NoRecordFound) Is(target error) bool {
	_, ok := target.(NoRecordFound)
	return ok
}

// OverCapacity - Custom error to inform that a map store can't take more entries.
// It is recoverable by growing the map and retrying.
type OverCapacity struct {
	msg string
}

// NewOverCapacity - Returns an OverCapacity error with a formatted message
func NewOverCapacity(format string, a ...any) OverCapacity {
	return OverCapacity{msg: fmt.Sprintf(format, a...)}
}

// Error - Used to notify that the map store is full
func (E OverCapacity) Error() string {
	if E.msg == "" {
		return "over capacity"
	}
	return E.msg
}

// Is - Makes errors.Is match any OverCapacity regardless of message
func (E OverCapacity) Is(target error) bool {
	_, ok := target.(OverCapacity)
	return ok
}

// Corruption - Custom error to inform that a binary layout did not validate, e.g. a chunk magic
// number mismatch. It is always fatal to the operation.
type Corruption struct {
	msg    string
	Offset int64
}

// NewCorruption - Returns a Corruption error for the given region offset
func NewCorruption(offset int64, format string, a ...any) Corruption {
	return Corruption{msg: fmt.Sprintf(format, a...), Offset: offset}
}

// Error - Used to notify corrupted data
func (E Corruption) Error() string {
	if E.msg == "" {
		return fmt.Sprintf("corrupted data at offset %d", E.Offset)
	}
	return fmt.Sprintf("%s (offset %d)", E.msg, E.Offset)
}

// Is - Makes errors.Is match any Corruption regardless of message or offset
func (E Corruption) Is(target error) bool {
	_, ok := target.(Corruption)
	return ok
}

// OutOfBounds - Custom error to inform that a seek, read or write went outside a bounded view.
// It is a programming error and should not be retried.
type OutOfBounds struct {
	msg string
}

// NewOutOfBounds - Returns an OutOfBounds error with a formatted message
func NewOutOfBounds(format string, a ...any) OutOfBounds {
	return OutOfBounds{msg: fmt.Sprintf(format, a...)}
}

// Error - Used to notify an access outside permitted bounds
func (E OutOfBounds) Error() string {
	if E.msg == "" {
		return "out of bounds"
	}
	return E.msg
}

// Is - Makes errors.Is match any OutOfBounds regardless of message
func (E OutOfBounds) Is(target error) bool {
	_, ok := target.(OutOfBounds)
	return ok
}

// RegionFull - Custom error to inform that a fixed capacity region can't grow any further
type RegionFull struct {
	msg string
}

// NewRegionFull - Returns a RegionFull error with a formatted message
func NewRegionFull(format string, a ...any) RegionFull {
	return RegionFull{msg: fmt.Sprintf(format, a...)}
}

// Error - Used to notify that a region is full
func (E RegionFull) Error() string {
	if E.msg == "" {
		return "region full"
	}
	return E.msg
}

// Is - Makes errors.Is match any RegionFull regardless of message
func (E RegionFull) Is(target error) bool {
	_, ok := target.(RegionFull)
	return ok
}

// InvalidArgument - Custom error to inform that a parameter is not acceptable
type InvalidArgument struct {
	msg string
}

// NewInvalidArgument - Returns an InvalidArgument error with a formatted message
func NewInvalidArgument(format string, a ...any) InvalidArgument {
	return InvalidArgument{msg: fmt.Sprintf(format, a...)}
}

// Error - Used to notify an invalid argument
func (E InvalidArgument) Error() string {
	if E.msg == "" {
		return "invalid argument"
	}
	return E.msg
}

// Is - Makes errors.Is match any InvalidArgument regardless of message
func (E InvalidArgument) Is(target error) bool {
	_, ok := target.(InvalidArgument)
	return ok
}
