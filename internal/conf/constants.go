package conf

// Chunk store global header

// GlobalHeaderLength - Length of the chunk store global header (total length and reference number)
const GlobalHeaderLength int64 = 16

// TotalLengthOffset - Global header offset to the total length of the chunk store - 8 bytes
const TotalLengthOffset int64 = 0

// ReferenceNumberOffset - Global header offset to the reference number - 8 bytes
const ReferenceNumberOffset int64 = 8

// FreeListOffset - Offset to the first free list head slot, one 8 byte slot per size class follows
const FreeListOffset int64 = GlobalHeaderLength

// FreeListSlotLength - Length of one free list head slot
const FreeListSlotLength int64 = 8

// MaxPower - Exclusive upper bound of chunk powers, size classes run from min power to MaxPower - 1
const MaxPower int64 = 64

// DefaultMinPower - Smallest chunk payload is 2^DefaultMinPower bytes unless configured otherwise
const DefaultMinPower int64 = 8

// Chunk header

// ChunkMagic - Sentinel stored first in every chunk header
const ChunkMagic uint64 = 0x7FFFFFFFFFFFFFFF

// ChunkHeaderLength - Length of a chunk header
const ChunkHeaderLength int64 = 32

// ChunkMagicOffset - Chunk header offset to the magic number - 8 bytes
const ChunkMagicOffset int64 = 0

// ChunkPowerOffset - Chunk header offset to the power of the payload capacity - 8 bytes
const ChunkPowerOffset int64 = 8

// ChunkNextFreeOffset - Chunk header offset to next free chunk in the same size class - 8 bytes
const ChunkNextFreeOffset int64 = 16

// ChunkLengthOffset - Chunk header offset to the payload length - 8 bytes
const ChunkLengthOffset int64 = 24

// NoChunk - Null value for chunk offsets in free lists and in live chunks' next free field
const NoChunk int64 = -1

// FreeChunkLength - Payload length stored in the header of a recycled chunk
const FreeChunkLength int64 = -1

// Map store header

// MapVersion - Layout version written to new map stores
const MapVersion uint8 = 1

// MapHeaderLength - Length of a map store header
const MapHeaderLength int64 = 23

// MapVersionOffset - Map header offset to the version - 1 byte
const MapVersionOffset int64 = 0

// MapCountOffset - Map header offset to number of occupied entries - 4 bytes
const MapCountOffset int64 = 1

// MapMaxCountOffset - Map header offset to max number of entries - 4 bytes
const MapMaxCountOffset int64 = 5

// MapCapacityOffset - Map header offset to number of slots - 4 bytes
const MapCapacityOffset int64 = 9

// MapKeySizeOffset - Map header offset to the (max) key size - 4 bytes
const MapKeySizeOffset int64 = 13

// MapKeyVariableOffset - Map header offset to whether keys are length prefixed - 1 byte
const MapKeyVariableOffset int64 = 17

// MapPayloadSizeOffset - Map header offset to the (max) payload size - 4 bytes
const MapPayloadSizeOffset int64 = 18

// MapPayloadVariableOffset - Map header offset to whether payloads are length prefixed - 1 byte
const MapPayloadVariableOffset int64 = 22

// ModeBytes - Number of bytes holding the entry mode at the start of each slot
const ModeBytes int64 = 1

// LengthPrefixBytes - Number of bytes of the length prefix of variable keys and payloads
const LengthPrefixBytes int64 = 4

// Skip list column

// HeightBytes - Number of bytes holding the column height
const HeightBytes int64 = 1

// ForwardBytes - Number of bytes of one column pointer
const ForwardBytes int64 = 4

// MinMaxHeight - Lower limit for the max height of a skip list
const MinMaxHeight int64 = 8

// MaxMaxHeight - Upper limit for the max height of a skip list
const MaxMaxHeight int64 = 32

// MinNodeHeight - Every node column holds at least the back pointer and the base level
const MinNodeHeight int64 = 2

// NullIndex - Null value of a column pointer
const NullIndex int32 = -1

// Hashing

// DefaultHashSeed - Seed of the default key hash, changing it makes existing map stores unreadable
const DefaultHashSeed uint64 = 0x2545F4914F6CDD1D

// HashMultiplier - Per byte multiplier of the default key hash
const HashMultiplier uint64 = 6364136223846793005

// HashIncrement - Per byte increment of the default key hash
const HashIncrement uint64 = 1442695040888963407

// MaxUint32 - Largest value of the four byte map store header fields
const MaxUint32 int64 = 1<<32 - 1
