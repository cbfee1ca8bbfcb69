// Package codec implements the two named integer codecs spec.md §4.3
// treats as external collaborators specified only by interface:
// "simdfastpfor128" for 32-bit postings/deltas and "fastpfor128" for
// 64-bit ones. No SIMD-PFOR library exists anywhere in the retrieved
// corpus, so this package provides a from-scratch frame-of-reference
// plus fixed-bit-width bit-packing codec behind the same two names,
// built on internal/encoding's BitVector primitive rather than a
// hand-rolled bit buffer.
package codec

import "fmt"

// ChunkSize is the number of values grouped into one bit-packed chunk,
// matching spec.md §4.3's 128-wide block granularity.
const ChunkSize = 128

// IntCodec32 compresses/decompresses slices of uint32. Encoded blobs are
// self-describing: Decode recovers the original element count from the
// blob itself, so callers never need to track it separately.
type IntCodec32 interface {
	Name() string
	Encode(values []uint32) []byte
	Decode(data []byte) []uint32
}

// IntCodec64 compresses/decompresses slices of uint64.
type IntCodec64 interface {
	Name() string
	Encode(values []uint64) []byte
	Decode(data []byte) []uint64
}

// CreateIntCodec32 returns the registered 32-bit codec for name.
func CreateIntCodec32(name string) (IntCodec32, error) {
	switch name {
	case "simdfastpfor128":
		return bitPack32{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown 32-bit codec %q", name)
	}
}

// CreateIntCodec64 returns the registered 64-bit codec for name.
func CreateIntCodec64(name string) (IntCodec64, error) {
	switch name {
	case "fastpfor128":
		return bitPack64{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown 64-bit codec %q", name)
	}
}
