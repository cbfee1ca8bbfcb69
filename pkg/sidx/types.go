package sidx

import (
	"math"

	"github.com/tomatolog/columnar/internal/common"
)

// AttrType and Collation are re-exported from internal/common so callers
// of the public API never import the internal package directly.
type AttrType = common.AttrType
type Collation = common.Collation

const (
	TypeUint32    = common.TypeUint32
	TypeTimestamp = common.TypeTimestamp
	TypeFloat     = common.TypeFloat
	TypeInt64     = common.TypeInt64
	TypeString    = common.TypeString
	TypeUint32Set = common.TypeUint32Set
	TypeInt64Set  = common.TypeInt64Set
)

const (
	CollationLibcCI        = common.CollationLibcCI
	CollationLibcCS        = common.CollationLibcCS
	CollationUTF8GeneralCI = common.CollationUTF8GeneralCI
	CollationBinary        = common.CollationBinary
)

// SourceAttr describes one attribute the host engine wants indexed,
// matching spec.md §6's create_builder attrs shape.
type SourceAttr struct {
	SrcIndex int
	Name     string
	Type     AttrType
}

// pair32 and pair64 are the two concrete width-specialized pair types the
// collector/merger/encoder pipeline is parameterized over, replacing the
// original C++'s RawWriter_T<uint32_t>/RawWriter_T<int64_t> templates
// (spec.md §9's "tagged variant... or capability interface").
type pair32 struct {
	value uint32
	rowID uint32
}

type pair64 struct {
	value uint64
	rowID uint32
}

// floatBits reinterprets a float32 as its IEEE-754 bit pattern, the
// bit-preserving transform spec.md §3 requires for the float attribute
// type's 32-bit index width.
func floatBits(f float32) uint32 {
	return math.Float32bits(f)
}

// int64ToUint64 reinterprets an int64 as unsigned without changing its
// bit pattern, the transform spec.md §3 requires for int64/int64_set.
func int64ToUint64(v int64) uint64 {
	return uint64(v)
}

// floatOrderKey maps a float32 bit pattern to an unsigned integer that
// sorts in the same order as the float value, so the collector/merger can
// sort/compare 32-bit attribute values uniformly as plain uint32s and only
// special-case ordering for the float type, per spec.md §9's "must be
// consistent between group-accumulation and heap comparator". -0.0 is
// folded onto +0.0's bit pattern before the sign transform so the two
// collapse to the same key, agreeing with floatEqualBits's ±0.0 grouping
// rule instead of ordering every -0.0 strictly before every +0.0.
func floatOrderKey(bits uint32) uint32 {
	if bits == 0x80000000 {
		bits = 0
	}
	if bits&0x80000000 != 0 {
		return ^bits
	}
	return bits | 0x80000000
}

// lessValue32 orders two 32-bit stored values for the given attribute
// type. Only float needs the order-key transform; the other 32-bit types
// already sort correctly as plain unsigned integers.
func lessValue32(typ AttrType, a, b uint32) bool {
	if typ == TypeFloat {
		return floatOrderKey(a) < floatOrderKey(b)
	}
	return a < b
}

// floatEqualBits implements spec.md §9's FloatEqual rule at the bit level:
// bit-exact equality, with the single exception that +0.0 and -0.0 (whose
// bit patterns differ only in sign) compare equal, and NaN never compares
// equal to NaN (a NaN bit pattern never equals itself under this rule
// because two distinct NaN payloads are common and even equal payloads
// are tie-broken as distinct groups per spec.md §8's boundary behavior).
func floatEqualBits(a, b uint32) bool {
	fa := math.Float32frombits(a)
	fb := math.Float32frombits(b)
	if math.IsNaN(float64(fa)) || math.IsNaN(float64(fb)) {
		return false
	}
	if a == b {
		return true
	}
	// ±0.0: bit patterns 0x00000000 and 0x80000000.
	return (a == 0x00000000 && b == 0x80000000) || (a == 0x80000000 && b == 0x00000000)
}
