package encoding

import "math/bits"

// BitVector is a compact bit array. It backs two unrelated uses in this
// module: the meta trailer's attrs_enabled_bitvec (whole single bits) and
// internal/codec's fixed-bit-width integer packing (multi-bit fields via
// SetBits/GetBits).
type BitVector struct {
	words  []uint64
	length uint64
}

// NewBitVector creates a new bit vector with the given length in bits.
func NewBitVector(length uint64) *BitVector {
	numWords := (length + 63) / 64
	return &BitVector{
		words:  make([]uint64, numWords),
		length: length,
	}
}

// Set sets the bit at position i to 1.
func (bv *BitVector) Set(i uint64) {
	if i >= bv.length {
		return
	}
	bv.words[i/64] |= uint64(1) << (i % 64)
}

// Get returns the bit at position i.
func (bv *BitVector) Get(i uint64) bool {
	if i >= bv.length {
		return false
	}
	return (bv.words[i/64] & (uint64(1) << (i % 64))) != 0
}

// Length returns the length of the bit vector in bits.
func (bv *BitVector) Length() uint64 {
	return bv.length
}

// PopCount returns the total number of 1-bits.
func (bv *BitVector) PopCount() uint64 {
	count := uint64(0)
	for _, w := range bv.words {
		count += uint64(bits.OnesCount64(w))
	}
	return count
}

// Uint32Words returns the bit vector as little-endian 32-bit words, the
// raw shape the meta trailer's packed<u32> attrs_enabled_bitvec uses.
func (bv *BitVector) Uint32Words() []uint32 {
	numWords := (bv.length + 31) / 32
	out := make([]uint32, numWords)
	for i := range out {
		bit := uint64(i) * 32
		word := bit / 64
		shift := bit % 64
		v := bv.words[word] >> shift
		if shift != 0 && word+1 < uint64(len(bv.words)) {
			v |= bv.words[word+1] << (64 - shift)
		}
		out[i] = uint32(v)
	}
	return out
}

// SetBits packs the low `width` bits of value at bit offset pos.
func (bv *BitVector) SetBits(pos uint64, width int, value uint64) {
	for i := 0; i < width; i++ {
		if value&(uint64(1)<<uint(i)) != 0 {
			bv.Set(pos + uint64(i))
		}
	}
}

// GetBits unpacks `width` bits starting at bit offset pos into a value.
func (bv *BitVector) GetBits(pos uint64, width int) uint64 {
	var v uint64
	for i := 0; i < width; i++ {
		if bv.Get(pos + uint64(i)) {
			v |= uint64(1) << uint(i)
		}
	}
	return v
}
