package codec

import (
	"encoding/binary"
	"math/bits"

	"github.com/tomatolog/columnar/internal/encoding"
)

// bitPack32 and bitPack64 implement frame-of-reference + fixed-bit-width
// packing over ChunkSize-wide chunks: each chunk stores its minimum value
// as a frame-of-reference base, then the per-value residual (value-base)
// packed to the smallest bit width that fits the chunk's maximum residual.
// Each chunk carries its own element count so a blob decodes on its own,
// without the caller tracking how many values it originally held.
// internal/encoding.BitVector.SetBits/GetBits does the actual bit twiddling
// so this file is only chunk bookkeeping.

type bitPack32 struct{}

func (bitPack32) Name() string { return "simdfastpfor128" }

func (bitPack32) Encode(values []uint32) []byte {
	var out []byte
	for off := 0; off < len(values); off += ChunkSize {
		chunk := values[off:min(off+ChunkSize, len(values))]
		out = append(out, encodeChunk32(chunk)...)
	}
	return out
}

func encodeChunk32(chunk []uint32) []byte {
	base := chunk[0]
	for _, v := range chunk {
		if v < base {
			base = v
		}
	}
	var maxResidual uint32
	for _, v := range chunk {
		if r := v - base; r > maxResidual {
			maxResidual = r
		}
	}
	width := bits.Len32(maxResidual)

	hdr := encoding.AppendUvarint(nil, uint64(len(chunk)))
	hdr = append(hdr, byte(width))
	baseBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(baseBuf, base)
	hdr = append(hdr, baseBuf...)

	bv := encoding.NewBitVector(uint64(width) * uint64(len(chunk)))
	for i, v := range chunk {
		bv.SetBits(uint64(i*width), width, uint64(v-base))
	}
	return append(hdr, packedBytes(bv, width*len(chunk))...)
}

// Decode decodes a blob produced by Encode. The blob is self-describing:
// it decodes until its bytes are exhausted, recovering the original
// element count from the chunk headers rather than from a caller-supplied
// length.
func (bitPack32) Decode(data []byte) []uint32 {
	var out []uint32
	for len(data) > 0 {
		count64, n := encoding.DecodeUvarint(data)
		data = data[n:]
		count := int(count64)
		width := int(data[0])
		base := binary.LittleEndian.Uint32(data[1:5])
		data = data[5:]
		byteLen := (width*count + 7) / 8
		bv := bitVectorFromBytes(data[:byteLen], width*count)
		data = data[byteLen:]
		for i := 0; i < count; i++ {
			out = append(out, base+uint32(bv.GetBits(uint64(i*width), width)))
		}
	}
	return out
}

type bitPack64 struct{}

func (bitPack64) Name() string { return "fastpfor128" }

func (bitPack64) Encode(values []uint64) []byte {
	var out []byte
	for off := 0; off < len(values); off += ChunkSize {
		chunk := values[off:min(off+ChunkSize, len(values))]
		out = append(out, encodeChunk64(chunk)...)
	}
	return out
}

func encodeChunk64(chunk []uint64) []byte {
	base := chunk[0]
	for _, v := range chunk {
		if v < base {
			base = v
		}
	}
	var maxResidual uint64
	for _, v := range chunk {
		if r := v - base; r > maxResidual {
			maxResidual = r
		}
	}
	width := bits.Len64(maxResidual)

	hdr := encoding.AppendUvarint(nil, uint64(len(chunk)))
	hdr = append(hdr, byte(width))
	baseBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(baseBuf, base)
	hdr = append(hdr, baseBuf...)

	bv := encoding.NewBitVector(uint64(width) * uint64(len(chunk)))
	for i, v := range chunk {
		bv.SetBits(uint64(i*width), width, v-base)
	}
	return append(hdr, packedBytes(bv, width*len(chunk))...)
}

func (bitPack64) Decode(data []byte) []uint64 {
	var out []uint64
	for len(data) > 0 {
		count64, n := encoding.DecodeUvarint(data)
		data = data[n:]
		count := int(count64)
		width := int(data[0])
		base := binary.LittleEndian.Uint64(data[1:9])
		data = data[9:]
		byteLen := (width*count + 7) / 8
		bv := bitVectorFromBytes(data[:byteLen], width*count)
		data = data[byteLen:]
		for i := 0; i < count; i++ {
			out = append(out, base+bv.GetBits(uint64(i*width), width))
		}
	}
	return out
}

// packedBytes serializes the low numBits bits of bv's backing words to a
// tight byte slice, little-endian within each byte.
func packedBytes(bv *encoding.BitVector, numBits int) []byte {
	n := (numBits + 7) / 8
	out := make([]byte, n)
	for i := 0; i < numBits; i++ {
		if bv.Get(uint64(i)) {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

// bitVectorFromBytes rebuilds a BitVector from packedBytes' output.
func bitVectorFromBytes(data []byte, numBits int) *encoding.BitVector {
	bv := encoding.NewBitVector(uint64(numBits))
	for i := 0; i < numBits; i++ {
		if data[i/8]&(1<<uint(i%8)) != 0 {
			bv.Set(uint64(i))
		}
	}
	return bv
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
