package encoding

import "io"

// Varints in this package use the wire format spec.md §6 mandates:
// big-endian, MSB-first, with the high bit of each byte meaning "more
// bytes follow". This matches original_source/util.h's ByteCodec_c and is
// NOT the little-endian LEB128 format encoding/binary's *Uvarint helpers
// use, so those stdlib helpers cannot be reused here.

// PackedLen returns the number of bytes AppendUvarint would write for v.
func PackedLen(v uint64) int {
	n := 1
	v >>= 7
	for v != 0 {
		v >>= 7
		n++
	}
	return n
}

// AppendUvarint appends the packed encoding of v to dst and returns it.
func AppendUvarint(dst []byte, v uint64) []byte {
	n := PackedLen(v)
	var buf [10]byte
	for i := n - 1; i >= 0; i-- {
		b := byte(v>>(7*uint(i))) & 0x7f
		if i != 0 {
			b |= 0x80
		}
		buf[n-1-i] = b
	}
	return append(dst, buf[:n]...)
}

// WriteUvarint writes the packed encoding of v to w.
func WriteUvarint(w io.Writer, v uint64) error {
	n := PackedLen(v)
	var buf [10]byte
	for i := n - 1; i >= 0; i-- {
		b := byte(v>>(7*uint(i))) & 0x7f
		if i != 0 {
			b |= 0x80
		}
		buf[n-1-i] = b
	}
	_, err := w.Write(buf[:n])
	return err
}

// ReadUvarint reads a packed value from r.
func ReadUvarint(r io.ByteReader) (uint64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	var v uint64
	for b&0x80 != 0 {
		v = (v << 7) | uint64(b&0x7f)
		b, err = r.ReadByte()
		if err != nil {
			return 0, err
		}
	}
	return (v << 7) | uint64(b), nil
}

// DecodeUvarint decodes a packed value starting at buf[0], returning the
// value and the number of bytes consumed.
func DecodeUvarint(buf []byte) (uint64, int) {
	var v uint64
	i := 0
	for {
		b := buf[i]
		i++
		if b&0x80 == 0 {
			return (v << 7) | uint64(b), i
		}
		v = (v << 7) | uint64(b&0x7f)
	}
}
