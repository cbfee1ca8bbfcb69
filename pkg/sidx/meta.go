package sidx

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/tomatolog/columnar/internal/common"
	"github.com/tomatolog/columnar/internal/encoding"
	"github.com/tomatolog/columnar/internal/ioutil"
)

// meta.go is the file header and meta trailer: a 12-byte header
// (LIB_VERSION, meta_offset) patched after the fact once the meta_offset
// is known, and the meta trailer itself (schema + block-offset/count
// tables). Layout is bit-exact with spec.md §4.5, grounded directly on
// original_source/secondary/builder.cpp's Builder_c::WriteMeta field
// order, in the same spirit as the teacher's segment/header.go
// WriteXHeader/ReadXHeader/ValidateHeader pattern.

// headerSize is the fixed 12-byte prefix: u32 LIB_VERSION, u64 meta_offset.
// The u64 starts at byte 4, so the prefix is 12 bytes, not 8 - spec.md §8's
// "reading bytes [4..12)" confirms the u64 field occupies [4,12).
const headerSize = 12

// attrMeta is one attribute's schema entry inside the meta trailer.
type attrMeta struct {
	name        string
	srcIndex    int
	attrIndex   int
	typeCode    AttrType
	blocksStart uint64 // byte offset into the concatenated block-offsets region
	blockCount  uint64
}

// metaTrailer is the full parsed meta record at meta_offset.
type metaTrailer struct {
	attrCount      uint32
	compressionU32 string
	compressionU64 string
	collation      Collation
	valuesPerBlock uint32
	attrs          []attrMeta
}

// writeHeader writes the 12-byte file prefix with meta_offset=0, the
// "incomplete" state spec.md §4.5's safety invariant names.
func writeHeader(w *ioutil.Writer) error {
	if err := w.WriteUint32(common.LibVersion); err != nil {
		return fmt.Errorf("%w: write lib version: %v", common.ErrIO, err)
	}
	if err := w.WriteUint64(0); err != nil {
		return fmt.Errorf("%w: write meta_offset placeholder: %v", common.ErrIO, err)
	}
	return nil
}

// patchMetaOffset reopens path and overwrites the meta_offset field with
// the now-known value, the final step of done() per spec.md §4.5.8.
func patchMetaOffset(path string, metaOffset int64) error {
	w, err := ioutil.OpenWriter(path)
	if err != nil {
		return fmt.Errorf("%w: reopen output for patching: %v", common.ErrIO, err)
	}
	if err := w.Seek(4); err != nil {
		w.Close()
		return fmt.Errorf("%w: seek to meta_offset field: %v", common.ErrIO, err)
	}
	if err := w.WriteUint64(uint64(metaOffset)); err != nil {
		w.Close()
		return fmt.Errorf("%w: patch meta_offset: %v", common.ErrIO, err)
	}
	return w.Close()
}

// writeMeta writes the meta trailer at the writer's current position,
// field-for-field per spec.md §4.5's layout.
func writeMeta(w *ioutil.Writer, attrs []attrMeta, collation Collation) error {
	if err := w.WriteUint64(0); err != nil { // next_meta_offset, reserved
		return fmt.Errorf("%w: write next_meta_offset: %v", common.ErrIO, err)
	}
	if err := w.WriteUint32(uint32(len(attrs))); err != nil {
		return fmt.Errorf("%w: write attr_count: %v", common.ErrIO, err)
	}

	bv := encoding.NewBitVector(uint64(len(attrs)))
	for i := range attrs {
		bv.Set(uint64(i))
	}
	for _, word := range bv.Uint32Words() {
		if err := w.WriteUint32(word); err != nil {
			return fmt.Errorf("%w: write attrs_enabled_bitvec: %v", common.ErrIO, err)
		}
	}

	if err := w.WriteString(common.CompressionUint32); err != nil {
		return fmt.Errorf("%w: write compression_name_u32: %v", common.ErrIO, err)
	}
	if err := w.WriteString(common.CompressionUint64); err != nil {
		return fmt.Errorf("%w: write compression_name_u64: %v", common.ErrIO, err)
	}
	if err := w.WriteUint32(uint32(collation)); err != nil {
		return fmt.Errorf("%w: write collation_id: %v", common.ErrIO, err)
	}
	if err := w.WriteUint32(common.ValuesPerBlock); err != nil {
		return fmt.Errorf("%w: write values_per_block: %v", common.ErrIO, err)
	}

	for _, a := range attrs {
		if err := w.WriteString(a.name); err != nil {
			return fmt.Errorf("%w: write attr name: %v", common.ErrIO, err)
		}
		if err := w.PackUint32(uint32(a.srcIndex)); err != nil {
			return fmt.Errorf("%w: write src_attr_index: %v", common.ErrIO, err)
		}
		if err := w.PackUint32(uint32(a.attrIndex)); err != nil {
			return fmt.Errorf("%w: write attr_index: %v", common.ErrIO, err)
		}
		if err := w.PackUint32(uint32(a.typeCode)); err != nil {
			return fmt.Errorf("%w: write type_code: %v", common.ErrIO, err)
		}
	}

	starts := make([]uint64, len(attrs))
	counts := make([]uint64, len(attrs))
	for i, a := range attrs {
		starts[i] = a.blocksStart
		counts[i] = a.blockCount
	}
	if err := writePackedU64Vector(w, deltaEncodeStarts(starts)); err != nil {
		return fmt.Errorf("%w: write block_offsets_starts: %v", common.ErrIO, err)
	}
	if err := writePackedU64Vector(w, counts); err != nil {
		return fmt.Errorf("%w: write block_counts: %v", common.ErrIO, err)
	}
	return nil
}

// deltaEncodeStarts delta-encodes block_offsets_starts across attributes;
// it is monotone by construction (spec.md §4.5.6), so every delta is >= 0.
func deltaEncodeStarts(starts []uint64) []uint64 {
	out := make([]uint64, len(starts))
	var prev uint64
	for i, v := range starts {
		out[i] = v - prev
		prev = v
	}
	return out
}

func writePackedU64Vector(w *ioutil.Writer, values []uint64) error {
	if err := w.PackUint32(uint32(len(values))); err != nil {
		return err
	}
	for _, v := range values {
		if err := w.PackUint64(v); err != nil {
			return err
		}
	}
	return nil
}

// readHeader reads the 12-byte file prefix, returning the library version
// and meta_offset. meta_offset == 0 means the file is incomplete.
func readHeader(f *os.File) (libVersion uint32, metaOffset uint64, err error) {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return 0, 0, fmt.Errorf("%w: read header: %v", common.ErrIO, err)
	}
	libVersion = binary.LittleEndian.Uint32(buf[0:4])
	metaOffset = binary.LittleEndian.Uint64(buf[4:12])
	return libVersion, metaOffset, nil
}

// readMeta reads the meta trailer starting at the file's current
// position, un-delta-ing block_offsets_starts back to absolute offsets.
func readMeta(f *os.File) (*metaTrailer, error) {
	br := bufio.NewReader(f)

	var nextMetaOffset uint64
	if err := binary.Read(br, binary.LittleEndian, &nextMetaOffset); err != nil {
		return nil, fmt.Errorf("%w: read next_meta_offset: %v", common.ErrIO, err)
	}
	var attrCount uint32
	if err := binary.Read(br, binary.LittleEndian, &attrCount); err != nil {
		return nil, fmt.Errorf("%w: read attr_count: %v", common.ErrIO, err)
	}

	numWords := (attrCount + 31) / 32
	for i := uint32(0); i < numWords; i++ {
		var word uint32
		if err := binary.Read(br, binary.LittleEndian, &word); err != nil {
			return nil, fmt.Errorf("%w: read attrs_enabled_bitvec: %v", common.ErrIO, err)
		}
	}

	compU32, err := readString(br)
	if err != nil {
		return nil, fmt.Errorf("%w: read compression_name_u32: %v", common.ErrIO, err)
	}
	compU64, err := readString(br)
	if err != nil {
		return nil, fmt.Errorf("%w: read compression_name_u64: %v", common.ErrIO, err)
	}
	var collationID uint32
	if err := binary.Read(br, binary.LittleEndian, &collationID); err != nil {
		return nil, fmt.Errorf("%w: read collation_id: %v", common.ErrIO, err)
	}
	var valuesPerBlock uint32
	if err := binary.Read(br, binary.LittleEndian, &valuesPerBlock); err != nil {
		return nil, fmt.Errorf("%w: read values_per_block: %v", common.ErrIO, err)
	}

	attrs := make([]attrMeta, attrCount)
	for i := range attrs {
		name, err := readString(br)
		if err != nil {
			return nil, fmt.Errorf("%w: read attr name: %v", common.ErrIO, err)
		}
		srcIndex, err := encoding.ReadUvarint(br)
		if err != nil {
			return nil, fmt.Errorf("%w: read src_attr_index: %v", common.ErrIO, err)
		}
		attrIndex, err := encoding.ReadUvarint(br)
		if err != nil {
			return nil, fmt.Errorf("%w: read attr_index: %v", common.ErrIO, err)
		}
		typeCode, err := encoding.ReadUvarint(br)
		if err != nil {
			return nil, fmt.Errorf("%w: read type_code: %v", common.ErrIO, err)
		}
		attrs[i] = attrMeta{
			name:      name,
			srcIndex:  int(srcIndex),
			attrIndex: int(attrIndex),
			typeCode:  AttrType(typeCode),
		}
	}

	starts, err := readPackedU64Vector(br)
	if err != nil {
		return nil, fmt.Errorf("%w: read block_offsets_starts: %v", common.ErrIO, err)
	}
	counts, err := readPackedU64Vector(br)
	if err != nil {
		return nil, fmt.Errorf("%w: read block_counts: %v", common.ErrIO, err)
	}
	if len(starts) != len(attrs) || len(counts) != len(attrs) {
		return nil, fmt.Errorf("%w: block table length mismatch with attr_count", common.ErrInvariant)
	}

	var prev uint64
	for i := range attrs {
		prev += starts[i]
		attrs[i].blocksStart = prev
		attrs[i].blockCount = counts[i]
	}

	return &metaTrailer{
		attrCount:      attrCount,
		compressionU32: compU32,
		compressionU64: compU64,
		collation:      Collation(collationID),
		valuesPerBlock: valuesPerBlock,
		attrs:          attrs,
	}, nil
}

func readString(br *bufio.Reader) (string, error) {
	n, err := encoding.ReadUvarint(br)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(br, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readPackedU64Vector(br *bufio.Reader) ([]uint64, error) {
	n, err := encoding.ReadUvarint(br)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, n)
	for i := range out {
		v, err := encoding.ReadUvarint(br)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
