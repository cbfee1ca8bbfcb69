package sidx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tomatolog/columnar/internal/common"
	"github.com/tomatolog/columnar/internal/ioutil"
)

func TestHeaderRoundTripIncompleteThenPatched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out")
	w, err := ioutil.CreateWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := writeHeader(w); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	libVersion, metaOffset, err := readHeader(f)
	f.Close()
	if err != nil {
		t.Fatal(err)
	}
	if libVersion != common.LibVersion {
		t.Fatalf("lib_version = %d, want %d", libVersion, common.LibVersion)
	}
	if metaOffset != 0 {
		t.Fatalf("meta_offset = %d, want 0 before patching", metaOffset)
	}

	if err := patchMetaOffset(path, 4096); err != nil {
		t.Fatal(err)
	}
	f, err = os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	_, metaOffset, err = readHeader(f)
	if err != nil {
		t.Fatal(err)
	}
	if metaOffset != 4096 {
		t.Fatalf("meta_offset after patch = %d, want 4096", metaOffset)
	}

	info, err := f.Stat()
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != headerSize {
		t.Fatalf("header file size = %d, want %d (4-byte lib_version + 8-byte meta_offset)", info.Size(), headerSize)
	}
}

func TestMetaTrailerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out")
	w, err := ioutil.CreateWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	attrs := []attrMeta{
		{name: "status", srcIndex: 0, attrIndex: 0, typeCode: TypeUint32, blocksStart: 0, blockCount: 3},
		{name: "user_id", srcIndex: 2, attrIndex: 1, typeCode: TypeInt64, blocksStart: 24, blockCount: 5},
		{name: "tags", srcIndex: 3, attrIndex: 2, typeCode: TypeUint32Set, blocksStart: 64, blockCount: 0},
	}
	if err := writeMeta(w, attrs, CollationBinary); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	trailer, err := readMeta(f)
	if err != nil {
		t.Fatal(err)
	}

	if trailer.attrCount != uint32(len(attrs)) {
		t.Fatalf("attr_count = %d, want %d", trailer.attrCount, len(attrs))
	}
	if trailer.compressionU32 != common.CompressionUint32 || trailer.compressionU64 != common.CompressionUint64 {
		t.Fatalf("compression names = %q/%q, want %q/%q",
			trailer.compressionU32, trailer.compressionU64, common.CompressionUint32, common.CompressionUint64)
	}
	if trailer.collation != CollationBinary {
		t.Fatalf("collation = %d, want %d", trailer.collation, CollationBinary)
	}
	if trailer.valuesPerBlock != common.ValuesPerBlock {
		t.Fatalf("values_per_block = %d, want %d", trailer.valuesPerBlock, common.ValuesPerBlock)
	}
	if len(trailer.attrs) != len(attrs) {
		t.Fatalf("attrs = %d, want %d", len(trailer.attrs), len(attrs))
	}
	for i, want := range attrs {
		got := trailer.attrs[i]
		if got.name != want.name || got.srcIndex != want.srcIndex || got.attrIndex != want.attrIndex ||
			got.typeCode != want.typeCode || got.blocksStart != want.blocksStart || got.blockCount != want.blockCount {
			t.Fatalf("attr %d = %+v, want %+v", i, got, want)
		}
	}
}

func TestMetaTrailerZeroAttrs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out")
	w, err := ioutil.CreateWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := writeMeta(w, nil, CollationLibcCI); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	trailer, err := readMeta(f)
	if err != nil {
		t.Fatal(err)
	}
	if trailer.attrCount != 0 || len(trailer.attrs) != 0 {
		t.Fatalf("expected zero attrs, got attrCount=%d attrs=%v", trailer.attrCount, trailer.attrs)
	}
}

func TestDeltaEncodeStartsIsMonotoneNonNegative(t *testing.T) {
	starts := []uint64{0, 10, 10, 25}
	deltas := deltaEncodeStarts(starts)
	want := []uint64{0, 10, 0, 15}
	for i := range want {
		if deltas[i] != want[i] {
			t.Fatalf("delta %d = %d, want %d", i, deltas[i], want[i])
		}
	}
}
