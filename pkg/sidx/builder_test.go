package sidx

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func buildAndInspect(t *testing.T, opts *BuilderOptions, fill func(b *Builder) error) *FileInfo {
	t.Helper()
	b, err := NewBuilder(opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := fill(b); err != nil {
		t.Fatal(err)
	}
	if err := b.Done(); err != nil {
		t.Fatal(err)
	}
	info, err := ReadFileInfo(opts.Path)
	if err != nil {
		t.Fatal(err)
	}
	return info
}

func TestBuilderZeroRowsProducesWellFormedEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.sidx")
	opts := &BuilderOptions{
		Path:        path,
		Attrs:       []SourceAttr{{SrcIndex: 0, Name: "v", Type: TypeUint32}},
		MemoryLimit: 1 << 20,
		Collation:   CollationBinary,
	}
	info := buildAndInspect(t, opts, func(b *Builder) error { return nil })

	if info.AttrCount != 1 {
		t.Fatalf("attr_count = %d, want 1", info.AttrCount)
	}
	if info.Attrs[0].BlockCount != 0 {
		t.Fatalf("block_count = %d, want 0 for a zero-row attribute", info.Attrs[0].BlockCount)
	}
}

func TestBuilderSingleRowProducesRowTagBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.sidx")
	opts := &BuilderOptions{
		Path:        path,
		Attrs:       []SourceAttr{{SrcIndex: 0, Name: "v", Type: TypeUint32}},
		MemoryLimit: 1 << 20,
		Collation:   CollationBinary,
	}
	info := buildAndInspect(t, opts, func(b *Builder) error {
		if err := b.SetRowID(0); err != nil {
			return err
		}
		return b.SetUint32(0, 42)
	})

	if info.Attrs[0].BlockCount != 1 {
		t.Fatalf("block_count = %d, want 1", info.Attrs[0].BlockCount)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	block, err := info.ReadBlock(f, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	b32, ok := block.(*Block32)
	if !ok {
		t.Fatalf("block type = %T, want *Block32", block)
	}
	if len(b32.Values) != 1 || b32.Values[0] != 42 {
		t.Fatalf("values = %v, want [42]", b32.Values)
	}
	if len(b32.Rows[0]) != 1 || b32.Rows[0][0] != 0 {
		t.Fatalf("rows[0] = %v, want [0]", b32.Rows[0])
	}
}

func TestBuilder128DistinctValuesFitOneBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.sidx")
	opts := &BuilderOptions{
		Path:        path,
		Attrs:       []SourceAttr{{SrcIndex: 0, Name: "v", Type: TypeUint32}},
		MemoryLimit: 1 << 20,
		Collation:   CollationBinary,
	}
	info := buildAndInspect(t, opts, func(b *Builder) error {
		for i := uint32(0); i < ValuesPerBlock; i++ {
			if err := b.SetRowID(i); err != nil {
				return err
			}
			if err := b.SetUint32(0, i); err != nil {
				return err
			}
		}
		return nil
	})

	if info.Attrs[0].BlockCount != 1 {
		t.Fatalf("block_count = %d, want 1 for exactly %d distinct values", info.Attrs[0].BlockCount, ValuesPerBlock)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	block, err := info.ReadBlock(f, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	b32 := block.(*Block32)
	if len(b32.Values) != ValuesPerBlock {
		t.Fatalf("values = %d, want %d", len(b32.Values), ValuesPerBlock)
	}
}

func TestBuilder129thValueSpillsSecondBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.sidx")
	opts := &BuilderOptions{
		Path:        path,
		Attrs:       []SourceAttr{{SrcIndex: 0, Name: "v", Type: TypeUint32}},
		MemoryLimit: 1 << 20,
		Collation:   CollationBinary,
	}
	info := buildAndInspect(t, opts, func(b *Builder) error {
		for i := uint32(0); i <= ValuesPerBlock; i++ {
			if err := b.SetRowID(i); err != nil {
				return err
			}
			if err := b.SetUint32(0, i); err != nil {
				return err
			}
		}
		return nil
	})
	if info.Attrs[0].BlockCount != 2 {
		t.Fatalf("block_count = %d, want 2 for %d distinct values", info.Attrs[0].BlockCount, ValuesPerBlock+1)
	}
}

func TestBuilderLargePostingUsesRowBlocksList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.sidx")
	opts := &BuilderOptions{
		Path:        path,
		Attrs:       []SourceAttr{{SrcIndex: 0, Name: "v", Type: TypeUint32}},
		MemoryLimit: 1 << 20,
		Collation:   CollationBinary,
	}
	const numRows = 300
	info := buildAndInspect(t, opts, func(b *Builder) error {
		for r := uint32(0); r < numRows; r++ {
			if err := b.SetRowID(r); err != nil {
				return err
			}
			if err := b.SetUint32(0, 1); err != nil {
				return err
			}
		}
		return nil
	})

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	block, err := info.ReadBlock(f, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	b32 := block.(*Block32)
	if len(b32.Values) != 1 {
		t.Fatalf("values = %d, want 1 (single distinct value)", len(b32.Values))
	}
	if len(b32.Rows[0]) != numRows {
		t.Fatalf("rows = %d, want %d", len(b32.Rows[0]), numRows)
	}
	for i, r := range b32.Rows[0] {
		if r != uint32(i) {
			t.Fatalf("rows[%d] = %d, want %d", i, r, i)
		}
	}
}

func TestBuilderStringCollationGroupsIdenticalValuesTogether(t *testing.T) {
	InitCollations()
	path := filepath.Join(t.TempDir(), "out.sidx")
	opts := &BuilderOptions{
		Path:        path,
		Attrs:       []SourceAttr{{SrcIndex: 0, Name: "label", Type: TypeString}},
		MemoryLimit: 1 << 20,
		Collation:   CollationBinary,
	}
	labels := []string{"alpha", "beta", "alpha", "gamma", "beta", "alpha"}
	info := buildAndInspect(t, opts, func(b *Builder) error {
		for i, l := range labels {
			if err := b.SetRowID(uint32(i)); err != nil {
				return err
			}
			if err := b.SetString(0, []byte(l)); err != nil {
				return err
			}
		}
		return nil
	})

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	block, err := info.ReadBlock(f, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	b64 := block.(*Block64)
	if len(b64.Values) != 3 {
		t.Fatalf("distinct hashed groups = %d, want 3 (alpha/beta/gamma)", len(b64.Values))
	}
	total := 0
	for _, rows := range b64.Rows {
		total += len(rows)
	}
	if total != len(labels) {
		t.Fatalf("total posted rows = %d, want %d", total, len(labels))
	}
}

func TestBuilderMergesFloatZerosAcrossRunsInRowIDOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.sidx")
	opts := &BuilderOptions{
		Path:  path,
		Attrs: []SourceAttr{{SrcIndex: 0, Name: "f", Type: TypeFloat}},
		// Floor threshold, forced low so -0.0 at row 5 and +0.0 at row 2
		// land in different flushed runs and only the merger's heap puts
		// them back in row-id order.
		MemoryLimit: 1,
		Collation:   CollationBinary,
	}
	b, err := NewBuilder(opts)
	if err != nil {
		t.Fatal(err)
	}
	negZero := float32(math.Copysign(0, -1))
	posZero := float32(0.0)
	negZeroBits := math.Float32bits(negZero)
	posZeroBits := math.Float32bits(posZero)

	if err := b.SetRowID(5); err != nil {
		t.Fatal(err)
	}
	if err := b.SetFloat32(0, negZero); err != nil {
		t.Fatal(err)
	}
	for i := uint32(0); i < b.threshold; i++ { // force a flush boundary
		if err := b.SetRowID(i); err != nil {
			t.Fatal(err)
		}
	}
	if err := b.SetRowID(2); err != nil {
		t.Fatal(err)
	}
	if err := b.SetFloat32(0, posZero); err != nil {
		t.Fatal(err)
	}
	if err := b.Done(); err != nil {
		t.Fatal(err)
	}

	info, err := ReadFileInfo(path)
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	block, err := info.ReadBlock(f, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	b32 := block.(*Block32)

	var zeroRows []uint32
	for i, v := range b32.Values {
		if v == posZeroBits || v == negZeroBits {
			zeroRows = append(zeroRows, b32.Rows[i]...)
		}
	}
	if len(zeroRows) != 2 {
		t.Fatalf("expected +0.0/-0.0 to merge into a single group with 2 rows, got groups totalling %v", zeroRows)
	}
	if zeroRows[0] != 2 || zeroRows[1] != 5 {
		t.Fatalf("merged ±0.0 group rows = %v, want [2 5] (row-id ascending)", zeroRows)
	}
}

func TestBuilderSpillsAndMergesAcrossFlushThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.sidx")
	// memory_limit_bytes tuned so pairSize32=8 forces the threshold formula
	// down to its floor of max(1000, ...); drive 4 flush boundaries worth of
	// interleaved, non-monotone values through one attribute so collector
	// + merger genuinely exercise multiple runs.
	opts := &BuilderOptions{
		Path:  path,
		Attrs: []SourceAttr{{SrcIndex: 0, Name: "v", Type: TypeUint32}},
		// Deliberately tiny: the formula's max(1000, ...) floor then governs
		// the flush threshold, keeping the run count small and predictable.
		MemoryLimit: 1,
		Collation:   CollationBinary,
	}
	b, err := NewBuilder(opts)
	if err != nil {
		t.Fatal(err)
	}
	if b.threshold != 1000 {
		t.Fatalf("threshold = %d, want the formula's floor of 1000", b.threshold)
	}

	const numRuns = 4
	rowsPerRun := int(b.threshold)
	total := numRuns * rowsPerRun
	for i := 0; i < total; i++ {
		if err := b.SetRowID(uint32(i)); err != nil {
			t.Fatal(err)
		}
		// Descending-within-run values so each flush's sort genuinely
		// reorders the buffer, and repeated across runs so the merge has to
		// interleave matching values from different runs.
		v := uint32(rowsPerRun - (i % rowsPerRun))
		if err := b.SetUint32(0, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := b.Done(); err != nil {
		t.Fatal(err)
	}

	info, err := ReadFileInfo(path)
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var prev uint32
	seenFirst := false
	for blk := uint64(0); blk < info.Attrs[0].BlockCount; blk++ {
		block, err := info.ReadBlock(f, 0, blk)
		if err != nil {
			t.Fatal(err)
		}
		b32 := block.(*Block32)
		for _, v := range b32.Values {
			if seenFirst && v < prev {
				t.Fatalf("values out of order across merged runs: %d after %d", v, prev)
			}
			prev = v
			seenFirst = true
		}
	}
}

func TestBuilderReopenAndReadMetaMatchesAttrCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.sidx")
	opts := &BuilderOptions{
		Path: path,
		Attrs: []SourceAttr{
			{SrcIndex: 0, Name: "a", Type: TypeUint32},
			{SrcIndex: 1, Name: "b", Type: TypeInt64},
			{SrcIndex: 2, Name: "c", Type: TypeFloat},
		},
		MemoryLimit: 1 << 20,
		Collation:   CollationBinary,
	}
	b, err := NewBuilder(opts)
	if err != nil {
		t.Fatal(err)
	}
	for i := uint32(0); i < 10; i++ {
		if err := b.SetRowID(i); err != nil {
			t.Fatal(err)
		}
		if err := b.SetUint32(0, i%3); err != nil {
			t.Fatal(err)
		}
		if err := b.SetInt64(1, int64(i)); err != nil {
			t.Fatal(err)
		}
		if err := b.SetFloat32(2, float32(i)*1.5); err != nil {
			t.Fatal(err)
		}
	}
	if err := b.Done(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	_, metaOffset, err := readHeader(f)
	if err != nil {
		t.Fatal(err)
	}
	if metaOffset == 0 {
		t.Fatal("meta_offset is 0 after a completed Done(); the safety invariant's incomplete state leaked")
	}
	if _, err := f.Seek(int64(metaOffset), 0); err != nil {
		t.Fatal(err)
	}
	trailer, err := readMeta(f)
	f.Close()
	if err != nil {
		t.Fatal(err)
	}
	if trailer.attrCount != uint32(len(opts.Attrs)) {
		t.Fatalf("attr_count = %d, want %d", trailer.attrCount, len(opts.Attrs))
	}
	for i, a := range opts.Attrs {
		if trailer.attrs[i].name != a.Name {
			t.Fatalf("attr %d name = %q, want %q", i, trailer.attrs[i].name, a.Name)
		}
	}
}

func TestBuilderWritesReportWhenRequested(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.sidx")
	opts := &BuilderOptions{
		Path:        path,
		Attrs:       []SourceAttr{{SrcIndex: 0, Name: "v", Type: TypeUint32}},
		MemoryLimit: 1 << 20,
		Collation:   CollationBinary,
		Report:      true,
	}
	b, err := NewBuilder(opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.SetRowID(0); err != nil {
		t.Fatal(err)
	}
	if err := b.SetUint32(0, 1); err != nil {
		t.Fatal(err)
	}
	if err := b.Done(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".report.json"); err != nil {
		t.Fatalf("expected %s.report.json to exist: %v", path, err)
	}
}

func TestBuilderDoneTwiceErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.sidx")
	opts := &BuilderOptions{
		Path:        path,
		Attrs:       []SourceAttr{{SrcIndex: 0, Name: "v", Type: TypeUint32}},
		MemoryLimit: 1 << 20,
		Collation:   CollationBinary,
	}
	b, err := NewBuilder(opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Done(); err != nil {
		t.Fatal(err)
	}
	if err := b.Done(); err == nil {
		t.Fatal("expected an error calling Done() twice")
	}
}

func TestBuilderRejectsEmptyPath(t *testing.T) {
	_, err := NewBuilder(&BuilderOptions{})
	if err == nil {
		t.Fatal("expected an error for an empty output path")
	}
}

func TestCollectorPathsAreDistinctPerAttribute(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		p := collectorPath("/tmp/out.sidx", i)
		if seen[p] {
			t.Fatalf("duplicate collector path %s for attr %d", p, i)
		}
		seen[p] = true
		if p != fmt.Sprintf("/tmp/out.sidx.%d.tmp", i) {
			t.Fatalf("collectorPath(.., %d) = %s, unexpected shape", i, p)
		}
	}
}
