package sidx

import (
	"fmt"
	"os"

	"github.com/tomatolog/columnar/internal/common"
	"github.com/tomatolog/columnar/internal/ioutil"
)

// builder.go is spec.md §4.5's orchestrator: it owns the per-attribute
// collectors during the row-streaming phase, and at Done() drives
// Merger → BlockEncoder → PGM build per attribute into the single output
// file, then writes and patches the meta trailer. Grounded on
// original_source/secondary/builder.cpp's Builder_c::SetAttr/Done.

// BuilderOptions configures a Builder, the plain-struct construction
// style the teacher uses throughout rather than functional options.
type BuilderOptions struct {
	Path        string
	Attrs       []SourceAttr
	MemoryLimit int64
	Collation   Collation
	Logger      Logger
	// Report, if true, makes Done write <Path>.report.json with each
	// attribute's name, indices, type and block count (§4.5 EXPANDED build
	// report); row counts, value counts and timings are not recorded.
	Report bool
}

// Builder accumulates (row_id, value) pairs per attribute and, at Done(),
// produces the on-disk secondary index file described by spec.md §4.5.
type Builder struct {
	opts      *BuilderOptions
	logger    Logger
	col32     map[int]*collector32
	col64     map[int]*collector64
	threshold uint32
	rowID     uint32
	done      bool
}

// NewBuilder is create_builder(attrs, memory_limit_bytes, collation, path)
// from spec.md §6, creating one collector per attribute and computing the
// shared flush threshold from spec.md §4.1's formula.
func NewBuilder(opts *BuilderOptions) (*Builder, error) {
	if opts == nil || opts.Path == "" {
		return nil, fmt.Errorf("%w: builder options require a non-empty Path", common.ErrInvariant)
	}
	logger := opts.Logger
	if logger == nil {
		logger = NewNullLogger()
	}

	var pairSizeSum int
	for _, a := range opts.Attrs {
		pairSizeSum += pairSizeFor(a.Type)
	}
	threshold := uint32(1000)
	if pairSizeSum > 0 && opts.MemoryLimit > 0 {
		if t := uint32(opts.MemoryLimit / 3 / int64(pairSizeSum)); t > threshold {
			threshold = t
		}
	}

	b := &Builder{
		opts:      opts,
		logger:    logger,
		col32:     make(map[int]*collector32),
		col64:     make(map[int]*collector64),
		threshold: threshold,
	}
	for i, a := range opts.Attrs {
		path := collectorPath(opts.Path, i)
		if a.Type.Width32() {
			c, err := newCollector32(path, a)
			if err != nil {
				b.abortCollectors()
				return nil, err
			}
			b.col32[i] = c
		} else {
			c, err := newCollector64(path, a)
			if err != nil {
				b.abortCollectors()
				return nil, err
			}
			b.col64[i] = c
		}
	}
	logger.Info("builder created", "path", opts.Path, "attrs", len(opts.Attrs), "flush_threshold", threshold)
	return b, nil
}

func collectorPath(outputPath string, attrIndex int) string {
	return fmt.Sprintf("%s.%d%s", outputPath, attrIndex, common.SuffixRawAttr)
}

func (b *Builder) abortCollectors() {
	for _, c := range b.col32 {
		c.writer.Unlink()
	}
	for _, c := range b.col64 {
		c.writer.Unlink()
	}
}

// SetRowID records the current row id and, when it crosses the flush
// threshold, flushes every collector in lockstep (spec.md §4.1).
func (b *Builder) SetRowID(rowID uint32) error {
	b.rowID = rowID
	if rowID%b.threshold != 0 {
		return nil
	}
	for i, c := range b.col32 {
		if err := c.flush(); err != nil {
			return fmt.Errorf("attr %d: %w", i, err)
		}
	}
	for i, c := range b.col64 {
		if err := c.flush(); err != nil {
			return fmt.Errorf("attr %d: %w", i, err)
		}
	}
	return nil
}

func (b *Builder) attrType(attrIndex int) (AttrType, error) {
	if attrIndex < 0 || attrIndex >= len(b.opts.Attrs) {
		return 0, fmt.Errorf("%w: attr index %d out of range", common.ErrInvariant, attrIndex)
	}
	return b.opts.Attrs[attrIndex].Type, nil
}

// SetUint32 sets a uint32/timestamp scalar for the current row.
func (b *Builder) SetUint32(attrIndex int, v uint32) error {
	typ, err := b.attrType(attrIndex)
	if err != nil {
		return err
	}
	if typ != TypeUint32 && typ != TypeTimestamp {
		return fmt.Errorf("%w: attr %d is %s, not uint32/timestamp", common.ErrInvariant, attrIndex, typ)
	}
	b.col32[attrIndex].setUint32(b.rowID, v)
	return nil
}

// SetFloat32 sets a float scalar, preserving its IEEE-754 bit pattern.
func (b *Builder) SetFloat32(attrIndex int, v float32) error {
	typ, err := b.attrType(attrIndex)
	if err != nil {
		return err
	}
	if typ != TypeFloat {
		return fmt.Errorf("%w: attr %d is %s, not float", common.ErrInvariant, attrIndex, typ)
	}
	b.col32[attrIndex].setUint32(b.rowID, floatBits(v))
	return nil
}

// SetUint32Set expands vals into one pair per element for the current row.
func (b *Builder) SetUint32Set(attrIndex int, vals []uint32) error {
	typ, err := b.attrType(attrIndex)
	if err != nil {
		return err
	}
	if typ != TypeUint32Set {
		return fmt.Errorf("%w: attr %d is %s, not uint32_set", common.ErrInvariant, attrIndex, typ)
	}
	b.col32[attrIndex].setUint32Set(b.rowID, vals)
	return nil
}

// SetInt64 sets an int64 scalar, reinterpreted as unsigned.
func (b *Builder) SetInt64(attrIndex int, v int64) error {
	typ, err := b.attrType(attrIndex)
	if err != nil {
		return err
	}
	if typ != TypeInt64 {
		return fmt.Errorf("%w: attr %d is %s, not int64", common.ErrInvariant, attrIndex, typ)
	}
	b.col64[attrIndex].setUint64(b.rowID, int64ToUint64(v))
	return nil
}

// SetInt64Set expands vals into one pair per element for the current row.
func (b *Builder) SetInt64Set(attrIndex int, vals []int64) error {
	typ, err := b.attrType(attrIndex)
	if err != nil {
		return err
	}
	if typ != TypeInt64Set {
		return fmt.Errorf("%w: attr %d is %s, not int64_set", common.ErrInvariant, attrIndex, typ)
	}
	b.col64[attrIndex].setInt64Set(b.rowID, vals)
	return nil
}

// SetString hashes raw into a u64 via the collation registry and sets it
// for the current row.
func (b *Builder) SetString(attrIndex int, raw []byte) error {
	typ, err := b.attrType(attrIndex)
	if err != nil {
		return err
	}
	if typ != TypeString {
		return fmt.Errorf("%w: attr %d is %s, not string", common.ErrInvariant, attrIndex, typ)
	}
	hashFn, err := GetHashFn(b.opts.Collation)
	if err != nil {
		return err
	}
	b.col64[attrIndex].setUint64(b.rowID, hashFn(raw))
	return nil
}

// Done finalizes every collector, then runs Merger → BlockEncoder → PGM
// build per attribute in schema order into the output file, writes the
// meta trailer, and patches the header (spec.md §4.5).
func (b *Builder) Done() error {
	if b.done {
		return fmt.Errorf("%w: Done called twice", common.ErrInvariant)
	}
	b.done = true

	for i, c := range b.col32 {
		if err := c.done(); err != nil {
			return fmt.Errorf("attr %d: %w", i, err)
		}
	}
	for i, c := range b.col64 {
		if err := c.done(); err != nil {
			return fmt.Errorf("attr %d: %w", i, err)
		}
	}

	out, err := ioutil.CreateWriter(b.opts.Path)
	if err != nil {
		return fmt.Errorf("%w: create output %s: %v", common.ErrIO, b.opts.Path, err)
	}
	if err := writeHeader(out); err != nil {
		out.Close()
		return err
	}

	blockOffPath := b.opts.Path + common.SuffixMeta
	blockOff, err := ioutil.CreateWriter(blockOffPath)
	if err != nil {
		out.Close()
		return fmt.Errorf("%w: create block offsets staging %s: %v", common.ErrIO, blockOffPath, err)
	}
	pgmBlobsPath := b.opts.Path + common.SuffixPGM
	pgmBlobs, err := ioutil.CreateWriter(pgmBlobsPath)
	if err != nil {
		out.Close()
		blockOff.Unlink()
		return fmt.Errorf("%w: create pgm staging %s: %v", common.ErrIO, pgmBlobsPath, err)
	}
	pgmValuesPath := b.opts.Path + common.SuffixPGMValues

	var attrs []attrMeta
	for i, a := range b.opts.Attrs {
		am, err := b.buildAttr(i, a, out, blockOff, pgmBlobs, pgmValuesPath)
		if err != nil {
			out.Close()
			blockOff.Unlink()
			pgmBlobs.Unlink()
			return err
		}
		attrs = append(attrs, am)
		b.logger.Debug("attribute indexed", "attr", a.Name, "blocks", am.blockCount)
	}

	if err := blockOff.Flush(); err != nil {
		out.Close()
		blockOff.Unlink()
		pgmBlobs.Unlink()
		return fmt.Errorf("%w: flush block offsets staging: %v", common.ErrIO, err)
	}
	if err := pgmBlobs.Flush(); err != nil {
		out.Close()
		blockOff.Unlink()
		pgmBlobs.Unlink()
		return fmt.Errorf("%w: flush pgm staging: %v", common.ErrIO, err)
	}

	metaOffset := out.Pos()
	if err := writeMeta(out, attrs, b.opts.Collation); err != nil {
		out.Close()
		blockOff.Unlink()
		pgmBlobs.Unlink()
		return err
	}

	pgmReader, err := ioutil.OpenSequential(pgmBlobsPath)
	if err != nil {
		out.Close()
		blockOff.Unlink()
		return fmt.Errorf("%w: reopen pgm staging for copy: %v", common.ErrIO, err)
	}
	if _, err := pgmReader.CopyTo(out); err != nil {
		pgmReader.Close()
		out.Close()
		blockOff.Unlink()
		return fmt.Errorf("%w: append pgm blobs: %v", common.ErrIO, err)
	}
	pgmReader.Close()

	blockOffReader, err := ioutil.OpenSequential(blockOffPath)
	if err != nil {
		out.Close()
		blockOff.Unlink()
		return fmt.Errorf("%w: reopen block offsets staging for copy: %v", common.ErrIO, err)
	}
	if _, err := blockOffReader.CopyTo(out); err != nil {
		blockOffReader.Close()
		out.Close()
		blockOff.Unlink()
		return fmt.Errorf("%w: append block offsets: %v", common.ErrIO, err)
	}
	blockOffReader.Close()

	if err := out.Close(); err != nil {
		blockOff.Unlink()
		pgmBlobs.Unlink()
		return fmt.Errorf("%w: close output: %v", common.ErrIO, err)
	}
	if err := blockOff.Unlink(); err != nil {
		return fmt.Errorf("%w: unlink block offsets staging: %v", common.ErrIO, err)
	}
	if err := pgmBlobs.Unlink(); err != nil {
		return fmt.Errorf("%w: unlink pgm staging: %v", common.ErrIO, err)
	}

	if err := patchMetaOffset(b.opts.Path, metaOffset); err != nil {
		return err
	}

	if b.opts.Report {
		if err := writeReport(b.opts.Path, attrs); err != nil {
			b.logger.Warn("failed to write build report", "error", err.Error())
		}
	}

	b.logger.Info("build complete", "path", b.opts.Path, "attrs", len(attrs), "meta_offset", metaOffset)
	return nil
}

// buildAttr runs Merger → BlockEncoder → PGM build for one attribute,
// returning its meta trailer entry.
func (b *Builder) buildAttr(i int, a SourceAttr, out, blockOff, pgmBlobs *ioutil.Writer, pgmValuesPath string) (attrMeta, error) {
	blocksStart := uint64(blockOff.Pos())

	pgmValues, err := ioutil.CreateWriter(pgmValuesPath)
	if err != nil {
		return attrMeta{}, fmt.Errorf("%w: create pgm values side file %s: %v", common.ErrIO, pgmValuesPath, err)
	}

	var blob []byte
	if a.Type.Width32() {
		c := b.col32[i]
		m, err := newMerger32(c.writer.Path(), a, c.runs)
		if err != nil {
			pgmValues.Unlink()
			return attrMeta{}, err
		}
		enc, err := newBlockEncoder32(a, out, blockOff, pgmValues)
		if err != nil {
			m.Close()
			pgmValues.Unlink()
			return attrMeta{}, err
		}
		for {
			value, rowID, ok, err := m.Next()
			if err != nil {
				m.Close()
				pgmValues.Unlink()
				return attrMeta{}, err
			}
			if !ok {
				break
			}
			if err := enc.add(value, rowID); err != nil {
				m.Close()
				pgmValues.Unlink()
				return attrMeta{}, err
			}
		}
		if err := enc.done(); err != nil {
			m.Close()
			pgmValues.Unlink()
			return attrMeta{}, err
		}
		m.Close()
		if err := os.Remove(c.writer.Path()); err != nil {
			pgmValues.Unlink()
			return attrMeta{}, fmt.Errorf("%w: unlink collector temp file: %v", common.ErrIO, err)
		}
		if err := pgmValues.Close(); err != nil {
			return attrMeta{}, fmt.Errorf("%w: close pgm values side file: %v", common.ErrIO, err)
		}
		blob, err = buildPGM32(pgmValuesPath, a.Type)
		if err != nil {
			os.Remove(pgmValuesPath)
			return attrMeta{}, err
		}
	} else {
		c := b.col64[i]
		m, err := newMerger64(c.writer.Path(), c.runs)
		if err != nil {
			pgmValues.Unlink()
			return attrMeta{}, err
		}
		enc, err := newBlockEncoder64(a, out, blockOff, pgmValues)
		if err != nil {
			m.Close()
			pgmValues.Unlink()
			return attrMeta{}, err
		}
		for {
			value, rowID, ok, err := m.Next()
			if err != nil {
				m.Close()
				pgmValues.Unlink()
				return attrMeta{}, err
			}
			if !ok {
				break
			}
			if err := enc.add(value, rowID); err != nil {
				m.Close()
				pgmValues.Unlink()
				return attrMeta{}, err
			}
		}
		if err := enc.done(); err != nil {
			m.Close()
			pgmValues.Unlink()
			return attrMeta{}, err
		}
		m.Close()
		if err := os.Remove(c.writer.Path()); err != nil {
			pgmValues.Unlink()
			return attrMeta{}, fmt.Errorf("%w: unlink collector temp file: %v", common.ErrIO, err)
		}
		if err := pgmValues.Close(); err != nil {
			return attrMeta{}, fmt.Errorf("%w: close pgm values side file: %v", common.ErrIO, err)
		}
		blob, err = buildPGM64(pgmValuesPath)
		if err != nil {
			os.Remove(pgmValuesPath)
			return attrMeta{}, err
		}
	}
	os.Remove(pgmValuesPath)

	if err := pgmBlobs.PackUint32(uint32(len(blob))); err != nil {
		return attrMeta{}, fmt.Errorf("%w: write pgm blob length: %v", common.ErrIO, err)
	}
	if _, err := pgmBlobs.Write(blob); err != nil {
		return attrMeta{}, fmt.Errorf("%w: write pgm blob: %v", common.ErrIO, err)
	}

	blocksEnd := uint64(blockOff.Pos())
	blockCount := (blocksEnd - blocksStart) / 8

	return attrMeta{
		name:        a.Name,
		srcIndex:    a.SrcIndex,
		attrIndex:   i,
		typeCode:    a.Type,
		blocksStart: blocksStart,
		blockCount:  blockCount,
	}, nil
}
