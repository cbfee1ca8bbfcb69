package sidx

import (
	"fmt"
	"sort"

	"github.com/tomatolog/columnar/internal/common"
	"github.com/tomatolog/columnar/internal/ioutil"
)

// runOffset records one flushed run's byte range within a collector's
// temp file, the partition spec.md §3 calls out ("a run's bounds are
// recorded as [offset_i, offset_{i+1})").
type runOffset struct {
	start int64
	end   int64
}

// collector32 accumulates (value,row_id) pairs for a 32-bit-wide
// attribute (uint32, timestamp, float, uint32_set) and spills sorted runs
// to a temp file on every flush, the same in-memory-buffer-then-spill
// shape the teacher's memtable uses for its own flush threshold, adapted
// here from a byte-string tree to a flat typed pair buffer.
type collector32 struct {
	attr   SourceAttr
	buf    []pair32
	writer *ioutil.Writer
	runs   []runOffset
}

func newCollector32(path string, attr SourceAttr) (*collector32, error) {
	w, err := ioutil.CreateWriter(path)
	if err != nil {
		return nil, fmt.Errorf("%w: create collector temp file %s: %v", common.ErrIO, path, err)
	}
	return &collector32{attr: attr, writer: w}, nil
}

func (c *collector32) setUint32(rowID, v uint32) {
	c.buf = append(c.buf, pair32{value: v, rowID: rowID})
}

func (c *collector32) setUint32Set(rowID uint32, vals []uint32) {
	for _, v := range vals {
		c.buf = append(c.buf, pair32{value: v, rowID: rowID})
	}
}

func (c *collector32) flush() error {
	if len(c.buf) == 0 {
		return nil
	}
	typ := c.attr.Type
	sort.Slice(c.buf, func(i, j int) bool {
		if !sameValue32(typ, c.buf[i].value, c.buf[j].value) {
			return lessValue32(typ, c.buf[i].value, c.buf[j].value)
		}
		return c.buf[i].rowID < c.buf[j].rowID
	})
	start := c.writer.Pos()
	for _, p := range c.buf {
		if err := c.writer.WriteUint32(p.value); err != nil {
			return fmt.Errorf("%w: write run value: %v", common.ErrIO, err)
		}
		if err := c.writer.WriteUint32(p.rowID); err != nil {
			return fmt.Errorf("%w: write run row id: %v", common.ErrIO, err)
		}
	}
	c.runs = append(c.runs, runOffset{start: start, end: c.writer.Pos()})
	c.buf = c.buf[:0]
	return nil
}

func (c *collector32) done() error {
	if err := c.flush(); err != nil {
		return err
	}
	return c.writer.Close()
}

// collector64 accumulates pairs for a 64-bit-wide attribute (int64,
// int64_set, string).
type collector64 struct {
	attr   SourceAttr
	buf    []pair64
	writer *ioutil.Writer
	runs   []runOffset
}

func newCollector64(path string, attr SourceAttr) (*collector64, error) {
	w, err := ioutil.CreateWriter(path)
	if err != nil {
		return nil, fmt.Errorf("%w: create collector temp file %s: %v", common.ErrIO, path, err)
	}
	return &collector64{attr: attr, writer: w}, nil
}

func (c *collector64) setUint64(rowID uint32, v uint64) {
	c.buf = append(c.buf, pair64{value: v, rowID: rowID})
}

func (c *collector64) setInt64Set(rowID uint32, vals []int64) {
	for _, v := range vals {
		c.buf = append(c.buf, pair64{value: int64ToUint64(v), rowID: rowID})
	}
}

func (c *collector64) flush() error {
	if len(c.buf) == 0 {
		return nil
	}
	sort.Slice(c.buf, func(i, j int) bool {
		if c.buf[i].value != c.buf[j].value {
			return c.buf[i].value < c.buf[j].value
		}
		return c.buf[i].rowID < c.buf[j].rowID
	})
	start := c.writer.Pos()
	for _, p := range c.buf {
		if err := c.writer.WriteUint64(p.value); err != nil {
			return fmt.Errorf("%w: write run value: %v", common.ErrIO, err)
		}
		if err := c.writer.WriteUint32(p.rowID); err != nil {
			return fmt.Errorf("%w: write run row id: %v", common.ErrIO, err)
		}
	}
	c.runs = append(c.runs, runOffset{start: start, end: c.writer.Pos()})
	c.buf = c.buf[:0]
	return nil
}

func (c *collector64) done() error {
	if err := c.flush(); err != nil {
		return err
	}
	return c.writer.Close()
}

// pairSize32/pairSize64 are the per-pair byte sizes spec.md §4.1's flush
// threshold formula (max(1000, M/3/S)) sums across attributes.
const (
	pairSize32 = 8  // u32 value + u32 row id
	pairSize64 = 12 // u64 value + u32 row id
)

func pairSizeFor(typ AttrType) int {
	if typ.Width32() {
		return pairSize32
	}
	return pairSize64
}
