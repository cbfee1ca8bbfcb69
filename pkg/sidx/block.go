package sidx

import (
	"encoding/binary"
	"fmt"

	"github.com/tomatolog/columnar/internal/codec"
	"github.com/tomatolog/columnar/internal/common"
	"github.com/tomatolog/columnar/internal/encoding"
	"github.com/tomatolog/columnar/internal/ioutil"
)

// block.go implements spec.md §4.3's block encoder: it consumes the
// merger's globally sorted pair stream, groups adjacent equal values,
// buffers up to ValuesPerBlock groups, and flushes each full block to the
// output file while appending block offsets and PGM-source values to
// their respective side files. Grounded on
// original_source/secondary/builder.cpp's RowWriter_t<VALUE,FLOAT_VALUE>
// (AddValue/NextValue/FlushBlock/Done).

// writeLenPrefixed writes a varint byte-length prefix followed by data,
// the "len32(...)" shape spec.md §4.3 names for row-block payloads and
// codec-encoded columns.
func writeLenPrefixed(w *ioutil.Writer, data []byte) error {
	if err := w.PackUint32(uint32(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// appendLenPrefixed is writeLenPrefixed's in-memory counterpart, used
// while staging a block's rows_packed buffer before it is written out.
func appendLenPrefixed(dst []byte, data []byte) []byte {
	dst = encoding.AppendUvarint(dst, uint64(len(data)))
	return append(dst, data...)
}

func deltaEncode32(values []uint32) []uint32 {
	out := make([]uint32, len(values))
	var prev uint32
	for i, v := range values {
		out[i] = v - prev
		prev = v
	}
	return out
}

func deltaEncode64(values []uint64) []uint64 {
	out := make([]uint64, len(values))
	var prev uint64
	for i, v := range values {
		out[i] = v - prev
		prev = v
	}
	return out
}

// appendRowsBlock32 appends one row-block to dst: varint(min),
// varint(max-min), len32(delta-encoded-and-codec-packed row ids). Row ids
// are strictly increasing (spec.md §4.3's tie-break ordering), so every
// delta after the first is >= 1; the first delta is the block's first row
// id itself, taken against 0. Row ids are always 32-bit quantities
// (original_source/secondary/builder.cpp's RowWriter_t packs them with
// its own uint32_t codec regardless of the attribute's VALUE width), so
// both blockEncoder32 and blockEncoder64 call this with their 32-bit
// codec rather than a width-matched one.
func appendRowsBlock32(dst []byte, rows []uint32, c codec.IntCodec32) []byte {
	min, max := rows[0], rows[0]
	for _, r := range rows {
		if r < min {
			min = r
		}
		if r > max {
			max = r
		}
	}
	dst = encoding.AppendUvarint(dst, uint64(min))
	dst = encoding.AppendUvarint(dst, uint64(max-min))
	return appendLenPrefixed(dst, c.Encode(deltaEncode32(rows)))
}

type blockEncoder32 struct {
	attr   SourceAttr
	codec  codec.IntCodec32
	out    *ioutil.Writer
	blockW *ioutil.Writer
	pgmW   *ioutil.Writer

	values     []uint32
	rowStart   []uint32
	rows       []uint32
	rowsPacked []byte

	lastValue uint32
	haveLast  bool
	blocks    int
}

func newBlockEncoder32(attr SourceAttr, out, blockW, pgmW *ioutil.Writer) (*blockEncoder32, error) {
	c, err := codec.CreateIntCodec32(common.CompressionUint32)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCodecVersion, err)
	}
	return &blockEncoder32{attr: attr, codec: c, out: out, blockW: blockW, pgmW: pgmW}, nil
}

func sameValue32(typ AttrType, a, b uint32) bool {
	if typ == TypeFloat {
		return floatEqualBits(a, b)
	}
	return a == b
}

// add consumes one merged pair.
func (e *blockEncoder32) add(value, rowID uint32) error {
	if e.haveLast && sameValue32(e.attr.Type, e.lastValue, value) {
		e.rows = append(e.rows, rowID)
		return nil
	}
	if len(e.values) >= ValuesPerBlock {
		if err := e.flush(); err != nil {
			return err
		}
	}
	e.rowStart = append(e.rowStart, uint32(len(e.rows)))
	e.values = append(e.values, value)
	e.rows = append(e.rows, rowID)
	e.lastValue = value
	e.haveLast = true
	return nil
}

func (e *blockEncoder32) flush() error {
	if len(e.values) == 0 {
		return nil
	}
	n := len(e.values)
	types := make([]common.Packing, n)
	rowsDeltaOn := true

	rowsPacked := e.rowsPacked[:0]
	for i := 0; i < n; i++ {
		start := e.rowStart[i]
		var end uint32
		if i+1 < n {
			end = e.rowStart[i+1]
		} else {
			end = uint32(len(e.rows))
		}
		group := e.rows[start:end]
		count := len(group)

		switch {
		case count == 1:
			types[i] = common.PackingRow
			e.rowStart[i] = group[0]
			rowsDeltaOn = false
		case count <= ValuesPerBlock:
			types[i] = common.PackingRowBlock
			e.rowStart[i] = uint32(len(rowsPacked))
			rowsPacked = appendRowsBlock32(rowsPacked, group, e.codec)
		default:
			types[i] = common.PackingRowBlocksList
			e.rowStart[i] = uint32(len(rowsPacked))
			numBlocks := (count + ValuesPerBlock - 1) / ValuesPerBlock
			rowsPacked = encoding.AppendUvarint(rowsPacked, uint64(numBlocks))
			for b := 0; b < numBlocks; b++ {
				lo := b * ValuesPerBlock
				hi := lo + ValuesPerBlock
				if hi > count {
					hi = count
				}
				rowsPacked = appendRowsBlock32(rowsPacked, group[lo:hi], e.codec)
			}
		}
	}
	e.rowsPacked = rowsPacked

	if err := e.blockW.WriteUint64(uint64(e.out.Pos())); err != nil {
		return fmt.Errorf("%w: write block offset: %v", common.ErrIO, err)
	}
	for _, v := range e.values {
		if err := e.pgmW.WriteUint32(v); err != nil {
			return fmt.Errorf("%w: write pgm value: %v", common.ErrIO, err)
		}
	}

	if err := writeLenPrefixed(e.out, e.codec.Encode(deltaEncode32(e.values))); err != nil {
		return fmt.Errorf("%w: encode values: %v", common.ErrIO, err)
	}
	typesRaw := make([]uint32, n)
	for i, t := range types {
		typesRaw[i] = uint32(t)
	}
	if err := writeLenPrefixed(e.out, e.codec.Encode(typesRaw)); err != nil {
		return fmt.Errorf("%w: encode types: %v", common.ErrIO, err)
	}
	flag := byte(0)
	if rowsDeltaOn {
		flag = 1
	}
	if err := e.out.WriteUint8(flag); err != nil {
		return fmt.Errorf("%w: write rows_delta_on: %v", common.ErrIO, err)
	}
	rowStartEnc := e.rowStart
	if rowsDeltaOn {
		rowStartEnc = deltaEncode32(e.rowStart)
	}
	if err := writeLenPrefixed(e.out, e.codec.Encode(rowStartEnc)); err != nil {
		return fmt.Errorf("%w: encode row_start: %v", common.ErrIO, err)
	}
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(e.rowsPacked)))
	if _, err := e.out.Write(lenBuf); err != nil {
		return fmt.Errorf("%w: write rows_packed length: %v", common.ErrIO, err)
	}
	if _, err := e.out.Write(e.rowsPacked); err != nil {
		return fmt.Errorf("%w: write rows_packed: %v", common.ErrIO, err)
	}

	e.blocks++
	e.values = e.values[:0]
	e.rowStart = e.rowStart[:0]
	e.rows = e.rows[:0]
	e.rowsPacked = e.rowsPacked[:0]
	return nil
}

func (e *blockEncoder32) done() error {
	return e.flush()
}

// blockEncoder64 is blockEncoder32's counterpart for 64-bit-wide
// attributes (int64, int64_set, string). Floats never reach this path
// (float is a 32-bit type per spec.md §3), so group equality is always
// plain integer equality.
type blockEncoder64 struct {
	attr    SourceAttr
	codec   codec.IntCodec64
	codec32 codec.IntCodec32
	out     *ioutil.Writer
	blockW  *ioutil.Writer
	pgmW    *ioutil.Writer

	values     []uint64
	rowStart   []uint32
	rows       []uint32
	rowsPacked []byte

	lastValue uint64
	haveLast  bool
	blocks    int
}

func newBlockEncoder64(attr SourceAttr, out, blockW, pgmW *ioutil.Writer) (*blockEncoder64, error) {
	c, err := codec.CreateIntCodec64(common.CompressionUint64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCodecVersion, err)
	}
	c32, err := codec.CreateIntCodec32(common.CompressionUint32)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCodecVersion, err)
	}
	return &blockEncoder64{attr: attr, codec: c, codec32: c32, out: out, blockW: blockW, pgmW: pgmW}, nil
}

func (e *blockEncoder64) add(value uint64, rowID uint32) error {
	if e.haveLast && e.lastValue == value {
		e.rows = append(e.rows, rowID)
		return nil
	}
	if len(e.values) >= ValuesPerBlock {
		if err := e.flush(); err != nil {
			return err
		}
	}
	e.rowStart = append(e.rowStart, uint32(len(e.rows)))
	e.values = append(e.values, value)
	e.rows = append(e.rows, rowID)
	e.lastValue = value
	e.haveLast = true
	return nil
}

func (e *blockEncoder64) flush() error {
	if len(e.values) == 0 {
		return nil
	}
	n := len(e.values)
	types := make([]common.Packing, n)
	rowsDeltaOn := true

	rowsPacked := e.rowsPacked[:0]
	for i := 0; i < n; i++ {
		start := e.rowStart[i]
		var end uint32
		if i+1 < n {
			end = e.rowStart[i+1]
		} else {
			end = uint32(len(e.rows))
		}
		group := e.rows[start:end]
		count := len(group)

		switch {
		case count == 1:
			types[i] = common.PackingRow
			e.rowStart[i] = group[0]
			rowsDeltaOn = false
		case count <= ValuesPerBlock:
			types[i] = common.PackingRowBlock
			e.rowStart[i] = uint32(len(rowsPacked))
			rowsPacked = appendRowsBlock32(rowsPacked, group, e.codec32)
		default:
			types[i] = common.PackingRowBlocksList
			e.rowStart[i] = uint32(len(rowsPacked))
			numBlocks := (count + ValuesPerBlock - 1) / ValuesPerBlock
			rowsPacked = encoding.AppendUvarint(rowsPacked, uint64(numBlocks))
			for b := 0; b < numBlocks; b++ {
				lo := b * ValuesPerBlock
				hi := lo + ValuesPerBlock
				if hi > count {
					hi = count
				}
				rowsPacked = appendRowsBlock32(rowsPacked, group[lo:hi], e.codec32)
			}
		}
	}
	e.rowsPacked = rowsPacked

	if err := e.blockW.WriteUint64(uint64(e.out.Pos())); err != nil {
		return fmt.Errorf("%w: write block offset: %v", common.ErrIO, err)
	}
	for _, v := range e.values {
		if err := e.pgmW.WriteUint64(v); err != nil {
			return fmt.Errorf("%w: write pgm value: %v", common.ErrIO, err)
		}
	}

	if err := writeLenPrefixed(e.out, e.codec.Encode(deltaEncode64(e.values))); err != nil {
		return fmt.Errorf("%w: encode values: %v", common.ErrIO, err)
	}
	typesRaw32 := make([]uint32, n)
	for i, t := range types {
		typesRaw32[i] = uint32(t)
	}
	if err := writeLenPrefixed(e.out, e.codec32.Encode(typesRaw32)); err != nil {
		return fmt.Errorf("%w: encode types: %v", common.ErrIO, err)
	}
	flag := byte(0)
	if rowsDeltaOn {
		flag = 1
	}
	if err := e.out.WriteUint8(flag); err != nil {
		return fmt.Errorf("%w: write rows_delta_on: %v", common.ErrIO, err)
	}
	rowStartEnc := e.rowStart
	if rowsDeltaOn {
		rowStartEnc = deltaEncode32(e.rowStart)
	}
	if err := writeLenPrefixed(e.out, e.codec32.Encode(rowStartEnc)); err != nil {
		return fmt.Errorf("%w: encode row_start: %v", common.ErrIO, err)
	}
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(e.rowsPacked)))
	if _, err := e.out.Write(lenBuf); err != nil {
		return fmt.Errorf("%w: write rows_packed length: %v", common.ErrIO, err)
	}
	if _, err := e.out.Write(e.rowsPacked); err != nil {
		return fmt.Errorf("%w: write rows_packed: %v", common.ErrIO, err)
	}

	e.blocks++
	e.values = e.values[:0]
	e.rowStart = e.rowStart[:0]
	e.rows = e.rows[:0]
	e.rowsPacked = e.rowsPacked[:0]
	return nil
}

func (e *blockEncoder64) done() error {
	return e.flush()
}
