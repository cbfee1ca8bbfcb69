package sidx

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tomatolog/columnar/internal/codec"
	"github.com/tomatolog/columnar/internal/common"
	"github.com/tomatolog/columnar/internal/encoding"
)

// blockreader.go is block.go's decode counterpart: given a reader
// positioned at one block's offset (as recorded in the block-offset side
// file), it reconstructs the block's (value, []rowID) groups. Used by
// round-trip tests and cmd/sidxdump. Grounded on the same
// original_source/secondary/builder.cpp RowWriter_t layout block.go
// encodes against, read in the opposite direction.

// Block32 is one decoded value block for a 32-bit-wide attribute.
type Block32 struct {
	Values []uint32
	Rows   [][]uint32 // Rows[i] are the sorted row ids posted under Values[i]
}

// Block64 is one decoded value block for a 64-bit-wide attribute.
type Block64 struct {
	Values []uint64
	Rows   [][]uint32
}

func readLenPrefixed(br *bufio.Reader) ([]byte, error) {
	n, err := encoding.ReadUvarint(br)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(br, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func deltaDecode32(deltas []uint32) []uint32 {
	out := make([]uint32, len(deltas))
	var prev uint32
	for i, d := range deltas {
		out[i] = prev + d
		prev = out[i]
	}
	return out
}

func deltaDecode64(deltas []uint64) []uint64 {
	out := make([]uint64, len(deltas))
	var prev uint64
	for i, d := range deltas {
		out[i] = prev + d
		prev = out[i]
	}
	return out
}

// decodeRowsBlock32 decodes one row-block (varint min, varint max-min,
// len32(codec-packed deltas)) starting at data[0], returning the row ids
// and the number of bytes consumed.
func decodeRowsBlock32(data []byte, c codec.IntCodec32) ([]uint32, int) {
	_, n1 := encoding.DecodeUvarint(data)
	_, n2 := encoding.DecodeUvarint(data[n1:])
	off := n1 + n2
	blobLen, n3 := encoding.DecodeUvarint(data[off:])
	off += n3
	blob := data[off : off+int(blobLen)]
	off += int(blobLen)
	return deltaDecode32(c.Decode(blob)), off
}

// decodeRowsBlocksList32 decodes a ROW_BLOCKS_LIST payload: varint(count)
// followed by that many concatenated row-blocks.
func decodeRowsBlocksList32(data []byte, c codec.IntCodec32) []uint32 {
	numBlocks, n := encoding.DecodeUvarint(data)
	off := n
	var rows []uint32
	for b := uint64(0); b < numBlocks; b++ {
		sub, consumed := decodeRowsBlock32(data[off:], c)
		rows = append(rows, sub...)
		off += consumed
	}
	return rows
}

func rowsForGroup32(typ common.Packing, rowStart uint32, rowsPacked []byte, c32 codec.IntCodec32) ([]uint32, error) {
	switch typ {
	case common.PackingRow:
		return []uint32{rowStart}, nil
	case common.PackingRowBlock:
		rows, _ := decodeRowsBlock32(rowsPacked[rowStart:], c32)
		return rows, nil
	case common.PackingRowBlocksList:
		return decodeRowsBlocksList32(rowsPacked[rowStart:], c32), nil
	default:
		return nil, fmt.Errorf("%w: unknown packing tag %d", common.ErrInvariant, typ)
	}
}

func readBlockTail(br *bufio.Reader, c32 codec.IntCodec32) (typesRaw, rowStart []uint32, rowsPacked []byte, err error) {
	typesBlob, err := readLenPrefixed(br)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: read types: %v", common.ErrIO, err)
	}
	typesRaw = c32.Decode(typesBlob)

	flag, err := br.ReadByte()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: read rows_delta_on: %v", common.ErrIO, err)
	}
	rowStartBlob, err := readLenPrefixed(br)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: read row_start: %v", common.ErrIO, err)
	}
	rowStart = c32.Decode(rowStartBlob)
	if flag != 0 {
		rowStart = deltaDecode32(rowStart)
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(br, lenBuf[:]); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: read rows_packed length: %v", common.ErrIO, err)
	}
	packedLen := binary.LittleEndian.Uint32(lenBuf[:])
	rowsPacked = make([]byte, packedLen)
	if _, err := io.ReadFull(br, rowsPacked); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: read rows_packed: %v", common.ErrIO, err)
	}
	return typesRaw, rowStart, rowsPacked, nil
}

// DecodeBlock32 decodes one block for a 32-bit-wide attribute from r,
// which must be positioned at the block's recorded offset.
func DecodeBlock32(r io.Reader) (*Block32, error) {
	br := bufio.NewReader(r)
	c, err := codec.CreateIntCodec32(common.CompressionUint32)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCodecVersion, err)
	}

	valuesBlob, err := readLenPrefixed(br)
	if err != nil {
		return nil, fmt.Errorf("%w: read values: %v", common.ErrIO, err)
	}
	values := deltaDecode32(c.Decode(valuesBlob))

	typesRaw, rowStart, rowsPacked, err := readBlockTail(br, c)
	if err != nil {
		return nil, err
	}

	rows := make([][]uint32, len(values))
	for i := range values {
		rows[i], err = rowsForGroup32(common.Packing(typesRaw[i]), rowStart[i], rowsPacked, c)
		if err != nil {
			return nil, err
		}
	}
	return &Block32{Values: values, Rows: rows}, nil
}

// DecodeBlock64 decodes one block for a 64-bit-wide attribute from r. The
// value column uses the 64-bit codec; types/row_start/row-id packing
// always use the 32-bit codec (see block.go's appendRowsBlock32 comment).
func DecodeBlock64(r io.Reader) (*Block64, error) {
	br := bufio.NewReader(r)
	c64, err := codec.CreateIntCodec64(common.CompressionUint64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCodecVersion, err)
	}
	c32, err := codec.CreateIntCodec32(common.CompressionUint32)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCodecVersion, err)
	}

	valuesBlob, err := readLenPrefixed(br)
	if err != nil {
		return nil, fmt.Errorf("%w: read values: %v", common.ErrIO, err)
	}
	values := deltaDecode64(c64.Decode(valuesBlob))

	typesRaw, rowStart, rowsPacked, err := readBlockTail(br, c32)
	if err != nil {
		return nil, err
	}

	rows := make([][]uint32, len(values))
	for i := range values {
		rows[i], err = rowsForGroup32(common.Packing(typesRaw[i]), rowStart[i], rowsPacked, c32)
		if err != nil {
			return nil, err
		}
	}
	return &Block64{Values: values, Rows: rows}, nil
}
