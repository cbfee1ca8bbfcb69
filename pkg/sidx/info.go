package sidx

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/tomatolog/columnar/internal/common"
)

// info.go exposes the header+meta trailer to external readers (cmd/sidxdump,
// and anything else that wants to inspect a built file without reaching into
// pkg/sidx's unexported layout). It is the read-side mirror of builder.go's
// Done(): the block-offsets table is the last thing Done() appends, so its
// absolute start is the file's tail, sized by the sum of every attribute's
// block count.

// AttrInfo describes one attribute's schema entry and its block-offset
// table slice, both taken from the meta trailer.
type AttrInfo struct {
	Name        string
	SrcIndex    int
	AttrIndex   int
	Type        AttrType
	BlocksStart uint64 // byte offset into the block-offsets table region
	BlockCount  uint64
}

// FileInfo is a parsed header + meta trailer.
type FileInfo struct {
	LibVersion     uint32
	MetaOffset     uint64
	AttrCount      uint32
	CompressionU32 string
	CompressionU64 string
	Collation      Collation
	ValuesPerBlock uint32
	Attrs          []AttrInfo

	tableStart uint64 // absolute file offset where the block-offsets table begins
}

// ReadFileInfo opens path and parses its header and meta trailer.
func ReadFileInfo(path string) (*FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", common.ErrIO, path, err)
	}
	defer f.Close()

	libVersion, metaOffset, err := readHeader(f)
	if err != nil {
		return nil, err
	}
	if metaOffset == 0 {
		return nil, fmt.Errorf("%w: %s has no meta_offset, build never completed", common.ErrInvariant, path)
	}
	if _, err := f.Seek(int64(metaOffset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: seek to meta_offset: %v", common.ErrIO, err)
	}
	trailer, err := readMeta(f)
	if err != nil {
		return nil, err
	}

	size, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", common.ErrIO, path, err)
	}

	var tableLen uint64
	attrs := make([]AttrInfo, len(trailer.attrs))
	for i, a := range trailer.attrs {
		attrs[i] = AttrInfo{
			Name:        a.name,
			SrcIndex:    a.srcIndex,
			AttrIndex:   a.attrIndex,
			Type:        a.typeCode,
			BlocksStart: a.blocksStart,
			BlockCount:  a.blockCount,
		}
		if end := a.blocksStart + a.blockCount*8; end > tableLen {
			tableLen = end
		}
	}

	return &FileInfo{
		LibVersion:     libVersion,
		MetaOffset:     metaOffset,
		AttrCount:      trailer.attrCount,
		CompressionU32: trailer.compressionU32,
		CompressionU64: trailer.compressionU64,
		Collation:      trailer.collation,
		ValuesPerBlock: trailer.valuesPerBlock,
		Attrs:          attrs,
		tableStart:     uint64(size.Size()) - tableLen,
	}, nil
}

// ReadBlock decodes block number blockIdx (0-based, within attr's own run
// of blocks) of the attribute at attrIdx. f must be opened on the same
// file fi was parsed from.
func (fi *FileInfo) ReadBlock(f *os.File, attrIdx int, blockIdx uint64) (interface{}, error) {
	if attrIdx < 0 || attrIdx >= len(fi.Attrs) {
		return nil, fmt.Errorf("%w: attr index %d out of range", common.ErrInvariant, attrIdx)
	}
	a := fi.Attrs[attrIdx]
	if blockIdx >= a.BlockCount {
		return nil, fmt.Errorf("%w: block index %d out of range for attr %q (%d blocks)", common.ErrInvariant, blockIdx, a.Name, a.BlockCount)
	}

	entryPos := int64(fi.tableStart + a.BlocksStart + blockIdx*8)
	if _, err := f.Seek(entryPos, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: seek to block-offset entry: %v", common.ErrIO, err)
	}
	var buf [8]byte
	if _, err := io.ReadFull(f, buf[:]); err != nil {
		return nil, fmt.Errorf("%w: read block-offset entry: %v", common.ErrIO, err)
	}
	blockOffset := binary.LittleEndian.Uint64(buf[:])

	if _, err := f.Seek(int64(blockOffset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: seek to block %d: %v", common.ErrIO, blockIdx, err)
	}
	if a.Type.Width32() {
		return DecodeBlock32(f)
	}
	return DecodeBlock64(f)
}
