// Package ioutil provides the buffered file writer/reader and memory-mapped
// typed reader the builder pipeline shares across collector, merger, block
// encoder and PGM driver. It is adapted from the teacher's
// pkg/srad/utils/io.go helpers and from original_source/util.h's
// FileWriter_c, generalized from "append raw bytes" to the fixed-width and
// packed-varint writes the on-disk format (spec.md §4.5, §6) needs.
package ioutil

import (
	"bufio"
	"encoding/binary"
	"os"

	"github.com/tomatolog/columnar/internal/encoding"
)

// Writer is a buffered, append-only (or patchable) file writer that tracks
// its own logical position, the way original_source/util.h's FileWriter_c
// does (GetPos/Seek/Write_uint*/Pack_uint*).
type Writer struct {
	f        *os.File
	buf      *bufio.Writer
	pos      int64
	unlinked bool
	path     string
}

// CreateWriter creates (truncating) the file at path for writing.
func CreateWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	return &Writer{f: f, buf: bufio.NewWriterSize(f, 1<<20), path: path}, nil
}

// OpenWriter opens an existing file for patching writes (no truncation).
// The caller is responsible for Seek-ing before writing.
func OpenWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	return &Writer{f: f, buf: bufio.NewWriterSize(f, 1<<20), path: path}, nil
}

// Path returns the file's path.
func (w *Writer) Path() string { return w.path }

// Pos returns the writer's current logical file position.
func (w *Writer) Pos() int64 { return w.pos }

// Write appends raw bytes.
func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.buf.Write(p)
	w.pos += int64(n)
	return n, err
}

// WriteUint8 appends a single byte.
func (w *Writer) WriteUint8(v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

// WriteUint32 appends a little-endian uint32.
func (w *Writer) WriteUint32(v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// WriteUint64 appends a little-endian uint64.
func (w *Writer) WriteUint64(v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// WriteString appends a packed-length-prefixed byte string.
func (w *Writer) WriteString(s string) error {
	if err := w.PackUint64(uint64(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

// PackUint32 appends v as a spec.md §6 big-endian packed varint.
func (w *Writer) PackUint32(v uint32) error {
	return w.PackUint64(uint64(v))
}

// PackUint64 appends v as a spec.md §6 big-endian packed varint.
func (w *Writer) PackUint64(v uint64) error {
	return encoding.WriteUvarint(w, v)
}

// Seek flushes pending buffered output and repositions the underlying file.
// Used only by the orchestrator to patch the header's meta_offset field;
// never during the single-pass writes collector/merger/block encoder
// perform (side files are appended to the output by sequential copy).
func (w *Writer) Seek(offset int64) error {
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if _, err := w.f.Seek(offset, 0); err != nil {
		return err
	}
	w.pos = offset
	return nil
}

// Flush flushes the buffered writer without closing the file.
func (w *Writer) Flush() error {
	return w.buf.Flush()
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// Unlink closes and removes the file; idempotent.
func (w *Writer) Unlink() error {
	if w.unlinked {
		return nil
	}
	w.unlinked = true
	w.buf.Flush()
	w.f.Close()
	return os.Remove(w.path)
}
