package ioutil

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
)

// Reader is a buffered sequential reader bounded to [start, end) within a
// file, the shape original_source/secondary/builder.cpp's BinValue_T<VALUE>
// uses to read one run of a collector's temp file during merge.
type Reader struct {
	f   *os.File
	buf *bufio.Reader
	pos int64
	end int64
}

// OpenReaderRange opens path and positions a buffered reader at start,
// bounded to end (exclusive).
func OpenReaderRange(path string, start, end int64) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return &Reader{f: f, buf: bufio.NewReaderSize(f, 1<<16), pos: start, end: end}, nil
}

// Done reports whether the reader has consumed its bounded range.
func (r *Reader) Done() bool {
	return r.pos >= r.end
}

// ReadFull reads exactly len(p) bytes.
func (r *Reader) ReadFull(p []byte) error {
	n, err := io.ReadFull(r.buf, p)
	r.pos += int64(n)
	return err
}

// ReadUint32 reads a little-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	var b [4]byte
	if err := r.ReadFull(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// ReadUint64 reads a little-endian uint64.
func (r *Reader) ReadUint64() (uint64, error) {
	var b [8]byte
	if err := r.ReadFull(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}

// SequentialReader reads whole-file sequential content (used by the
// orchestrator to copy a finished side file's bytes into the output file).
type SequentialReader struct {
	f *os.File
}

// OpenSequential opens path for sequential reading from offset 0.
func OpenSequential(path string) (*SequentialReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &SequentialReader{f: f}, nil
}

// CopyTo copies the whole file to w.
func (s *SequentialReader) CopyTo(w io.Writer) (int64, error) {
	return io.Copy(w, bufio.NewReaderSize(s.f, 1<<20))
}

// Close closes the underlying file.
func (s *SequentialReader) Close() error {
	return s.f.Close()
}
