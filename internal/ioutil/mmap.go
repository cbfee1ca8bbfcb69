package ioutil

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// MappedFile is a single-shot memory map of a file, simplified from the
// teacher's pkg/srad/segment/mmap_cache.go LRU-of-many-segments cache: a
// build only ever visits one attribute's PGM-values side file once, so
// there is nothing to cache or evict (spec.md §5: single-writer, no
// concurrent consumers).
type MappedFile struct {
	f    *os.File
	data []byte
}

// MapFile memory-maps path read-only. An empty file maps to a nil slice.
func MapFile(path string) (*MappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	if st.Size() == 0 {
		return &MappedFile{f: f}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &MappedFile{f: f, data: data}, nil
}

// Bytes returns the raw mapped bytes.
func (m *MappedFile) Bytes() []byte { return m.data }

// Close unmaps and closes the underlying file.
func (m *MappedFile) Close() error {
	if len(m.data) > 0 {
		if err := unix.Munmap(m.data); err != nil {
			m.f.Close()
			return err
		}
	}
	return m.f.Close()
}

// Uint32Slice reinterprets the mapped bytes as a []uint32, the shape the
// PGM build driver needs for 32-bit-wide attributes (spec.md §4.4). The
// file must have been written little-endian, fixed-width, which is how
// the block encoder appends values to the PGM-values side file.
func (m *MappedFile) Uint32Slice() []uint32 {
	if len(m.data) == 0 {
		return nil
	}
	n := len(m.data) / 4
	return unsafe.Slice((*uint32)(unsafe.Pointer(&m.data[0])), n)
}

// Uint64Slice reinterprets the mapped bytes as a []uint64.
func (m *MappedFile) Uint64Slice() []uint64 {
	if len(m.data) == 0 {
		return nil
	}
	n := len(m.data) / 8
	return unsafe.Slice((*uint64)(unsafe.Pointer(&m.data[0])), n)
}
