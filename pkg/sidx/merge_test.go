package sidx

import (
	"path/filepath"
	"testing"

	"github.com/tomatolog/columnar/internal/ioutil"
)

// writeRuns32 writes each run (a sorted slice of pair32) to path back to
// back, returning the runOffset for each, mirroring how collector32
// actually lays out consecutive flushes in its temp file.
func writeRuns32(t *testing.T, path string, runs [][]pair32) []runOffset {
	t.Helper()
	w, err := ioutil.CreateWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	var offsets []runOffset
	for _, run := range runs {
		start := w.Pos()
		for _, p := range run {
			if err := w.WriteUint32(p.value); err != nil {
				t.Fatal(err)
			}
			if err := w.WriteUint32(p.rowID); err != nil {
				t.Fatal(err)
			}
		}
		offsets = append(offsets, runOffset{start: start, end: w.Pos()})
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return offsets
}

func drainMerger32(t *testing.T, m *merger32) []pair32 {
	t.Helper()
	var got []pair32
	for {
		v, rowID, ok, err := m.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		got = append(got, pair32{value: v, rowID: rowID})
	}
	return got
}

func TestMerger32InterleavesFourRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attr0.tmp")
	runs := writeRuns32(t, path, [][]pair32{
		{{value: 1, rowID: 0}, {value: 5, rowID: 1}},
		{{value: 2, rowID: 2}, {value: 5, rowID: 3}},
		{{value: 3, rowID: 4}},
		{{value: 4, rowID: 5}, {value: 6, rowID: 6}},
	})
	attr := SourceAttr{SrcIndex: 0, Name: "v", Type: TypeUint32}
	m, err := newMerger32(path, attr, runs)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	got := drainMerger32(t, m)
	want := []pair32{
		{1, 0}, {2, 2}, {3, 4}, {4, 5}, {5, 1}, {5, 3}, {6, 6},
	}
	if len(got) != len(want) {
		t.Fatalf("merged %d pairs, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pair %d = %+v, want %+v (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestMerger32TiesBreakOnRowID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attr0.tmp")
	runs := writeRuns32(t, path, [][]pair32{
		{{value: 7, rowID: 9}},
		{{value: 7, rowID: 2}},
		{{value: 7, rowID: 5}},
	})
	attr := SourceAttr{SrcIndex: 0, Name: "v", Type: TypeUint32}
	m, err := newMerger32(path, attr, runs)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	got := drainMerger32(t, m)
	want := []pair32{{7, 2}, {7, 5}, {7, 9}}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pair %d = %+v, want %+v (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestMerger32SkipsEmptyRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attr0.tmp")
	w, err := ioutil.CreateWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	start := w.Pos()
	if err := w.WriteUint32(1); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteUint32(0); err != nil {
		t.Fatal(err)
	}
	end := w.Pos()
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	// An empty run is one whose end <= start; newMerger32 must skip it
	// rather than try to read. (collector32.flush records no run at all for
	// an empty buffer, so such a run only comes from a hand-built table.)
	runs := []runOffset{{start: start, end: start}, {start: start, end: end}}
	attr := SourceAttr{SrcIndex: 0, Name: "v", Type: TypeUint32}
	m, err := newMerger32(path, attr, runs)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	got := drainMerger32(t, m)
	if len(got) != 1 || got[0] != (pair32{1, 0}) {
		t.Fatalf("got %v, want a single pair {1 0}", got)
	}
}

func TestMerger64Interleaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attr0.tmp")
	w, err := ioutil.CreateWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	var offsets []runOffset
	for _, run := range [][]pair64{
		{{value: 100, rowID: 0}, {value: 300, rowID: 1}},
		{{value: 200, rowID: 2}},
	} {
		start := w.Pos()
		for _, p := range run {
			if err := w.WriteUint64(p.value); err != nil {
				t.Fatal(err)
			}
			if err := w.WriteUint32(p.rowID); err != nil {
				t.Fatal(err)
			}
		}
		offsets = append(offsets, runOffset{start: start, end: w.Pos()})
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	m, err := newMerger64(path, offsets)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	var got []pair64
	for {
		v, rowID, ok, err := m.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		got = append(got, pair64{value: v, rowID: rowID})
	}
	want := []pair64{{100, 0}, {200, 2}, {300, 1}}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pair %d = %+v, want %+v (full: %v)", i, got[i], want[i], got)
		}
	}
}
