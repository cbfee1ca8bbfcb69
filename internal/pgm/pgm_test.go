package pgm

import (
	"math/rand"
	"testing"
)

func TestBuildAndSearchWithinEpsilon(t *testing.T) {
	keys := make([]uint64, 2000)
	v := uint64(0)
	for i := range keys {
		v += uint64(rand.Intn(5) + 1)
		keys[i] = v
	}

	epsilon := 16
	idx := Build(keys, epsilon)

	for i, k := range keys {
		_, lo, hi := idx.Search(k)
		if i < lo || i > hi {
			t.Fatalf("key %d (index %d) outside predicted range [%d,%d]", k, i, lo, hi)
		}
	}
}

func TestBuildEmpty(t *testing.T) {
	idx := Build(nil, DefaultEpsilon)
	pos, lo, hi := idx.Search(42)
	if pos != 0 || lo != 0 || hi != 0 {
		t.Fatalf("expected zeroed search result for empty index, got (%d,%d,%d)", pos, lo, hi)
	}
}

func TestBuildSingleKey(t *testing.T) {
	idx := Build([]uint64{7}, DefaultEpsilon)
	pos, lo, hi := idx.Search(7)
	if pos < lo || pos > hi {
		t.Fatalf("single-key search out of its own bounds: pos=%d lo=%d hi=%d", pos, lo, hi)
	}
}

func TestBuildDuplicateKeys(t *testing.T) {
	keys := []uint64{1, 1, 1, 2, 2, 5, 5, 5, 5, 9}
	idx := Build(keys, 4)
	for i, k := range keys {
		_, lo, hi := idx.Search(k)
		if i < lo || i > hi {
			t.Fatalf("duplicate-key index %d (key %d) outside range [%d,%d]", i, k, lo, hi)
		}
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	keys := make([]uint64, 500)
	v := uint64(10)
	for i := range keys {
		v += uint64(i%3 + 1)
		keys[i] = v
	}

	idx := Build(keys, 8)
	blob := idx.Marshal()
	restored := Unmarshal(blob)

	if restored.n != idx.n || restored.epsilon != idx.epsilon {
		t.Fatalf("header mismatch after round trip: n=%d epsilon=%d want n=%d epsilon=%d",
			restored.n, restored.epsilon, idx.n, idx.epsilon)
	}
	if restored.NumSegments() != idx.NumSegments() {
		t.Fatalf("segment count mismatch: got %d want %d", restored.NumSegments(), idx.NumSegments())
	}

	for i, k := range keys {
		_, lo, hi := restored.Search(k)
		if i < lo || i > hi {
			t.Fatalf("restored index: key %d (position %d) outside range [%d,%d]", k, i, lo, hi)
		}
	}
}
