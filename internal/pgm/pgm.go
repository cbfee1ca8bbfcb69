// Package pgm implements the piecewise-geometric learned index spec.md
// §4.4 places behind an interface ("consumes a sorted distinct-value
// array, produces an opaque blob plus an approximate-position lookup")
// and explicitly treats as an external collaborator out of scope. No
// PGM-index library exists anywhere in the retrieved corpus, so this
// package is a from-scratch greedy piecewise-linear segmentation behind
// that same interface — any real PGM implementation could replace it
// without callers noticing, which is the contract spec.md asks for.
package pgm

import (
	"encoding/binary"
	"math"

	"github.com/tomatolog/columnar/internal/encoding"
)

// DefaultEpsilon is the maximum allowed deviation, in array positions,
// between a segment's linear approximation and the true index.
const DefaultEpsilon = 64

// segment is one piece of the piecewise-linear model: for keys in
// [key, nextSegment.key), position is approximated by
// intercept + slope*(float64(key)-float64(segment.key)).
type segment struct {
	key       uint64
	slope     float64
	intercept float64
}

// Index is a built, queryable PGM-style learned index.
type Index struct {
	n        uint64
	epsilon  int
	segments []segment
}

// Build constructs a learned index over keys, which must be sorted in
// non-decreasing order (spec.md §4.4's invariant; callers check
// ascending order themselves and surface common.ErrUnsorted before
// calling Build).
func Build(keys []uint64, epsilon int) *Index {
	idx := &Index{n: uint64(len(keys)), epsilon: epsilon}
	if len(keys) == 0 {
		return idx
	}

	const inf = math.MaxFloat64

	i := 0
	for i < len(keys) {
		startIdx := i
		startKey := keys[i]
		loSlope, hiSlope := -inf, inf
		j := i + 1

		for ; j < len(keys); j++ {
			dx := float64(keys[j]) - float64(startKey)
			dy := float64(j - startIdx)
			if dx == 0 {
				// Duplicate key: slope contributes nothing at dx=0, so the
				// approximation is pinned to the segment's intercept. Once
				// that drifts past epsilon the segment must close, since no
				// slope choice can fix it.
				if dy > float64(epsilon) {
					break
				}
				continue
			}
			lo := (dy - float64(epsilon)) / dx
			hi := (dy + float64(epsilon)) / dx
			newLo := math.Max(loSlope, lo)
			newHi := math.Min(hiSlope, hi)
			if newLo > newHi {
				break
			}
			loSlope, hiSlope = newLo, newHi
		}

		var slope float64
		if loSlope == -inf || hiSlope == inf {
			slope = 0
		} else {
			slope = (loSlope + hiSlope) / 2
		}
		idx.segments = append(idx.segments, segment{
			key:       startKey,
			slope:     slope,
			intercept: float64(startIdx),
		})
		i = j
	}

	return idx
}

// Search returns an approximate position for key, guaranteed (by
// construction, barring floating-point rounding at segment boundaries)
// to be within epsilon+1 of the true position. Callers do a bounded
// local search around the result to find the exact index.
func (idx *Index) Search(key uint64) (pos int, lo int, hi int) {
	if len(idx.segments) == 0 {
		return 0, 0, 0
	}
	s := idx.segmentFor(key)
	approx := s.intercept + s.slope*(float64(key)-float64(s.key))
	pos = int(approx)
	lo = pos - idx.epsilon - 1
	hi = pos + idx.epsilon + 1
	if lo < 0 {
		lo = 0
	}
	if n := int(idx.n); hi >= n {
		hi = n - 1
	}
	if pos < 0 {
		pos = 0
	}
	if n := int(idx.n); pos >= n {
		pos = n - 1
	}
	return pos, lo, hi
}

func (idx *Index) segmentFor(key uint64) segment {
	segs := idx.segments
	i, j := 0, len(segs)
	for i < j {
		mid := (i + j) / 2
		if segs[mid].key <= key {
			i = mid + 1
		} else {
			j = mid
		}
	}
	if i == 0 {
		return segs[0]
	}
	return segs[i-1]
}

// NumSegments returns the number of piecewise-linear segments.
func (idx *Index) NumSegments() int { return len(idx.segments) }

// Marshal serializes the index to a self-contained blob: header (n,
// epsilon, segment count), an Elias-Fano encoding of the monotone
// segment start keys, then the raw slope/intercept float64 pairs.
func (idx *Index) Marshal() []byte {
	hdr := make([]byte, 24)
	binary.LittleEndian.PutUint64(hdr[0:8], idx.n)
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(idx.epsilon))
	binary.LittleEndian.PutUint64(hdr[16:24], uint64(len(idx.segments)))

	keys := make([]uint64, len(idx.segments))
	for i, s := range idx.segments {
		keys[i] = s.key
	}

	var keyBlob []byte
	if len(keys) > 0 {
		keyBlob = encoding.NewEliasFano(keys).Marshal()
	}
	keyLen := make([]byte, 8)
	binary.LittleEndian.PutUint64(keyLen, uint64(len(keyBlob)))

	coeffs := make([]byte, 16*len(idx.segments))
	for i, s := range idx.segments {
		binary.LittleEndian.PutUint64(coeffs[i*16:], math.Float64bits(s.slope))
		binary.LittleEndian.PutUint64(coeffs[i*16+8:], math.Float64bits(s.intercept))
	}

	out := make([]byte, 0, len(hdr)+len(keyLen)+len(keyBlob)+len(coeffs))
	out = append(out, hdr...)
	out = append(out, keyLen...)
	out = append(out, keyBlob...)
	out = append(out, coeffs...)
	return out
}

// Unmarshal deserializes a blob produced by Marshal.
func Unmarshal(data []byte) *Index {
	n := binary.LittleEndian.Uint64(data[0:8])
	epsilon := int(binary.LittleEndian.Uint64(data[8:16]))
	numSegs := int(binary.LittleEndian.Uint64(data[16:24]))
	keyBlobLen := binary.LittleEndian.Uint64(data[24:32])

	off := 32
	var keys []uint64
	if keyBlobLen > 0 {
		ef := encoding.UnmarshalEliasFano(data[off : off+int(keyBlobLen)])
		keys = make([]uint64, numSegs)
		for i := 0; i < numSegs; i++ {
			keys[i] = ef.Get(uint64(i))
		}
	}
	off += int(keyBlobLen)

	idx := &Index{n: n, epsilon: epsilon, segments: make([]segment, numSegs)}
	for i := 0; i < numSegs; i++ {
		slope := math.Float64frombits(binary.LittleEndian.Uint64(data[off:]))
		intercept := math.Float64frombits(binary.LittleEndian.Uint64(data[off+8:]))
		idx.segments[i] = segment{key: keys[i], slope: slope, intercept: intercept}
		off += 16
	}
	return idx
}
