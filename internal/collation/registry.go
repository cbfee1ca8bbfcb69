// Package collation provides the string-attribute hash registry spec.md
// §4.4 requires: every distinct string value is reduced to a uint64 via
// a collation-specific hash before it is grouped and delta-encoded the
// same way a native uint64 attribute would be. Two collations compare
// bytes as-is (LibcCS, Binary); two fold case first (LibcCI,
// UTF8GeneralCI), matching original_source/util.h's four-way
// Collation_e split.
package collation

import (
	"strings"

	"github.com/spaolacci/murmur3"
	blake3 "lukechampine.com/blake3"

	"github.com/tomatolog/columnar/internal/common"
)

// HashFn reduces a string attribute's raw bytes to a uint64 collation key.
type HashFn func([]byte) uint64

var registry [common.CollationTotal]HashFn

// InitCollations populates the process-wide collation registry with its
// default table: every collation hashes with BLAKE3, the two *CI
// collations case-folding first. Murmur3 is not wired to any default slot
// — RegisterHash lets a caller swap a collation onto it (or any other
// func([]byte) uint64) when it needs a faster, non-cryptographic hash.
func InitCollations() {
	registry[common.CollationBinary] = hashBlake3
	registry[common.CollationLibcCS] = hashBlake3
	registry[common.CollationLibcCI] = caseFold(hashBlake3)
	registry[common.CollationUTF8GeneralCI] = caseFold(hashBlake3)
}

// RegisterHash overrides the hash function for c, letting a caller opt a
// collation onto Murmur3 (hashMurmur3, exposed via MurmurHash) or any
// other func([]byte) uint64 in place of the BLAKE3 default.
func RegisterHash(c common.Collation, fn HashFn) error {
	if c >= common.CollationTotal {
		return common.ErrInvariant
	}
	registry[c] = fn
	return nil
}

// MurmurHash is the alternate, non-cryptographic hash RegisterHash can
// plug in for callers that need speed over BLAKE3's collision strength.
func MurmurHash(b []byte) uint64 {
	return hashMurmur3(b)
}

// GetHashFn returns the registered hash function for c. InitCollations
// must have been called first.
func GetHashFn(c common.Collation) (HashFn, error) {
	if c >= common.CollationTotal {
		return nil, common.ErrInvariant
	}
	fn := registry[c]
	if fn == nil {
		return nil, common.ErrInvariant
	}
	return fn, nil
}

func hashBlake3(b []byte) uint64 {
	sum := blake3.Sum256(b)
	return leUint64(sum[:8])
}

func hashMurmur3(b []byte) uint64 {
	return murmur3.Sum64(b)
}

// caseFold wraps a hash function so CI collations compare case-folded
// bytes, the way util.h's *_CI collations do for ASCII/UTF-8 content.
func caseFold(fn HashFn) HashFn {
	return func(b []byte) uint64 {
		return fn([]byte(strings.ToLower(string(b))))
	}
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = (v << 8) | uint64(b[i])
	}
	return v
}
