package sidx

import "github.com/tomatolog/columnar/internal/collation"

// InitCollations populates the process-wide collation hash registry.
// Callers must invoke this once, before any Builder hashes a string
// attribute, per spec.md §6's "initialized once via init_collations".
func InitCollations() {
	collation.InitCollations()
}

// GetHashFn returns the registered hash function for c.
func GetHashFn(c Collation) (func([]byte) uint64, error) {
	return collation.GetHashFn(c)
}

// RegisterHash overrides the hash function for c, e.g. to opt a collation
// onto MurmurHash in place of its BLAKE3 default.
func RegisterHash(c Collation, fn func([]byte) uint64) error {
	return collation.RegisterHash(c, fn)
}

// MurmurHash is the alternate, non-cryptographic hash RegisterHash can
// plug in for callers that need speed over BLAKE3's collision strength.
func MurmurHash(b []byte) uint64 {
	return collation.MurmurHash(b)
}
