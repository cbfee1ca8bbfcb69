package collation

import (
	"testing"

	"github.com/tomatolog/columnar/internal/common"
)

func TestGetHashFnBeforeInit(t *testing.T) {
	registry = [common.CollationTotal]HashFn{}
	if _, err := GetHashFn(common.CollationBinary); err == nil {
		t.Fatal("expected error before InitCollations")
	}
}

func TestCaseInsensitiveCollationsFold(t *testing.T) {
	InitCollations()

	ci, err := GetHashFn(common.CollationLibcCI)
	if err != nil {
		t.Fatal(err)
	}
	if ci([]byte("Hello")) != ci([]byte("hello")) {
		t.Fatal("LibcCI hash must be case-insensitive")
	}

	utf8ci, err := GetHashFn(common.CollationUTF8GeneralCI)
	if err != nil {
		t.Fatal(err)
	}
	if utf8ci([]byte("WORLD")) != utf8ci([]byte("world")) {
		t.Fatal("UTF8GeneralCI hash must be case-insensitive")
	}
}

func TestCaseSensitiveCollationsDistinguishCase(t *testing.T) {
	InitCollations()

	cs, err := GetHashFn(common.CollationLibcCS)
	if err != nil {
		t.Fatal(err)
	}
	if cs([]byte("Hello")) == cs([]byte("hello")) {
		t.Fatal("LibcCS hash must be case-sensitive (collision is astronomically unlikely)")
	}

	bin, err := GetHashFn(common.CollationBinary)
	if err != nil {
		t.Fatal(err)
	}
	if bin([]byte("Hello")) == bin([]byte("hello")) {
		t.Fatal("Binary hash must be case-sensitive")
	}
}

func TestHashFnDeterministic(t *testing.T) {
	InitCollations()
	fn, err := GetHashFn(common.CollationBinary)
	if err != nil {
		t.Fatal(err)
	}
	a := fn([]byte("deterministic"))
	b := fn([]byte("deterministic"))
	if a != b {
		t.Fatal("hash must be deterministic across calls")
	}
}

func TestGetHashFnOutOfRange(t *testing.T) {
	InitCollations()
	if _, err := GetHashFn(common.CollationTotal); err == nil {
		t.Fatal("expected error for out-of-range collation")
	}
}

func TestDefaultTableWiresAllFourSlotsToBlake3(t *testing.T) {
	InitCollations()
	binary, err := GetHashFn(common.CollationBinary)
	if err != nil {
		t.Fatal(err)
	}
	cs, err := GetHashFn(common.CollationLibcCS)
	if err != nil {
		t.Fatal(err)
	}
	// Binary and LibcCS both default to plain (non-folding) BLAKE3, so an
	// unfolded input hashes identically under either collation.
	if binary([]byte("Hello")) != cs([]byte("Hello")) {
		t.Fatal("CollationBinary and CollationLibcCS must share the same default hash family")
	}

	ci, err := GetHashFn(common.CollationLibcCI)
	if err != nil {
		t.Fatal(err)
	}
	utf8ci, err := GetHashFn(common.CollationUTF8GeneralCI)
	if err != nil {
		t.Fatal(err)
	}
	// Both *CI collations case-fold the same BLAKE3 family, so a folded
	// input hashes identically under either.
	if ci([]byte("hello")) != utf8ci([]byte("hello")) {
		t.Fatal("CollationLibcCI and CollationUTF8GeneralCI must share the same default hash family")
	}
}

func TestRegisterHashOverridesDefaultSlot(t *testing.T) {
	InitCollations()
	defer InitCollations() // restore defaults for later tests

	if err := RegisterHash(common.CollationLibcCS, MurmurHash); err != nil {
		t.Fatal(err)
	}
	fn, err := GetHashFn(common.CollationLibcCS)
	if err != nil {
		t.Fatal(err)
	}
	if fn([]byte("data")) != MurmurHash([]byte("data")) {
		t.Fatal("RegisterHash did not take effect")
	}
}

func TestRegisterHashOutOfRange(t *testing.T) {
	if err := RegisterHash(common.CollationTotal, MurmurHash); err == nil {
		t.Fatal("expected error for out-of-range collation")
	}
}
