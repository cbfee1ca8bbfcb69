package sidx

import (
	"fmt"

	"github.com/tomatolog/columnar/internal/common"
	"github.com/tomatolog/columnar/internal/ioutil"
	"github.com/tomatolog/columnar/internal/pgm"
)

// pgm.go is spec.md §4.4's PGM build driver: once an attribute's block
// stream has written the sorted distinct-value sequence to its
// PGM-values side file (closed by the caller, buildAttr), this
// memory-maps it, asserts ascending order, and builds the learned index
// blob that later gets appended into the meta trailer's PGM region.

// pgmEpsilon is the approximation bound passed to internal/pgm.Build.
// spec.md §4.4 leaves the bound unspecified (an external-collaborator
// parameter); internal/pgm.DefaultEpsilon is used uniformly across
// attributes since nothing in the spec calls for per-attribute tuning.
const pgmEpsilon = pgm.DefaultEpsilon

// buildPGM32 builds a learned index over a 32-bit-wide attribute's sorted
// distinct values, read back from its side file at path. The mapping is
// released on return; the side file itself is left in place and removed
// by the caller (buildAttr), on success and on failure.
func buildPGM32(path string, typ AttrType) ([]byte, error) {
	mapped, err := ioutil.MapFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: map pgm values %s: %v", common.ErrIO, path, err)
	}
	defer func() {
		mapped.Close()
	}()

	values := mapped.Uint32Slice()
	keys := make([]uint64, len(values))
	for i, v := range values {
		keys[i] = uint64(v)
	}
	if err := assertAscending32(typ, values); err != nil {
		return nil, err
	}
	return pgm.Build(keys, pgmEpsilon).Marshal(), nil
}

// buildPGM64 is buildPGM32's counterpart for 64-bit-wide attributes.
func buildPGM64(path string) ([]byte, error) {
	mapped, err := ioutil.MapFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: map pgm values %s: %v", common.ErrIO, path, err)
	}
	defer func() {
		mapped.Close()
	}()

	values := mapped.Uint64Slice()
	if err := assertAscending64(values); err != nil {
		return nil, err
	}
	return pgm.Build(values, pgmEpsilon).Marshal(), nil
}

func assertAscending32(typ AttrType, values []uint32) error {
	for i := 1; i < len(values); i++ {
		if lessValue32(typ, values[i], values[i-1]) {
			return fmt.Errorf("%w: pgm values out of order at index %d", common.ErrUnsorted, i)
		}
	}
	return nil
}

func assertAscending64(values []uint64) error {
	for i := 1; i < len(values); i++ {
		if values[i] < values[i-1] {
			return fmt.Errorf("%w: pgm values out of order at index %d", common.ErrUnsorted, i)
		}
	}
	return nil
}
