package sidx

import "github.com/tomatolog/columnar/internal/common"

// LibVersion identifies the builder that produced a file. StorageVersion
// identifies the on-disk layout the file follows. LibVersion is the first
// field of the 12-byte file header (spec.md §4.5); StorageVersion is not
// written into the file.
const (
	LibVersion     = common.LibVersion
	StorageVersion = common.StorageVersion
)

// ValuesPerBlock is the maximum number of value groups per value block.
const ValuesPerBlock = common.ValuesPerBlock
