package sidx

import "github.com/tomatolog/columnar/internal/common"

// Error sentinels re-exported from internal/common so callers can
// errors.Is against them without importing the internal package.
var (
	ErrIO           = common.ErrIO
	ErrInvariant    = common.ErrInvariant
	ErrCodecVersion = common.ErrCodecVersion
	ErrUnsorted     = common.ErrUnsorted
)
