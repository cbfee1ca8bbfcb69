// Package common holds constants, enums and error sentinels shared across
// the builder pipeline (collector, merger, block encoder, PGM driver,
// orchestrator).
package common

import "errors"

// AttrType is the attribute type as seen by the host engine (spec.md §3).
type AttrType uint8

const (
	TypeUint32 AttrType = iota
	TypeTimestamp
	TypeFloat
	TypeInt64
	TypeString
	TypeUint32Set
	TypeInt64Set
)

func (t AttrType) String() string {
	switch t {
	case TypeUint32:
		return "uint32"
	case TypeTimestamp:
		return "timestamp"
	case TypeFloat:
		return "float"
	case TypeInt64:
		return "int64"
	case TypeString:
		return "string"
	case TypeUint32Set:
		return "uint32_set"
	case TypeInt64Set:
		return "int64_set"
	default:
		return "unknown"
	}
}

// IsSet reports whether the attribute type expands to one pair per element.
func (t AttrType) IsSet() bool {
	return t == TypeUint32Set || t == TypeInt64Set
}

// Width32 reports whether the attribute's on-disk/index storage width is
// 32 bits (uint32/timestamp/uint32_set/float) as opposed to 64 (int64,
// int64_set, string).
func (t AttrType) Width32() bool {
	switch t {
	case TypeUint32, TypeTimestamp, TypeUint32Set, TypeFloat:
		return true
	default:
		return false
	}
}

// Collation selects the hash function applied to string attribute bytes.
type Collation uint32

const (
	CollationLibcCI Collation = iota
	CollationLibcCS
	CollationUTF8GeneralCI
	CollationBinary

	CollationTotal
)

// Packing is the posting-layout tag written per value group (spec.md §4.3).
type Packing uint32

const (
	PackingRow Packing = iota
	PackingRowBlock
	PackingRowBlocksList
)

// VALUES_PER_BLOCK is the number of value groups bundled into one value block.
const ValuesPerBlock = 128

// LIB_VERSION / STORAGE_VERSION identify the builder and on-disk format.
const (
	LibVersion     uint32 = 1
	StorageVersion uint32 = 1
)

// CompressionUint32 / CompressionUint64 are the only codec names the builder
// ever writes into the meta trailer (spec.md §6).
const (
	CompressionUint32 = "simdfastpfor128"
	CompressionUint64 = "fastpfor128"
)

// Temporary file suffixes (spec.md §6).
const (
	SuffixRawAttr   = ".tmp"   // "<output>.<attr>.tmp"
	SuffixMeta      = ".tmp.meta"
	SuffixPGM       = ".tmp.pgm"
	SuffixPGMValues = ".tmp.pgmvalues"
)

// Error kinds (spec.md §7). Each is a sentinel wrapped with a
// human-readable message via fmt.Errorf("...: %w", ...) at the call site.
var (
	// ErrIO covers open/read/write/seek/unlink failures.
	ErrIO = errors.New("io error")
	// ErrInvariant covers a precondition violated by the caller.
	ErrInvariant = errors.New("invariant violated")
	// ErrCodecVersion covers an unrecognized codec name.
	ErrCodecVersion = errors.New("unrecognized codec")
	// ErrUnsorted covers a PGM-values side file found out of order.
	ErrUnsorted = errors.New("pgm values not ascending")
)

// Logger provides structured logging, independent of any single backend.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)
