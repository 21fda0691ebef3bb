package dsarchive

import (
	"io"

	"github.com/meigma/dsarchive/internal/rectype"
)

// Re-export types from internal/rectype for the public API.
type (
	// Mode selects the storage layout of a container.
	Mode = rectype.Mode

	// Compression identifies the compression applied to a flat stream.
	Compression = rectype.Compression

	// NestingPolicy controls how an improperly nested start boundary is handled.
	NestingPolicy = rectype.NestingPolicy

	// TypeCode is the record type read by Codec.DecodeHeader.
	TypeCode = rectype.TypeCode
)

// Re-export mode constants.
const (
	ModeAuto    = rectype.ModeAuto
	ModeFlat    = rectype.ModeFlat
	ModeArchive = rectype.ModeArchive
)

// Re-export compression constants.
const (
	CompressionNone = rectype.CompressionNone
	CompressionGzip = rectype.CompressionGzip
	CompressionZstd = rectype.CompressionZstd
	CompressionS2   = rectype.CompressionS2
	CompressionLZ4  = rectype.CompressionLZ4
)

// Re-export nesting policies.
const (
	FailClosed               = rectype.FailClosed
	FailOpenWithPartialIndex = rectype.FailOpenWithPartialIndex
)

// Defaults shared by containers and writers.
const (
	// DefaultRecordTag is the boundary tag name of flat containers.
	DefaultRecordTag = "DataSet"

	// DefaultEntryPrefix is the entry name prefix of archive containers.
	DefaultEntryPrefix = "Entry"

	// DefaultHeaderName is the archive entry name used by WriteWithHeader
	// when no name is given.
	DefaultHeaderName = "Header"

	// DefaultMaxRecordSize is the default FetchRaw and Inspect limit (256MB).
	DefaultMaxRecordSize = 256 << 20
)

// Codec decodes records from positioned streams.
//
// The stream handed to either method starts at the first byte of the
// record: the `<` of the start boundary for flat containers, or the first
// byte of the entry for archives. The container closes the stream after
// the call returns.
type Codec[R any] interface {
	// DecodeFull decodes the whole record.
	DecodeFull(r io.Reader) (R, error)

	// DecodeHeader reads only enough of the record to return its type.
	DecodeHeader(r io.Reader) (TypeCode, error)
}
