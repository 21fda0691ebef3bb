package rectype

import "bytes"

// Mode selects the storage layout of a container.
type Mode uint8

const (
	// ModeAuto picks the layout from the leading bytes of the source.
	ModeAuto Mode = iota
	// ModeFlat is a single tag-delimited stream.
	ModeFlat
	// ModeArchive is a zip archive with one entry per record.
	ModeArchive
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeFlat:
		return "flat"
	case ModeArchive:
		return "archive"
	default:
		return "unknown"
	}
}

var (
	zipLocalHeader = []byte("PK\x03\x04")
	zipEmptyEnd    = []byte("PK\x05\x06")
)

// DetectMode identifies the storage layout from the leading bytes.
func DetectMode(head []byte) Mode {
	if bytes.HasPrefix(head, zipLocalHeader) || bytes.HasPrefix(head, zipEmptyEnd) {
		return ModeArchive
	}
	return ModeFlat
}

// NestingPolicy controls how an improperly nested start boundary is handled
// while indexing a flat stream.
type NestingPolicy uint8

const (
	// FailClosed puts the container into the error state; Count reports 0.
	FailClosed NestingPolicy = iota
	// FailOpenWithPartialIndex stops scanning and keeps only the records
	// whose end boundary was seen before the violation.
	FailOpenWithPartialIndex
)

// String returns the policy name.
func (p NestingPolicy) String() string {
	switch p {
	case FailClosed:
		return "fail-closed"
	case FailOpenWithPartialIndex:
		return "fail-open-partial"
	default:
		return "unknown"
	}
}

// TypeCode is the minimal discriminating field a codec reads from a record
// header without decoding the whole record.
type TypeCode string
