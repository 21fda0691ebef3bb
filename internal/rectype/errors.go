package rectype

import "errors"

// Sentinel errors for container operations.
var (
	// ErrSourceUnavailable is returned when the base stream or archive cannot be opened or read.
	ErrSourceUnavailable = errors.New("dsarchive: source unavailable")

	// ErrStructure is returned when boundary tags are improperly nested.
	ErrStructure = errors.New("dsarchive: improper nesting of boundary tags")

	// ErrIndexOutOfRange is returned when a record index is outside [0, Count()).
	ErrIndexOutOfRange = errors.New("dsarchive: record index out of range")

	// ErrNotFound is returned when an in-range record cannot be located in storage.
	ErrNotFound = errors.New("dsarchive: record not found")

	// ErrDecode is returned when the codec cannot decode a record.
	ErrDecode = errors.New("dsarchive: record decode failed")

	// ErrInvalidRecord is returned when a record header cannot be parsed.
	ErrInvalidRecord = errors.New("dsarchive: invalid record")

	// ErrClosed is returned by operations on a closed container.
	ErrClosed = errors.New("dsarchive: container closed")

	// ErrInvalidTag is returned when a record tag is not a usable XML name.
	ErrInvalidTag = errors.New("dsarchive: invalid record tag")

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = errors.New("dsarchive: size overflow")
)
