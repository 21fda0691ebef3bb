package dsarchive

import (
	"errors"
	"strconv"

	"github.com/meigma/dsarchive/internal/rectype"
)

// Sentinel errors re-exported from internal/rectype.
var (
	// ErrSourceUnavailable is returned when the source cannot be opened or read at all.
	// It is detected once, at open.
	ErrSourceUnavailable = rectype.ErrSourceUnavailable

	// ErrStructure is returned when boundary tags are improperly nested.
	// It is detected once, at open, and leaves the container in the error state.
	ErrStructure = rectype.ErrStructure

	// ErrIndexOutOfRange is returned when a record index is outside [0, Count()).
	ErrIndexOutOfRange = rectype.ErrIndexOutOfRange

	// ErrNotFound is returned when an in-range record cannot be located in storage.
	ErrNotFound = rectype.ErrNotFound

	// ErrDecode is returned when the codec cannot decode a record.
	ErrDecode = rectype.ErrDecode

	// ErrInvalidRecord is returned when the codec cannot parse a record header.
	ErrInvalidRecord = rectype.ErrInvalidRecord

	// ErrClosed is returned by operations on a closed container.
	ErrClosed = rectype.ErrClosed

	// ErrInvalidTag is returned when a record tag option is not an XML name.
	ErrInvalidTag = rectype.ErrInvalidTag

	// ErrSizeOverflow is returned when a record exceeds the configured size limit.
	ErrSizeOverflow = rectype.ErrSizeOverflow
)

// ErrDigestMismatch is returned by Verify when a record's bytes do not match
// the expected digest.
var ErrDigestMismatch = errors.New("dsarchive: digest mismatch")

// RecordError records a failed operation on a single record.
type RecordError struct {
	Op    string
	Index int
	Err   error
}

func (e *RecordError) Error() string {
	return e.Op + " record " + strconv.Itoa(e.Index) + ": " + e.Err.Error()
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
