// Package sizing provides safe size arithmetic and bounded reads.
package sizing

import (
	"io"
	"math"
)

// ToInt64 converts a uint64 to int64, returning overflowErr if it doesn't fit.
func ToInt64(size uint64, overflowErr error) (int64, error) {
	if size > uint64(math.MaxInt64) {
		return 0, overflowErr
	}
	return int64(size), nil
}

// Span returns end-start, or overflowErr when the range is inverted.
func Span(start, end int64, overflowErr error) (int64, error) {
	if start < 0 || end < start {
		return 0, overflowErr
	}
	return end - start, nil
}

// ReadAllWithLimit reads all of r, failing with overflowErr once more than
// maxSize bytes are available. A maxSize of 0 disables the limit.
func ReadAllWithLimit(r io.Reader, maxSize uint64, overflowErr error) ([]byte, error) {
	if maxSize == 0 {
		return io.ReadAll(r)
	}
	if maxSize > uint64(math.MaxInt-1) {
		return nil, overflowErr
	}
	limit := int64(maxSize) + 1 //nolint:gosec // checked above
	data, err := io.ReadAll(&io.LimitedReader{R: r, N: limit})
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) > maxSize { //nolint:gosec // len is always non-negative
		return nil, overflowErr
	}
	return data, nil
}
