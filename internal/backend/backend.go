package backend

import (
	"io"
	"sync"
)

// Source provides random access to container bytes.
type Source interface {
	io.ReaderAt
	Size() int64
}

// rangeReader is implemented by sources that serve a byte range as one
// request, such as HTTP sources.
type rangeReader interface {
	ReadRange(off, length int64) (io.ReadCloser, error)
}

// Backend resolves record numbers to readable streams.
//
// Locate returns an error wrapping rectype.ErrNotFound when the record
// cannot be found in storage. The returned stream must be closed by the
// caller on every path.
type Backend interface {
	Len() int
	Locate(i int) (io.ReadCloser, error)
	Close() error
}

// releaseReader ties a stream to the function that releases its resources.
type releaseReader struct {
	io.Reader
	once    sync.Once
	release func()
}

func newReleaseReader(r io.Reader, release func()) *releaseReader {
	return &releaseReader{Reader: r, release: release}
}

// Close releases the underlying resources. It is safe to call more than once.
func (r *releaseReader) Close() error {
	r.once.Do(r.release)
	return nil
}
