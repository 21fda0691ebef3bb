package backend

import (
	"bytes"
	"fmt"
	"io"

	"github.com/meigma/dsarchive/internal/index"
	"github.com/meigma/dsarchive/internal/rectype"
	"github.com/meigma/dsarchive/internal/sizing"
)

// Flat serves records from a single tag-delimited stream.
//
// Uncompressed streams are read directly at the indexed offset. Compressed
// streams cannot seek, so every Locate opens a fresh decoder over the
// source and discards the bytes before the record.
type Flat struct {
	src         Source
	idx         *index.Index
	compression rectype.Compression
	decoders    *Decoders
}

// OpenFlat indexes src with b and returns the backend.
// The whole stream is scanned exactly once.
func OpenFlat(src Source, c rectype.Compression, d *Decoders, b *index.Builder) (*Flat, error) {
	if d == nil {
		d = NewDecoders()
	}
	base := io.NewSectionReader(src, 0, src.Size())
	r, release, err := d.Open(c, base)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", rectype.ErrSourceUnavailable, err)
	}
	defer release()

	idx, err := b.Build(r)
	if err != nil {
		return nil, err
	}
	return &Flat{src: src, idx: idx, compression: c, decoders: d}, nil
}

// Len returns the number of indexed records.
func (f *Flat) Len() int {
	return f.idx.Len()
}

// Index returns the record index.
func (f *Flat) Index() *index.Index {
	return f.idx
}

// Compression returns the stream compression.
func (f *Flat) Compression() rectype.Compression {
	return f.compression
}

// Locate returns a stream positioned at the start boundary of record i.
// Closed records are bounded at their end boundary; a record whose end
// boundary was never seen extends to the end of the stream.
func (f *Flat) Locate(i int) (io.ReadCloser, error) {
	e, ok := f.idx.Entry(i)
	if !ok {
		return nil, fmt.Errorf("%w: record %d not indexed", rectype.ErrNotFound, i)
	}
	if f.compression == rectype.CompressionNone {
		return f.locatePlain(i, e)
	}
	return f.locateCompressed(i, e)
}

func (f *Flat) locatePlain(i int, e index.Entry) (io.ReadCloser, error) {
	size := f.src.Size()
	end := e.End
	if !e.Closed() {
		end = size
	}
	if e.Start >= size || end > size {
		return nil, fmt.Errorf("%w: record %d at offset %d beyond source size %d",
			rectype.ErrNotFound, i, e.Start, size)
	}
	length, err := sizing.Span(e.Start, end, rectype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}

	if rr, ok := f.src.(rangeReader); ok {
		if length == 0 {
			return io.NopCloser(bytes.NewReader(nil)), nil
		}
		rc, err := rr.ReadRange(e.Start, length)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", rectype.ErrNotFound, i, err)
		}
		return rc, nil
	}
	return io.NopCloser(io.NewSectionReader(f.src, e.Start, length)), nil
}

func (f *Flat) locateCompressed(i int, e index.Entry) (io.ReadCloser, error) {
	base := io.NewSectionReader(f.src, 0, f.src.Size())
	dec, release, err := f.decoders.Open(f.compression, base)
	if err != nil {
		return nil, fmt.Errorf("%w: record %d: %w", rectype.ErrNotFound, i, err)
	}

	n, err := io.CopyN(io.Discard, dec, e.Start)
	if n < e.Start {
		release()
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w: record %d: skipped %d of %d bytes: %w",
			rectype.ErrNotFound, i, n, e.Start, err)
	}

	var r io.Reader = dec
	if e.Closed() {
		length, err := sizing.Span(e.Start, e.End, rectype.ErrSizeOverflow)
		if err != nil {
			release()
			return nil, err
		}
		r = io.LimitReader(dec, length)
	}
	return newReleaseReader(r, release), nil
}

// Close releases backend resources. The source is owned by the caller.
func (f *Flat) Close() error {
	return nil
}
