package backend

import (
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/meigma/dsarchive/internal/rectype"
)

// DefaultMaxDecoderMemory is the default maximum zstd decoder memory (256MB).
const DefaultMaxDecoderMemory = 256 << 20

// Decoders opens decompressing readers over flat streams.
// zstd decoders are pooled; the other formats are cheap to construct.
type Decoders struct {
	pool               *sync.Pool
	maxDecoderMemory   uint64
	decoderConcurrency int
	decoderLowmem      bool
}

// DecoderOption configures Decoders.
type DecoderOption func(*Decoders)

// WithMaxDecoderMemory limits the memory used by each zstd decoder.
// Zero disables the limit.
func WithMaxDecoderMemory(limit uint64) DecoderOption {
	return func(d *Decoders) {
		d.maxDecoderMemory = limit
	}
}

// WithDecoderConcurrency sets the zstd decoder concurrency (default: 1).
// Values < 0 are treated as 0 (use GOMAXPROCS).
func WithDecoderConcurrency(n int) DecoderOption {
	return func(d *Decoders) {
		if n < 0 {
			n = 0
		}
		d.decoderConcurrency = n
	}
}

// WithDecoderLowmem enables low-memory mode for zstd decoders.
func WithDecoderLowmem(enabled bool) DecoderOption {
	return func(d *Decoders) {
		d.decoderLowmem = enabled
	}
}

// NewDecoders returns a decoder factory.
func NewDecoders(opts ...DecoderOption) *Decoders {
	d := &Decoders{
		maxDecoderMemory:   DefaultMaxDecoderMemory,
		decoderConcurrency: 1,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.pool = &sync.Pool{
		New: func() any {
			dec, err := d.newZstd(nil)
			if err != nil {
				return nil
			}
			return dec
		},
	}
	return d
}

// Open returns a reader that yields the decompressed content of r.
// The caller must call the returned release function when done.
// If an error is returned, no release function needs to be called.
func (d *Decoders) Open(c rectype.Compression, r io.Reader) (io.Reader, func(), error) {
	switch c {
	case rectype.CompressionNone:
		return r, func() {}, nil
	case rectype.CompressionGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("open gzip stream: %w", err)
		}
		return zr, func() { _ = zr.Close() }, nil
	case rectype.CompressionZstd:
		return d.zstd(r)
	case rectype.CompressionS2:
		return s2.NewReader(r), func() {}, nil
	case rectype.CompressionLZ4:
		return lz4.NewReader(r), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown compression algorithm: %d", c)
	}
}

// zstd returns a pooled zstd decoder reading from r.
func (d *Decoders) zstd(r io.Reader) (io.Reader, func(), error) {
	dec, ok := d.pool.Get().(*zstd.Decoder)
	if !ok || dec == nil {
		// Pool construction failed; fall back to a one-off decoder.
		fresh, err := d.newZstd(r)
		if err != nil {
			return nil, nil, fmt.Errorf("open zstd stream: %w", err)
		}
		return fresh, fresh.Close, nil
	}

	if err := dec.Reset(r); err != nil {
		dec.Close()
		fresh, err := d.newZstd(r)
		if err != nil {
			return nil, nil, fmt.Errorf("open zstd stream: %w", err)
		}
		return fresh, fresh.Close, nil
	}

	return dec, func() {
		_ = dec.Reset(nil) //nolint:errcheck // clearing state before pool return
		d.pool.Put(dec)
	}, nil
}

// newZstd creates a zstd decoder with the configured limits.
func (d *Decoders) newZstd(r io.Reader) (*zstd.Decoder, error) {
	opts := []zstd.DOption{
		zstd.WithDecoderConcurrency(d.decoderConcurrency),
		zstd.WithDecoderLowmem(d.decoderLowmem),
	}
	if d.maxDecoderMemory != 0 {
		opts = append(opts, zstd.WithDecoderMaxMemory(d.maxDecoderMemory))
	}
	return zstd.NewReader(r, opts...)
}
