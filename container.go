package dsarchive

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"

	"github.com/meigma/dsarchive/internal/backend"
	"github.com/meigma/dsarchive/internal/index"
	"github.com/meigma/dsarchive/internal/rectype"
	"github.com/meigma/dsarchive/internal/sizing"
)

// Container provides random access to the records of one container.
//
// The backend and its index are built once, at open, and are read-only
// afterwards. A container whose source is structurally broken is returned
// in the error state: Count reports 0 and every record operation returns
// the stored error without touching the source.
type Container[R any] struct {
	backend     backend.Backend
	flat        *backend.Flat
	archive     *backend.Archive
	codec       Codec[R]
	cfg         config
	mode        Mode
	compression Compression
	sourceID    string
	file        *os.File
	err         error
	closed      bool
}

// Open opens the container stored in the file at path.
//
// Only a file that cannot be opened at all yields a nil container, with an
// error wrapping ErrSourceUnavailable. Once the file is open, read and
// structure failures return the container in the error state together with
// the error; see New. The returned container must be closed.
func Open[R any](path string, codec Codec[R], opts ...Option) (*Container[R], error) {
	f, err := os.Open(path) //nolint:gosec // User-provided path is intentional
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	src, err := newFileSource(f)
	if err != nil {
		f.Close()
		if codec == nil {
			return nil, errors.New("dsarchive: nil codec")
		}
		c := &Container[R]{codec: codec, cfg: newConfig(opts), sourceID: "file:" + path}
		return c, c.fail(fmt.Errorf("%w: %w", ErrSourceUnavailable, err))
	}

	c, err := New(src, codec, opts...)
	if c == nil || c.err != nil {
		// Broken containers perform no further I/O; release the file now.
		f.Close()
		return c, err
	}
	c.file = f
	return c, nil
}

// New opens the container held by src.
//
// The layout is chosen by WithMode, or sniffed from the leading bytes when
// the mode is ModeAuto. Flat streams are indexed synchronously before New
// returns. The caller keeps ownership of src.
//
// A source that cannot be read (ErrSourceUnavailable) or whose boundaries
// are improperly nested (ErrStructure) yields a container in the error
// state together with the error, so Count reports 0 either way. A nil
// codec or an invalid record tag is a usage error and yields a nil
// container.
func New[R any](src ByteSource, codec Codec[R], opts ...Option) (*Container[R], error) {
	if codec == nil {
		return nil, errors.New("dsarchive: nil codec")
	}
	cfg := newConfig(opts)
	if err := rectype.CheckTag(cfg.recordTag); err != nil {
		return nil, err
	}

	c := &Container[R]{codec: codec, cfg: cfg}
	if src == nil {
		return c, c.fail(fmt.Errorf("%w: nil source", ErrSourceUnavailable))
	}
	c.sourceID = src.SourceID()
	if err := c.open(src); err != nil {
		return c, c.fail(err)
	}

	c.log().Info("container opened",
		"source", c.sourceID,
		"mode", c.mode.String(),
		"compression", c.compression.String(),
		"records", c.backend.Len())
	return c, nil
}

// open picks the backend and builds it.
func (c *Container[R]) open(src ByteSource) error {
	head, err := readHead(src)
	if err != nil {
		return err
	}

	c.mode = c.cfg.mode
	if c.mode == ModeAuto {
		c.mode = rectype.DetectMode(head)
	}

	switch c.mode {
	case ModeArchive:
		a, err := backend.OpenArchive(src, c.cfg.entryPrefix)
		if err != nil {
			return err
		}
		if other := a.Other(); len(other) > 0 {
			c.log().Debug("archive entries that are not records", "names", other)
		}
		if dups := a.Duplicates(); len(dups) > 0 {
			c.log().Warn("duplicate record entries ignored", "source", c.sourceID, "names", dups)
		}
		c.backend, c.archive = a, a
		return nil

	case ModeFlat:
		c.compression = rectype.DetectCompression(head)
		if c.cfg.compressionSet {
			c.compression = c.cfg.compression
		}
		if !c.compression.Valid() {
			return fmt.Errorf("%w: unknown compression %d", ErrSourceUnavailable, c.compression)
		}
		builder := index.NewBuilder(c.cfg.recordTag,
			index.WithPolicy(c.cfg.policy),
			index.WithLogger(c.cfg.logger),
		)
		f, err := backend.OpenFlat(src, c.compression, backend.NewDecoders(c.cfg.decoderOpts...), builder)
		if err != nil {
			return err
		}
		c.log().Debug("flat index built", "records", f.Len(), "scanned_bytes", f.Index().Scanned())
		c.backend, c.flat = f, f
		return nil

	default:
		return fmt.Errorf("%w: unknown mode %d", ErrSourceUnavailable, c.mode)
	}
}

// fail puts the container into the error state and returns err.
func (c *Container[R]) fail(err error) error {
	c.err = err
	if errors.Is(err, ErrSourceUnavailable) {
		c.log().Warn("source unavailable", "source", c.sourceID, "error", err)
	} else {
		c.log().Warn("container unusable", "source", c.sourceID, "mode", c.mode.String(), "error", err)
	}
	return err
}

// log returns the logger, falling back to a discard logger if nil.
func (c *Container[R]) log() *slog.Logger {
	if c.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.cfg.logger
}

// Count returns the number of records, or 0 if the container is nil, in
// the error state or closed.
func (c *Container[R]) Count() int {
	if c == nil || c.err != nil || c.closed || c.backend == nil {
		return 0
	}
	return c.backend.Len()
}

// Err returns the error that put the container into the error state, if any.
func (c *Container[R]) Err() error {
	if c == nil {
		return nil
	}
	return c.err
}

// Mode returns the storage layout in use.
func (c *Container[R]) Mode() Mode {
	return c.mode
}

// Compression returns the flat stream compression.
// It is CompressionNone for archives.
func (c *Container[R]) Compression() Compression {
	return c.compression
}

// SourceID returns the identifier of the underlying source.
func (c *Container[R]) SourceID() string {
	return c.sourceID
}

// Offset returns the byte offset of record i's start boundary in the
// (decompressed) flat stream. It reports false for archives and for
// indexes outside [0, Count()).
func (c *Container[R]) Offset(i int) (int64, bool) {
	if c.flat == nil || c.Count() == 0 {
		return 0, false
	}
	e, ok := c.flat.Index().Entry(i)
	if !ok {
		return 0, false
	}
	return e.Start, true
}

// check validates the container state and the record index.
// It performs no I/O.
func (c *Container[R]) check(op string, i int) error {
	switch {
	case c.closed:
		return &RecordError{Op: op, Index: i, Err: ErrClosed}
	case c.err != nil:
		return &RecordError{Op: op, Index: i, Err: c.err}
	case i < 0 || i >= c.backend.Len():
		if c.archive != nil {
			// The directory was read at open; no entry by that name exists.
			return &RecordError{Op: op, Index: i, Err: fmt.Errorf("%w (%w: no entry %q)",
				ErrIndexOutOfRange, ErrNotFound, c.archive.Name(i))}
		}
		return &RecordError{Op: op, Index: i, Err: ErrIndexOutOfRange}
	}
	return nil
}

// locate validates i and returns the record's stream.
func (c *Container[R]) locate(op string, i int) (io.ReadCloser, error) {
	if err := c.check(op, i); err != nil {
		return nil, err
	}
	rc, err := c.backend.Locate(i)
	if err != nil {
		c.log().Debug("record not located", "op", op, "index", i, "error", err)
		return nil, &RecordError{Op: op, Index: i, Err: err}
	}
	return rc, nil
}

// FetchRecord decodes record i with the codec's DecodeFull.
//
// Indexes outside [0, Count()) fail with ErrIndexOutOfRange before any
// I/O; for archives the error also matches ErrNotFound. The record stream
// is closed on every path, including codec errors and panics. Codec
// failures are reported as ErrDecode and do not affect other records.
func (c *Container[R]) FetchRecord(i int) (R, error) {
	var zero R
	rc, err := c.locate("fetch", i)
	if err != nil {
		return zero, err
	}
	defer rc.Close()

	rec, err := decode(c.codec.DecodeFull, rc)
	if err != nil {
		return zero, &RecordError{Op: "fetch", Index: i, Err: fmt.Errorf("%w: %w", ErrDecode, err)}
	}
	return rec, nil
}

// ProbeType returns the type code of record i using the codec's
// DecodeHeader, without decoding the full record. Validation and stream
// handling match FetchRecord; header failures are reported as
// ErrInvalidRecord.
func (c *Container[R]) ProbeType(i int) (TypeCode, error) {
	rc, err := c.locate("probe", i)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	code, err := decode(c.codec.DecodeHeader, rc)
	if err != nil {
		return "", &RecordError{Op: "probe", Index: i, Err: fmt.Errorf("%w: %w", ErrInvalidRecord, err)}
	}
	return code, nil
}

// FetchRaw returns the stored bytes of record i without decoding them.
// For flat containers these are the bytes from the start boundary through
// the end boundary; for archives, the entry's uncompressed content.
func (c *Container[R]) FetchRaw(i int) ([]byte, error) {
	rc, err := c.locate("raw", i)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := sizing.ReadAllWithLimit(rc, c.cfg.maxRecordSize, ErrSizeOverflow)
	if err != nil {
		if !errors.Is(err, ErrSizeOverflow) {
			err = fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return nil, &RecordError{Op: "raw", Index: i, Err: err}
	}
	return data, nil
}

// Records returns an iterator over all records in document order.
// A failed record yields its error and iteration continues.
func (c *Container[R]) Records() iter.Seq2[R, error] {
	return func(yield func(R, error) bool) {
		for i := range c.Count() {
			if !yield(c.FetchRecord(i)) {
				return
			}
		}
	}
}

// Close releases the container. It is safe to call more than once, and on
// a nil container.
func (c *Container[R]) Close() error {
	if c == nil || c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if c.backend != nil {
		errs = append(errs, c.backend.Close())
	}
	if c.file != nil {
		errs = append(errs, c.file.Close())
		c.file = nil
	}
	return errors.Join(errs...)
}

// decode calls a codec function, converting a panic into an error.
func decode[T any](fn func(io.Reader) (T, error), r io.Reader) (v T, err error) {
	defer func() {
		if p := recover(); p != nil {
			var zero T
			v, err = zero, fmt.Errorf("codec panic: %v", p)
		}
	}()
	return fn(r)
}
