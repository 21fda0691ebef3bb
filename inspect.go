package dsarchive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/opencontainers/go-digest"

	"github.com/meigma/dsarchive/internal/batch"
	"github.com/meigma/dsarchive/internal/sizing"
)

// RecordInfo describes the stored bytes of one record.
type RecordInfo struct {
	// Index is the record number.
	Index int

	// Name is the archive entry name. Empty for flat containers.
	Name string

	// Offset is the start boundary offset in the (decompressed) flat
	// stream, or -1 for archives.
	Offset int64

	// Size is the number of stored bytes, as returned by FetchRaw.
	Size int64

	// Closed reports whether the record's end boundary was seen.
	// Archive records are always closed.
	Closed bool

	// Digest is the SHA-256 content digest of the stored bytes.
	Digest digest.Digest

	// Checksum is the xxHash64 of the stored bytes.
	Checksum uint64
}

// Inspect streams record i once and reports its size and content hashes
// without decoding it. The WithMaxRecordSize limit applies.
func (c *Container[R]) Inspect(i int) (RecordInfo, error) {
	rc, err := c.locate("inspect", i)
	if err != nil {
		return RecordInfo{}, err
	}
	defer rc.Close()

	info := RecordInfo{Index: i, Offset: -1, Closed: true}
	if c.archive != nil {
		info.Name = c.archive.Name(i)
	}
	if c.flat != nil {
		if e, ok := c.flat.Index().Entry(i); ok {
			info.Offset = e.Start
			info.Closed = e.Closed()
		}
	}

	digester := digest.Canonical.Digester()
	sum := xxhash.New()
	var r io.Reader = rc
	if limit := c.cfg.maxRecordSize; limit > 0 {
		if n, err := sizing.ToInt64(limit, ErrSizeOverflow); err == nil && n < math.MaxInt64 {
			r = io.LimitReader(rc, n+1)
		}
	}
	n, err := io.Copy(io.MultiWriter(digester.Hash(), sum), r)
	if err != nil {
		return RecordInfo{}, &RecordError{Op: "inspect", Index: i, Err: fmt.Errorf("%w: %w", ErrDecode, err)}
	}
	if limit := c.cfg.maxRecordSize; limit > 0 && uint64(n) > limit {
		return RecordInfo{}, &RecordError{Op: "inspect", Index: i, Err: ErrSizeOverflow}
	}

	info.Size = n
	info.Digest = digester.Digest()
	info.Checksum = sum.Sum64()
	return info, nil
}

// InspectAll inspects every record, running up to workers inspections at
// once. Zero workers uses GOMAXPROCS; a negative value inspects serially.
// The first failure cancels the rest and is returned.
func (c *Container[R]) InspectAll(ctx context.Context, workers int) ([]RecordInfo, error) {
	if err := c.check("inspect", 0); err != nil && !errors.Is(err, ErrIndexOutOfRange) {
		return nil, err
	}
	infos := make([]RecordInfo, c.Count())
	runner := batch.New(batch.WithWorkers(workers), batch.WithLogger(c.cfg.logger))
	err := runner.Run(ctx, len(infos), func(_ context.Context, i int) error {
		info, err := c.Inspect(i)
		if err != nil {
			return err
		}
		infos[i] = info
		return nil
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// Verify checks that the stored bytes of record i match want.
// want may be a go-digest string or produced by Inspect.
func (c *Container[R]) Verify(i int, want digest.Digest) error {
	if err := want.Validate(); err != nil {
		return fmt.Errorf("verify record %d: %w", i, err)
	}
	rc, err := c.locate("verify", i)
	if err != nil {
		return err
	}
	defer rc.Close()

	verifier := want.Verifier()
	if _, err := io.Copy(verifier, rc); err != nil {
		return &RecordError{Op: "verify", Index: i, Err: fmt.Errorf("%w: %w", ErrDecode, err)}
	}
	if !verifier.Verified() {
		return &RecordError{Op: "verify", Index: i, Err: ErrDigestMismatch}
	}
	return nil
}
