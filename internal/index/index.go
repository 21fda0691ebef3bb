package index

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/meigma/dsarchive/internal/rectype"
	"github.com/meigma/dsarchive/internal/scan"
)

// Entry locates one record in a flat stream.
type Entry struct {
	// Start is the offset of the `<` of the record's start boundary.
	Start int64

	// End is the offset just past the record's end boundary, or -1 when the
	// stream ended before the end boundary was seen.
	End int64
}

// Closed reports whether the end boundary of the record was seen.
func (e Entry) Closed() bool {
	return e.End >= 0
}

// Index is the ordered set of record locations of a flat stream.
type Index struct {
	entries []Entry
	scanned int64
}

// Len returns the number of records in the index.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Entry returns the location of record i.
func (idx *Index) Entry(i int) (Entry, bool) {
	if i < 0 || i >= len(idx.entries) {
		return Entry{}, false
	}
	return idx.entries[i], true
}

// Scanned returns the number of stream bytes consumed while building the index.
func (idx *Index) Scanned() int64 {
	return idx.scanned
}

// Entries returns an iterator over all record locations in document order.
func (idx *Index) Entries() iter.Seq2[int, Entry] {
	return func(yield func(int, Entry) bool) {
		for i, e := range idx.entries {
			if !yield(i, e) {
				return
			}
		}
	}
}

// Builder builds an Index from a flat stream.
type Builder struct {
	tag    string
	err    error
	policy rectype.NestingPolicy
	logger *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithPolicy sets how improperly nested start boundaries are handled.
func WithPolicy(p rectype.NestingPolicy) Option {
	return func(b *Builder) {
		b.policy = p
	}
}

// WithLogger sets the logger for indexing diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder returns a Builder for records bounded by tag.
// If tag is not an XML name, Build fails with rectype.ErrInvalidTag.
func NewBuilder(tag string, opts ...Option) *Builder {
	b := &Builder{tag: tag, err: rectype.CheckTag(tag)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// log returns the logger, falling back to a discard logger if nil.
func (b *Builder) log() *slog.Logger {
	if b.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.logger
}

// Build scans r to the end and returns the record index.
//
// A start boundary seen while a record is still open is a structural
// violation: under FailClosed Build returns an error wrapping
// rectype.ErrStructure, under FailOpenWithPartialIndex it stops and keeps
// only the records closed before the violation. Reaching the end of the
// stream inside a record is not an error; that record keeps End == -1.
// A stream cut short inside a compressed frame (io.ErrUnexpectedEOF) is
// handled the same way as a plain end of stream.
func (b *Builder) Build(r io.Reader) (*Index, error) {
	if b.err != nil {
		return nil, b.err
	}
	sc := scan.New(r, b.tag)
	entries := make([]Entry, 0, 64)
	inside := false

	for {
		ev, err := sc.Next()
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				b.log().Debug("stream truncated while indexing", "offset", sc.Offset(), "records", len(entries))
				return &Index{entries: entries, scanned: sc.Offset()}, nil
			}
			return nil, fmt.Errorf("%w: read at offset %d: %w", rectype.ErrSourceUnavailable, sc.Offset(), err)
		}

		switch ev.Kind {
		case scan.KindStart:
			if inside {
				open := len(entries) - 1
				b.log().Warn("improper nesting of boundary tags",
					"offset", ev.Offset, "record", open, "policy", b.policy.String())
				if b.policy == rectype.FailOpenWithPartialIndex {
					return &Index{entries: entries[:open], scanned: sc.Offset()}, nil
				}
				return nil, fmt.Errorf("%w: start boundary at offset %d inside record %d",
					rectype.ErrStructure, ev.Offset, open)
			}
			entries = append(entries, Entry{Start: ev.Offset, End: -1})
			inside = true
		case scan.KindEnd:
			if !inside {
				b.log().Debug("ignoring end boundary outside a record", "offset", ev.Offset)
				continue
			}
			entries[len(entries)-1].End = ev.End
			inside = false
		case scan.KindEOF:
			return &Index{entries: entries, scanned: ev.Offset}, nil
		case scan.KindOther:
		}
	}
}
