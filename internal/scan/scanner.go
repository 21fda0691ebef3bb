// Package scan recognises record boundary tags in a byte stream.
//
// The scanner is not an XML tokenizer. It tracks only the bytes of a `<...>`
// run while they can still spell one of two fixed literals: the start
// boundary `<Tag ` (the name followed by the space that introduces its
// attributes) and the end boundary `</Tag>`. Any other run, including tag
// names that merely share a prefix such as `<TagList>`, is reported as
// [KindOther] and leaves the scanner ready for the next `<`.
package scan

import (
	"bufio"
	"bytes"
	"io"
)

// Kind classifies a scanner event.
type Kind uint8

const (
	KindOther Kind = iota
	KindStart
	KindEnd
	KindEOF
)

// String returns the event kind name.
func (k Kind) String() string {
	switch k {
	case KindOther:
		return "other"
	case KindStart:
		return "start"
	case KindEnd:
		return "end"
	case KindEOF:
		return "eof"
	default:
		return "unknown"
	}
}

// Event is a single boundary observation.
type Event struct {
	Kind Kind

	// Offset is the stream offset of the `<` that opened the run.
	// For KindEOF it is the total number of bytes consumed.
	Offset int64

	// End is the offset just past the last byte that decided the event.
	// For KindEnd this is the first byte after the closing `>`.
	End int64
}

// Scanner produces boundary events from a byte stream.
// A Scanner holds per-stream state and must not be shared between streams.
type Scanner struct {
	r      io.ByteReader
	start  []byte
	end    []byte
	buf    []byte
	inRun  bool
	runOff int64
	off    int64
}

// New returns a Scanner for boundary tags named tag.
func New(r io.Reader, tag string) *Scanner {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReaderSize(r, 64<<10)
	}
	start := []byte("<" + tag + " ")
	end := []byte("</" + tag + ">")
	return &Scanner{
		r:     br,
		start: start,
		end:   end,
		buf:   make([]byte, 0, max(len(start), len(end))),
	}
}

// Offset returns the number of bytes consumed so far.
func (s *Scanner) Offset() int64 {
	return s.off
}

// Next returns the next event. At end of input it returns a KindEOF event
// and a nil error; read errors other than io.EOF are returned as is.
func (s *Scanner) Next() (Event, error) {
	for {
		c, err := s.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return Event{Kind: KindEOF, Offset: s.off, End: s.off}, nil
			}
			return Event{}, err
		}
		off := s.off
		s.off++

		if c == '<' {
			abandoned, prev := s.inRun, s.runOff
			s.buf = append(s.buf[:0], c)
			s.inRun = true
			s.runOff = off
			if abandoned {
				return Event{Kind: KindOther, Offset: prev, End: off}, nil
			}
			continue
		}
		if !s.inRun {
			continue
		}

		s.buf = append(s.buf, c)
		switch {
		case bytes.Equal(s.buf, s.start):
			s.inRun = false
			return Event{Kind: KindStart, Offset: s.runOff, End: s.off}, nil
		case bytes.Equal(s.buf, s.end):
			s.inRun = false
			return Event{Kind: KindEnd, Offset: s.runOff, End: s.off}, nil
		case c == '>', !s.candidate():
			s.inRun = false
			return Event{Kind: KindOther, Offset: s.runOff, End: s.off}, nil
		}
	}
}

// candidate reports whether the buffered run can still become a boundary.
// The check bounds the buffer to the longer of the two literals.
func (s *Scanner) candidate() bool {
	return bytes.HasPrefix(s.start, s.buf) || bytes.HasPrefix(s.end, s.buf)
}
