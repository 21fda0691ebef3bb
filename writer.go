package dsarchive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/meigma/dsarchive/internal/backend"
	"github.com/meigma/dsarchive/internal/rectype"
	"github.com/meigma/dsarchive/internal/scan"
)

// ErrWriterClosed is returned when adding to a closed Writer.
var ErrWriterClosed = errors.New("dsarchive: writer closed")

// Writer writes records into a new container.
//
// Records are written in the order they are added; record i of the result
// is the i-th record added. Close must be called to complete the container;
// it does not close the underlying writer.
type Writer struct {
	cfg    writerConfig
	stream io.Writer
	comp   io.WriteCloser
	zw     *zip.Writer
	method uint16
	count  int
	closed bool
	err    error
}

// NewWriter starts a container on w.
func NewWriter(w io.Writer, opts ...WriterOption) (*Writer, error) {
	cfg := newWriterConfig(opts)
	wr := &Writer{cfg: cfg}

	switch cfg.mode {
	case ModeFlat:
		if err := wr.startFlat(w); err != nil {
			return nil, err
		}
	case ModeArchive:
		if err := wr.startArchive(w); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("dsarchive: unknown mode %d", cfg.mode)
	}

	wr.log().Debug("writer started",
		"mode", cfg.mode.String(), "compression", cfg.compression.String())
	return wr, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (w *Writer) log() *slog.Logger {
	if w.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return w.cfg.logger
}

func (w *Writer) startFlat(dst io.Writer) error {
	if err := rectype.CheckTag(w.cfg.recordTag); err != nil {
		return err
	}

	var err error
	switch w.cfg.compression {
	case CompressionNone:
		w.stream = dst
	case CompressionGzip:
		w.comp = gzip.NewWriter(dst)
	case CompressionZstd:
		w.comp, err = zstd.NewWriter(dst, zstd.WithEncoderConcurrency(1))
		if err != nil {
			return fmt.Errorf("create zstd encoder: %w", err)
		}
	case CompressionS2:
		w.comp = s2.NewWriter(dst)
	case CompressionLZ4:
		w.comp = lz4.NewWriter(dst)
	default:
		return fmt.Errorf("dsarchive: unknown compression %d", w.cfg.compression)
	}
	if w.comp != nil {
		w.stream = w.comp
	}

	if len(w.cfg.header) > 0 {
		if err := checkInert(w.cfg.header, w.cfg.recordTag); err != nil {
			return err
		}
	}
	prolog := "<?xml version=\"1.0\" encoding=\"utf-8\"?>\n<" + w.rootTag() + ">\n"
	if _, err := io.WriteString(w.stream, prolog); err != nil {
		return err
	}
	if len(w.cfg.header) > 0 {
		if _, err := w.stream.Write(w.cfg.header); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) startArchive(dst io.Writer) error {
	switch w.cfg.compression {
	case CompressionNone:
		w.method = zip.Store
	case CompressionGzip:
		w.method = zip.Deflate
	case CompressionZstd:
		w.method = zstd.ZipMethodWinZip
	default:
		return fmt.Errorf("dsarchive: archives do not support %s compression", w.cfg.compression)
	}
	w.zw = zip.NewWriter(dst)
	w.zw.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor(zstd.WithEncoderConcurrency(1)))

	if w.cfg.headerName != "" {
		if _, ok := backend.RecordNumber(w.cfg.entryPrefix, w.cfg.headerName); ok {
			return fmt.Errorf("dsarchive: header entry %q collides with record entry names", w.cfg.headerName)
		}
		return w.writeEntry(w.cfg.headerName, w.cfg.header)
	}
	return nil
}

// rootTag is the element that encloses the records of a flat stream.
func (w *Writer) rootTag() string {
	return w.cfg.recordTag + "s"
}

// Add appends one record.
//
// In flat mode the record must be exactly one boundary pair: it starts with
// `<Tag ` and ends with `</Tag>`, with no other boundary tags inside.
// Anything else is rejected with ErrStructure and nothing is written.
// In archive mode the record is stored as is.
func (w *Writer) Add(record []byte) error {
	if w.closed {
		return ErrWriterClosed
	}
	if w.err != nil {
		return w.err
	}

	switch w.cfg.mode {
	case ModeFlat:
		if err := checkRecord(record, w.cfg.recordTag); err != nil {
			return fmt.Errorf("add record %d: %w", w.count, err)
		}
		if _, err := w.stream.Write(record); err != nil {
			w.err = err
			return err
		}
		if _, err := io.WriteString(w.stream, "\n"); err != nil {
			w.err = err
			return err
		}
	case ModeArchive:
		if err := w.writeEntry(w.cfg.entryPrefix+strconv.Itoa(w.count), record); err != nil {
			w.err = err
			return err
		}
	}
	w.count++
	return nil
}

func (w *Writer) writeEntry(name string, data []byte) error {
	ew, err := w.zw.CreateHeader(&zip.FileHeader{Name: name, Method: w.method})
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	if _, err := ew.Write(data); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	return nil
}

// Count returns the number of records added so far.
func (w *Writer) Count() int {
	return w.count
}

// Close completes the container. It is safe to call more than once.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.err != nil {
		return w.err
	}

	var err error
	switch w.cfg.mode {
	case ModeFlat:
		_, err = io.WriteString(w.stream, "</"+w.rootTag()+">\n")
		if w.comp != nil {
			err = errors.Join(err, w.comp.Close())
		}
	case ModeArchive:
		err = w.zw.Close()
	}
	if err != nil {
		return err
	}
	w.log().Info("container written", "mode", w.cfg.mode.String(), "records", w.count)
	return nil
}

// checkRecord verifies that record is a single, non-nested boundary pair
// that spans the whole slice.
func checkRecord(record []byte, tag string) error {
	sc := scan.New(bytes.NewReader(record), tag)
	starts, ends := 0, 0
	var lastEnd int64 = -1
	for {
		ev, err := sc.Next()
		if err != nil {
			return err
		}
		switch ev.Kind {
		case scan.KindStart:
			if ev.Offset != 0 {
				if starts > 0 {
					return fmt.Errorf("%w: nested start boundary at offset %d", ErrStructure, ev.Offset)
				}
				return fmt.Errorf("%w: record does not begin with <%s ", ErrStructure, tag)
			}
			starts++
		case scan.KindEnd:
			ends++
			lastEnd = ev.End
		case scan.KindOther:
		case scan.KindEOF:
			switch {
			case starts == 0:
				return fmt.Errorf("%w: record does not begin with <%s ", ErrStructure, tag)
			case ends != 1 || lastEnd != int64(len(record)):
				return fmt.Errorf("%w: record does not end with a single </%s>", ErrStructure, tag)
			}
			return nil
		}
	}
}

// checkInert verifies that data contains no boundary tags.
func checkInert(data []byte, tag string) error {
	sc := scan.New(bytes.NewReader(data), tag)
	for {
		ev, err := sc.Next()
		if err != nil {
			return err
		}
		switch ev.Kind {
		case scan.KindStart, scan.KindEnd:
			return fmt.Errorf("%w: header contains a boundary tag at offset %d", ErrStructure, ev.Offset)
		case scan.KindEOF:
			return nil
		case scan.KindOther:
		}
	}
}
