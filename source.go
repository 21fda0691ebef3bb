package dsarchive

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/meigma/dsarchive/internal/rectype"
)

// ByteSource provides random access to container bytes.
//
// Implementations exist for local files, in-memory data and HTTP range
// requests (see the http subpackage). SourceID must return a stable
// identifier for the underlying content; it is used in log output.
type ByteSource interface {
	io.ReaderAt
	Size() int64
	SourceID() string
}

// fileSource wraps *os.File to implement ByteSource.
// os.File has ReadAt but not Size, so we cache the size at construction.
type fileSource struct {
	file     *os.File
	size     int64
	sourceID string
}

// newFileSource creates a fileSource from an open file.
func newFileSource(f *os.File) (*fileSource, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", f.Name(), err)
	}
	return &fileSource{file: f, size: info.Size(), sourceID: fileSourceID(f.Name(), info)}, nil
}

// ReadAt implements io.ReaderAt.
func (fs *fileSource) ReadAt(p []byte, off int64) (int, error) {
	return fs.file.ReadAt(p, off)
}

// Size returns the total size of the file.
func (fs *fileSource) Size() int64 {
	return fs.size
}

// SourceID returns a stable identifier for the file content.
func (fs *fileSource) SourceID() string {
	return fs.sourceID
}

func fileSourceID(path string, info os.FileInfo) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	return fmt.Sprintf("file:%s:%d:%d", absPath, info.Size(), info.ModTime().UnixNano())
}

// memSource is an in-memory ByteSource.
type memSource struct {
	*bytes.Reader
	sourceID string
}

func (m *memSource) SourceID() string {
	return m.sourceID
}

// BytesSource returns a ByteSource over data.
// The slice is retained; callers must not modify it afterwards.
func BytesSource(data []byte) ByteSource {
	sum := sha256.Sum256(data)
	return &memSource{
		Reader:   bytes.NewReader(data),
		sourceID: "mem:sha256:" + hex.EncodeToString(sum[:]),
	}
}

// DetectMode probes the leading bytes of src and reports its layout.
// Zip archives are ModeArchive; everything else, including an empty
// source, is ModeFlat.
func DetectMode(src ByteSource) (Mode, error) {
	head, err := readHead(src)
	if err != nil {
		return ModeAuto, err
	}
	return rectype.DetectMode(head), nil
}

// readHead reads the bytes used for layout and compression sniffing.
func readHead(src ByteSource) ([]byte, error) {
	head := make([]byte, min(int64(rectype.MagicLen), max(src.Size(), 0)))
	if len(head) == 0 {
		return head, nil
	}
	n, err := src.ReadAt(head, 0)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: read %s: %w", ErrSourceUnavailable, src.SourceID(), err)
	}
	return head[:n], nil
}

// Interface compliance.
var (
	_ ByteSource = (*fileSource)(nil)
	_ ByteSource = (*memSource)(nil)
)
