package backend

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"github.com/meigma/dsarchive/internal/rectype"
)

// Archive serves records from a zip archive holding one entry per record.
//
// Record i is the entry literally named prefix+i (decimal, no separator).
// Entries with any other name, such as a header entry, are not records.
type Archive struct {
	zr     *zip.Reader
	prefix string
	files  map[int]*zip.File
	other  []string
	dups   []string
}

// OpenArchive reads the archive directory of src.
func OpenArchive(src Source, prefix string) (*Archive, error) {
	zr, err := zip.NewReader(src, src.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: read archive directory: %w", rectype.ErrSourceUnavailable, err)
	}
	zr.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())
	zr.RegisterDecompressor(zstd.ZipMethodPKWare, zstd.ZipDecompressor())

	a := &Archive{
		zr:     zr,
		prefix: prefix,
		files:  make(map[int]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		n, ok := RecordNumber(prefix, f.Name)
		if !ok {
			a.other = append(a.other, f.Name)
			continue
		}
		if _, dup := a.files[n]; dup {
			a.dups = append(a.dups, f.Name)
			continue
		}
		a.files[n] = f
	}
	return a, nil
}

// RecordNumber parses name as prefix followed by a canonical decimal
// number and reports whether it names a record entry.
func RecordNumber(prefix, name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, prefix)
	if !ok || rest == "" {
		return 0, false
	}
	for _, c := range rest {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(rest)
	if err != nil || strconv.Itoa(n) != rest {
		return 0, false
	}
	return n, true
}

// Len returns the number of record entries in the directory.
func (a *Archive) Len() int {
	return len(a.files)
}

// Name returns the entry name of record i.
func (a *Archive) Name(i int) string {
	return a.prefix + strconv.Itoa(i)
}

// Other returns the names of entries that are not records.
func (a *Archive) Other() []string {
	return a.other
}

// Duplicates returns the names of record entries that repeat an earlier
// entry of the same name. Only the first of each name is served.
func (a *Archive) Duplicates() []string {
	return a.dups
}

// Locate opens the entry of record i positioned at its first byte.
func (a *Archive) Locate(i int) (io.ReadCloser, error) {
	f, ok := a.files[i]
	if !ok {
		return nil, fmt.Errorf("%w: no entry %q", rectype.ErrNotFound, a.Name(i))
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open entry %q: %w", rectype.ErrNotFound, f.Name, err)
	}
	return rc, nil
}

// Close releases backend resources. The source is owned by the caller.
func (a *Archive) Close() error {
	return nil
}
