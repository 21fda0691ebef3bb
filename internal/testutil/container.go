package testutil

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

// Record returns a minimal record element for tag with the given title and body.
func Record(tag, title, body string) string {
	return fmt.Sprintf(`<%s TITLE=%q>%s</%s>`, tag, title, body, tag)
}

// FlatStream joins records into a flat stream wrapped in a root element.
// It returns the stream and the start offset of every record.
func FlatStream(records ...string) ([]byte, []int64) {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n<DataSets>\n")
	offsets := make([]int64, 0, len(records))
	for _, r := range records {
		offsets = append(offsets, int64(b.Len()))
		b.WriteString(r)
		b.WriteString("\n")
	}
	b.WriteString("</DataSets>\n")
	return []byte(b.String()), offsets
}

// ArchiveEntry is one named zip entry.
type ArchiveEntry struct {
	Name   string
	Data   string
	Method uint16
}

// Archive builds a zip archive from entries in the given order.
func Archive(t testing.TB, entries ...ArchiveEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.Name, Method: e.Method})
		if err != nil {
			t.Fatalf("create entry %s: %v", e.Name, err)
		}
		if _, err := w.Write([]byte(e.Data)); err != nil {
			t.Fatalf("write entry %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
	return buf.Bytes()
}
