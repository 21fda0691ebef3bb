package dsarchive

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/dsarchive/internal/testutil"
)

func sampleRecords() []string {
	return []string{
		rec("A"),
		testutil.Record("DataSet", "B", strings.Repeat("<Data>1 2 3</Data>", 200)),
		rec("C"),
	}
}

func writeContainer(t *testing.T, records []string, opts ...WriterOption) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, opts...)
	require.NoError(t, err)
	for _, r := range records {
		require.NoError(t, w.Add([]byte(r)))
	}
	assert.Equal(t, len(records), w.Count())
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestWriterFlatRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []Compression{
		CompressionNone,
		CompressionGzip,
		CompressionZstd,
		CompressionS2,
		CompressionLZ4,
	}
	for _, comp := range tests {
		t.Run(comp.String(), func(t *testing.T) {
			t.Parallel()

			records := sampleRecords()
			data := writeContainer(t, records, WriteWithCompression(comp))

			c, err := New[string](BytesSource(data), &testCodec{})
			require.NoError(t, err)
			defer c.Close()

			assert.Equal(t, ModeFlat, c.Mode())
			assert.Equal(t, comp, c.Compression())
			require.Equal(t, len(records), c.Count())
			for i, want := range records {
				raw, err := c.FetchRaw(i)
				require.NoError(t, err)
				assert.Equal(t, want, string(raw), "record %d", i)
			}
		})
	}
}

func TestWriterArchiveRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []Compression{CompressionNone, CompressionGzip, CompressionZstd}
	for _, comp := range tests {
		t.Run(comp.String(), func(t *testing.T) {
			t.Parallel()

			records := sampleRecords()
			data := writeContainer(t, records,
				WriteWithMode(ModeArchive),
				WriteWithCompression(comp),
				WriteWithHeader("", []byte("<Header/>")),
			)

			c, err := New[string](BytesSource(data), &testCodec{})
			require.NoError(t, err)
			defer c.Close()

			assert.Equal(t, ModeArchive, c.Mode())
			require.Equal(t, len(records), c.Count())
			for i, want := range records {
				got, err := c.FetchRecord(i)
				require.NoError(t, err)
				assert.Equal(t, want, got, "record %d", i)
			}
			assert.Equal(t, []string{DefaultHeaderName}, c.archive.Other())
		})
	}
}

func TestWriterArchiveUnsupportedCompression(t *testing.T) {
	t.Parallel()

	for _, comp := range []Compression{CompressionS2, CompressionLZ4} {
		_, err := NewWriter(&bytes.Buffer{}, WriteWithMode(ModeArchive), WriteWithCompression(comp))
		require.Error(t, err, comp.String())
	}
}

func TestWriterFlatLayout(t *testing.T) {
	t.Parallel()

	data := writeContainer(t, []string{rec("A")}, WriteWithHeader("", []byte("<Header>run 12</Header>\n")))
	want := "<?xml version=\"1.0\" encoding=\"utf-8\"?>\n<DataSets>\n<Header>run 12</Header>\n" +
		rec("A") + "\n</DataSets>\n"
	assert.Equal(t, want, string(data))
}

func TestWriterCustomNames(t *testing.T) {
	t.Parallel()

	records := []string{`<Run id="1"></Run>`, `<Run id="2"></Run>`}
	flat := writeContainer(t, records, WriteWithRecordTag("Run"))
	assert.True(t, bytes.Contains(flat, []byte("<Runs>\n")))

	c, err := New[string](BytesSource(flat), &testCodec{}, WithRecordTag("Run"))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Count())

	archive := writeContainer(t, records, WriteWithMode(ModeArchive), WriteWithEntryPrefix("Run"))
	a, err := New[string](BytesSource(archive), &testCodec{}, WithEntryPrefix("Run"))
	require.NoError(t, err)
	require.Equal(t, 2, a.Count())
	assert.Equal(t, "Run1", a.archive.Name(1))
}

func TestWriterRejectsMalformedRecords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		record string
	}{
		{"empty", ""},
		{"no boundary", "<Other/>"},
		{"leading text", " " + rec("A")},
		{"trailing text", rec("A") + " "},
		{"unclosed", `<DataSet TITLE="A">`},
		{"nested", `<DataSet a="1"><DataSet a="2"></DataSet></DataSet>`},
		{"two records", rec("A") + rec("B")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			w, err := NewWriter(&buf)
			require.NoError(t, err)
			before := buf.Len()

			err = w.Add([]byte(tt.record))
			require.ErrorIs(t, err, ErrStructure)
			assert.Equal(t, before, buf.Len(), "nothing written")
			assert.Equal(t, 0, w.Count())

			// A rejected record does not poison the writer.
			require.NoError(t, w.Add([]byte(rec("ok"))))
			require.NoError(t, w.Close())
		})
	}
}

func TestWriterRejectsHeaderWithBoundary(t *testing.T) {
	t.Parallel()

	_, err := NewWriter(&bytes.Buffer{}, WriteWithHeader("", []byte(rec("A"))))
	require.ErrorIs(t, err, ErrStructure)

	// Archives keep the header in its own entry, so anything goes.
	_, err = NewWriter(&bytes.Buffer{}, WriteWithMode(ModeArchive), WriteWithHeader("", []byte(rec("A"))))
	require.NoError(t, err)
}

func TestWriterRejectsHeaderNamedLikeRecord(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"Entry0", "Entry7"} {
		_, err := NewWriter(&bytes.Buffer{}, WriteWithMode(ModeArchive), WriteWithHeader(name, []byte("hdr")))
		require.Error(t, err, name)
	}
	_, err := NewWriter(&bytes.Buffer{},
		WriteWithMode(ModeArchive), WriteWithEntryPrefix("Run"), WriteWithHeader("Run0", []byte("hdr")))
	require.Error(t, err)

	// Names outside the record scheme are fine and do not shadow records.
	data := writeContainer(t, []string{rec("A")},
		WriteWithMode(ModeArchive), WriteWithHeader("Entry00", []byte("hdr")))
	c, err := New[string](BytesSource(data), &testCodec{})
	require.NoError(t, err)
	require.Equal(t, 1, c.Count())
	raw, err := c.FetchRaw(0)
	require.NoError(t, err)
	assert.Equal(t, rec("A"), string(raw))
	assert.Equal(t, []string{"Entry00"}, c.archive.Other())
}

func TestWriterRejectsInvalidTag(t *testing.T) {
	t.Parallel()

	for _, tag := range []string{"", "Data Set", "<x"} {
		_, err := NewWriter(&bytes.Buffer{}, WriteWithRecordTag(tag))
		require.ErrorIs(t, err, ErrInvalidTag, "%q", tag)
	}
}

func TestWriterClose(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	require.ErrorIs(t, w.Add([]byte(rec("A"))), ErrWriterClosed)

	c, err := New[string](BytesSource(buf.Bytes()), &testCodec{})
	require.NoError(t, err)
	assert.Equal(t, 0, c.Count())
}
