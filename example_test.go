package dsarchive_test

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/dsarchive"
	"github.com/meigma/dsarchive/codec/dataset"
)

func newRun(title string, typ dsarchive.TypeCode, group int) *dataset.DataSet {
	ds := &dataset.DataSet{
		Title:  title,
		XUnits: "us",
		XLabel: "time-of-flight",
		YUnits: "counts",
		YLabel: "intensity",
		Data: []dataset.Spectrum{{
			GroupID: group,
			X:       []float64{0, 1, 2, 3},
			Y:       []float64{4, 7, 2},
		}},
	}
	ds.SetAttribute(dataset.TypeAttribute, string(typ))
	return ds
}

func writeRuns(t testing.TB, opts []dsarchive.WriterOption, runs ...*dataset.DataSet) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := dsarchive.NewWriter(&buf, opts...)
	require.NoError(t, err)
	for _, ds := range runs {
		data, err := dataset.Codec{}.Encode(ds)
		require.NoError(t, err)
		require.NoError(t, w.Add(data))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDataSetRoundTrip(t *testing.T) {
	t.Parallel()

	runs := []*dataset.DataSet{
		newRun("monitor", dataset.TypeMonitor, 1),
		newRun("sample", dataset.TypeSample, 2),
		newRun("pulse", dataset.TypePulseHeight, 3),
	}

	layouts := map[string][]dsarchive.WriterOption{
		"flat":         nil,
		"flat zstd":    {dsarchive.WriteWithCompression(dsarchive.CompressionZstd)},
		"archive":      {dsarchive.WriteWithMode(dsarchive.ModeArchive)},
		"archive gzip": {dsarchive.WriteWithMode(dsarchive.ModeArchive), dsarchive.WriteWithCompression(dsarchive.CompressionGzip)},
	}
	for name, opts := range layouts {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			data := writeRuns(t, opts, runs...)
			c, err := dsarchive.New[*dataset.DataSet](dsarchive.BytesSource(data), dataset.Codec{})
			require.NoError(t, err)
			defer c.Close()

			require.Equal(t, len(runs), c.Count())
			for i, want := range runs {
				code, err := c.ProbeType(i)
				require.NoError(t, err)
				assert.Equal(t, want.Type(), code)

				got, err := c.FetchRecord(i)
				require.NoError(t, err)
				assert.Equal(t, want.Title, got.Title)
				assert.Equal(t, want.Data, got.Data)
				assert.Equal(t, "1", got.Version)
			}
		})
	}
}

func TestDataSetFileWithNoise(t *testing.T) {
	t.Parallel()

	rec, err := dataset.Codec{}.Encode(newRun("sample", dataset.TypeSample, 7))
	require.NoError(t, err)

	// Lookalike tags and comments between records are not boundaries.
	var buf bytes.Buffer
	buf.WriteString("<?xml version=\"1.0\"?>\n<DataSets>\n<DataSetList count=\"2\"/>\n")
	buf.Write(rec)
	buf.WriteString("\n<!-- <DataSetX> -->\n")
	buf.Write(rec)
	buf.WriteString("\n</DataSets>\n")

	path := filepath.Join(t.TempDir(), "runs.xml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	c, err := dsarchive.Open[*dataset.DataSet](path, dataset.Codec{})
	require.NoError(t, err)
	defer c.Close()

	require.Equal(t, 2, c.Count())
	for ds, err := range c.Records() {
		require.NoError(t, err)
		assert.Equal(t, 7, ds.Data[0].GroupID)
	}
}

func Example() {
	var buf bytes.Buffer
	w, err := dsarchive.NewWriter(&buf, dsarchive.WriteWithCompression(dsarchive.CompressionGzip))
	if err != nil {
		log.Fatal(err)
	}
	for _, title := range []string{"monitor 1", "sample 1"} {
		ds := &dataset.DataSet{Title: title}
		ds.SetAttribute(dataset.TypeAttribute, string(dataset.TypeSample))
		data, err := dataset.Codec{}.Encode(ds)
		if err != nil {
			log.Fatal(err)
		}
		if err := w.Add(data); err != nil {
			log.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		log.Fatal(err)
	}

	c, err := dsarchive.New[*dataset.DataSet](dsarchive.BytesSource(buf.Bytes()), dataset.Codec{})
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	ds, err := c.FetchRecord(1)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(c.Count(), c.Compression(), ds.Title)
	// Output: 2 gzip sample 1
}
