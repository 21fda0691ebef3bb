package dsarchive

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/dsarchive/internal/testutil"
)

func TestInspectFlat(t *testing.T) {
	t.Parallel()

	records := []string{rec("A"), rec("B")}
	data, offsets := testutil.FlatStream(records...)
	c, _, codec := openFlat(t, data)

	for i, r := range records {
		info, err := c.Inspect(i)
		require.NoError(t, err)
		assert.Equal(t, i, info.Index)
		assert.Empty(t, info.Name)
		assert.Equal(t, offsets[i], info.Offset)
		assert.Equal(t, int64(len(r)), info.Size)
		assert.True(t, info.Closed)
		assert.Equal(t, digest.FromString(r), info.Digest)
		assert.Equal(t, xxhash.Sum64String(r), info.Checksum)
	}
	assert.Zero(t, codec.fullCalls)
}

func TestInspectUnclosedRecord(t *testing.T) {
	t.Parallel()

	tail := `<DataSet TITLE="B"><Data>`
	c, _, _ := openFlat(t, []byte(rec("A")+tail))

	info, err := c.Inspect(1)
	require.NoError(t, err)
	assert.False(t, info.Closed)
	assert.Equal(t, int64(len(tail)), info.Size)
}

func TestInspectArchive(t *testing.T) {
	t.Parallel()

	data := testutil.Archive(t,
		testutil.ArchiveEntry{Name: "Header", Data: "<Header/>"},
		testutil.ArchiveEntry{Name: "Entry0", Data: rec("A")},
	)
	c, err := New[string](BytesSource(data), &testCodec{})
	require.NoError(t, err)

	info, err := c.Inspect(0)
	require.NoError(t, err)
	assert.Equal(t, "Entry0", info.Name)
	assert.Equal(t, int64(-1), info.Offset)
	assert.True(t, info.Closed)
	assert.Equal(t, digest.FromString(rec("A")), info.Digest)
}

func TestInspectSizeLimit(t *testing.T) {
	t.Parallel()

	data, _ := testutil.FlatStream(rec("A"))
	c, _, _ := openFlat(t, data, WithMaxRecordSize(8))

	_, err := c.Inspect(0)
	require.ErrorIs(t, err, ErrSizeOverflow)
}

func TestVerify(t *testing.T) {
	t.Parallel()

	data, _ := testutil.FlatStream(rec("A"), rec("B"))
	c, _, _ := openFlat(t, data)

	info, err := c.Inspect(1)
	require.NoError(t, err)
	require.NoError(t, c.Verify(1, info.Digest))
	require.NoError(t, c.Verify(0, digest.FromString(rec("A"))))

	err = c.Verify(0, info.Digest)
	require.ErrorIs(t, err, ErrDigestMismatch)
	var recErr *RecordError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, "verify", recErr.Op)

	require.Error(t, c.Verify(0, digest.Digest("not-a-digest")))
	require.ErrorIs(t, c.Verify(5, info.Digest), ErrIndexOutOfRange)
}

func TestInspectAll(t *testing.T) {
	t.Parallel()

	records := make([]string, 40)
	for i := range records {
		records[i] = testutil.Record("DataSet", strconv.Itoa(i), strings.Repeat("y", i))
	}
	for _, comp := range []Compression{CompressionNone, CompressionZstd} {
		data := writeContainer(t, records, WriteWithCompression(comp))
		c, err := New[string](BytesSource(data), &testCodec{})
		require.NoError(t, err)

		for _, workers := range []int{-1, 0, 8} {
			infos, err := c.InspectAll(context.Background(), workers)
			require.NoError(t, err)
			require.Len(t, infos, len(records))
			for i, info := range infos {
				assert.Equal(t, i, info.Index)
				assert.Equal(t, digest.FromString(records[i]), info.Digest)
			}
		}
	}
}

func TestInspectAllErrors(t *testing.T) {
	t.Parallel()

	empty, _, _ := openFlat(t, nil)
	infos, err := empty.InspectAll(context.Background(), 4)
	require.NoError(t, err)
	assert.Empty(t, infos)

	data, _ := testutil.FlatStream(rec("A"), rec("B"))
	c, _, _ := openFlat(t, data, WithMaxRecordSize(4))
	_, err = c.InspectAll(context.Background(), 2)
	require.ErrorIs(t, err, ErrSizeOverflow)

	require.NoError(t, c.Close())
	_, err = c.InspectAll(context.Background(), 2)
	require.ErrorIs(t, err, ErrClosed)
}
