package scan

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, input, tag string) []Event {
	t.Helper()
	s := New(strings.NewReader(input), tag)
	var events []Event
	for {
		ev, err := s.Next()
		require.NoError(t, err)
		events = append(events, ev)
		if ev.Kind == KindEOF {
			return events
		}
	}
}

func boundaries(events []Event) []Event {
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		if ev.Kind != KindOther {
			out = append(out, ev)
		}
	}
	return out
}

func TestScannerBoundaries(t *testing.T) {
	t.Parallel()

	input := `<?xml version="1.0"?><DataSets><DataSet TITLE="a">x</DataSet></DataSets>`
	got := boundaries(collect(t, input, "DataSet"))

	require.Len(t, got, 3)
	assert.Equal(t, KindStart, got[0].Kind)
	assert.Equal(t, int64(strings.Index(input, "<DataSet ")), got[0].Offset)
	assert.Equal(t, KindEnd, got[1].Kind)
	endOff := int64(strings.Index(input, "</DataSet>"))
	assert.Equal(t, endOff, got[1].Offset)
	assert.Equal(t, endOff+int64(len("</DataSet>")), got[1].End)
	assert.Equal(t, KindEOF, got[2].Kind)
	assert.Equal(t, int64(len(input)), got[2].Offset)
}

func TestScannerIgnoresLookalikes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"shared prefix with attributes", `<DataSetList name="x">`},
		{"shared prefix closer", `</DataSetList>`},
		{"no attributes", `<DataSet>`},
		{"newline instead of space", "<DataSet\nTITLE=\"a\">"},
		{"different case", `<dataset TITLE="a"></dataset>`},
		{"closing with space", `</DataSet >`},
		{"long tag", `<SomethingVeryLongIndeed attr="1"></SomethingVeryLongIndeed>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := boundaries(collect(t, tt.input, "DataSet"))
			require.Len(t, got, 1)
			assert.Equal(t, KindEOF, got[0].Kind)
		})
	}
}

func TestScannerRecoversAfterNoise(t *testing.T) {
	t.Parallel()

	// An abandoned run interrupted by '<' must not hide the boundary that follows.
	input := `<<DataSet a="1"><Data <DataSet</DataSet>`
	got := boundaries(collect(t, input, "DataSet"))

	require.Len(t, got, 3)
	assert.Equal(t, KindStart, got[0].Kind)
	assert.Equal(t, int64(1), got[0].Offset)
	assert.Equal(t, KindEnd, got[1].Kind)
	assert.Equal(t, int64(strings.Index(input, "</DataSet>")), got[1].Offset)
	assert.Equal(t, KindEOF, got[2].Kind)
}

func TestScannerOtherEvents(t *testing.T) {
	t.Parallel()

	events := collect(t, `<a><b/></a>`, "DataSet")
	kinds := make([]Kind, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []Kind{KindOther, KindOther, KindOther, KindEOF}, kinds)
}

func TestScannerCustomTag(t *testing.T) {
	t.Parallel()

	got := boundaries(collect(t, `<Run id="1"></Run><DataSet x="1"></DataSet>`, "Run"))
	require.Len(t, got, 3)
	assert.Equal(t, KindStart, got[0].Kind)
	assert.Equal(t, KindEnd, got[1].Kind)
	assert.Equal(t, KindEOF, got[2].Kind)
}

func TestScannerOneByteReader(t *testing.T) {
	t.Parallel()

	input := `<DataSet a="1"></DataSet>`
	s := New(iotest.OneByteReader(strings.NewReader(input)), "DataSet")
	ev, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, KindStart, ev.Kind)
	ev, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, KindEnd, ev.Kind)
	assert.Equal(t, int64(len(input)), ev.End)
}

func TestScannerReadError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	s := New(io.MultiReader(strings.NewReader("<Data"), iotest.ErrReader(boom)), "DataSet")
	_, err := s.Next()
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int64(5), s.Offset())
}
