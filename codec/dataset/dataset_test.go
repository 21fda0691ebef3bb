package dataset

import (
	"bytes"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *DataSet {
	ds := &DataSet{
		Title:  "GPPD run 12345",
		XUnits: "Time(us)",
		XLabel: "Time-of-flight",
		YUnits: "Counts",
		YLabel: "Scattering Intensity",
		Log:    []string{"loaded from runfile"},
		Data: []Spectrum{
			{GroupID: 1, X: []float64{0, 1.5, 3}, Y: []float64{10, 20}},
			{GroupID: 2, X: []float64{0, 2}, Y: []float64{7}, Errors: []float64{0.25}},
		},
	}
	ds.SetAttribute("Run Number", "12345")
	ds.SetAttribute(TypeAttribute, string(TypeSample))
	return ds
}

func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	var c Codec
	data, err := c.Encode(sample())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("<DataSet ")))
	assert.True(t, bytes.HasSuffix(data, []byte("</DataSet>")))

	got, err := c.DecodeFull(bytes.NewReader(data))
	require.NoError(t, err)
	want := sample()
	want.Version = "1"
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Version, got.Version)
	assert.Equal(t, want.Attributes, got.Attributes)
	assert.Equal(t, want.Log, got.Log)
	assert.Equal(t, want.Data, got.Data)
	assert.Equal(t, TypeSample, got.Type())
}

func TestEncodeAlwaysStartsWithBoundary(t *testing.T) {
	t.Parallel()

	data, err := Codec{}.Encode(&DataSet{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<DataSet "))
}

func TestDecodeHeader(t *testing.T) {
	t.Parallel()

	data, err := Codec{}.Encode(sample())
	require.NoError(t, err)

	code, err := Codec{}.DecodeHeader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, TypeSample, code)
}

func TestDecodeHeaderStopsEarly(t *testing.T) {
	t.Parallel()

	// Everything after the type attribute is garbage; a header read must not reach it.
	input := `<DataSet version="1" TITLE="m"><AttributeList>` +
		`<Attribute name="Run Number">1</Attribute>` +
		`<Attribute name="Data Set Type"> Monitor Data </Attribute>` +
		`<<<<not xml at all`
	code, err := Codec{}.DecodeHeader(iotest.OneByteReader(strings.NewReader(input)))
	require.NoError(t, err)
	assert.Equal(t, TypeMonitor, code)
}

func TestDecodeHeaderErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", ErrNotDataSet},
		{"other root", `<Run id="1"></Run>`, ErrNotDataSet},
		{"no attribute list", `<DataSet version="1"><DataList></DataList></DataSet>`, ErrNoType},
		{"no type attribute", `<DataSet version="1"><AttributeList><Attribute name="x">1</Attribute></AttributeList></DataSet>`, ErrNoType},
		{"empty element", `<DataSet version="1"></DataSet>`, ErrNoType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Codec{}.DecodeHeader(strings.NewReader(tt.input))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeFullTruncated(t *testing.T) {
	t.Parallel()

	data, err := Codec{}.Encode(sample())
	require.NoError(t, err)

	_, err = Codec{}.DecodeFull(bytes.NewReader(data[:len(data)/2]))
	require.Error(t, err)
}

func TestDecodeFullSkipsProlog(t *testing.T) {
	t.Parallel()

	input := "<?xml version=\"1.0\" encoding=\"utf-8\"?>\n<!-- saved -->\n" +
		`<DataSet version="1" TITLE="t"></DataSet>`
	ds, err := Codec{}.DecodeFull(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, "t", ds.Title)
	assert.Empty(t, ds.Type())
}

func TestSetAttributeReplaces(t *testing.T) {
	t.Parallel()

	var ds DataSet
	ds.SetAttribute("a", "1")
	ds.SetAttribute("a", "2")
	require.Len(t, ds.Attributes, 1)
	v, ok := ds.Attribute("a")
	assert.True(t, ok)
	assert.Equal(t, "2", v)
	_, ok = ds.Attribute("missing")
	assert.False(t, ok)
}
