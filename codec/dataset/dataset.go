// Package dataset encodes and decodes DataSet records.
//
// A DataSet record is a single XML element:
//
//	<DataSet version="1" TITLE="..." X_UNITS="..." X_LABEL="..." Y_UNITS="..." Y_LABEL="...">
//	  <AttributeList><Attribute name="Data Set Type">Sample Data</Attribute>...</AttributeList>
//	  <OperationLog><Op>...</Op></OperationLog>
//	  <DataList><Data group_id="1"><x>..</x><y>..</y><e>..</e></Data>...</DataList>
//	</DataSet>
//
// [Codec] implements dsarchive.Codec for these records. Its DecodeHeader
// reads only as far as the "Data Set Type" attribute.
package dataset

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/meigma/dsarchive"
)

// Tag is the boundary tag name of DataSet records.
const Tag = "DataSet"

// TypeAttribute is the name of the attribute that carries the record type.
const TypeAttribute = "Data Set Type"

// Well-known record types.
const (
	TypeSample      dsarchive.TypeCode = "Sample Data"
	TypeMonitor     dsarchive.TypeCode = "Monitor Data"
	TypePulseHeight dsarchive.TypeCode = "Pulse Height"
	TypeInvalid     dsarchive.TypeCode = "Invalid Data Set"
)

var (
	// ErrNotDataSet is returned when the stream does not start with a DataSet element.
	ErrNotDataSet = errors.New("dataset: not a DataSet element")

	// ErrNoType is returned when the attribute list has no type attribute.
	ErrNoType = errors.New("dataset: no " + TypeAttribute + " attribute")
)

// DataSet is a decoded record.
type DataSet struct {
	XMLName    xml.Name    `xml:"DataSet"`
	Version    string      `xml:"version,attr"`
	Title      string      `xml:"TITLE,attr"`
	XUnits     string      `xml:"X_UNITS,attr,omitempty"`
	XLabel     string      `xml:"X_LABEL,attr,omitempty"`
	YUnits     string      `xml:"Y_UNITS,attr,omitempty"`
	YLabel     string      `xml:"Y_LABEL,attr,omitempty"`
	Attributes []Attribute `xml:"AttributeList>Attribute"`
	Log        []string    `xml:"OperationLog>Op"`
	Data       []Spectrum  `xml:"DataList>Data"`
}

// Attribute is a named string attribute.
type Attribute struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// Spectrum is one data block of a DataSet.
type Spectrum struct {
	GroupID int       `xml:"group_id,attr"`
	X       []float64 `xml:"x"`
	Y       []float64 `xml:"y"`
	Errors  []float64 `xml:"e,omitempty"`
}

// Attribute returns the value of the named attribute.
func (ds *DataSet) Attribute(name string) (string, bool) {
	for _, a := range ds.Attributes {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttribute sets the named attribute, replacing an existing value.
func (ds *DataSet) SetAttribute(name, value string) {
	for i := range ds.Attributes {
		if ds.Attributes[i].Name == name {
			ds.Attributes[i].Value = value
			return
		}
	}
	ds.Attributes = append(ds.Attributes, Attribute{Name: name, Value: value})
}

// Type returns the record type, or "" when it is not set.
func (ds *DataSet) Type() dsarchive.TypeCode {
	v, _ := ds.Attribute(TypeAttribute)
	return dsarchive.TypeCode(v)
}

// Codec implements dsarchive.Codec for DataSet records.
type Codec struct{}

var _ dsarchive.Codec[*DataSet] = Codec{}

// Encode returns the record bytes of ds.
// The result is suitable for dsarchive.Writer.Add.
func (Codec) Encode(ds *DataSet) ([]byte, error) {
	out := *ds
	if out.Version == "" {
		out.Version = "1"
	}
	data, err := xml.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("encode dataset %q: %w", ds.Title, err)
	}
	return data, nil
}

// DecodeFull decodes the first DataSet element of r.
func (Codec) DecodeFull(r io.Reader) (*DataSet, error) {
	d := xml.NewDecoder(r)
	start, err := rootElement(d)
	if err != nil {
		return nil, err
	}
	var ds DataSet
	if err := d.DecodeElement(&ds, &start); err != nil {
		return nil, err
	}
	return &ds, nil
}

// DecodeHeader returns the value of the "Data Set Type" attribute.
// It stops reading as soon as the attribute is found.
func (Codec) DecodeHeader(r io.Reader) (dsarchive.TypeCode, error) {
	d := xml.NewDecoder(r)
	if _, err := rootElement(d); err != nil {
		return "", err
	}

	for {
		tok, err := d.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "AttributeList" {
				// The attribute list precedes the other children.
				return "", ErrNoType
			}
			return typeFromAttributeList(d)
		case xml.EndElement:
			return "", ErrNoType
		}
	}
}

// typeFromAttributeList scans the children of an AttributeList element.
func typeFromAttributeList(d *xml.Decoder) (dsarchive.TypeCode, error) {
	for {
		tok, err := d.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "Attribute" && attr(t, "name") == TypeAttribute {
				var a Attribute
				if err := d.DecodeElement(&a, &t); err != nil {
					return "", err
				}
				return dsarchive.TypeCode(strings.TrimSpace(a.Value)), nil
			}
			if err := d.Skip(); err != nil {
				return "", err
			}
		case xml.EndElement:
			return "", ErrNoType
		}
	}
}

// rootElement returns the first start element of d, which must be a DataSet.
func rootElement(d *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := d.Token()
		if err != nil {
			if err == io.EOF {
				return xml.StartElement{}, ErrNotDataSet
			}
			return xml.StartElement{}, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			if se.Name.Local != Tag {
				return xml.StartElement{}, fmt.Errorf("%w: <%s>", ErrNotDataSet, se.Name.Local)
			}
			return se, nil
		}
	}
}

func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
