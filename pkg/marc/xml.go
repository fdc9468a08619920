package marc

import (
	"encoding/xml"
	"io"

	"github.com/pkg/errors"
)

const Namespace = "http://www.loc.gov/MARC21/slim"

type xmlSubfield struct {
	Code string `xml:"code,attr"`
	Text string `xml:",chardata"`
}

type xmlControlField struct {
	Tag  string `xml:"tag,attr"`
	Text string `xml:",chardata"`
}

type xmlDataField struct {
	Tag       string        `xml:"tag,attr"`
	Ind1      string        `xml:"ind1,attr"`
	Ind2      string        `xml:"ind2,attr"`
	Subfields []xmlSubfield `xml:"subfield"`
}

type xmlRecord struct {
	XMLName       xml.Name          `xml:"record"`
	Xmlns         string            `xml:"xmlns,attr,omitempty"`
	Leader        string            `xml:"leader"`
	ControlFields []xmlControlField `xml:"controlfield"`
	DataFields    []xmlDataField    `xml:"datafield"`
}

type xmlCollection struct {
	XMLName xml.Name    `xml:"collection"`
	Records []xmlRecord `xml:"record"`
}

func fromXMLRecord(x xmlRecord) *Record {
	rec := &Record{Leader: x.Leader}
	for _, c := range x.ControlFields {
		rec.AddControl(c.Tag, c.Text)
	}
	for _, d := range x.DataFields {
		f := DataField{Tag: d.Tag, Ind1: d.Ind1, Ind2: d.Ind2}
		for _, s := range d.Subfields {
			f.Subfields = append(f.Subfields, Subfield{Code: s.Code, Value: s.Text})
		}
		rec.AddField(f)
	}
	return rec
}

func toXMLRecord(rec *Record) xmlRecord {
	x := xmlRecord{Xmlns: Namespace, Leader: rec.Leader}
	for _, c := range rec.Controls {
		x.ControlFields = append(x.ControlFields, xmlControlField{Tag: c.Tag, Text: c.Data})
	}
	for _, f := range rec.Fields {
		d := xmlDataField{Tag: f.Tag, Ind1: f.Ind1, Ind2: f.Ind2}
		for _, s := range f.Subfields {
			d.Subfields = append(d.Subfields, xmlSubfield{Code: s.Code, Text: s.Value})
		}
		x.DataFields = append(x.DataFields, d)
	}
	return x
}

// ParseCollection reads a MARCXML <collection> payload and returns the
// records it contains, in document order.
func ParseCollection(r io.Reader) ([]*Record, error) {
	var coll xmlCollection
	if err := xml.NewDecoder(r).Decode(&coll); err != nil {
		return nil, errors.Wrap(err, "parse marcxml collection")
	}

	records := make([]*Record, 0, len(coll.Records))
	for _, x := range coll.Records {
		records = append(records, fromXMLRecord(x))
	}
	return records, nil
}

// ParseRecord reads a single MARCXML <record> element.
func ParseRecord(data []byte) (*Record, error) {
	var x xmlRecord
	if err := xml.Unmarshal(data, &x); err != nil {
		return nil, errors.Wrap(err, "parse marcxml record")
	}
	return fromXMLRecord(x), nil
}

// ToXML serializes the record as a namespaced MARCXML <record> element.
func ToXML(rec *Record) ([]byte, error) {
	out, err := xml.Marshal(toXMLRecord(rec))
	if err != nil {
		return nil, errors.Wrap(err, "serialize marcxml record")
	}
	return out, nil
}
