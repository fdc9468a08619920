// Package marc holds a minimal tagged-field bibliographic record model:
// a leader, control fields and data fields with two indicators and
// repeatable coded subfields, plus MARCXML parsing and serialization.
package marc

type Subfield struct {
	Code  string
	Value string
}

type ControlField struct {
	Tag  string
	Data string
}

type DataField struct {
	Tag       string
	Ind1      string
	Ind2      string
	Subfields []Subfield
}

// Value returns the first value of the given subfield code.
func (f *DataField) Value(code string) (string, bool) {
	for _, s := range f.Subfields {
		if s.Code == code {
			return s.Value, true
		}
	}
	return "", false
}

// Values returns every value of the given subfield code, in order.
func (f *DataField) Values(code string) []string {
	var vals []string
	for _, s := range f.Subfields {
		if s.Code == code {
			vals = append(vals, s.Value)
		}
	}
	return vals
}

func (f *DataField) Has(code string) bool {
	_, ok := f.Value(code)
	return ok
}

type Record struct {
	Leader   string
	Controls []ControlField
	Fields   []DataField
}

func (r *Record) AddControl(tag, data string) {
	r.Controls = append(r.Controls, ControlField{Tag: tag, Data: data})
}

func (r *Record) AddField(f DataField) {
	r.Fields = append(r.Fields, f)
}

// ControlValue returns the data of the first control field with the given
// tag, or the empty string.
func (r *Record) ControlValue(tag string) string {
	for _, c := range r.Controls {
		if c.Tag == tag {
			return c.Data
		}
	}
	return ""
}

// First returns the first data field with the given tag, or nil.
func (r *Record) First(tag string) *DataField {
	for i := range r.Fields {
		if r.Fields[i].Tag == tag {
			return &r.Fields[i]
		}
	}
	return nil
}

// All returns every data field with the given tag, in order.
func (r *Record) All(tag string) []*DataField {
	var fields []*DataField
	for i := range r.Fields {
		if r.Fields[i].Tag == tag {
			fields = append(fields, &r.Fields[i])
		}
	}
	return fields
}

// FirstValue returns the first value of subfield code on the first field
// with the given tag that has it.
func (r *Record) FirstValue(tag, code string) (string, bool) {
	if f := r.First(tag); f != nil {
		return f.Value(code)
	}
	return "", false
}

// AllValues collects subfield values across every occurrence of tag.
func (r *Record) AllValues(tag, code string) []string {
	var vals []string
	for _, f := range r.All(tag) {
		vals = append(vals, f.Values(code)...)
	}
	return vals
}
