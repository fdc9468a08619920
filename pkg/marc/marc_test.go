package marc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() *Record {
	rec := &Record{Leader: "00000nam a2200000 c 4500"}
	rec.AddControl("001", "330657")
	rec.AddField(DataField{
		Tag: "245", Ind1: "1", Ind2: "0",
		Subfields: []Subfield{
			{Code: "a", Value: "Some title"},
			{Code: "b", Value: "a subtitle"},
		},
	})
	rec.AddField(DataField{
		Tag: "700", Ind1: "1", Ind2: " ",
		Subfields: []Subfield{{Code: "a", Value: "Doe, Jane"}},
	})
	rec.AddField(DataField{
		Tag: "700", Ind1: "1", Ind2: " ",
		Subfields: []Subfield{{Code: "a", Value: "Roe, Richard"}},
	})
	return rec
}

func TestAccessors(t *testing.T) {
	rec := sampleRecord()

	assert.Equal(t, "330657", rec.ControlValue("001"))
	assert.Equal(t, "", rec.ControlValue("008"))

	v, ok := rec.FirstValue("245", "a")
	assert.True(t, ok)
	assert.Equal(t, "Some title", v)

	_, ok = rec.FirstValue("245", "c")
	assert.False(t, ok)

	_, ok = rec.FirstValue("300", "a")
	assert.False(t, ok)

	assert.Equal(t, []string{"Doe, Jane", "Roe, Richard"}, rec.AllValues("700", "a"))
	assert.Len(t, rec.All("700"), 2)
	assert.Nil(t, rec.First("999"))
}

func TestParseCollection(t *testing.T) {
	payload := `<?xml version="1.0" encoding="UTF-8"?>
<collection xmlns="http://www.loc.gov/MARC21/slim">
  <record>
    <leader>00000nam a2200000 c 4500</leader>
    <controlfield tag="001">330657</controlfield>
    <datafield tag="245" ind1="1" ind2="0">
      <subfield code="a">Some title</subfield>
    </datafield>
  </record>
  <record>
    <leader>00000nam a2200000 c 4500</leader>
    <controlfield tag="001">330658</controlfield>
  </record>
</collection>`

	records, err := ParseCollection(strings.NewReader(payload))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "330657", records[0].ControlValue("001"))
	title, ok := records[0].FirstValue("245", "a")
	assert.True(t, ok)
	assert.Equal(t, "Some title", title)
	assert.Equal(t, "330658", records[1].ControlValue("001"))
}

func TestParseCollectionEmpty(t *testing.T) {
	records, err := ParseCollection(strings.NewReader(`<collection xmlns="http://www.loc.gov/MARC21/slim"></collection>`))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParseCollectionInvalid(t *testing.T) {
	_, err := ParseCollection(strings.NewReader(`not xml`))
	assert.Error(t, err)
}

func TestToXMLRoundTrip(t *testing.T) {
	out, err := ToXML(sampleRecord())
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, `xmlns="http://www.loc.gov/MARC21/slim"`)
	assert.Contains(t, s, `<leader>00000nam a2200000 c 4500</leader>`)
	assert.Contains(t, s, `<controlfield tag="001">330657</controlfield>`)
	assert.Contains(t, s, `<subfield code="b">a subtitle</subfield>`)

	back, err := ParseRecord(out)
	require.NoError(t, err)
	assert.Equal(t, sampleRecord(), back)
}
