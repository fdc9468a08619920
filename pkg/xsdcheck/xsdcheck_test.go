package xsdcheck

import (
	"testing"

	gklog "github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
)

func TestNilSchemaAlwaysPasses(t *testing.T) {
	var s *Schema

	valid, errs := s.Validate([]byte("<holding/>"), "holding")
	assert.True(t, valid)
	assert.Empty(t, errs)
}

func TestMissingElementFails(t *testing.T) {
	var s *Schema

	valid, errs := s.Validate(nil, "record")
	assert.False(t, valid)
	assert.Equal(t, []string{"No <record> element found"}, errs)
}

func TestLoadMissingFile(t *testing.T) {
	s := Load("testdata/does_not_exist.xsd", gklog.NewNopLogger())
	assert.Nil(t, s)
}

func TestLoadSetDisabled(t *testing.T) {
	set := LoadSet(Paths{MARC21: "x", Bib: "x", Holding: "x", Item: "x"}, false, gklog.NewNopLogger())

	assert.Nil(t, set.MARC)
	assert.Nil(t, set.Bib)

	valid, _ := set.Holding.Validate([]byte("<holding/>"), "holding")
	assert.True(t, valid)
}
