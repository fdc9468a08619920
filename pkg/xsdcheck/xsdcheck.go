// Package xsdcheck wraps schema validation behind the narrow capability the
// pipeline consumes: load a schema from disk (or none), validate an XML
// element against it. A nil schema always passes; a missing element is
// itself a validation failure.
package xsdcheck

import (
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/lestrrat-go/libxml2"
	"github.com/lestrrat-go/libxml2/xsd"
	"github.com/pkg/errors"
)

type Schema struct {
	schema *xsd.Schema
}

// Load reads and compiles the schema at path. Any failure (missing file,
// invalid schema) is logged and yields a nil schema, which validates
// everything: a broken schema setup must not block cataloging.
func Load(path string, logger log.Logger) *Schema {
	buf, err := os.ReadFile(path)
	if err != nil {
		level.Warn(logger).Log("msg", "xsd schema not loaded", "path", path, "err", err.Error())
		return nil
	}

	s, err := xsd.Parse(buf)
	if err != nil {
		level.Warn(logger).Log("msg", "xsd schema not loaded", "path", path, "err", err.Error())
		return nil
	}

	return &Schema{schema: s}
}

// Validate checks the element against the schema and returns the collected
// failure messages. The element label is only used in the missing-element
// message.
func (s *Schema) Validate(element []byte, label string) (bool, []string) {
	if len(element) == 0 {
		return false, []string{"No <" + label + "> element found"}
	}

	if s == nil || s.schema == nil {
		return true, nil
	}

	doc, err := libxml2.Parse(element)
	if err != nil {
		return false, []string{errors.Wrap(err, "parse "+label).Error()}
	}
	defer doc.Free()

	if err := s.schema.Validate(doc); err != nil {
		if verr, ok := err.(xsd.SchemaValidationError); ok {
			var msgs []string
			for _, e := range verr.Errors() {
				msgs = append(msgs, e.Error())
			}
			return false, msgs
		}
		return false, []string{err.Error()}
	}

	return true, nil
}

// Free releases the compiled schema.
func (s *Schema) Free() {
	if s != nil && s.schema != nil {
		s.schema.Free()
	}
}

// Set holds the four schemas the pipeline validates against.
type Set struct {
	MARC    *Schema
	Bib     *Schema
	Holding *Schema
	Item    *Schema
}

// Paths names the schema files for a Set.
type Paths struct {
	MARC21  string
	Bib     string
	Holding string
	Item    string
}

// LoadSet loads every schema of the set. With enabled false the set is
// empty and every validation passes.
func LoadSet(paths Paths, enabled bool, logger log.Logger) *Set {
	if !enabled {
		return &Set{}
	}
	return &Set{
		MARC:    Load(paths.MARC21, logger),
		Bib:     Load(paths.Bib, logger),
		Holding: Load(paths.Holding, logger),
		Item:    Load(paths.Item, logger),
	}
}

// Free releases every schema of the set.
func (s *Set) Free() {
	s.MARC.Free()
	s.Bib.Free()
	s.Holding.Free()
	s.Item.Free()
}
