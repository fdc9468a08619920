// Package mapper rewrites a source repository record into the target
// cataloging schema. BuildRecord is a total function: missing source fields
// produce absent output fields, never an error.
package mapper

import (
	"strings"

	"github.com/samber/lo"

	"github.com/epfllibrary/thesisync/pkg/marc"
)

const (
	Leader      = "00000nam a2200000 c 4500"
	control008  = "||||||s2025    sz   a   m    00| | eng  "
	agencyCode  = "CH-ZuSLS EPFL"
	epflName    = "Ecole Polytechnique Fédérale de Lausanne"
	thesisLabel = "Thèse"
	keywordsTag = "Mots-clés de l'auteur : "
)

// ExpandPublisher rewrites the literal token "EPFL" (case-insensitive,
// whole value) to the full institutional name. Anything else passes through.
func ExpandPublisher(v string) string {
	if strings.EqualFold(strings.TrimSpace(v), "EPFL") {
		return epflName
	}
	return v
}

// InvertName turns "Surname, Given" into "Given Surname", splitting on
// commas. A value without a comma is returned unchanged.
func InvertName(name string) string {
	parts := strings.Split(name, ",")
	if len(parts) < 2 {
		return name
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	last := parts[0]
	firsts := strings.TrimSpace(strings.Join(parts[1:], " "))
	return strings.TrimSpace(firsts + " " + last)
}

// EnsurePagesSuffix appends " pages" to a page-count value unless the word
// already appears. Applying it twice is a no-op.
func EnsurePagesSuffix(v string) string {
	if v == "" {
		return v
	}
	if strings.Contains(strings.ToLower(v), "pages") {
		return v
	}
	return strings.TrimSpace(v) + " pages"
}

// mainEntryName returns the name subfield of the first contributor field
// that has one.
func mainEntryName(src *marc.Record) (string, bool) {
	for _, f := range src.All("700") {
		if v, ok := f.Value("a"); ok {
			return v, true
		}
	}
	return "", false
}

// directorField picks the supervisor source field: the first 720 whose
// second indicator is "2", else the first 720 with a name at all.
func directorField(src *marc.Record) *marc.DataField {
	for _, f := range src.All("720") {
		if f.Ind2 == "2" && f.Has("a") {
			return f
		}
	}
	for _, f := range src.All("720") {
		if f.Has("a") {
			return f
		}
	}
	return nil
}

// BuildRecord maps a source record to the target schema.
func BuildRecord(src *marc.Record) *marc.Record {
	dst := &marc.Record{Leader: Leader}

	if id := src.ControlValue("001"); id != "" {
		dst.AddControl("001", id)
	}
	dst.AddControl("008", control008)

	dst.AddField(marc.DataField{
		Tag: "040", Ind1: " ", Ind2: " ",
		Subfields: []marc.Subfield{
			{Code: "a", Value: agencyCode},
			{Code: "b", Value: "fre"},
			{Code: "e", Value: "rda"},
		},
	})

	author, hasAuthor := mainEntryName(src)
	f100 := marc.DataField{Tag: "100", Ind1: "1", Ind2: " "}
	if hasAuthor {
		f100.Subfields = append(f100.Subfields, marc.Subfield{Code: "a", Value: author})
	}
	f100.Subfields = append(f100.Subfields, marc.Subfield{Code: "4", Value: "aut"})
	dst.AddField(f100)

	f245 := marc.DataField{Tag: "245", Ind1: "1", Ind2: "0"}
	if v, ok := src.FirstValue("245", "a"); ok {
		f245.Subfields = append(f245.Subfields, marc.Subfield{Code: "a", Value: v})
	}
	if v, ok := src.FirstValue("245", "b"); ok {
		f245.Subfields = append(f245.Subfields, marc.Subfield{Code: "b", Value: v})
	}
	if hasAuthor {
		f245.Subfields = append(f245.Subfields, marc.Subfield{Code: "c", Value: InvertName(author)})
	}
	if len(f245.Subfields) > 0 {
		dst.AddField(f245)
	}

	f264 := marc.DataField{Tag: "264", Ind1: " ", Ind2: "1"}
	if v, ok := src.FirstValue("260", "a"); ok {
		f264.Subfields = append(f264.Subfields, marc.Subfield{Code: "a", Value: v})
	}
	if v, ok := src.FirstValue("260", "b"); ok {
		f264.Subfields = append(f264.Subfields, marc.Subfield{Code: "b", Value: ExpandPublisher(v)})
	}
	if v, ok := src.FirstValue("260", "c"); ok {
		f264.Subfields = append(f264.Subfields, marc.Subfield{Code: "c", Value: v})
	}
	if len(f264.Subfields) > 0 {
		dst.AddField(f264)
	}

	f300 := marc.DataField{Tag: "300", Ind1: " ", Ind2: " "}
	if v, ok := src.FirstValue("300", "a"); ok {
		f300.Subfields = append(f300.Subfields, marc.Subfield{Code: "a", Value: EnsurePagesSuffix(v)})
	}
	f300.Subfields = append(f300.Subfields,
		marc.Subfield{Code: "b", Value: "illustrations"},
		marc.Subfield{Code: "c", Value: "28 cm"},
	)
	dst.AddField(f300)

	dst.AddField(staticPair("336", "txt", "rdacontent"))
	dst.AddField(staticPair("337", "n", "rdamedia"))
	dst.AddField(staticPair("338", "nc", "rdacarrier"))

	if f := thesisNote(src); f != nil {
		dst.AddField(*f)
	}

	dst.AddField(abstractNote(src))

	dst.AddField(marc.DataField{
		Tag: "655", Ind1: " ", Ind2: "7",
		Subfields: []marc.Subfield{
			{Code: "a", Value: "Thèses et écrits académiques"},
			{Code: "0", Value: "(IDREF)027253139"},
			{Code: "2", Value: "idref"},
		},
	})
	dst.AddField(marc.DataField{
		Tag: "655", Ind1: " ", Ind2: "7",
		Subfields: []marc.Subfield{
			{Code: "a", Value: "Hochschulschrift"},
			{Code: "2", Value: "gnd-content"},
		},
	})
	dst.AddField(marc.DataField{
		Tag: "655", Ind1: " ", Ind2: "7",
		Subfields: []marc.Subfield{
			{Code: "a", Value: "Tesi"},
			{Code: "2", Value: "sbt12-content"},
		},
	})

	f700 := marc.DataField{Tag: "700", Ind1: "1", Ind2: " "}
	if f := directorField(src); f != nil {
		name, _ := f.Value("a")
		f700.Subfields = append(f700.Subfields, marc.Subfield{Code: "a", Value: name})
	}
	f700.Subfields = append(f700.Subfields, marc.Subfield{Code: "4", Value: "dgs"})
	dst.AddField(f700)

	return dst
}

func staticPair(tag, b, vocab string) marc.DataField {
	return marc.DataField{
		Tag: tag, Ind1: " ", Ind2: " ",
		Subfields: []marc.Subfield{
			{Code: "b", Value: b},
			{Code: "2", Value: vocab},
		},
	}
}

// thesisNote assembles the 502 field from up to four optional pieces and
// returns nil when none is present.
func thesisNote(src *marc.Record) *marc.DataField {
	f := marc.DataField{Tag: "502", Ind1: " ", Ind2: " "}

	if v, ok := src.FirstValue("336", "a"); ok {
		label := v
		if strings.EqualFold(strings.TrimSpace(v), "theses") {
			label = thesisLabel
		}
		f.Subfields = append(f.Subfields, marc.Subfield{Code: "b", Value: label})
	}

	place, _ := src.FirstValue("260", "a")
	publisher, _ := src.FirstValue("260", "b")
	if place != "" || publisher != "" {
		f.Subfields = append(f.Subfields, marc.Subfield{
			Code: "c", Value: strings.TrimSpace(publisher + " " + place),
		})
	}

	if v, ok := src.FirstValue("920", "b"); ok {
		f.Subfields = append(f.Subfields, marc.Subfield{Code: "d", Value: v})
	}

	if v, ok := src.FirstValue("088", "a"); ok {
		f.Subfields = append(f.Subfields, marc.Subfield{Code: "o", Value: "n° " + v})
	}

	if len(f.Subfields) == 0 {
		return nil
	}
	return &f
}

// abstractNote builds the 520 field: cleaned, deduplicated author keywords
// plus the constant institution subfield, which is present even when no
// keyword survives.
func abstractNote(src *marc.Record) marc.DataField {
	keywords := lo.FilterMap(src.AllValues("653", "a"), func(v string, _ int) (string, bool) {
		t := strings.TrimSpace(v)
		return t, t != ""
	})
	keywords = lo.Uniq(keywords)

	f := marc.DataField{Tag: "520", Ind1: " ", Ind2: " "}
	if len(keywords) > 0 {
		joined := strings.ReplaceAll(strings.Join(keywords, "; "), "||", "; ")
		f.Subfields = append(f.Subfields, marc.Subfield{Code: "a", Value: keywordsTag + joined})
	}
	f.Subfields = append(f.Subfields, marc.Subfield{Code: "5", Value: agencyCode})
	return f
}

// Info is the search-relevant summary of a mapped record.
type Info struct {
	SourceID       string
	Title          string
	Author         string
	Responsibility string
}

// Extract pulls identifier, title, author and statement of responsibility
// from a mapped record.
func Extract(rec *marc.Record) Info {
	info := Info{SourceID: rec.ControlValue("001")}

	if f := rec.First("245"); f != nil {
		var parts []string
		if v, ok := f.Value("a"); ok {
			parts = append(parts, v)
		}
		if v, ok := f.Value("b"); ok {
			parts = append(parts, v)
		}
		info.Title = strings.Trim(strings.Join(parts, " "), " /")
		info.Responsibility, _ = f.Value("c")
	}

	if f := rec.First("100"); f != nil {
		info.Author, _ = f.Value("a")
	}

	return info
}
