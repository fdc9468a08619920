// Package config loads the pipeline's INI configuration. Loading never
// fails: a missing or broken file is logged and the defaults apply, only
// keys actually present in the file override them.
package config

import (
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gopkg.in/ini.v1"
)

type General struct {
	Env             string
	InstitutionCode string
	CheckXSD        bool
	ReportPrefix    string
	SkipSRUCheck    bool
	XLSXReport      bool
}

type Infoscience struct {
	SpcRpp        int
	OfFormat      string
	SinceStrategy string
}

type XSD struct {
	MARC21  string
	Bib     string
	Holding string
	Item    string
}

type Holding struct {
	LibraryCode      string
	Locations        []string
	CallNumberPrefix string
}

type Item struct {
	PoLine           string
	DepartmentCode   string
	MaterialTypeCode string
}

type Config struct {
	General     General
	Infoscience Infoscience
	XSD         XSD
	Holding     Holding
	Item        Item
}

func Default() Config {
	return Config{
		General: General{
			Env:             "S",
			InstitutionCode: "HPH",
			CheckXSD:        true,
			ReportPrefix:    "rapport_",
		},
		Infoscience: Infoscience{
			SpcRpp:        100,
			OfFormat:      "xm",
			SinceStrategy: "previous_month",
		},
		XSD: XSD{
			MARC21:  "xsd/MARC21slim.xsd",
			Bib:     "xsd/rest_bib.xsd",
			Holding: "xsd/rest_holding.xsd",
			Item:    "xsd/rest_item.xsd",
		},
		Holding: Holding{
			LibraryCode:      "hph_bjnbecip",
			Locations:        []string{"E02XA", "E02SP"},
			CallNumberPrefix: "ZTK",
		},
		Item: Item{
			DepartmentCode:   "AcqDepthph_bjnbecip",
			MaterialTypeCode: "THESIS",
		},
	}
}

// Load reads path over the defaults. An empty path or an unreadable file
// yields the defaults.
func Load(path string, logger log.Logger) Config {
	cfg := Default()

	if path == "" {
		level.Info(logger).Log("msg", "no config file given, using defaults")
		return cfg
	}

	f, err := ini.Load(path)
	if err != nil {
		level.Warn(logger).Log("msg", "config file not loaded, using defaults", "path", path, "err", err)
		return cfg
	}

	if sec, err := f.GetSection("general"); err == nil {
		readString(sec, "env", &cfg.General.Env)
		readString(sec, "institution_code", &cfg.General.InstitutionCode)
		readBool(sec, "check_xsd", &cfg.General.CheckXSD)
		readString(sec, "report_prefix", &cfg.General.ReportPrefix)
		readBool(sec, "skip_sru_check", &cfg.General.SkipSRUCheck)
		readBool(sec, "xlsx_report", &cfg.General.XLSXReport)
	}

	if sec, err := f.GetSection("infoscience"); err == nil {
		readInt(sec, "spc_rpp", &cfg.Infoscience.SpcRpp)
		readString(sec, "of_format", &cfg.Infoscience.OfFormat)
		readString(sec, "since_strategy", &cfg.Infoscience.SinceStrategy)
	}

	if sec, err := f.GetSection("xsd"); err == nil {
		readString(sec, "marc21", &cfg.XSD.MARC21)
		readString(sec, "bib", &cfg.XSD.Bib)
		readString(sec, "holding", &cfg.XSD.Holding)
		readString(sec, "item", &cfg.XSD.Item)
	}

	if sec, err := f.GetSection("holding"); err == nil {
		readString(sec, "library_code", &cfg.Holding.LibraryCode)
		if sec.HasKey("locations") {
			var locs []string
			for _, l := range strings.Split(sec.Key("locations").String(), ",") {
				if l = strings.TrimSpace(l); l != "" {
					locs = append(locs, l)
				}
			}
			if len(locs) > 0 {
				cfg.Holding.Locations = locs
			}
		}
		readString(sec, "call_number_prefix", &cfg.Holding.CallNumberPrefix)
	}

	if sec, err := f.GetSection("item"); err == nil {
		if sec.HasKey("po_line") {
			cfg.Item.PoLine = strings.TrimSpace(sec.Key("po_line").String())
		}
		readString(sec, "department_code", &cfg.Item.DepartmentCode)
		readString(sec, "material_type_code", &cfg.Item.MaterialTypeCode)
	}

	level.Info(logger).Log("msg", "config loaded", "path", path,
		"env", cfg.General.Env, "institution", cfg.General.InstitutionCode,
		"library", cfg.Holding.LibraryCode, "locations", strings.Join(cfg.Holding.Locations, ","))
	return cfg
}

func readString(sec *ini.Section, key string, dst *string) {
	if sec.HasKey(key) {
		*dst = sec.Key(key).String()
	}
}

func readBool(sec *ini.Section, key string, dst *bool) {
	if sec.HasKey(key) {
		if v, err := sec.Key(key).Bool(); err == nil {
			*dst = v
		}
	}
}

func readInt(sec *ini.Section, key string, dst *int) {
	if sec.HasKey(key) {
		if v, err := sec.Key(key).Int(); err == nil {
			*dst = v
		}
	}
}
