package syncer

import (
	"bytes"
	"encoding/xml"

	"github.com/pkg/errors"

	"github.com/epfllibrary/thesisync/pkg/marc"
)

const (
	holdingLeader  = "00000nx a2200061zn 450"
	holdingControl = "1011252u 8 4001uueng0000000"
)

// BuildBibElement wraps a marc record in the catalog's bib envelope.
func BuildBibElement(rec *marc.Record) ([]byte, error) {
	inner, err := marc.ToXML(rec)
	if err != nil {
		return nil, errors.Wrap(err, "build bib element")
	}

	var buf bytes.Buffer
	buf.WriteString("<bib>")
	buf.Write(inner)
	buf.WriteString("</bib>")
	return buf.Bytes(), nil
}

func holdingRecord(library, location, callNumber string) *marc.Record {
	rec := &marc.Record{Leader: holdingLeader}
	rec.AddControl("008", holdingControl)
	rec.AddField(marc.DataField{
		Tag: "852", Ind1: "4", Ind2: " ",
		Subfields: []marc.Subfield{
			{Code: "b", Value: library},
			{Code: "c", Value: location},
			{Code: "j", Value: callNumber},
		},
	})
	return rec
}

// BuildHoldingElement builds the holding envelope for one library/location
// pair. The holding_id element stays empty, the catalog assigns it.
func BuildHoldingElement(library, location, callNumber string) ([]byte, error) {
	inner, err := marc.ToXML(holdingRecord(library, location, callNumber))
	if err != nil {
		return nil, errors.Wrap(err, "build holding element")
	}

	var buf bytes.Buffer
	buf.WriteString("<holding><holding_id></holding_id>")
	buf.Write(inner)
	buf.WriteString("</holding>")
	return buf.Bytes(), nil
}

type itemElement struct {
	XMLName     xml.Name `xml:"item"`
	HoldingData struct {
		HoldingID string `xml:"holding_id"`
	} `xml:"holding_data"`
	ItemData itemData `xml:"item_data"`
}

type itemData struct {
	BaseStatus   string `xml:"base_status"`
	MaterialType string `xml:"physical_material_type,omitempty"`
	Policy       string `xml:"policy,omitempty"`
	PoLine       string `xml:"po_line,omitempty"`
	ArrivalDate  string `xml:"arrival_date"`
	Library      string `xml:"library,omitempty"`
	Location     string `xml:"location,omitempty"`
	ProcessType  string `xml:"process_type,omitempty"`
	WorkOrderAt  string `xml:"work_order_at,omitempty"`
}

type itemSpec struct {
	HoldingID      string
	Library        string
	Location       string
	BaseStatus     string
	Policy         string
	PoLine         string
	ArrivalDate    string
	DepartmentCode string
	MaterialType   string
}

// buildItemElement builds the item envelope attached to a holding. A
// department code routes the item through a work order on arrival.
func buildItemElement(spec itemSpec) ([]byte, error) {
	el := itemElement{
		ItemData: itemData{
			BaseStatus:   spec.BaseStatus,
			MaterialType: spec.MaterialType,
			Policy:       spec.Policy,
			PoLine:       spec.PoLine,
			ArrivalDate:  spec.ArrivalDate,
			Library:      spec.Library,
			Location:     spec.Location,
		},
	}
	el.HoldingData.HoldingID = spec.HoldingID
	if spec.DepartmentCode != "" {
		el.ItemData.ProcessType = "WORK_ORDER_DEPARTMENT"
		el.ItemData.WorkOrderAt = spec.DepartmentCode
	}

	data, err := xml.Marshal(el)
	if err != nil {
		return nil, errors.Wrap(err, "build item element")
	}
	return data, nil
}
