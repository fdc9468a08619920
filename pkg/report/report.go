// Package report builds the per-run audit report: one row per source
// record, holdings and items aggregated into pipe-joined columns.
package report

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const (
	StatusCreated          = "CREATED"
	StatusError            = "ERROR"
	StatusSkipped          = "SKIPPED"
	StatusSkippedSRUExists = "SKIPPED_SRU_EXISTS"
	StatusXSDError         = "XSD_ERROR"
	StatusDryRunOK         = "DRY_RUN_OK"
)

// Header lists the report columns, in output order.
var Header = []string{
	"record_index",
	"infoscience_id",
	"title",
	"author",
	"call_number",
	"sru_exists",
	"mms_id",
	"bib_status",
	"bib_error",
	"holding_locations",
	"holding_ids",
	"holding_statuses",
	"holding_errors",
	"item_ids",
	"item_statuses",
	"item_errors",
}

// LocationOutcome carries the holding and item outcome for one location of
// one record.
type LocationOutcome struct {
	Location      string
	HoldingID     string
	HoldingStatus string
	HoldingError  string
	ItemID        string
	ItemStatus    string
	ItemError     string
}

// Notice is the report entry for one source record.
type Notice struct {
	RecordIndex   int
	InfoscienceID string
	Title         string
	Author        string
	CallNumber    string

	// SRUExists stays nil when the dedup check never ran.
	SRUExists *bool

	MMSID     string
	BibStatus string
	BibError  string

	Locations []LocationOutcome
}

func (n *Notice) AddLocation(loc LocationOutcome) {
	n.Locations = append(n.Locations, loc)
}

func join(values []string) string {
	return strings.Join(values, " | ")
}

// Row flattens the notice into one report row. Statuses and errors are
// prefixed with their location code since several locations share a column.
func (n *Notice) Row() []string {
	var (
		locations, holdingIDs, holdingStatuses, holdingErrors []string
		itemIDs, itemStatuses, itemErrors                     []string
	)

	for _, loc := range n.Locations {
		if loc.Location != "" {
			locations = append(locations, loc.Location)
		}
		if loc.HoldingID != "" {
			holdingIDs = append(holdingIDs, loc.HoldingID)
		}
		if loc.HoldingStatus != "" {
			holdingStatuses = append(holdingStatuses, loc.Location+":"+loc.HoldingStatus)
		}
		if loc.HoldingError != "" {
			holdingErrors = append(holdingErrors, loc.Location+":"+loc.HoldingError)
		}
		if loc.ItemID != "" {
			itemIDs = append(itemIDs, loc.ItemID)
		}
		if loc.ItemStatus != "" {
			itemStatuses = append(itemStatuses, loc.Location+":"+loc.ItemStatus)
		}
		if loc.ItemError != "" {
			itemErrors = append(itemErrors, loc.Location+":"+loc.ItemError)
		}
	}

	sruExists := ""
	if n.SRUExists != nil {
		sruExists = strconv.FormatBool(*n.SRUExists)
	}

	return []string{
		strconv.Itoa(n.RecordIndex),
		n.InfoscienceID,
		n.Title,
		n.Author,
		n.CallNumber,
		sruExists,
		n.MMSID,
		n.BibStatus,
		n.BibError,
		join(locations),
		join(holdingIDs),
		join(holdingStatuses),
		join(holdingErrors),
		join(itemIDs),
		join(itemStatuses),
		join(itemErrors),
	}
}

// Aggregator collects notices over a run and writes them out at the end.
type Aggregator struct {
	notices []*Notice
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

func (a *Aggregator) Add(n *Notice) {
	a.notices = append(a.notices, n)
}

func (a *Aggregator) Len() int {
	return len(a.notices)
}

// WriteCSV writes the header and every collected row, semicolon-delimited.
func (a *Aggregator) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(Header); err != nil {
		return errors.Wrap(err, "write report header")
	}
	for _, n := range a.notices {
		if err := cw.Write(n.Row()); err != nil {
			return errors.Wrap(err, "write report row")
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "flush report")
}

// SaveCSV writes the report to path.
func (a *Aggregator) SaveCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create report file")
	}

	if err := a.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "close report file")
}

// SaveXLSX writes the report as a single-sheet workbook.
func (a *Aggregator) SaveXLSX(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &Header); err != nil {
		return errors.Wrap(err, "write report header")
	}
	for i, n := range a.notices {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrap(err, "write report row")
		}
		row := n.Row()
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrap(err, "write report row")
		}
	}

	return errors.Wrap(f.SaveAs(path), "save report workbook")
}
