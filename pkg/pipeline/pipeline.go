// Package pipeline drives one synchronization run: pull source records,
// map them, gate on the union catalog, push bib/holding/item and write the
// audit report at the end.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/epfllibrary/thesisync/pkg/callnum"
	"github.com/epfllibrary/thesisync/pkg/mapper"
	"github.com/epfllibrary/thesisync/pkg/marc"
	"github.com/epfllibrary/thesisync/pkg/report"
	"github.com/epfllibrary/thesisync/pkg/syncer"
)

// RecordSource yields source records until exhausted. Err reports why the
// source stopped early, if it did.
type RecordSource interface {
	Next(ctx context.Context) (*marc.Record, bool)
	Err() error
}

// DedupGate answers whether a record already exists in the union catalog.
type DedupGate interface {
	Exists(ctx context.Context, title, author string) (bool, error)
}

// Synchronizer validates and pushes one record's bib, holdings and items.
type Synchronizer interface {
	CheckBib(rec *marc.Record) ([]byte, []string, error)
	CreateBib(ctx context.Context, bib []byte) (string, error)
	SyncLocations(ctx context.Context, mmsID, callNumber string) []syncer.LocationResult
}

type Options struct {
	DryRun       bool
	SkipSRUCheck bool
	// MaxRecords caps processed records, zero means unlimited.
	MaxRecords int

	ReportDir    string
	ReportPrefix string
	XLSXReport   bool

	// CallNumberPath persists the last used call number value after the
	// run. Empty disables persistence.
	CallNumberPath string
}

type Pipeline struct {
	opts   Options
	source RecordSource
	dedup  DedupGate
	sync   Synchronizer
	alloc  *callnum.Allocator
	log    log.Logger

	now func() time.Time
}

func New(opts Options, source RecordSource, dedup DedupGate, sync Synchronizer,
	alloc *callnum.Allocator, logger log.Logger) *Pipeline {
	return &Pipeline{
		opts:   opts,
		source: source,
		dedup:  dedup,
		sync:   sync,
		alloc:  alloc,
		log:    log.With(logger, "component", "pipeline"),
		now:    time.Now,
	}
}

// Run processes the whole source and returns the collected report. A
// source that stops early is logged, the report and the call number file
// still cover everything pulled before the failure and the run completes
// cleanly.
func (p *Pipeline) Run(ctx context.Context) (*report.Aggregator, error) {
	agg := report.NewAggregator()

	recordIndex := 0
	for {
		src, ok := p.source.Next(ctx)
		if !ok {
			break
		}

		recordIndex++
		if p.opts.MaxRecords > 0 && recordIndex > p.opts.MaxRecords {
			level.Info(p.log).Log("msg", "max records reached, stopping", "max_records", p.opts.MaxRecords)
			break
		}

		// The call number advances once per record pulled, whatever
		// happens to the record afterwards.
		callNumber := p.alloc.Next()
		level.Info(p.log).Log("msg", "processing record", "record_index", recordIndex, "call_number", callNumber)

		p.process(ctx, recordIndex, callNumber, src, agg)
	}

	if srcErr := p.source.Err(); srcErr != nil {
		level.Error(p.log).Log("msg", "record source stopped early", "err", srcErr)
	}

	if err := p.writeReport(agg); err != nil {
		return agg, err
	}
	p.persistCallNumber()

	return agg, nil
}

func (p *Pipeline) process(ctx context.Context, recordIndex int, callNumber string,
	src *marc.Record, agg *report.Aggregator) {

	rec := mapper.BuildRecord(src)
	info := mapper.Extract(rec)

	notice := &report.Notice{
		RecordIndex:   recordIndex,
		InfoscienceID: info.SourceID,
		Title:         info.Title,
		Author:        info.Author,
		CallNumber:    callNumber,
	}

	exists := false
	if p.opts.SkipSRUCheck {
		level.Info(p.log).Log("msg", "union catalog check skipped", "record_index", recordIndex)
	} else {
		var err error
		exists, err = p.dedup.Exists(ctx, info.Title, info.Author)
		if err != nil {
			level.Error(p.log).Log("msg", "union catalog lookup failed, record abandoned",
				"record_index", recordIndex, "err", err)
			return
		}
		notice.SRUExists = lo.ToPtr(exists)
	}

	if exists {
		level.Info(p.log).Log("msg", "record already in union catalog, not created",
			"record_index", recordIndex, "title", info.Title)
		notice.BibStatus = report.StatusSkippedSRUExists
		agg.Add(notice)
		return
	}

	bib, problems, err := p.sync.CheckBib(rec)
	if err != nil {
		level.Error(p.log).Log("msg", "failed to build bib element, record abandoned",
			"record_index", recordIndex, "err", err)
		return
	}
	if len(problems) > 0 {
		for _, problem := range problems {
			level.Error(p.log).Log("msg", "schema validation failed",
				"record_index", recordIndex, "problem", problem)
		}
		notice.BibStatus = report.StatusXSDError
		notice.BibError = "bib/record schema validation failed"
		agg.Add(notice)
		return
	}

	if p.opts.DryRun {
		level.Info(p.log).Log("msg", "dry run, record valid, nothing created", "record_index", recordIndex)
		notice.BibStatus = report.StatusDryRunOK
		agg.Add(notice)
		return
	}

	mmsID, err := p.sync.CreateBib(ctx, bib)
	if err != nil {
		level.Error(p.log).Log("msg", "bib creation failed", "record_index", recordIndex, "err", err)
		notice.BibStatus = report.StatusError
		notice.BibError = err.Error()
		agg.Add(notice)
		return
	}
	level.Info(p.log).Log("msg", "bib created", "record_index", recordIndex, "mms_id", mmsID)
	notice.MMSID = mmsID
	notice.BibStatus = report.StatusCreated

	for _, res := range p.sync.SyncLocations(ctx, mmsID, callNumber) {
		notice.AddLocation(locationOutcome(res))
	}
	agg.Add(notice)
}

func locationOutcome(res syncer.LocationResult) report.LocationOutcome {
	out := report.LocationOutcome{Location: res.Location}

	if res.Holding.Err != nil {
		out.HoldingStatus = report.StatusError
		out.HoldingError = res.Holding.Err.Error()
		out.ItemStatus = report.StatusSkipped
		return out
	}

	out.HoldingID = res.Holding.HoldingID
	out.HoldingStatus = report.StatusCreated

	switch {
	case res.Item.Skipped:
		out.ItemStatus = report.StatusSkipped
	case res.Item.Err != nil:
		out.ItemStatus = report.StatusError
		out.ItemError = res.Item.Err.Error()
	default:
		out.ItemID = res.Item.ItemID
		out.ItemStatus = report.StatusCreated
	}
	return out
}

func (p *Pipeline) writeReport(agg *report.Aggregator) error {
	if agg.Len() == 0 {
		level.Info(p.log).Log("msg", "no records processed, no report written")
		return nil
	}

	if p.opts.ReportDir != "" {
		if err := os.MkdirAll(p.opts.ReportDir, 0o755); err != nil {
			return errors.Wrap(err, "create report directory")
		}
	}

	name := p.opts.ReportPrefix + p.now().Format("2006-01-02")
	csvPath := filepath.Join(p.opts.ReportDir, name+".csv")
	if err := agg.SaveCSV(csvPath); err != nil {
		return err
	}
	level.Info(p.log).Log("msg", "report written", "path", csvPath, "rows", agg.Len())

	if p.opts.XLSXReport {
		xlsxPath := filepath.Join(p.opts.ReportDir, name+".xlsx")
		if err := agg.SaveXLSX(xlsxPath); err != nil {
			return err
		}
		level.Info(p.log).Log("msg", "report workbook written", "path", xlsxPath)
	}
	return nil
}

func (p *Pipeline) persistCallNumber() {
	if p.opts.CallNumberPath == "" {
		return
	}
	if err := p.alloc.Persist(p.opts.CallNumberPath); err != nil {
		level.Warn(p.log).Log("msg", "failed to persist last call number",
			"path", p.opts.CallNumberPath, "err", err)
		return
	}
	level.Info(p.log).Log("msg", "last call number persisted",
		"path", p.opts.CallNumberPath, "value", p.alloc.Value())
}
