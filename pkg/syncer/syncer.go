// Package syncer pushes transformed records into the catalog: one bib per
// source record, then one holding and one item per configured location.
package syncer

import (
	"context"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/epfllibrary/thesisync/pkg/alma"
	"github.com/epfllibrary/thesisync/pkg/marc"
	"github.com/epfllibrary/thesisync/pkg/xsdcheck"
)

// Catalog is the subset of the inventory API the syncer drives.
type Catalog interface {
	CreateBib(ctx context.Context, bib []byte) (string, error)
	GetHoldings(ctx context.Context, mmsID string) ([]alma.HoldingRef, error)
	CreateHolding(ctx context.Context, mmsID string, holding []byte) (string, error)
	CreateItem(ctx context.Context, mmsID, holdingID string, item []byte) (string, error)
}

type Config struct {
	Library        string
	Locations      []string
	PoLine         string
	DepartmentCode string
	MaterialType   string
}

// itemPolicy maps a managed location to the base status and item policy
// its items carry. Locations outside this table get no item.
var itemPolicy = map[string]struct {
	BaseStatus string
	Policy     string
}{
	"E02SP": {BaseStatus: "04", Policy: "04"},
	"E02XA": {BaseStatus: "70", Policy: "70"},
}

type Syncer struct {
	cfg     Config
	catalog Catalog
	schemas *xsdcheck.Set
	log     log.Logger

	now func() time.Time
}

func New(cfg Config, catalog Catalog, schemas *xsdcheck.Set, logger log.Logger) *Syncer {
	if schemas == nil {
		schemas = &xsdcheck.Set{}
	}
	return &Syncer{
		cfg:     cfg,
		catalog: catalog,
		schemas: schemas,
		log:     log.With(logger, "component", "syncer"),
		now:     time.Now,
	}
}

// CheckBib builds the bib envelope and validates both the inner record and
// the envelope. The element is returned even when problems are found so
// callers can log it.
func (s *Syncer) CheckBib(rec *marc.Record) ([]byte, []string, error) {
	inner, err := marc.ToXML(rec)
	if err != nil {
		return nil, nil, errors.Wrap(err, "check bib")
	}
	bib, err := BuildBibElement(rec)
	if err != nil {
		return nil, nil, err
	}

	var problems []string
	if ok, errs := s.schemas.MARC.Validate(inner, "record"); !ok {
		problems = append(problems, errs...)
	}
	if ok, errs := s.schemas.Bib.Validate(bib, "bib"); !ok {
		problems = append(problems, errs...)
	}
	return bib, problems, nil
}

// CreateBib posts a previously checked bib element.
func (s *Syncer) CreateBib(ctx context.Context, bib []byte) (string, error) {
	return s.catalog.CreateBib(ctx, bib)
}

// HoldingOutcome reports one EnsureHolding call.
type HoldingOutcome struct {
	Location  string
	HoldingID string
	Existing  bool
	Err       error
}

// ItemOutcome reports one EnsureItem call. Skipped means the holding's
// location is not managed and no item was attempted.
type ItemOutcome struct {
	ItemID  string
	Skipped bool
	Err     error
}

// LocationResult pairs the holding and item outcomes for one location.
type LocationResult struct {
	Location string
	Holding  HoldingOutcome
	Item     ItemOutcome
}

// EnsureHolding returns the existing holding for (library, location) or
// creates one carrying the call number. A failed holdings lookup is logged
// and treated as "none found".
func (s *Syncer) EnsureHolding(ctx context.Context, mmsID, location, callNumber string) HoldingOutcome {
	out := HoldingOutcome{Location: location}

	refs, err := s.catalog.GetHoldings(ctx, mmsID)
	if err != nil {
		level.Warn(s.log).Log("msg", "failed to list holdings", "mms_id", mmsID, "err", err)
	}
	for _, ref := range refs {
		if ref.Library == "" || ref.Location == "" {
			level.Warn(s.log).Log("msg", "holding without library or location ignored", "holding_id", ref.HoldingID)
			continue
		}
		if ref.Library == s.cfg.Library && ref.Location == location {
			level.Info(s.log).Log("msg", "holding already exists", "library", ref.Library,
				"location", ref.Location, "holding_id", ref.HoldingID)
			out.HoldingID = ref.HoldingID
			out.Existing = true
			return out
		}
	}

	el, err := BuildHoldingElement(s.cfg.Library, location, callNumber)
	if err != nil {
		out.Err = err
		return out
	}
	if ok, problems := s.schemas.Holding.Validate(el, "holding"); !ok {
		out.Err = errors.Errorf("invalid holding element: %s", strings.Join(problems, "; "))
		return out
	}

	id, err := s.catalog.CreateHolding(ctx, mmsID, el)
	if err != nil {
		out.Err = err
		return out
	}
	level.Info(s.log).Log("msg", "holding created", "mms_id", mmsID,
		"location", location, "holding_id", id, "call_number", callNumber)
	out.HoldingID = id
	return out
}

// EnsureItem creates an item under the holding. Unmanaged locations are
// skipped without error.
func (s *Syncer) EnsureItem(ctx context.Context, mmsID string, h alma.HoldingRef) ItemOutcome {
	pol, ok := itemPolicy[h.Location]
	if !ok {
		level.Info(s.log).Log("msg", "location not managed, no item created", "location", h.Location)
		return ItemOutcome{Skipped: true}
	}

	el, err := buildItemElement(itemSpec{
		HoldingID:      h.HoldingID,
		Library:        h.Library,
		Location:       h.Location,
		BaseStatus:     pol.BaseStatus,
		Policy:         pol.Policy,
		PoLine:         s.cfg.PoLine,
		ArrivalDate:    s.now().Format("2006-01-02"),
		DepartmentCode: s.cfg.DepartmentCode,
		MaterialType:   s.cfg.MaterialType,
	})
	if err != nil {
		return ItemOutcome{Err: err}
	}
	if ok, problems := s.schemas.Item.Validate(el, "item"); !ok {
		return ItemOutcome{Err: errors.Errorf("invalid item element: %s", strings.Join(problems, "; "))}
	}

	id, err := s.catalog.CreateItem(ctx, mmsID, h.HoldingID, el)
	if err != nil {
		return ItemOutcome{Err: errors.Wrapf(err, "create item for holding %s (%s/%s)", h.HoldingID, h.Library, h.Location)}
	}
	level.Info(s.log).Log("msg", "item created", "holding_id", h.HoldingID, "item_id", id)
	return ItemOutcome{ItemID: id}
}

// SyncLocations runs EnsureHolding then EnsureItem for every configured
// location. A failed holding leaves the item untouched for that location.
func (s *Syncer) SyncLocations(ctx context.Context, mmsID, callNumber string) []LocationResult {
	results := make([]LocationResult, 0, len(s.cfg.Locations))
	for _, loc := range s.cfg.Locations {
		res := LocationResult{Location: loc}
		res.Holding = s.EnsureHolding(ctx, mmsID, loc, callNumber)
		if res.Holding.Err == nil {
			res.Item = s.EnsureItem(ctx, mmsID, alma.HoldingRef{
				HoldingID:  res.Holding.HoldingID,
				Library:    s.cfg.Library,
				Location:   loc,
				CallNumber: callNumber,
			})
		}
		results = append(results, res)
	}
	return results
}
