package syncer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epfllibrary/thesisync/pkg/alma"
	"github.com/epfllibrary/thesisync/pkg/marc"
)

type fakeCatalog struct {
	holdings    []alma.HoldingRef
	holdingsErr error
	createErr   error

	createdBibs     [][]byte
	createdHoldings [][]byte
	createdItems    [][]byte
	itemHoldingIDs  []string
}

func (f *fakeCatalog) CreateBib(_ context.Context, bib []byte) (string, error) {
	f.createdBibs = append(f.createdBibs, bib)
	return "991000001", nil
}

func (f *fakeCatalog) GetHoldings(_ context.Context, _ string) ([]alma.HoldingRef, error) {
	return f.holdings, f.holdingsErr
}

func (f *fakeCatalog) CreateHolding(_ context.Context, _ string, holding []byte) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.createdHoldings = append(f.createdHoldings, holding)
	return "221000001", nil
}

func (f *fakeCatalog) CreateItem(_ context.Context, _, holdingID string, item []byte) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.createdItems = append(f.createdItems, item)
	f.itemHoldingIDs = append(f.itemHoldingIDs, holdingID)
	return "231000001", nil
}

func testSyncer(catalog Catalog) *Syncer {
	s := New(Config{
		Library:        "hph_bjnbecip",
		Locations:      []string{"E02XA", "E02SP"},
		DepartmentCode: "AcqDepthph_bjnbecip",
		MaterialType:   "THESIS",
	}, catalog, nil, log.NewNopLogger())
	s.now = func() time.Time { return time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC) }
	return s
}

func TestBuildBibElement(t *testing.T) {
	rec := &marc.Record{Leader: "00000nam a2200000 c 4500"}
	rec.AddField(marc.DataField{Tag: "245", Ind1: "1", Ind2: "0",
		Subfields: []marc.Subfield{{Code: "a", Value: "A title"}}})

	bib, err := BuildBibElement(rec)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(bib), "<bib>"))
	assert.True(t, strings.HasSuffix(string(bib), "</bib>"))
	assert.Contains(t, string(bib), "A title")
}

func TestBuildHoldingElement(t *testing.T) {
	el, err := BuildHoldingElement("hph_bjnbecip", "E02XA", "ZTK 10071")
	require.NoError(t, err)

	s := string(el)
	assert.Contains(t, s, "<holding><holding_id></holding_id>")
	assert.Contains(t, s, `code="b">hph_bjnbecip<`)
	assert.Contains(t, s, `code="c">E02XA<`)
	assert.Contains(t, s, `code="j">ZTK 10071<`)
	assert.Contains(t, s, holdingControl)
}

func TestEnsureHoldingCreates(t *testing.T) {
	catalog := &fakeCatalog{}
	s := testSyncer(catalog)

	out := s.EnsureHolding(context.Background(), "991", "E02XA", "ZTK 10071")

	require.NoError(t, out.Err)
	assert.Equal(t, "221000001", out.HoldingID)
	assert.False(t, out.Existing)
	require.Len(t, catalog.createdHoldings, 1)
	assert.Contains(t, string(catalog.createdHoldings[0]), "ZTK 10071")
}

func TestEnsureHoldingExisting(t *testing.T) {
	catalog := &fakeCatalog{holdings: []alma.HoldingRef{
		{HoldingID: "broken"},
		{HoldingID: "H1", Library: "hph_bjnbecip", Location: "E02XA"},
	}}
	s := testSyncer(catalog)

	out := s.EnsureHolding(context.Background(), "991", "E02XA", "ZTK 10071")

	require.NoError(t, out.Err)
	assert.True(t, out.Existing)
	assert.Equal(t, "H1", out.HoldingID)
	assert.Empty(t, catalog.createdHoldings)
}

func TestEnsureHoldingLookupErrorStillCreates(t *testing.T) {
	catalog := &fakeCatalog{holdingsErr: errors.New("boom")}
	s := testSyncer(catalog)

	out := s.EnsureHolding(context.Background(), "991", "E02SP", "ZTK 10071")

	require.NoError(t, out.Err)
	assert.Equal(t, "221000001", out.HoldingID)
}

func TestEnsureHoldingCreateError(t *testing.T) {
	catalog := &fakeCatalog{createErr: errors.New("catalog down")}
	s := testSyncer(catalog)

	out := s.EnsureHolding(context.Background(), "991", "E02SP", "ZTK 10071")

	require.Error(t, out.Err)
	assert.Empty(t, out.HoldingID)
}

func TestEnsureItem(t *testing.T) {
	catalog := &fakeCatalog{}
	s := testSyncer(catalog)

	out := s.EnsureItem(context.Background(), "991", alma.HoldingRef{
		HoldingID: "H1", Library: "hph_bjnbecip", Location: "E02SP",
	})

	require.NoError(t, out.Err)
	assert.False(t, out.Skipped)
	assert.Equal(t, "231000001", out.ItemID)

	require.Len(t, catalog.createdItems, 1)
	item := string(catalog.createdItems[0])
	assert.Contains(t, item, "<base_status>04</base_status>")
	assert.Contains(t, item, "<policy>04</policy>")
	assert.Contains(t, item, "<physical_material_type>THESIS</physical_material_type>")
	assert.Contains(t, item, "<arrival_date>2025-03-14</arrival_date>")
	assert.Contains(t, item, "<process_type>WORK_ORDER_DEPARTMENT</process_type>")
	assert.Contains(t, item, "<work_order_at>AcqDepthph_bjnbecip</work_order_at>")
	assert.Equal(t, []string{"H1"}, catalog.itemHoldingIDs)
}

func TestEnsureItemArchivePolicy(t *testing.T) {
	catalog := &fakeCatalog{}
	s := testSyncer(catalog)

	out := s.EnsureItem(context.Background(), "991", alma.HoldingRef{
		HoldingID: "H2", Library: "hph_bjnbecip", Location: "E02XA",
	})

	require.NoError(t, out.Err)
	item := string(catalog.createdItems[0])
	assert.Contains(t, item, "<base_status>70</base_status>")
	assert.Contains(t, item, "<policy>70</policy>")
}

func TestEnsureItemUnmanagedLocation(t *testing.T) {
	catalog := &fakeCatalog{}
	s := testSyncer(catalog)

	out := s.EnsureItem(context.Background(), "991", alma.HoldingRef{
		HoldingID: "H3", Library: "hph_bjnbecip", Location: "E99ZZ",
	})

	require.NoError(t, out.Err)
	assert.True(t, out.Skipped)
	assert.Empty(t, out.ItemID)
	assert.Empty(t, catalog.createdItems)
}

func TestSyncLocations(t *testing.T) {
	catalog := &fakeCatalog{}
	s := testSyncer(catalog)

	results := s.SyncLocations(context.Background(), "991", "ZTK 10071")

	require.Len(t, results, 2)
	assert.Equal(t, "E02XA", results[0].Location)
	assert.Equal(t, "E02SP", results[1].Location)
	for _, res := range results {
		assert.NoError(t, res.Holding.Err)
		assert.NoError(t, res.Item.Err)
		assert.NotEmpty(t, res.Item.ItemID)
	}
	assert.Len(t, catalog.createdHoldings, 2)
	assert.Len(t, catalog.createdItems, 2)
}

func TestSyncLocationsHoldingFailureSkipsItem(t *testing.T) {
	catalog := &fakeCatalog{createErr: errors.New("catalog down")}
	s := testSyncer(catalog)

	results := s.SyncLocations(context.Background(), "991", "ZTK 10071")

	require.Len(t, results, 2)
	for _, res := range results {
		assert.Error(t, res.Holding.Err)
		assert.Empty(t, res.Item.ItemID)
	}
	assert.Empty(t, catalog.createdItems)
}

func TestCheckBibWithoutSchemas(t *testing.T) {
	s := testSyncer(&fakeCatalog{})

	rec := &marc.Record{Leader: "00000nam a2200000 c 4500"}
	bib, problems, err := s.CheckBib(rec)

	require.NoError(t, err)
	assert.Empty(t, problems)
	assert.Contains(t, string(bib), "<bib>")
}
