package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleNotice() *Notice {
	exists := false
	n := &Notice{
		RecordIndex:   1,
		InfoscienceID: "123456",
		Title:         "Une thèse",
		Author:        "Doe, Jane",
		CallNumber:    "ZTK 10071",
		SRUExists:     &exists,
		MMSID:         "991000001",
		BibStatus:     StatusCreated,
	}
	n.AddLocation(LocationOutcome{
		Location:      "E02XA",
		HoldingID:     "H1",
		HoldingStatus: StatusCreated,
		ItemID:        "I1",
		ItemStatus:    StatusCreated,
	})
	n.AddLocation(LocationOutcome{
		Location:      "E02SP",
		HoldingID:     "H2",
		HoldingStatus: StatusCreated,
		ItemStatus:    StatusError,
		ItemError:     "catalog down",
	})
	return n
}

func TestRowFlattening(t *testing.T) {
	row := sampleNotice().Row()

	require.Len(t, row, len(Header))
	assert.Equal(t, "1", row[0])
	assert.Equal(t, "false", row[5])
	assert.Equal(t, "E02XA | E02SP", row[9])
	assert.Equal(t, "H1 | H2", row[10])
	assert.Equal(t, "E02XA:CREATED | E02SP:CREATED", row[11])
	assert.Equal(t, "", row[12])
	assert.Equal(t, "I1", row[13])
	assert.Equal(t, "E02XA:CREATED | E02SP:ERROR", row[14])
	assert.Equal(t, "E02SP:catalog down", row[15])
}

func TestRowEmptyNotice(t *testing.T) {
	n := &Notice{RecordIndex: 3}
	row := n.Row()

	require.Len(t, row, len(Header))
	assert.Equal(t, "3", row[0])
	// dedup never ran
	assert.Equal(t, "", row[5])
	for i, col := range row[1:] {
		assert.Emptyf(t, col, "column %s", Header[i+1])
	}
}

func TestWriteCSV(t *testing.T) {
	agg := NewAggregator()
	agg.Add(sampleNotice())

	var buf bytes.Buffer
	require.NoError(t, agg.WriteCSV(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(Header, ";"), lines[0])
	assert.Contains(t, lines[1], "991000001")
	assert.Contains(t, lines[1], "E02XA | E02SP")
}

func TestSaveCSV(t *testing.T) {
	agg := NewAggregator()
	agg.Add(sampleNotice())

	path := filepath.Join(t.TempDir(), "rapport_2025-03-14.csv")
	require.NoError(t, agg.SaveCSV(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "record_index;infoscience_id")
}

func TestSaveXLSX(t *testing.T) {
	agg := NewAggregator()
	agg.Add(sampleNotice())

	path := filepath.Join(t.TempDir(), "rapport_2025-03-14.xlsx")
	require.NoError(t, agg.SaveXLSX(path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, "991000001", rows[1][6])
}

func TestAggregatorLen(t *testing.T) {
	agg := NewAggregator()
	assert.Equal(t, 0, agg.Len())
	agg.Add(sampleNotice())
	assert.Equal(t, 1, agg.Len())
}
