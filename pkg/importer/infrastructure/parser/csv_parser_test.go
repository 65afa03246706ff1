package parser_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	"github.com/tigerroll/surfin-import/pkg/importer/infrastructure/parser"
)

// memOpener serves sources from memory.
type memOpener map[string]string

func (m memOpener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	content, ok := m[location]
	if !ok {
		return nil, errors.New("no such source: " + location)
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func jobFor(file string) *model.ImportJob {
	job := model.NewImportJob("Article", model.ImportTypeInsert)
	job.ImportFile = file
	return job
}

const ordersCSV = `name,customer,items.item_code,items.qty
SO-001,Acme,WIDGET,2
,,GADGET,1
SO-002,Globex,WIDGET,5
,,,
SO-003,Initech,,
`

func TestCSVParser_GroupsChildRows(t *testing.T) {
	p := parser.NewCSVParser(memOpener{"orders.csv": ordersCSV})
	ctx := context.Background()
	job := jobFor("orders.csv")

	count, err := p.CountUnits(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	units, err := p.MaterializeUnits(ctx, job)
	require.NoError(t, err)
	require.Len(t, units, count)

	first := units[0]
	assert.Equal(t, []int{2, 3}, first.RowIndexes)
	assert.Equal(t, "SO-001", first.Doc.Name())
	assert.Equal(t, "Acme", first.Doc["customer"])
	assert.Equal(t, []model.Document{
		{"item_code": "WIDGET", "qty": "2"},
		{"item_code": "GADGET", "qty": "1"},
	}, first.Doc["items"])

	assert.Equal(t, []int{4}, units[1].RowIndexes)
	assert.Equal(t, []int{6}, units[2].RowIndexes, "the row of empty cells is skipped but still numbered")
	assert.NotContains(t, units[2].Doc, "items")
}

func TestCSVParser_LeadingContinuationRowStartsUnit(t *testing.T) {
	p := parser.NewCSVParser(memOpener{"a.csv": "name,items.qty\n,3\nA,1\n"})
	ctx := context.Background()

	count, err := p.CountUnits(ctx, jobFor("a.csv"))
	require.NoError(t, err)
	units, err := p.MaterializeUnits(ctx, jobFor("a.csv"))
	require.NoError(t, err)
	require.Len(t, units, count)
	assert.Equal(t, "", units[0].Doc.Name())
	assert.Equal(t, "A", units[1].Doc.Name())
}

func TestCSVParser_HeaderErrors(t *testing.T) {
	p := parser.NewCSVParser(memOpener{
		"empty.csv":      "",
		"dup.csv":        "name,name\nA,B\n",
		"children.csv":   "items.qty\n1\n",
		"headeronly.csv": "name,title\n",
	})
	ctx := context.Background()

	for _, file := range []string{"empty.csv", "dup.csv", "children.csv", "missing.csv"} {
		_, err := p.CountUnits(ctx, jobFor(file))
		assert.Error(t, err, file)
	}

	count, err := p.CountUnits(ctx, jobFor("headeronly.csv"))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCSVParser_ReadRows(t *testing.T) {
	p := parser.NewCSVParser(memOpener{"orders.csv": ordersCSV})
	rows, err := p.ReadRows(context.Background(), jobFor("orders.csv"))
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, []string{"name", "customer", "items.item_code", "items.qty"}, rows[0])
	// Row index 4 is rows[3].
	assert.Equal(t, "SO-002", rows[3][0])
}

func TestCSVParser_StripsByteOrderMark(t *testing.T) {
	p := parser.NewCSVParser(memOpener{"bom.csv": "\ufeffname,title\nA,Hello\n"})
	units, err := p.MaterializeUnits(context.Background(), jobFor("bom.csv"))
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "A", units[0].Doc.Name())
}
