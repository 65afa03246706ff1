// Package parser turns CSV sources into import units.
//
// The header names the fields. A column "table.field" belongs to the child
// table "table"; every other column is a field of the record itself. A row
// with at least one record field set starts a new unit. A row that only sets
// child columns continues the previous unit with one more child row. Rows of
// empty cells are skipped. Row indexes count CSV records, the header being row 1.
package parser

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/exception"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
)

const moduleName = "parser"

// firstDataRow is the row index of the first row after the header.
const firstDataRow = 2

// CSVParser implements port.FileParser and port.RowReader for CSV sources.
type CSVParser struct {
	opener port.SourceOpener
}

// NewCSVParser creates a CSVParser reading through opener.
func NewCSVParser(opener port.SourceOpener) *CSVParser {
	return &CSVParser{opener: opener}
}

type column struct {
	index int
	field string
}

// layout is the parsed header.
type layout struct {
	fields     []column
	children   map[string][]column
	childOrder []string
}

func newLayout(header []string) (*layout, error) {
	l := &layout{children: make(map[string][]column)}
	seen := make(map[string]bool)
	for i, raw := range header {
		name := strings.TrimSpace(raw)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if name == "" {
			continue
		}
		if seen[name] {
			return nil, exception.NewImportErrorf(moduleName, "duplicate column '%s' in header", name)
		}
		seen[name] = true
		if table, field, ok := strings.Cut(name, "."); ok && table != "" && field != "" {
			if _, exists := l.children[table]; !exists {
				l.childOrder = append(l.childOrder, table)
			}
			l.children[table] = append(l.children[table], column{index: i, field: field})
			continue
		}
		l.fields = append(l.fields, column{index: i, field: name})
	}
	if len(l.fields) == 0 {
		return nil, exception.NewImportError(moduleName, "header has no record columns", nil)
	}
	return l, nil
}

func cell(record []string, index int) string {
	if index >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[index])
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// startsUnit reports whether record sets at least one record field.
func (l *layout) startsUnit(record []string) bool {
	for _, c := range l.fields {
		if cell(record, c.index) != "" {
			return true
		}
	}
	return false
}

func (l *layout) recordFields(record []string) model.Document {
	doc := model.Document{}
	for _, c := range l.fields {
		if v := cell(record, c.index); v != "" {
			doc[c.field] = v
		}
	}
	return doc
}

// addChildren appends the child rows set in record to doc.
func (l *layout) addChildren(doc model.Document, record []string) {
	for _, table := range l.childOrder {
		row := model.Document{}
		for _, c := range l.children[table] {
			if v := cell(record, c.index); v != "" {
				row[c.field] = v
			}
		}
		if len(row) == 0 {
			continue
		}
		rows, _ := doc[table].([]model.Document)
		doc[table] = append(rows, row)
	}
}

// scan reads the source of job and calls fn for every non-blank data row.
func (p *CSVParser) scan(ctx context.Context, job *model.ImportJob, fn func(l *layout, rowIndex int, record []string) error) (err error) {
	location := job.Source()
	src, err := p.opener.Open(ctx, location)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			err = multierror.Append(err, cerr).ErrorOrNil()
		}
	}()

	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return exception.NewImportErrorf(moduleName, "source '%s' is empty", location)
	}
	if err != nil {
		return exception.NewImportError(moduleName, fmt.Sprintf("failed to read header of '%s'", location), err)
	}
	l, err := newLayout(header)
	if err != nil {
		return err
	}

	for rowIndex := firstDataRow; ; rowIndex++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return exception.NewImportError(moduleName, fmt.Sprintf("failed to read row %d of '%s'", rowIndex, location), err)
		}
		if blank(record) {
			continue
		}
		if err := fn(l, rowIndex, record); err != nil {
			return err
		}
	}
}

// CountUnits counts the rows that start a unit without building documents.
func (p *CSVParser) CountUnits(ctx context.Context, job *model.ImportJob) (int, error) {
	count := 0
	started := false
	err := p.scan(ctx, job, func(l *layout, _ int, record []string) error {
		if l.startsUnit(record) || !started {
			count++
			started = true
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	logger.Debugf("Parser: '%s' has %d units.", job.Source(), count)
	return count, nil
}

// MaterializeUnits builds every unit of the job in source order.
func (p *CSVParser) MaterializeUnits(ctx context.Context, job *model.ImportJob) ([]model.ImportUnit, error) {
	var units []model.ImportUnit
	err := p.scan(ctx, job, func(l *layout, rowIndex int, record []string) error {
		if l.startsUnit(record) || len(units) == 0 {
			units = append(units, model.ImportUnit{Doc: l.recordFields(record)})
		}
		current := &units[len(units)-1]
		current.RowIndexes = append(current.RowIndexes, rowIndex)
		l.addChildren(current.Doc, record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return units, nil
}

// ReadRows returns the raw rows of the source, header first. Rows of empty
// cells are kept so that row i of the result is row index i+1.
func (p *CSVParser) ReadRows(ctx context.Context, job *model.ImportJob) (rows [][]string, err error) {
	src, err := p.opener.Open(ctx, job.Source())
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			err = multierror.Append(err, cerr).ErrorOrNil()
		}
	}()

	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	rows, err = r.ReadAll()
	if err != nil {
		return nil, exception.NewImportError(moduleName, fmt.Sprintf("failed to read '%s'", job.Source()), err)
	}
	return rows, nil
}

var (
	_ port.FileParser = (*CSVParser)(nil)
	_ port.RowReader  = (*CSVParser)(nil)
)
