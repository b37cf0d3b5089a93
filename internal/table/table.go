// Package table holds the in-memory tabular model processed by the engine
// and its CSV encoding.
package table

import (
	"errors"
	"fmt"
	"slices"
)

// ErrEmptyTable is returned when a source has no header row.
var ErrEmptyTable = errors.New("table has no header row")

// Row is one record of a table. ID is the row's position in its source
// table and stays attached to the row through filtering and reordering.
type Row struct {
	ID     int
	Values map[string]string
}

// Get returns the value stored under column and whether it exists.
func (r Row) Get(column string) (string, bool) {
	v, ok := r.Values[column]
	return v, ok
}

// Clone returns a copy of the row whose Values map can be mutated freely.
func (r Row) Clone() Row {
	values := make(map[string]string, len(r.Values)+1)
	for k, v := range r.Values {
		values[k] = v
	}
	return Row{ID: r.ID, Values: values}
}

// Table is an ordered sequence of rows sharing Columns.
type Table struct {
	Columns []string
	Rows    []Row
}

// New creates an empty table with the given schema.
func New(columns ...string) *Table {
	return &Table{Columns: slices.Clone(columns)}
}

// HasColumn reports whether name is part of the schema.
func (t *Table) HasColumn(name string) bool {
	return slices.Contains(t.Columns, name)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Append adds a row built from values in column order. The row's ID is its
// position in the table.
func (t *Table) Append(values ...string) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("row %d: got %d values for %d columns", len(t.Rows), len(values), len(t.Columns))
	}
	row := Row{ID: len(t.Rows), Values: make(map[string]string, len(values))}
	for i, col := range t.Columns {
		row.Values[col] = values[i]
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// WithColumn returns a schema equal to t.Columns plus name, unless name is
// already present.
func (t *Table) WithColumn(name string) []string {
	cols := slices.Clone(t.Columns)
	if !slices.Contains(cols, name) {
		cols = append(cols, name)
	}
	return cols
}

// Record renders row as a slice ordered by columns; missing values are empty.
func Record(columns []string, row Row) []string {
	rec := make([]string, len(columns))
	for i, col := range columns {
		rec[i] = row.Values[col]
	}
	return rec
}
