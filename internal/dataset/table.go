// Package dataset holds the immutable crash table the dashboard is computed
// from, and the loaders that build it from CSV, XLSX or Postgres rows.
package dataset

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Table is a read-only handle around a gota DataFrame. Every method returns
// copies or new Tables; the underlying frame is never modified after load,
// so a Table is safe for concurrent readers.
type Table struct {
	frame    dataframe.DataFrame
	source   string
	loadedAt time.Time
}

// Predicate selects rows in Where.
type Predicate = dataframe.F

// NotEqual keeps rows whose col differs from value.
func NotEqual(col, value string) Predicate {
	return dataframe.F{Colname: col, Comparator: series.Neq, Comparando: value}
}

// OneOf keeps rows whose col equals any of values.
func OneOf(col string, values ...string) Predicate {
	return dataframe.F{Colname: col, Comparator: series.In, Comparando: values}
}

func newTable(frame dataframe.DataFrame, source string) *Table {
	return &Table{frame: frame, source: source, loadedAt: time.Now().UTC()}
}

// Len returns the number of rows
func (t *Table) Len() int {
	return t.frame.Nrow()
}

// Columns returns the column names in file order
func (t *Table) Columns() []string {
	return t.frame.Names()
}

// Source describes where the table came from (path or "postgres")
func (t *Table) Source() string {
	return t.source
}

// LoadedAt is the time the base table was built
func (t *Table) LoadedAt() time.Time {
	return t.loadedAt
}

// HasColumn reports whether col exists
func (t *Table) HasColumn(col string) bool {
	for _, name := range t.frame.Names() {
		if name == col {
			return true
		}
	}
	return false
}

// Strings returns a copy of a column as strings. Missing cells are blank.
func (t *Table) Strings(col string) ([]string, error) {
	if !t.HasColumn(col) {
		return nil, fmt.Errorf("column %q not found", col)
	}
	return cells(t.frame.Col(col)), nil
}

// cells renders a column for display: NaN is blank and floats drop the
// trailing zeros gota adds, so 3.0 reads "3".
func cells(s series.Series) []string {
	out := s.Records()
	var values []float64
	if s.Type() == series.Float {
		values = s.Float()
	}
	for i, nan := range s.IsNaN() {
		switch {
		case nan:
			out[i] = ""
		case values != nil:
			out[i] = strconv.FormatFloat(values[i], 'f', -1, 64)
		}
	}
	return out
}

// Numbers returns a copy of a column as float64. Blank or non-numeric cells
// are NaN.
func (t *Table) Numbers(col string) ([]float64, error) {
	if !t.HasColumn(col) {
		return nil, fmt.Errorf("column %q not found", col)
	}
	return t.frame.Col(col).Float(), nil
}

// Where returns a new Table with the rows matching every predicate.
func (t *Table) Where(preds ...Predicate) (*Table, error) {
	frame := t.frame
	for _, p := range preds {
		if frame.Nrow() == 0 {
			break
		}
		if !t.HasColumn(p.Colname) {
			return nil, fmt.Errorf("filter on unknown column %q", p.Colname)
		}
		frame = frame.Filter(p)
		if frame.Err != nil {
			return nil, fmt.Errorf("filter %s %s: %w", p.Colname, p.Comparator, frame.Err)
		}
	}
	return &Table{frame: frame, source: t.source, loadedAt: t.loadedAt}, nil
}

// Head returns up to n rows as strings, without the header.
func (t *Table) Head(n int) [][]string {
	if n > t.Len() {
		n = t.Len()
	}
	if n <= 0 {
		return [][]string{}
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	head := t.frame.Subset(idx)
	names := head.Names()
	cols := make([][]string, len(names))
	for i, name := range names {
		cols[i] = cells(head.Col(name))
	}
	rows := make([][]string, n)
	for r := range rows {
		row := make([]string, len(names))
		for c := range names {
			row[c] = cols[c][r]
		}
		rows[r] = row
	}
	return rows
}

// Rows returns every row keyed by column name, cells rendered as in Head.
// Used by the ingester.
func (t *Table) Rows() []map[string]string {
	names := t.frame.Names()
	cols := make([][]string, len(names))
	for i, name := range names {
		cols[i] = cells(t.frame.Col(name))
	}
	rows := make([]map[string]string, t.Len())
	for r := range rows {
		row := make(map[string]string, len(names))
		for c, name := range names {
			row[name] = cols[c][r]
		}
		rows[r] = row
	}
	return rows
}
