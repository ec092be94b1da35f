package metadata

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
)

// Errors returned by table operations.
var (
	// ErrColumnLength is returned when a column's length does not match
	// the table's row count.
	ErrColumnLength = errors.New("metadata: column length mismatch")

	// ErrRowOutOfRange is returned when a row index is outside the
	// table's row range.
	ErrRowOutOfRange = errors.New("metadata: row index out of range")
)

// Table is the columnar metadata store of a spectra collection: one
// column per field, one row per spectrum. Cells that were never set
// hold Null.
//
// A Table is not safe for concurrent mutation. Collections treat their
// table as immutable and copy on write, so concurrent reads never need
// locking.
type Table struct {
	n     int
	order []string
	cols  map[string][]Value
	idx   *Index
}

// NewTable creates an empty table with n rows and no fields.
func NewTable(n int) *Table {
	return &Table{
		n:    n,
		cols: make(map[string][]Value),
	}
}

// FromColumns builds a table with n rows from the given columns. Field
// order follows the sorted column names so the layout is deterministic.
// It fails with ErrColumnLength if any column has a different length.
func FromColumns(n int, cols map[string][]Value) (*Table, error) {
	t := NewTable(n)
	for _, name := range slices.Sorted(maps.Keys(cols)) {
		if err := t.SetColumn(name, cols[name]); err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
	}
	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.n }

// Fields returns the field names in table order.
func (t *Table) Fields() []string {
	return slices.Clone(t.order)
}

// HasField reports whether the table has a column for name.
func (t *Table) HasField(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Column returns the column for name. The returned slice is the
// table's storage; callers must not modify it.
func (t *Table) Column(name string) ([]Value, bool) {
	col, ok := t.cols[name]
	return col, ok
}

// Get returns the cell at row i of the named column. Absent fields read
// as Null. The row index must be within range.
func (t *Table) Get(i int, name string) Value {
	col, ok := t.cols[name]
	if !ok {
		return Null()
	}
	return col[i]
}

// Set writes the cell at row i of the named column, creating a
// Null-filled column if the field is new. Core fields are type checked.
// Any index built on the table is invalidated.
func (t *Table) Set(i int, name string, v Value) error {
	if i < 0 || i >= t.n {
		return fmt.Errorf("row %d of %d: %w", i, t.n, ErrRowOutOfRange)
	}
	if err := CheckField(name, v); err != nil {
		return err
	}

	col, ok := t.cols[name]
	if !ok {
		col = nullColumn(t.n)
		t.cols[name] = col
		t.order = append(t.order, name)
	}
	col[i] = v
	t.idx = nil

	return nil
}

// SetColumn replaces (or creates) the named column. Core fields are
// type checked element-wise. Any index built on the table is
// invalidated.
func (t *Table) SetColumn(name string, vals []Value) error {
	if len(vals) != t.n {
		return fmt.Errorf("%d values for %d rows: %w", len(vals), t.n, ErrColumnLength)
	}
	for _, v := range vals {
		if err := CheckField(name, v); err != nil {
			return err
		}
	}

	if _, ok := t.cols[name]; !ok {
		t.order = append(t.order, name)
	}
	t.cols[name] = slices.Clone(vals)
	t.idx = nil

	return nil
}

// DropColumn removes the named column if present.
func (t *Table) DropColumn(name string) {
	if _, ok := t.cols[name]; !ok {
		return
	}
	delete(t.cols, name)
	t.order = slices.DeleteFunc(t.order, func(s string) bool { return s == name })
	t.idx = nil
}

// Row returns row i as a Document. Null cells are skipped, so the
// document contains exactly the fields with data for this spectrum.
func (t *Table) Row(i int) Document {
	doc := make(Document)
	for _, name := range t.order {
		if v := t.cols[name][i]; !v.IsNull() {
			doc[name] = v
		}
	}
	return doc
}

// SetRow writes the document's fields into row i. Fields absent from
// the document are left untouched.
func (t *Table) SetRow(i int, doc Document) error {
	for name, v := range doc {
		if err := t.Set(i, name, v); err != nil {
			return err
		}
	}
	return nil
}

// Select returns a new table holding the given rows in the given order.
// Duplicate rows are materialized per occurrence.
func (t *Table) Select(rows []int) (*Table, error) {
	for _, r := range rows {
		if r < 0 || r >= t.n {
			return nil, fmt.Errorf("row %d of %d: %w", r, t.n, ErrRowOutOfRange)
		}
	}

	s := NewTable(len(rows))
	s.order = slices.Clone(t.order)
	for name, col := range t.cols {
		sel := make([]Value, len(rows))
		for i, r := range rows {
			sel[i] = col[r]
		}
		s.cols[name] = sel
	}
	return s, nil
}

// Append returns a new table with other's rows appended. The field set
// is the union of both tables; cells a side does not carry are filled
// with Null.
func (t *Table) Append(other *Table) *Table {
	out := NewTable(t.n + other.n)
	out.order = slices.Clone(t.order)
	for _, name := range other.order {
		if !slices.Contains(out.order, name) {
			out.order = append(out.order, name)
		}
	}

	for _, name := range out.order {
		col := make([]Value, 0, out.n)
		if c, ok := t.cols[name]; ok {
			col = append(col, c...)
		} else {
			col = append(col, nullColumn(t.n)...)
		}
		if c, ok := other.cols[name]; ok {
			col = append(col, c...)
		} else {
			col = append(col, nullColumn(other.n)...)
		}
		out.cols[name] = col
	}
	return out
}

// Project returns a new table holding exactly the requested fields.
// Requested fields the table does not carry become Null columns, so the
// result always has the shape the caller asked for.
func (t *Table) Project(fields []string) *Table {
	p := NewTable(t.n)
	for _, name := range fields {
		if slices.Contains(p.order, name) {
			continue
		}
		p.order = append(p.order, name)
		if col, ok := t.cols[name]; ok {
			p.cols[name] = slices.Clone(col)
		} else {
			p.cols[name] = nullColumn(t.n)
		}
	}
	return p
}

// Clone returns a deep copy of the table. Indexes are not carried over.
func (t *Table) Clone() *Table {
	c := NewTable(t.n)
	c.order = slices.Clone(t.order)
	for name, col := range t.cols {
		c.cols[name] = slices.Clone(col)
	}
	return c
}

// Floats extracts the named column as float64 values. Null cells and
// absent fields read as NaN; integer cells are widened.
func (t *Table) Floats(name string) []float64 {
	out := make([]float64, t.n)
	col, ok := t.cols[name]
	if !ok {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	for i, v := range col {
		if f, ok := v.AsFloat64(); ok {
			out[i] = f
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// Ints extracts the named column as int values. Null cells and absent
// fields read as the given missing sentinel.
func (t *Table) Ints(name string, missing int) []int {
	out := make([]int, t.n)
	col, ok := t.cols[name]
	if !ok {
		for i := range out {
			out[i] = missing
		}
		return out
	}
	for i, v := range col {
		if n, ok := v.AsInt64(); ok {
			out[i] = int(n)
		} else {
			out[i] = missing
		}
	}
	return out
}

// Strings extracts the named column as string values. Null cells and
// absent fields read as the empty string.
func (t *Table) Strings(name string) []string {
	out := make([]string, t.n)
	col, ok := t.cols[name]
	if !ok {
		return out
	}
	for i, v := range col {
		out[i], _ = v.AsString()
	}
	return out
}

// Bools extracts the named column as boolean values plus a presence
// mask. present[i] is false where the cell is Null or the field is
// absent, mirroring the tri-state nature of flags such as centroided.
func (t *Table) Bools(name string) (vals, present []bool) {
	vals = make([]bool, t.n)
	present = make([]bool, t.n)
	col, ok := t.cols[name]
	if !ok {
		return vals, present
	}
	for i, v := range col {
		if b, ok := v.AsBool(); ok {
			vals[i] = b
			present[i] = true
		}
	}
	return vals, present
}

func nullColumn(n int) []Value {
	col := make([]Value, n)
	for i := range col {
		col[i] = Null()
	}
	return col
}
