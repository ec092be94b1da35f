package metadata

import (
	"math"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/btree"
)

// Index provides secondary indexes over a table's columns so metadata
// filters can be answered without scanning every row.
//
// Two index shapes are supported:
//
//   - inverted: field -> value key -> bitmap of rows, for discrete
//     fields such as msLevel, polarity or dataOrigin
//   - range: a B-tree of (value, row) pairs per numeric field, for
//     interval queries such as retention time windows
//
// Null cells are not indexed: missing data never matches a filter.
type Index struct {
	inverted map[string]map[string]*roaring.Bitmap
	ranges   map[string]*btree.BTreeG[rangeEntry]
}

type rangeEntry struct {
	val float64
	row uint32
}

func lessRangeEntry(a, b rangeEntry) bool {
	if a.val != b.val {
		return a.val < b.val
	}
	return a.row < b.row
}

// BuildIndex builds secondary indexes for the given fields and attaches
// the result to the table. Fields in discrete get an inverted index,
// fields in numeric get a range tree; a field may appear in both.
// Fields the table does not carry are skipped. Any later mutation of
// the table invalidates the index.
func (t *Table) BuildIndex(discrete, numeric []string) *Index {
	x := &Index{
		inverted: make(map[string]map[string]*roaring.Bitmap),
		ranges:   make(map[string]*btree.BTreeG[rangeEntry]),
	}

	for _, field := range discrete {
		col, ok := t.cols[field]
		if !ok {
			continue
		}
		postings := make(map[string]*roaring.Bitmap)
		for row, v := range col {
			if v.IsNull() {
				continue
			}
			key := v.Key()
			bm, ok := postings[key]
			if !ok {
				bm = roaring.New()
				postings[key] = bm
			}
			bm.Add(uint32(row))
		}
		x.inverted[field] = postings
	}

	for _, field := range numeric {
		col, ok := t.cols[field]
		if !ok {
			continue
		}
		tree := btree.NewG(32, lessRangeEntry)
		for row, v := range col {
			f, ok := v.AsFloat64()
			if !ok {
				continue
			}
			tree.ReplaceOrInsert(rangeEntry{val: f, row: uint32(row)})
		}
		x.ranges[field] = tree
	}

	t.idx = x
	return x
}

// Index returns the index attached to the table, or nil if none was
// built or a mutation invalidated it.
func (t *Table) Index() *Index { return t.idx }

// RowsEqual returns the rows whose field equals v. The second return is
// false when the field has no inverted index.
func (x *Index) RowsEqual(field string, v Value) (*roaring.Bitmap, bool) {
	postings, ok := x.inverted[field]
	if !ok {
		return nil, false
	}
	bm, ok := postings[v.Key()]
	if !ok {
		return roaring.New(), true
	}
	return bm.Clone(), true
}

// RowsIn returns the rows whose field equals any of the given values.
// The second return is false when the field has no inverted index.
func (x *Index) RowsIn(field string, vals []Value) (*roaring.Bitmap, bool) {
	postings, ok := x.inverted[field]
	if !ok {
		return nil, false
	}
	out := roaring.New()
	for _, v := range vals {
		if bm, ok := postings[v.Key()]; ok {
			out.Or(bm)
		}
	}
	return out, true
}

// RowsBetween returns the rows whose field lies in [lo, hi], both ends
// inclusive. The second return is false when the field has no range
// index.
func (x *Index) RowsBetween(field string, lo, hi float64) (*roaring.Bitmap, bool) {
	tree, ok := x.ranges[field]
	if !ok {
		return nil, false
	}
	out := roaring.New()
	tree.AscendGreaterOrEqual(rangeEntry{val: lo}, func(e rangeEntry) bool {
		if e.val > hi {
			return false
		}
		out.Add(e.row)
		return true
	})
	return out, true
}

// Resolve compiles a filter set into a bitmap of matching rows. The
// second return is false when any condition touches a field or operator
// the index cannot answer; callers then fall back to a row scan.
func (x *Index) Resolve(fs *FilterSet) (*roaring.Bitmap, bool) {
	if fs == nil || len(fs.Filters) == 0 {
		return nil, false
	}

	var result *roaring.Bitmap

	for _, f := range fs.Filters {
		var (
			bm *roaring.Bitmap
			ok bool
		)

		switch f.Operator {
		case OpEqual:
			bm, ok = x.RowsEqual(f.Key, f.Value)
		case OpIn:
			arr, isArr := f.Value.AsArray()
			if !isArr {
				return nil, false
			}
			bm, ok = x.RowsIn(f.Key, arr)
		case OpGreaterThan, OpGreaterEqual, OpLessThan, OpLessEqual:
			bm, ok = x.resolveRange(f)
		default:
			return nil, false
		}
		if !ok {
			return nil, false
		}

		if result == nil {
			result = bm
		} else {
			result.And(bm)
		}
		if result.IsEmpty() {
			return result, true
		}
	}

	return result, true
}

func (x *Index) resolveRange(f Filter) (*roaring.Bitmap, bool) {
	pivot, ok := f.Value.AsFloat64()
	if !ok {
		return nil, false
	}

	lo, hi := math.Inf(-1), math.Inf(1)
	switch f.Operator {
	case OpGreaterThan, OpGreaterEqual:
		lo = pivot
	case OpLessThan, OpLessEqual:
		hi = pivot
	}

	bm, ok := x.RowsBetween(f.Key, lo, hi)
	if !ok {
		return nil, false
	}

	// Strict comparisons drop the boundary rows.
	if f.Operator == OpGreaterThan || f.Operator == OpLessThan {
		if edge, ok := x.RowsBetween(f.Key, pivot, pivot); ok {
			bm.AndNot(edge)
		}
	}
	return bm, true
}
