// Package metadata implements the spectra metadata model: typed values,
// the columnar table that backs a spectra collection, and the optional
// secondary indexes used to answer metadata filters without a full scan.
//
// # Values
//
// Metadata cells are typed Values:
//
//   - String: metadata.String("sample_01.msp")
//   - Int: metadata.Int(2)
//   - Float: metadata.Float(529.23)
//   - Bool: metadata.Bool(true)
//   - Null: metadata.Null() (the missing sentinel)
//
// String values are interned with Go's unique package. Spectra metadata
// is highly repetitive (dataStorage and dataOrigin carry the same path
// for thousands of spectra), so interning keeps large collections cheap
// and turns equality checks into pointer comparisons.
//
// # Table
//
// A Table stores one column per field and one row per spectrum. Fields
// fall into two groups: the core spectra variables listed in fields.go,
// which are always queryable and type checked on assignment, and
// arbitrary extra fields contributed by sources or users. A cell that
// was never set holds Null.
//
// # Filters
//
// Filter and FilterSet express field conditions:
//
//	fs := metadata.NewFilterSet(
//	    metadata.Filter{Key: metadata.FieldMsLevel, Operator: metadata.OpEqual, Value: metadata.Int(2)},
//	)
//
// FilterSet semantics are AND across conditions. When an Index has been
// built for the touched fields, equality and range conditions resolve
// through Roaring Bitmaps and a B-tree instead of a row scan.
package metadata
