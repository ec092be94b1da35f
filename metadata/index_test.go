package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexedTable(t *testing.T) *Table {
	t.Helper()

	tbl, err := FromColumns(5, map[string][]Value{
		FieldMsLevel: {Int(1), Int(2), Int(2), Int(3), Null()},
		FieldRtime:   {Float(1.0), Float(2.0), Float(3.0), Float(4.0), Float(5.0)},
		FieldDataOrigin: {
			String("a.msp"), String("a.msp"), String("b.msp"),
			String("b.msp"), String("b.msp"),
		},
	})
	require.NoError(t, err)

	tbl.BuildIndex(
		[]string{FieldMsLevel, FieldDataOrigin},
		[]string{FieldRtime},
	)
	return tbl
}

func TestIndexRowsEqual(t *testing.T) {
	tbl := indexedTable(t)
	x := tbl.Index()
	require.NotNil(t, x)

	bm, ok := x.RowsEqual(FieldMsLevel, Int(2))
	require.True(t, ok)
	assert.Equal(t, []uint32{1, 2}, bm.ToArray())

	// Null rows are not indexed under any value.
	bm, ok = x.RowsEqual(FieldMsLevel, Null())
	require.True(t, ok)
	assert.True(t, bm.IsEmpty())

	// Unindexed field reports not-ok.
	_, ok = x.RowsEqual(FieldPolarity, Int(1))
	assert.False(t, ok)
}

func TestIndexRowsIn(t *testing.T) {
	x := indexedTable(t).Index()

	bm, ok := x.RowsIn(FieldMsLevel, []Value{Int(1), Int(3)})
	require.True(t, ok)
	assert.Equal(t, []uint32{0, 3}, bm.ToArray())
}

func TestIndexRowsBetween(t *testing.T) {
	x := indexedTable(t).Index()

	bm, ok := x.RowsBetween(FieldRtime, 2.0, 4.0)
	require.True(t, ok)
	assert.Equal(t, []uint32{1, 2, 3}, bm.ToArray())

	bm, ok = x.RowsBetween(FieldRtime, 10.0, 20.0)
	require.True(t, ok)
	assert.True(t, bm.IsEmpty())
}

func TestIndexResolve(t *testing.T) {
	x := indexedTable(t).Index()

	t.Run("conjunction", func(t *testing.T) {
		bm, ok := x.Resolve(NewFilterSet(
			Filter{Key: FieldMsLevel, Operator: OpEqual, Value: Int(2)},
			Filter{Key: FieldDataOrigin, Operator: OpEqual, Value: String("b.msp")},
		))
		require.True(t, ok)
		assert.Equal(t, []uint32{2}, bm.ToArray())
	})

	t.Run("range strict bound", func(t *testing.T) {
		bm, ok := x.Resolve(NewFilterSet(
			Filter{Key: FieldRtime, Operator: OpGreaterThan, Value: Float(2.0)},
			Filter{Key: FieldRtime, Operator: OpLessEqual, Value: Float(4.0)},
		))
		require.True(t, ok)
		assert.Equal(t, []uint32{2, 3}, bm.ToArray())
	})

	t.Run("unresolvable operator falls back", func(t *testing.T) {
		_, ok := x.Resolve(NewFilterSet(
			Filter{Key: FieldDataOrigin, Operator: OpContains, Value: String("a")},
		))
		assert.False(t, ok)
	})

	t.Run("unindexed field falls back", func(t *testing.T) {
		_, ok := x.Resolve(NewFilterSet(
			Filter{Key: FieldPolarity, Operator: OpEqual, Value: Int(1)},
		))
		assert.False(t, ok)
	})
}

func TestIndexInvalidatedOnMutation(t *testing.T) {
	tbl := indexedTable(t)
	require.NotNil(t, tbl.Index())

	require.NoError(t, tbl.Set(0, FieldMsLevel, Int(9)))
	assert.Nil(t, tbl.Index())
}
