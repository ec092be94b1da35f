package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manogenome/Spectra/backend"
	"github.com/manogenome/Spectra/metadata"
	"github.com/manogenome/Spectra/peaks"
)

func testBackend(t *testing.T) *Backend {
	t.Helper()

	tbl, err := metadata.FromColumns(3, map[string][]metadata.Value{
		metadata.FieldMsLevel: {metadata.Int(1), metadata.Int(2), metadata.Int(2)},
		metadata.FieldRtime:   {metadata.Float(1.1), metadata.Float(2.2), metadata.Float(3.3)},
	})
	require.NoError(t, err)

	b, err := New(tbl, []peaks.Matrix{
		{Mz: []float64{100, 200}, Intensity: []float64{10, 20}},
		{Mz: []float64{150}, Intensity: []float64{15}},
		{Mz: []float64{}, Intensity: []float64{}},
	})
	require.NoError(t, err)
	return b
}

func TestNew(t *testing.T) {
	b := testBackend(t)
	assert.Equal(t, 3, b.SpectrumCount())

	t.Run("length mismatch", func(t *testing.T) {
		tbl := metadata.NewTable(2)
		_, err := New(tbl, []peaks.Matrix{{}})
		require.ErrorIs(t, err, backend.ErrLengthMismatch)
	})

	t.Run("malformed matrix", func(t *testing.T) {
		tbl := metadata.NewTable(1)
		_, err := New(tbl, []peaks.Matrix{{Mz: []float64{1}, Intensity: []float64{}}})
		require.ErrorIs(t, err, peaks.ErrLengthMismatch)
	})

	t.Run("nil table", func(t *testing.T) {
		b, err := New(nil, []peaks.Matrix{{}})
		require.NoError(t, err)
		assert.Equal(t, 1, b.SpectrumCount())
	})
}

func TestMetadataDataStorage(t *testing.T) {
	b := testBackend(t)

	tbl, err := b.Metadata(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{DataStorage, DataStorage, DataStorage},
		tbl.Strings(metadata.FieldDataStorage))
}

func TestMetadataProjection(t *testing.T) {
	b := testBackend(t)

	tbl, err := b.Metadata(context.Background(), []string{metadata.FieldMsLevel, "unknownField"})
	require.NoError(t, err)
	assert.Equal(t, []string{metadata.FieldMsLevel, "unknownField"}, tbl.Fields())
	assert.True(t, tbl.Get(0, "unknownField").IsNull())
}

func TestPeaks(t *testing.T) {
	b := testBackend(t)
	ctx := context.Background()

	out, err := b.Peaks(ctx, []int{2, 0})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 0, out[0].Len())
	assert.Equal(t, []float64{100, 200}, out[1].Mz)

	_, err = b.Peaks(ctx, []int{3})
	require.ErrorIs(t, err, backend.ErrIndexOutOfRange)
}

func TestPeaksReturnsCopies(t *testing.T) {
	b := testBackend(t)
	ctx := context.Background()

	out, err := b.Peaks(ctx, []int{0})
	require.NoError(t, err)
	out[0].Intensity[0] = 999

	again, err := b.Peaks(ctx, []int{0})
	require.NoError(t, err)
	assert.Equal(t, 10.0, again[0].Intensity[0])
}

func TestWrite(t *testing.T) {
	b := testBackend(t)
	ctx := context.Background()
	require.True(t, b.SupportsWrite())

	err := b.Write(ctx, []int{1}, backend.Update{
		Peaks: []peaks.Matrix{{Mz: []float64{500}, Intensity: []float64{50}}},
		Metadata: map[string][]metadata.Value{
			metadata.FieldRtime: {metadata.Float(9.9)},
		},
	})
	require.NoError(t, err)

	out, err := b.Peaks(ctx, []int{1})
	require.NoError(t, err)
	assert.Equal(t, []float64{500}, out[0].Mz)

	tbl, err := b.Metadata(ctx, nil)
	require.NoError(t, err)
	f, _ := tbl.Get(1, metadata.FieldRtime).AsFloat64()
	assert.Equal(t, 9.9, f)
}

func TestWriteRejectsBadPayload(t *testing.T) {
	b := testBackend(t)
	ctx := context.Background()

	err := b.Write(ctx, []int{0, 1}, backend.Update{
		Peaks: []peaks.Matrix{{}},
	})
	require.ErrorIs(t, err, backend.ErrLengthMismatch)

	err = b.Write(ctx, []int{5}, backend.Update{
		Peaks: []peaks.Matrix{{}},
	})
	require.ErrorIs(t, err, backend.ErrIndexOutOfRange)

	// Type checks run before anything is applied.
	err = b.Write(ctx, []int{0, 1}, backend.Update{
		Metadata: map[string][]metadata.Value{
			metadata.FieldMsLevel: {metadata.Int(3), metadata.String("bad")},
		},
	})
	require.ErrorIs(t, err, metadata.ErrTypeMismatch)

	tbl, err := b.Metadata(ctx, nil)
	require.NoError(t, err)
	lvl, _ := tbl.Get(0, metadata.FieldMsLevel).AsInt64()
	assert.Equal(t, int64(1), lvl)
}

func TestResetNoop(t *testing.T) {
	b := testBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Write(ctx, []int{0}, backend.Update{
		Peaks: []peaks.Matrix{{Mz: []float64{1}, Intensity: []float64{1}}},
	}))
	require.NoError(t, b.Reset(ctx))

	// Writes are storage, not cache: reset does not undo them.
	out, err := b.Peaks(ctx, []int{0})
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, out[0].Mz)
}

func TestFactory(t *testing.T) {
	f := Factory()
	tbl := metadata.NewTable(1)
	b, err := f(context.Background(), tbl, []peaks.Matrix{{Mz: []float64{1}, Intensity: []float64{2}}})
	require.NoError(t, err)
	assert.Equal(t, 1, b.SpectrumCount())
	require.NoError(t, b.Close())
}
