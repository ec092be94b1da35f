package spectra_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	spectra "github.com/manogenome/Spectra"
	"github.com/manogenome/Spectra/metadata"
	"github.com/manogenome/Spectra/peaks"
	"github.com/manogenome/Spectra/processing"
)

// multiStorageCollection builds a collection whose spectra live in
// several physical locations, so peak reads fan out over multiple
// partitions.
func multiStorageCollection(t *testing.T, optFns ...spectra.Option) *spectra.Spectra {
	t.Helper()

	const n = 12
	tbl := metadata.NewTable(n)
	pk := make([]peaks.Matrix, n)
	for i := 0; i < n; i++ {
		require.NoError(t, tbl.Set(i, metadata.FieldScanIndex, metadata.Int(int64(i))))
		pk[i] = peaks.Matrix{
			Mz:        []float64{float64(100 + i)},
			Intensity: []float64{float64(10 * i)},
		}
	}

	s, err := spectra.New(tbl, pk, optFns...)
	require.NoError(t, err)

	// Spread the spectra over four storage locations. The in-memory
	// backend keeps serving them; only the partition key changes.
	storages := make([]string, n)
	for i := range storages {
		storages[i] = []string{"a.raw", "b.raw", "c.raw", "d.raw"}[i%4]
	}
	require.NoError(t, s.SetVar(metadata.FieldDataStorage, storages))
	return s
}

func TestParallelDispatchMatchesSequential(t *testing.T) {
	ctx := context.Background()

	want, err := multiStorageCollection(t, spectra.WithMaxConcurrency(1)).Peaks(ctx)
	require.NoError(t, err)

	for _, workers := range []int{2, 4, 8} {
		s := multiStorageCollection(t, spectra.WithMaxConcurrency(workers))
		got, err := s.Peaks(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got, "workers=%d", workers)
	}
}

func TestDispatchOrderWithProcessing(t *testing.T) {
	ctx := context.Background()
	s := multiStorageCollection(t).AddProcessing(processing.ScaleIntensities(3))

	ints, err := s.IntensityValues(ctx)
	require.NoError(t, err)
	for i, col := range ints {
		assert.Equal(t, []float64{float64(30 * i)}, col)
	}
}

func TestDispatchAfterSubsetAndCombine(t *testing.T) {
	ctx := context.Background()
	s := multiStorageCollection(t)

	// Reversed order across partitions must come back reversed.
	indices := make([]int, s.Len())
	for i := range indices {
		indices[i] = s.Len() - 1 - i
	}
	rev, err := s.Subset(indices...)
	require.NoError(t, err)

	pk, err := rev.Peaks(ctx)
	require.NoError(t, err)
	for i, m := range pk {
		assert.Equal(t, []float64{float64(100 + s.Len() - 1 - i)}, m.Mz)
	}

	c, err := spectra.Combine(rev, s)
	require.NoError(t, err)
	pk, err = c.Peaks(ctx)
	require.NoError(t, err)
	require.Len(t, pk, 2*s.Len())
	assert.Equal(t, []float64{111}, pk[0].Mz)
	assert.Equal(t, []float64{100}, pk[s.Len()].Mz)
}

func TestPartitionErrorTagging(t *testing.T) {
	ctx := context.Background()
	s := multiStorageCollection(t)

	boom := errors.New("boom")
	failing := s.AddProcessing(processing.NewStep("explode", func(m peaks.Matrix) (peaks.Matrix, error) {
		return peaks.Matrix{}, boom
	}))

	_, err := failing.Peaks(ctx)
	require.Error(t, err)

	var pe *spectra.PartitionError
	require.ErrorAs(t, err, &pe)
	assert.NotEmpty(t, pe.Storage)
	assert.LessOrEqual(t, pe.First, pe.Last)
	require.ErrorIs(t, err, boom)
}

func TestIndexOutOfRangePropagates(t *testing.T) {
	s := multiStorageCollection(t)
	_, err := s.Subset(0, 99)
	require.ErrorIs(t, err, spectra.ErrIndexOutOfRange)
}
