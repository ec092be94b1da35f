package mspfile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manogenome/Spectra/backend"
	"github.com/manogenome/Spectra/blobstore"
	"github.com/manogenome/Spectra/metadata"
	"github.com/manogenome/Spectra/peaks"
)

const libraryA = `Name: PEPTIDEA/2
Comment: Parent=445.12 RT=12.5 Polarity=Positive MSLevel=MS2
Num peaks: 3
100.1	10.5
200.2	20
300.3	5.25

Name: PEPTIDEB/3
Comment: Parent=612.3 RT=30.75
Num peaks: 2
150	42
250.5	17
`

const libraryB = `Name: OTHER
Comment: RT=99.9 Instrument=QTOF
Num peaks: 1
500.5	1000
`

func testStore(t *testing.T) blobstore.BlobStore {
	t.Helper()
	ctx := context.Background()

	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "a.msp", []byte(libraryA)))
	require.NoError(t, store.Put(ctx, "b.msp", []byte(libraryB)))
	return store
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	b, err := Open(ctx, store, "a.msp", "b.msp")
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, 3, b.SpectrumCount())
	assert.Equal(t, []string{"a.msp", "b.msp"}, b.Sources())

	tbl, err := b.Metadata(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.msp", "a.msp", "b.msp"}, tbl.Strings(metadata.FieldDataStorage))
	assert.Equal(t, []float64{445.12, 612.3},
		tbl.Floats(metadata.FieldPrecursorMz)[:2])
	assert.Equal(t, metadata.String("QTOF"), tbl.Get(2, "Instrument"))
}

func TestOpenMissingSource(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, testStore(t), "a.msp", "nope.msp")
	require.ErrorIs(t, err, backend.ErrSourceUnavailable)

	_, err = Open(ctx, testStore(t))
	require.ErrorIs(t, err, backend.ErrSourceUnavailable)
}

func TestPeaksOnDemand(t *testing.T) {
	ctx := context.Background()

	b, err := Open(ctx, testStore(t), "a.msp", "b.msp")
	require.NoError(t, err)
	defer b.Close()

	out, err := b.Peaks(ctx, []int{2, 0})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, []float64{500.5}, out[0].Mz)
	assert.Equal(t, []float64{100.1, 200.2, 300.3}, out[1].Mz)
	assert.Equal(t, []float64{10.5, 20, 5.25}, out[1].Intensity)

	_, err = b.Peaks(ctx, []int{3})
	require.ErrorIs(t, err, backend.ErrIndexOutOfRange)
}

func TestWriteMetadataOnly(t *testing.T) {
	ctx := context.Background()

	b, err := Open(ctx, testStore(t), "a.msp")
	require.NoError(t, err)
	defer b.Close()

	require.True(t, b.SupportsWrite())
	require.False(t, b.SupportsPeakWrite())

	err = b.Write(ctx, []int{0}, backend.Update{
		Peaks: []peaks.Matrix{{Mz: []float64{1}, Intensity: []float64{1}}},
	})
	require.ErrorIs(t, err, backend.ErrUnsupportedOperation)

	err = b.Write(ctx, []int{1}, backend.Update{
		Metadata: map[string][]metadata.Value{
			metadata.FieldCollisionEnergy: {metadata.Float(35)},
		},
	})
	require.NoError(t, err)

	tbl, err := b.Metadata(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, metadata.Float(35), tbl.Get(1, metadata.FieldCollisionEnergy))
}

func TestResetRestoresMetadata(t *testing.T) {
	ctx := context.Background()

	b, err := Open(ctx, testStore(t), "a.msp")
	require.NoError(t, err)
	defer b.Close()

	err = b.Write(ctx, []int{0}, backend.Update{
		Metadata: map[string][]metadata.Value{
			metadata.FieldRtime: {metadata.Float(0)},
		},
	})
	require.NoError(t, err)

	require.NoError(t, b.Reset(ctx))

	tbl, err := b.Metadata(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, metadata.Float(12.5), tbl.Get(0, metadata.FieldRtime))
}

func TestExportRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	b, err := Open(ctx, store, "a.msp")
	require.NoError(t, err)
	defer b.Close()

	tbl, err := b.Metadata(ctx, nil)
	require.NoError(t, err)
	pk, err := b.Peaks(ctx, []int{0, 1})
	require.NoError(t, err)

	err = b.Export(ctx, tbl, pk, "out.hdf5", backend.ExportOptions{})
	require.ErrorIs(t, err, backend.ErrUnsupportedFormat)

	require.NoError(t, b.Export(ctx, tbl, pk, "out.msp", backend.ExportOptions{}))

	rt, err := Open(ctx, store, "out.msp")
	require.NoError(t, err)
	defer rt.Close()

	require.Equal(t, 2, rt.SpectrumCount())

	got, err := rt.Peaks(ctx, []int{0, 1})
	require.NoError(t, err)
	assert.Equal(t, pk[0].Mz, got[0].Mz)
	assert.Equal(t, pk[0].Intensity, got[0].Intensity)
	assert.Equal(t, pk[1].Mz, got[1].Mz)

	rtbl, err := rt.Metadata(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, metadata.Float(445.12), rtbl.Get(0, metadata.FieldPrecursorMz))
	assert.Equal(t, metadata.Float(12.5), rtbl.Get(0, metadata.FieldRtime))

	// Destination already exists and Overwrite is off.
	err = b.Export(ctx, tbl, pk, "out.msp", backend.ExportOptions{})
	require.Error(t, err)
	require.NoError(t, b.Export(ctx, tbl, pk, "out.msp", backend.ExportOptions{Overwrite: true}))
}
