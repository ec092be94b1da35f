package spectra_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	spectra "github.com/manogenome/Spectra"
	"github.com/manogenome/Spectra/backend"
	"github.com/manogenome/Spectra/backend/mspfile"
	"github.com/manogenome/Spectra/backend/sqlitedb"
	"github.com/manogenome/Spectra/blobstore"
	"github.com/manogenome/Spectra/metadata"
)

func TestExportWithoutCapability(t *testing.T) {
	ctx := context.Background()
	s := newCollection(t)

	err := spectra.Export(ctx, s, noExportBackend{}, "out.msp", backend.ExportOptions{})
	require.ErrorIs(t, err, spectra.ErrUnsupportedFormat)
}

// noExportBackend satisfies backend.Backend but not backend.Exporter.
type noExportBackend struct{ backend.Backend }

func TestExportSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newCollection(t)
	require.NoError(t, s.SetVar("instrument", []string{"QTOF", "QTOF", "QTOF"}))

	dir := t.TempDir()
	exp, err := sqlitedb.CreateTemp(ctx, dir, metadata.NewTable(0), nil)
	require.NoError(t, err)
	defer exp.Close()

	dest := filepath.Join(dir, "out.sqlite")
	require.NoError(t, spectra.Export(ctx, s, exp, dest, backend.ExportOptions{}))

	rb, err := sqlitedb.Open(ctx, dest)
	require.NoError(t, err)
	defer rb.Close()

	rt, err := spectra.FromBackend(ctx, rb)
	require.NoError(t, err)

	assert.Equal(t, s.Len(), rt.Len())
	assert.Equal(t, s.RetentionTimes(), rt.RetentionTimes())
	assert.Contains(t, rt.SpectraVariables(), "instrument")

	want, err := s.Peaks(ctx)
	require.NoError(t, err)
	got, err := rt.Peaks(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestExportMSPDropsUnrepresentableFields(t *testing.T) {
	ctx := context.Background()
	s := newCollection(t)

	// An array-valued variable has no MSP representation.
	require.NoError(t, s.SetVar("fragments", []metadata.Value{
		metadata.Array([]metadata.Value{metadata.Float(1)}),
		metadata.Array([]metadata.Value{metadata.Float(2)}),
		metadata.Array([]metadata.Value{metadata.Float(3)}),
	}))

	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "seed.msp", []byte("Name: SEED\nNum peaks: 1\n100\t1\n")))
	exp, err := mspfile.Open(ctx, store, "seed.msp")
	require.NoError(t, err)
	defer exp.Close()

	require.NoError(t, spectra.Export(ctx, s, exp, "out.msp", backend.ExportOptions{}))

	rb, err := mspfile.Open(ctx, store, "out.msp")
	require.NoError(t, err)
	defer rb.Close()

	rt, err := spectra.FromBackend(ctx, rb)
	require.NoError(t, err)

	// The loss is discoverable by comparing the variable sets.
	assert.Contains(t, s.SpectraVariables(), "fragments")
	assert.NotContains(t, rt.SpectraVariables(), "fragments")
	assert.Equal(t, s.Len(), rt.Len())
}
