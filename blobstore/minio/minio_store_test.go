package minio

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manogenome/Spectra/blobstore"
)

// TestIntegrationMinioStore runs against a live MinIO instance. Set
// MINIO_ENDPOINT (e.g. localhost:9000) to enable it; MINIO_ACCESS_KEY
// and MINIO_SECRET_KEY default to minioadmin.
func TestIntegrationMinioStore(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_ENDPOINT not set")
	}
	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	if accessKey == "" {
		accessKey = "minioadmin"
	}
	secretKey := os.Getenv("MINIO_SECRET_KEY")
	if secretKey == "" {
		secretKey = "minioadmin"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	require.NoError(t, err)

	ctx := context.Background()
	const bucket = "spectra-it"

	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "it/")

	library := []byte("Name: PEPTIDE/2\nNum Peaks: 1\n100.5 42.0\n\n")
	require.NoError(t, store.Put(ctx, "libs/seed.msp", library))
	t.Cleanup(func() { _ = store.Delete(ctx, "libs/seed.msp") })

	blob, err := store.Open(ctx, "libs/seed.msp")
	require.NoError(t, err)
	assert.Equal(t, int64(len(library)), blob.Size())

	buf := make([]byte, 13)
	n, err := blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	assert.Equal(t, "PEPTIDE/2\nNum", string(buf[:n]))

	rc, err := blob.ReadRange(ctx, 0, 4)
	require.NoError(t, err)
	head, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "Name", string(head))

	_, err = blob.ReadRange(ctx, int64(len(library)), 4)
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, blob.Close())

	names, err := store.List(ctx, "libs/")
	require.NoError(t, err)
	assert.Contains(t, names, "libs/seed.msp")

	// Streamed create becomes visible on Close.
	wb, err := store.Create(ctx, "libs/streamed.msp")
	require.NoError(t, err)
	_, err = wb.Write(library)
	require.NoError(t, err)
	require.NoError(t, wb.Close())
	t.Cleanup(func() { _ = store.Delete(ctx, "libs/streamed.msp") })

	streamed, err := store.Open(ctx, "libs/streamed.msp")
	require.NoError(t, err)
	assert.Equal(t, int64(len(library)), streamed.Size())
	require.NoError(t, streamed.Close())

	require.NoError(t, store.Delete(ctx, "libs/seed.msp"))
	_, err = store.Open(ctx, "libs/seed.msp")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
