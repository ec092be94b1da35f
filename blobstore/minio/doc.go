// Package minio implements blobstore.BlobStore on top of the native
// MinIO client. It targets self-hosted S3-compatible object stores
// (MinIO, Ceph, Garage) where pulling in the AWS SDK is unwanted.
//
// Spectral libraries are served through ranged GetObject requests, so
// a backend such as mspfile can read record slices without fetching
// the whole object:
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds: credentials.NewStaticV4(accessKey, secretKey, ""),
//	})
//	if err != nil {
//	    return err
//	}
//	store := minioblob.NewStore(client, "libraries", "spectra/")
//	be, err := mspfile.Open(ctx, store, "nist/human.msp")
//
// Writes stream through Create and become visible atomically when the
// returned blob is closed.
package minio
