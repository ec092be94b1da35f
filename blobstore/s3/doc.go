// Package s3 implements blobstore.BlobStore on Amazon S3 using the
// AWS SDK v2.
//
// Peak data for individual spectra is fetched with ranged GetObject
// requests, so opening a large library blob never downloads it whole.
// Wrap the store in a blobstore.CachingStore to keep hot blocks in
// memory. Uploads stream through the SDK's multipart manager and carry
// CRC32C checksums; listings paginate automatically under the store's
// configured prefix.
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("spectra/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
// ExpressStore is a variant for S3 Express One Zone directory buckets
// and adds conditional PutIfNotExists writes.
package s3
