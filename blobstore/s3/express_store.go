package s3

import (
	"bytes"
	"context"
	"errors"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/manogenome/Spectra/blobstore"
)

// ErrConflict is returned by PutIfNotExists when the object already
// exists.
var ErrConflict = errors.New("object already exists")

// ExpressStore serves blobs from an S3 Express One Zone directory
// bucket. The single-AZ storage class answers small ranged peak reads
// with single-digit millisecond latency, which suits libraries queried
// spectrum by spectrum.
//
// Directory buckets differ from standard S3: names end in
// --azid--x-s3, authentication goes through CreateSession, and
// conditional writes (If-None-Match) are supported.
type ExpressStore struct {
	client Client
	bucket string
	prefix string
}

var _ blobstore.BlobStore = (*ExpressStore)(nil)

// NewExpressStore wraps a directory bucket. rootPrefix namespaces every
// blob name.
func NewExpressStore(client Client, bucket, rootPrefix string) *ExpressStore {
	return &ExpressStore{client: client, bucket: bucket, prefix: rootPrefix}
}

func (s *ExpressStore) key(name string) string {
	return path.Join(s.prefix, name)
}

func (s *ExpressStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	return statBlob(ctx, s.client, s.bucket, s.key(name))
}

func (s *ExpressStore) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
		Body:   bytes.NewReader(data),
	})
	return err
}

// PutIfNotExists writes the blob only when the key is vacant, using an
// If-None-Match conditional write. Exports that must not clobber an
// existing destination use this instead of Put. Returns ErrConflict
// when the object already exists.
func (s *ExpressStore) PutIfNotExists(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(name)),
		Body:        bytes.NewReader(data),
		IfNoneMatch: aws.String("*"),
	})
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return ErrConflict
		}
	}
	return err
}

func (s *ExpressStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	// Express buckets do not take the CRC32C trailer path.
	return startUpload(ctx, manager.NewUploader(s.client), s.bucket, s.key(name), false), nil
}

func (s *ExpressStore) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	return err
}

func (s *ExpressStore) List(ctx context.Context, prefix string) ([]string, error) {
	return listKeys(ctx, s.client, s.bucket, s.key(prefix), s.prefix)
}
