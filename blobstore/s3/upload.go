package s3

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/manogenome/Spectra/internal/hash"
)

// UploadConfig tunes multipart uploads.
type UploadConfig struct {
	// PartSize is the multipart part size in bytes. Store files run
	// large, so the default is 8MiB rather than the SDK's 5MiB.
	PartSize int64

	// Concurrency is the number of parts uploaded in parallel.
	Concurrency int

	// EnableChecksum attaches CRC32C checksums so S3 verifies every
	// part on arrival.
	EnableChecksum bool

	// LeavePartsOnError skips the automatic abort of a failed
	// multipart upload, keeping the parts for inspection.
	LeavePartsOnError bool
}

// DefaultUploadConfig returns the settings used when none are given.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		PartSize:       8 * 1024 * 1024,
		Concurrency:    5,
		EnableChecksum: true,
	}
}

func newUploader(client Client, cfg UploadConfig) *manager.Uploader {
	return manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = cfg.PartSize
		u.Concurrency = cfg.Concurrency
		u.LeavePartsOnError = cfg.LeavePartsOnError
	})
}

// uploadBlob streams writes into a background multipart upload through
// a pipe. The object does not exist until Close returns nil; Close
// reports the upload result.
type uploadBlob struct {
	pw   *io.PipeWriter
	done chan error

	mu       sync.Mutex
	closed   bool
	closeErr error
}

func startUpload(ctx context.Context, uploader *manager.Uploader, bucket, key string, withChecksum bool) *uploadBlob {
	pr, pw := io.Pipe()
	b := &uploadBlob{pw: pw, done: make(chan error, 1)}

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   pr,
	}
	if withChecksum {
		input.ChecksumAlgorithm = types.ChecksumAlgorithmCrc32c
	}

	go func() {
		_, err := uploader.Upload(ctx, input)
		pr.CloseWithError(err)
		b.done <- err
	}()
	return b
}

func (b *uploadBlob) Write(p []byte) (int, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return 0, io.ErrClosedPipe
	}
	return b.pw.Write(p)
}

// Sync is a no-op: nothing is durable before Close completes the
// upload.
func (b *uploadBlob) Sync() error { return nil }

func (b *uploadBlob) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return b.closeErr
	}
	b.closed = true

	if err := b.pw.Close(); err != nil {
		b.closeErr = err
		return err
	}
	b.closeErr = <-b.done
	return b.closeErr
}

// putWithChecksum writes a small object in one request with CRC32C
// validation.
func putWithChecksum(ctx context.Context, client Client, bucket, key string, data []byte) error {
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:         aws.String(bucket),
		Key:            aws.String(key),
		Body:           bytes.NewReader(data),
		ContentLength:  aws.Int64(int64(len(data))),
		ChecksumCRC32C: aws.String(checksumCRC32C(data)),
	})
	return err
}

// checksumCRC32C renders the checksum the way S3 wants it: big-endian
// bytes, base64.
func checksumCRC32C(data []byte) string {
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], hash.CRC32C(data))
	return base64.StdEncoding.EncodeToString(sum[:])
}
