package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/manogenome/Spectra/blobstore"
)

// objectBlob serves reads of one S3 object through ranged GetObject
// requests. The size is pinned at open time; an object replaced
// underneath an open handle will produce short or failed reads.
type objectBlob struct {
	client Client
	bucket string
	key    string
	size   int64
}

var _ blobstore.Blob = (*objectBlob)(nil)

// statBlob heads the object and wraps it as a blob.
func statBlob(ctx context.Context, client Client, bucket, key string) (*objectBlob, error) {
	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		var noKey *types.NoSuchKey
		if errors.As(err, &notFound) || errors.As(err, &noKey) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	return &objectBlob{client: client, bucket: bucket, key: key, size: *head.ContentLength}, nil
}

func (b *objectBlob) Close() error { return nil }

func (b *objectBlob) Size() int64 { return b.size }

// get issues one ranged request for [off, end] inclusive.
func (b *objectBlob) get(ctx context.Context, off, end int64) (io.ReadCloser, error) {
	resp, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, end)),
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (b *objectBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off >= b.size {
		return 0, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	end := min(off+int64(len(p)), b.size) - 1
	body, err := b.get(ctx, off, end)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	n, err := io.ReadFull(body, p[:end-off+1])
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return n, err
	}
	if off+int64(n) >= b.size && n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *objectBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off < 0 || off >= b.size {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.get(ctx, off, min(off+length, b.size)-1)
}

// listKeys pages through the bucket under fullPrefix and returns names
// relative to rootPrefix, sorted.
func listKeys(ctx context.Context, client Client, bucket, fullPrefix, rootPrefix string) ([]string, error) {
	pager := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(fullPrefix),
	})

	var names []string
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(*obj.Key, rootPrefix)
			names = append(names, strings.TrimPrefix(name, "/"))
		}
	}
	sort.Strings(names)
	return names, nil
}
