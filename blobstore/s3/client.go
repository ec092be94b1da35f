package s3

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Client captures the S3 operations the store uses.
// It is satisfied by *s3.Client and by mocks in tests.
type Client interface {
	manager.UploadAPIClient

	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Options configures New.
type Options struct {
	// Prefix is prepended to all keys (e.g. "spectra/").
	Prefix string

	// Region overrides the region from the ambient AWS config.
	Region string

	// Endpoint overrides the S3 endpoint, for S3-compatible services.
	Endpoint string

	// Upload configures multipart uploads.
	Upload UploadConfig

	// Client overrides the constructed S3 client, for tests.
	Client Client
}

// Option modifies Options.
type Option func(*Options)

// WithPrefix sets the key prefix prepended to all blob names.
func WithPrefix(prefix string) Option {
	return func(o *Options) { o.Prefix = prefix }
}

// WithRegion overrides the AWS region.
func WithRegion(region string) Option {
	return func(o *Options) { o.Region = region }
}

// WithEndpoint overrides the S3 endpoint URL.
func WithEndpoint(endpoint string) Option {
	return func(o *Options) { o.Endpoint = endpoint }
}

// WithUploadConfig overrides the multipart upload settings.
func WithUploadConfig(cfg UploadConfig) Option {
	return func(o *Options) { o.Upload = cfg }
}

// WithClient injects a pre-built client instead of loading AWS config.
func WithClient(client Client) Option {
	return func(o *Options) { o.Client = client }
}

// New creates a Store for the given bucket, loading credentials and region
// from the ambient AWS configuration (environment, shared config, IAM role).
func New(ctx context.Context, bucket string, opts ...Option) (*Store, error) {
	o := Options{Upload: DefaultUploadConfig()}
	for _, opt := range opts {
		opt(&o)
	}

	client := o.Client
	if client == nil {
		var loadOpts []func(*config.LoadOptions) error
		if o.Region != "" {
			loadOpts = append(loadOpts, config.WithRegion(o.Region))
		}
		cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, err
		}
		client = s3.NewFromConfig(cfg, func(s3o *s3.Options) {
			if o.Endpoint != "" {
				s3o.BaseEndpoint = aws.String(o.Endpoint)
				s3o.UsePathStyle = true
			}
		})
	}

	return &Store{
		client: client,
		bucket: bucket,
		prefix: o.Prefix,
		upload: o.Upload,
	}, nil
}
