package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
)

// S3Store uploads to an S3-compatible bucket. Supabase storage exposes such
// an endpoint; its public URLs live under a different base, set with
// WithS3PublicBaseURL.
type S3Store struct {
	client    *s3.Client
	logger    zerolog.Logger
	bucket    string
	prefix    string
	region    string
	endpoint  string
	accessKey string
	secretKey string
	publicURL string
	timeout   time.Duration
}

// S3Option configures an S3Store.
type S3Option func(*S3Store)

// WithS3Bucket sets the bucket name.
func WithS3Bucket(bucket string) S3Option { return func(s *S3Store) { s.bucket = bucket } }

// WithS3Prefix sets a key prefix inside the bucket.
func WithS3Prefix(prefix string) S3Option { return func(s *S3Store) { s.prefix = prefix } }

// WithS3Region overrides the region from the default AWS config.
func WithS3Region(region string) S3Option { return func(s *S3Store) { s.region = region } }

// WithS3Endpoint points the client at a custom endpoint (Supabase, MinIO)
// and switches to path-style addressing.
func WithS3Endpoint(endpoint string) S3Option { return func(s *S3Store) { s.endpoint = endpoint } }

// WithS3Credentials uses static keys instead of the default chain.
func WithS3Credentials(accessKey, secretKey string) S3Option {
	return func(s *S3Store) { s.accessKey, s.secretKey = accessKey, secretKey }
}

// WithS3PublicBaseURL sets the base of returned object URLs.
func WithS3PublicBaseURL(u string) S3Option { return func(s *S3Store) { s.publicURL = u } }

// WithS3Timeout bounds config loading and each upload.
func WithS3Timeout(d time.Duration) S3Option { return func(s *S3Store) { s.timeout = d } }

// WithS3Logger sets the logger.
func WithS3Logger(lg zerolog.Logger) S3Option { return func(s *S3Store) { s.logger = lg } }

// NewS3 loads the AWS configuration and returns a ready store.
func NewS3(ctx context.Context, opts ...S3Option) (*S3Store, error) {
	s := &S3Store{logger: zerolog.Nop(), timeout: 60 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	if s.bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket not set", ErrNotConfigured)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var loadOpts []func(*config.LoadOptions) error
	if s.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(s.region))
	}
	if s.accessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.accessKey, s.secretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load default AWS config: %w", err)
	}

	s.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s.endpoint != "" {
			o.BaseEndpoint = aws.String(s.endpoint)
			o.UsePathStyle = true
		}
	})
	if s.publicURL == "" {
		switch {
		case s.endpoint != "":
			s.publicURL = joinURL(s.endpoint, s.bucket)
		default:
			s.publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.bucket, awsCfg.Region)
		}
	}
	return s, nil
}

// Name implements BlobStore.
func (s *S3Store) Name() string { return "s3" }

// Put implements BlobStore.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	full := joinKey(s.prefix, key)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(full),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("s3 put %q: %s: %s", full, apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
		return "", fmt.Errorf("s3 put %q: %w", full, err)
	}
	s.logger.Debug().Str("key", full).Int("bytes", len(data)).Msg("s3 put ok")
	return joinURL(s.publicURL, full), nil
}
