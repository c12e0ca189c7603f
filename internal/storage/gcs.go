package storage

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// GCSStore uploads to a Google Cloud Storage bucket (Firebase storage).
type GCSStore struct {
	client          *storage.Client
	bucket          *storage.BucketHandle
	logger          zerolog.Logger
	bucketName      string
	prefix          string
	credentialsFile string
	endpoint        string
	publicURL       string
	firebaseURLs    bool
	timeout         time.Duration
}

// GCSOption configures a GCSStore.
type GCSOption func(*GCSStore)

// WithGCSBucket sets the bucket name.
func WithGCSBucket(bucket string) GCSOption { return func(g *GCSStore) { g.bucketName = bucket } }

// WithGCSPrefix sets a key prefix inside the bucket.
func WithGCSPrefix(prefix string) GCSOption { return func(g *GCSStore) { g.prefix = prefix } }

// WithGCSCredentialsFile authenticates with a service account file.
func WithGCSCredentialsFile(path string) GCSOption {
	return func(g *GCSStore) { g.credentialsFile = path }
}

// WithGCSEndpoint points the client at an emulator; authentication is
// disabled.
func WithGCSEndpoint(endpoint string) GCSOption { return func(g *GCSStore) { g.endpoint = endpoint } }

// WithGCSPublicBaseURL sets the base of returned object URLs.
func WithGCSPublicBaseURL(u string) GCSOption { return func(g *GCSStore) { g.publicURL = u } }

// WithFirebaseURLs returns firebasestorage download URLs instead of plain
// storage.googleapis.com ones.
func WithFirebaseURLs(on bool) GCSOption { return func(g *GCSStore) { g.firebaseURLs = on } }

// WithGCSTimeout bounds each upload.
func WithGCSTimeout(d time.Duration) GCSOption { return func(g *GCSStore) { g.timeout = d } }

// WithGCSLogger sets the logger.
func WithGCSLogger(lg zerolog.Logger) GCSOption { return func(g *GCSStore) { g.logger = lg } }

// NewGCS creates the storage client.
func NewGCS(ctx context.Context, opts ...GCSOption) (*GCSStore, error) {
	g := &GCSStore{logger: zerolog.Nop(), timeout: 60 * time.Second}
	for _, opt := range opts {
		opt(g)
	}
	if g.bucketName == "" {
		return nil, fmt.Errorf("%w: gcs bucket not set", ErrNotConfigured)
	}

	var clientOpts []option.ClientOption
	if g.credentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(g.credentialsFile))
	}
	if g.endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(g.endpoint), option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: create client: %w", err)
	}
	g.client = client
	g.bucket = client.Bucket(g.bucketName)
	return g, nil
}

// Close releases the client.
func (g *GCSStore) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// Name implements BlobStore.
func (g *GCSStore) Name() string { return "gcs" }

// ObjectURL returns the public URL of an object key (with prefix applied).
func (g *GCSStore) ObjectURL(full string) string {
	if g.publicURL != "" {
		return joinURL(g.publicURL, full)
	}
	if g.firebaseURLs {
		return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media",
			g.bucketName, url.PathEscape(full))
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucketName, full)
}

// Put implements BlobStore.
func (g *GCSStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	full := joinKey(g.prefix, key)
	w := g.bucket.Object(full).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=31536000, immutable"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs put %q: %w", full, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs put %q: %w", full, err)
	}
	g.logger.Debug().Str("key", full).Int("bytes", len(data)).Msg("gcs put ok")
	return g.ObjectURL(full), nil
}
