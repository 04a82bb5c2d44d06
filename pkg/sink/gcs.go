package sink

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSConfig configures the gs backend.
type GCSConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	Endpoint        string `yaml:"endpoint"`
	ChunkSize       int    `yaml:"chunk_size"`
}

// GCSBackend stores files as Cloud Storage objects addressed as bucket/key.
type GCSBackend struct {
	client    *storage.Client
	chunkSize int
}

// NewGCSBackend creates a storage client using application default
// credentials unless a credentials file is configured.
func NewGCSBackend(ctx context.Context, cfg GCSConfig) (*GCSBackend, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GCSBackend{client: client, chunkSize: cfg.ChunkSize}, nil
}

// Create returns an object writer. The object is committed on Close.
func (b *GCSBackend) Create(ctx context.Context, path string) (io.WriteCloser, error) {
	bucket, key, err := splitBucketKey(path)
	if err != nil {
		return nil, err
	}
	w := b.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = parquetContentType
	if b.chunkSize > 0 {
		w.ChunkSize = b.chunkSize
	}
	return w, nil
}

// Open reads the object's attributes and returns a source that fetches
// byte ranges of that generation on demand.
func (b *GCSBackend) Open(ctx context.Context, path string) (Source, error) {
	bucket, key, err := splitBucketKey(path)
	if err != nil {
		return nil, err
	}
	obj := b.client.Bucket(bucket).Object(key)
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		return nil, err
	}
	obj = obj.Generation(attrs.Generation)
	return newRangedSource(ctx, attrs.Size, func(ctx context.Context, off, length int64) (io.ReadCloser, error) {
		return obj.NewRangeReader(ctx, off, length)
	}), nil
}

// Close releases the storage client.
func (b *GCSBackend) Close() error {
	return b.client.Close()
}
