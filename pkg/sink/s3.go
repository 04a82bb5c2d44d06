package sink

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

const parquetContentType = "application/vnd.apache.parquet"

// S3Config configures the s3 backend. Empty fields fall back to the AWS SDK
// default chain (environment, shared config, instance role).
type S3Config struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	UsePathStyle    bool   `yaml:"use_path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PartSize        int64  `yaml:"part_size"`
	Concurrency     int    `yaml:"concurrency"`
}

type s3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// s3Objects is the part of *s3.Client used for reads.
type s3Objects interface {
	HeadObject(ctx context.Context, input *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Backend stores files as S3 objects addressed as bucket/key.
type S3Backend struct {
	uploader s3Uploader
	objects  s3Objects
	logger   *zap.Logger
}

// NewS3Backend loads AWS configuration and builds the transfer managers.
func NewS3Backend(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3Backend, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		if cfg.PartSize > 0 {
			u.PartSize = cfg.PartSize
		}
		if cfg.Concurrency > 0 {
			u.Concurrency = cfg.Concurrency
		}
	})

	return newS3Backend(uploader, client, logger), nil
}

func newS3Backend(up s3Uploader, objects s3Objects, logger *zap.Logger) *S3Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Backend{
		uploader: up,
		objects:  objects,
		logger:   logger.With(zap.String("component", "s3_sink")),
	}
}

// Create starts a streaming multipart upload. Bytes written are piped to the
// uploader; Close waits for the upload to complete and returns its error.
func (b *S3Backend) Create(ctx context.Context, path string) (io.WriteCloser, error) {
	bucket, key, err := splitBucketKey(path)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	w := &pipeUpload{pw: pw, done: make(chan error, 1)}
	go func() {
		_, err := b.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(bucket),
			Key:         aws.String(key),
			Body:        pr,
			ContentType: aws.String(parquetContentType),
		})
		if err != nil {
			b.logger.Error("upload failed", zap.String("bucket", bucket), zap.String("key", key), zap.Error(err))
		}
		// Unblock a writer still sending into the pipe.
		pr.CloseWithError(err)
		w.done <- err
	}()
	return w, nil
}

// Open stats the object and returns a source that fetches byte ranges on
// demand. Reads are pinned to the ETag seen here, so an object replaced
// mid-read fails instead of mixing versions.
func (b *S3Backend) Open(ctx context.Context, path string) (Source, error) {
	bucket, key, err := splitBucketKey(path)
	if err != nil {
		return nil, err
	}
	head, err := b.objects.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	size := aws.ToInt64(head.ContentLength)
	etag := head.ETag
	b.logger.Debug("opened object", zap.String("bucket", bucket), zap.String("key", key), zap.Int64("bytes", size))

	return newRangedSource(ctx, size, func(ctx context.Context, off, length int64) (io.ReadCloser, error) {
		out, err := b.objects.GetObject(ctx, &s3.GetObjectInput{
			Bucket:  aws.String(bucket),
			Key:     aws.String(key),
			Range:   aws.String(fmt.Sprintf("bytes=%d-%d", off, off+length-1)),
			IfMatch: etag,
		})
		if err != nil {
			return nil, err
		}
		return out.Body, nil
	}), nil
}

// pipeUpload is the writer half of a streaming upload.
type pipeUpload struct {
	pw     *io.PipeWriter
	done   chan error
	closed bool
	err    error
}

func (p *pipeUpload) Write(data []byte) (int, error) {
	return p.pw.Write(data)
}

func (p *pipeUpload) Close() error {
	if p.closed {
		return p.err
	}
	p.closed = true
	p.pw.Close()
	p.err = <-p.done
	return p.err
}
