// Package sink resolves location strings to storage backends.
//
// The text before the first ':' selects the backend:
//
//	out.parquet           local filesystem (no prefix)
//	mem:out               in-memory store owned by the Resolver
//	s3:bucket/key         Amazon S3 or an S3-compatible endpoint
//	gs:bucket/key         Google Cloud Storage
//
// Any other prefix is a configuration error unless a backend was registered
// for it with WithBackend.
package sink

import (
	"context"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/pqflow/pkg/errors"
)

const (
	SchemeLocal  = ""
	SchemeMemory = "mem"
	SchemeS3     = "s3"
	SchemeGCS    = "gs"
)

// Source is a readable, seekable handle to a stored file.
type Source interface {
	io.ReaderAt
	io.Seeker
	io.Closer
	// Size returns the size in bytes.
	Size() int64
}

// Backend creates and opens files addressed by a backend-specific path.
type Backend interface {
	Create(ctx context.Context, path string) (io.WriteCloser, error)
	Open(ctx context.Context, path string) (Source, error)
}

// Location is a parsed location string.
type Location struct {
	Scheme string
	Path   string
}

func (l Location) String() string {
	if l.Scheme == SchemeLocal {
		return l.Path
	}
	return l.Scheme + ":" + l.Path
}

// ParseLocation splits raw at its first ':'. Without a ':' the whole string
// is a local path. A "//" after the prefix is tolerated (s3://bucket/key).
func ParseLocation(raw string) (Location, error) {
	if raw == "" {
		return Location{}, errors.New(errors.ErrorTypeConfig, "empty location")
	}
	i := strings.IndexByte(raw, ':')
	if i < 0 {
		return Location{Scheme: SchemeLocal, Path: raw}, nil
	}
	loc := Location{
		Scheme: raw[:i],
		Path:   strings.TrimPrefix(raw[i+1:], "//"),
	}
	if loc.Path == "" {
		return Location{}, errors.Newf(errors.ErrorTypeConfig, "location %q has an empty path", raw)
	}
	return loc, nil
}

// Resolver maps location prefixes to backends. Remote backends are created
// lazily on first use so that local-only runs never touch cloud credentials.
type Resolver struct {
	mu        sync.Mutex
	backends  map[string]Backend
	factories map[string]func(ctx context.Context) (Backend, error)
	memory    *MemoryStore
	logger    *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithBackend registers b for scheme, replacing any default.
func WithBackend(scheme string, b Backend) Option {
	return func(r *Resolver) {
		r.backends[scheme] = b
	}
}

// WithS3 configures the s3 backend.
func WithS3(cfg S3Config) Option {
	return func(r *Resolver) {
		r.factories[SchemeS3] = func(ctx context.Context) (Backend, error) {
			return NewS3Backend(ctx, cfg, r.logger)
		}
	}
}

// WithGCS configures the gs backend.
func WithGCS(cfg GCSConfig) Option {
	return func(r *Resolver) {
		r.factories[SchemeGCS] = func(ctx context.Context) (Backend, error) {
			return NewGCSBackend(ctx, cfg)
		}
	}
}

// WithLogger sets the resolver's logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// NewResolver creates a resolver with local and memory backends plus
// default-configured s3 and gs backends.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		backends:  make(map[string]Backend),
		factories: make(map[string]func(ctx context.Context) (Backend, error)),
		memory:    NewMemoryStore(),
		logger:    zap.NewNop(),
	}
	r.backends[SchemeLocal] = Local{}
	r.backends[SchemeMemory] = r.memory
	WithS3(S3Config{})(r)
	WithGCS(GCSConfig{})(r)
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("component", "sink_resolver"))
	return r
}

// Memory returns the store behind the mem: prefix.
func (r *Resolver) Memory() *MemoryStore {
	return r.memory
}

// Create opens raw for writing, truncating any existing content.
func (r *Resolver) Create(ctx context.Context, raw string) (io.WriteCloser, error) {
	loc, b, err := r.resolve(ctx, raw)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("creating sink", zap.String("location", raw))
	w, err := b.Create(ctx, loc.Path)
	if err != nil {
		return nil, wrapIO(err, "failed to create sink", raw)
	}
	return w, nil
}

// Open opens raw for reading.
func (r *Resolver) Open(ctx context.Context, raw string) (Source, error) {
	loc, b, err := r.resolve(ctx, raw)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("opening source", zap.String("location", raw))
	src, err := b.Open(ctx, loc.Path)
	if err != nil {
		return nil, wrapIO(err, "failed to open source", raw)
	}
	return src, nil
}

// Close releases the clients of every backend initialized so far.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for scheme, b := range r.backends {
		c, ok := b.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, errors.ErrorTypeIO, "failed to close backend").WithDetail("scheme", scheme)
		}
	}
	return firstErr
}

func (r *Resolver) resolve(ctx context.Context, raw string) (Location, Backend, error) {
	loc, err := ParseLocation(raw)
	if err != nil {
		return Location{}, nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.backends[loc.Scheme]; ok {
		return loc, b, nil
	}
	factory, ok := r.factories[loc.Scheme]
	if !ok {
		return Location{}, nil, errors.Newf(errors.ErrorTypeConfig,
			"unknown prefix '%s' on location %s", loc.Scheme, raw)
	}
	b, err := factory(ctx)
	if err != nil {
		return Location{}, nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize backend").
			WithDetail("scheme", loc.Scheme)
	}
	r.backends[loc.Scheme] = b
	return loc, b, nil
}

func wrapIO(err error, msg, location string) error {
	if errors.IsType(err, errors.ErrorTypeConfig) {
		return err
	}
	return errors.Wrap(err, errors.ErrorTypeIO, msg).WithDetail("location", location)
}

// splitBucketKey splits "bucket/key/parts" for object store backends.
func splitBucketKey(path string) (string, string, error) {
	bucket, key, ok := strings.Cut(path, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", errors.Newf(errors.ErrorTypeConfig, "object location %q must be bucket/key", path)
	}
	return bucket, key, nil
}
