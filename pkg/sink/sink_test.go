package sink

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajitpratap0/pqflow/pkg/errors"
	"github.com/ajitpratap0/pqflow/pkg/testutil"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		raw     string
		want    Location
		wantErr bool
	}{
		{raw: "out.parquet", want: Location{Scheme: SchemeLocal, Path: "out.parquet"}},
		{raw: "/tmp/a/b.parquet", want: Location{Scheme: SchemeLocal, Path: "/tmp/a/b.parquet"}},
		{raw: "mem:out", want: Location{Scheme: SchemeMemory, Path: "out"}},
		{raw: "s3:bucket/dir/key.parquet", want: Location{Scheme: SchemeS3, Path: "bucket/dir/key.parquet"}},
		{raw: "s3://bucket/key", want: Location{Scheme: SchemeS3, Path: "bucket/key"}},
		{raw: "gs:bucket/key", want: Location{Scheme: SchemeGCS, Path: "bucket/key"}},
		{raw: "ftp:host/file", want: Location{Scheme: "ftp", Path: "host/file"}},
		{raw: "", wantErr: true},
		{raw: "mem:", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseLocation(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolverUnknownPrefix(t *testing.T) {
	r := NewResolver()
	ctx := testutil.TestContext(t)

	_, err := r.Create(ctx, "ftp:host/file")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Contains(t, err.Error(), "'ftp'")
	assert.Contains(t, err.Error(), "ftp:host/file")

	_, err = r.Open(ctx, "ftp:host/file")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestResolverLocalRoundTrip(t *testing.T) {
	r := NewResolver(WithLogger(zap.NewNop()))
	ctx := testutil.TestContext(t)
	path := testutil.TempLocation(t, filepath.Join("nested", "out.bin"))

	w, err := r.Create(ctx, path)
	require.NoError(t, err)
	_, err = w.Write([]byte("hello parquet"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	src, err := r.Open(ctx, path)
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, int64(13), src.Size())

	buf := make([]byte, 7)
	_, err = src.ReadAt(buf, 6)
	require.NoError(t, err)
	assert.Equal(t, "parquet", string(buf))

	// Create truncates.
	w, err = r.Create(ctx, path)
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestResolverLocalMissing(t *testing.T) {
	r := NewResolver()
	_, err := r.Open(testutil.TestContext(t), testutil.TempLocation(t, "missing.parquet"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))
	assert.True(t, stderrors.Is(err, os.ErrNotExist))
}

func TestResolverMemory(t *testing.T) {
	r := NewResolver()
	ctx := testutil.TestContext(t)

	w, err := r.Create(ctx, "mem:data")
	require.NoError(t, err)
	_, err = w.Write([]byte("abc"))
	require.NoError(t, err)

	// Not visible until committed.
	_, err = r.Open(ctx, "mem:data")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))

	require.NoError(t, w.Close())
	assert.Equal(t, []string{"data"}, r.Memory().List())

	src, err := r.Open(ctx, "mem:data")
	require.NoError(t, err)
	data, err := io.ReadAll(io.NewSectionReader(src, 0, src.Size()))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	r.Memory().Delete("data")
	assert.Empty(t, r.Memory().List())
}

type recordingBackend struct {
	mu      sync.Mutex
	created []string
}

func (b *recordingBackend) Create(_ context.Context, path string) (io.WriteCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.created = append(b.created, path)
	return nopWriteCloser{io.Discard}, nil
}

func (b *recordingBackend) Open(context.Context, string) (Source, error) {
	return nil, os.ErrNotExist
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func TestResolverRegisteredBackend(t *testing.T) {
	b := &recordingBackend{}
	r := NewResolver(WithBackend("custom", b))

	w, err := r.Create(context.Background(), "custom:some/path")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, []string{"some/path"}, b.created)
}

type closingBackend struct {
	Local
	closed int
	err    error
}

func (b *closingBackend) Close() error {
	b.closed++
	return b.err
}

func TestResolverClose(t *testing.T) {
	ok := &closingBackend{}
	r := NewResolver(WithBackend("ok", ok))
	require.NoError(t, r.Close())
	assert.Equal(t, 1, ok.closed)

	failing := &closingBackend{err: stderrors.New("client busy")}
	r = NewResolver(WithBackend("bad", failing))
	err := r.Close()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))
	assert.Contains(t, err.Error(), "client busy")
	v, found := err.(*errors.Error).Detail("scheme")
	require.True(t, found)
	assert.Equal(t, "bad", v)
}

type fakeUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (f *fakeUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &manager.UploadOutput{}, nil
}

// fakeObjects serves HeadObject and ranged GetObject from a fakeUploader's
// objects and counts the bytes it hands out.
type fakeObjects struct {
	up       *fakeUploader
	mu       sync.Mutex
	fetched  int64
	requests int
}

func (f *fakeObjects) object(bucket, key *string) ([]byte, bool) {
	f.up.mu.Lock()
	defer f.up.mu.Unlock()
	data, ok := f.up.objects[aws.ToString(bucket)+"/"+aws.ToString(key)]
	return data, ok
}

func (f *fakeObjects) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	data, ok := f.object(in.Bucket, in.Key)
	if !ok {
		return nil, os.ErrNotExist
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data))), ETag: aws.String(`"v1"`)}, nil
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.object(in.Bucket, in.Key)
	if !ok {
		return nil, os.ErrNotExist
	}
	if aws.ToString(in.IfMatch) != `"v1"` {
		return nil, stderrors.New("precondition failed")
	}
	var start, end int64
	if _, err := fmt.Sscanf(aws.ToString(in.Range), "bytes=%d-%d", &start, &end); err != nil {
		return nil, err
	}
	part := data[start : end+1]

	f.mu.Lock()
	f.fetched += int64(len(part))
	f.requests++
	f.mu.Unlock()
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(part))}, nil
}

func (f *fakeObjects) stats() (int64, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetched, f.requests
}

func TestS3BackendRoundTrip(t *testing.T) {
	up := &fakeUploader{objects: make(map[string][]byte)}
	backend := newS3Backend(up, &fakeObjects{up: up}, zap.NewNop())
	r := NewResolver(WithBackend(SchemeS3, backend))
	ctx := testutil.TestContext(t)

	w, err := r.Create(ctx, "s3://bucket/dir/out.parquet")
	require.NoError(t, err)
	payload := bytes.Repeat([]byte("row"), 10000)
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	assert.Equal(t, payload, up.objects["bucket/dir/out.parquet"])

	src, err := r.Open(ctx, "s3:bucket/dir/out.parquet")
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, int64(len(payload)), src.Size())

	got, err := io.ReadAll(io.NewSectionReader(src, 0, src.Size()))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestS3BackendOpenFetchesOnlyWhatIsRead(t *testing.T) {
	up := &fakeUploader{objects: make(map[string][]byte)}
	payload := bytes.Repeat([]byte{0xAB}, 4<<20)
	copy(payload[len(payload)-8:], "1234PAR1")
	up.objects["bucket/big.parquet"] = payload
	objects := &fakeObjects{up: up}
	backend := newS3Backend(up, objects, nil)

	src, err := backend.Open(context.Background(), "bucket/big.parquet")
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, int64(len(payload)), src.Size())
	fetched, requests := objects.stats()
	assert.Zero(t, fetched, "open must not download the object")
	assert.Zero(t, requests)

	// Read the trailer the way a Parquet reader locates its footer.
	_, err = src.Seek(-8, io.SeekEnd)
	require.NoError(t, err)
	trailer := make([]byte, 8)
	_, err = io.ReadFull(src, trailer)
	require.NoError(t, err)
	assert.Equal(t, "1234PAR1", string(trailer))

	fetched, requests = objects.stats()
	assert.Equal(t, int64(8), fetched)
	assert.Equal(t, 1, requests)

	// A read straddling the end is clipped to the object size.
	buf := make([]byte, 16)
	n, err := src.ReadAt(buf, int64(len(payload))-4)
	assert.Equal(t, 4, n)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "PAR1", string(buf[:n]))

	n, err = src.ReadAt(buf, int64(len(payload)))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestS3BackendUploadFailure(t *testing.T) {
	up := &fakeUploader{objects: make(map[string][]byte), err: stderrors.New("access denied")}
	backend := newS3Backend(up, &fakeObjects{up: up}, nil)

	w, err := backend.Create(context.Background(), "bucket/key")
	require.NoError(t, err)
	_, err = w.Write([]byte("data"))
	require.NoError(t, err)
	err = w.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestS3BackendBadPath(t *testing.T) {
	up := &fakeUploader{objects: make(map[string][]byte)}
	r := NewResolver(WithBackend(SchemeS3, newS3Backend(up, &fakeObjects{up: up}, nil)))

	_, err := r.Create(context.Background(), "s3:bucket-only")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = r.Open(context.Background(), "s3:bucket/missing")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))
}
