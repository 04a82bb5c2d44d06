package sink

import (
	"context"
	"io"

	"github.com/ajitpratap0/pqflow/pkg/errors"
)

// rangeFetcher returns length bytes of a remote object starting at off.
type rangeFetcher func(ctx context.Context, off, length int64) (io.ReadCloser, error)

// rangedObject serves ReadAt with one ranged request per call, so a reader
// only ever holds the bytes it asked for.
type rangedObject struct {
	ctx   context.Context
	size  int64
	fetch rangeFetcher
}

func (o *rangedObject) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.Newf(errors.ErrorTypeIO, "negative read offset %d", off)
	}
	if off >= o.size {
		return 0, io.EOF
	}
	want := int64(len(p))
	if off+want > o.size {
		want = o.size - off
	}
	if want == 0 {
		return 0, nil
	}

	body, err := o.fetch(o.ctx, off, want)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	n, err := io.ReadFull(body, p[:want])
	if err != nil {
		return n, err
	}
	if want < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

// rangedSource is a Source over a remote object of known size.
type rangedSource struct {
	*io.SectionReader
}

// newRangedSource keeps ctx's values but not its cancellation; a source may
// outlive the context it was opened with.
func newRangedSource(ctx context.Context, size int64, fetch rangeFetcher) *rangedSource {
	obj := &rangedObject{ctx: context.WithoutCancel(ctx), size: size, fetch: fetch}
	return &rangedSource{SectionReader: io.NewSectionReader(obj, 0, size)}
}

func (*rangedSource) Close() error { return nil }
