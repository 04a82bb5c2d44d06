package sink

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const localBufferSize = 1 << 20

// Local stores files on the local filesystem.
type Local struct{}

// Create creates or truncates path and returns a buffered writer over it.
// Missing parent directories are created.
func (Local) Create(_ context.Context, path string) (io.WriteCloser, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return &localWriter{f: f, w: bufio.NewWriterSize(f, localBufferSize)}, nil
}

// Open opens path for reading.
func (Local) Open(_ context.Context, path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileSource{File: f, size: info.Size()}, nil
}

type localWriter struct {
	f *os.File
	w *bufio.Writer
}

func (lw *localWriter) Write(p []byte) (int, error) {
	return lw.w.Write(p)
}

func (lw *localWriter) Close() error {
	if err := lw.w.Flush(); err != nil {
		lw.f.Close()
		return err
	}
	return lw.f.Close()
}

type fileSource struct {
	*os.File
	size int64

	once     sync.Once
	closeErr error
}

// Close is idempotent; the Parquet reader may already have closed the file.
func (s *fileSource) Close() error {
	s.once.Do(func() {
		s.closeErr = s.File.Close()
	})
	return s.closeErr
}

func (s *fileSource) Size() int64 {
	return s.size
}
