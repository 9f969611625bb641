package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"
)

// FileInfo is the subset of file metadata the entity store needs.
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// File is an open, seekable file body.
type File interface {
	io.Reader
	io.Seeker
	io.Closer
}

// Source abstracts where static files live. Stat and Open must return an error
// satisfying errors.Is(err, fs.ErrNotExist) for missing files and directories.
type Source interface {
	Stat(ctx context.Context, name string) (FileInfo, error)
	Open(ctx context.Context, name string) (File, error)
}

// IsNotExist reports whether err means the file is absent.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// DefaultRetryDelay is the base delay between open attempts.
const DefaultRetryDelay = 50 * time.Millisecond

// OpenWithRetry opens name, retrying transient failures up to attempts times
// with a linearly growing delay. Missing files are not retried.
func OpenWithRetry(ctx context.Context, src Source, name string, attempts int, delay time.Duration) (File, error) {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		f, err := src.Open(ctx, name)
		if err == nil {
			return f, nil
		}
		if IsNotExist(err) {
			return nil, err
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay * time.Duration(i+1)):
		}
	}
	return nil, fmt.Errorf("opening %s after %d attempts: %w", name, attempts, lastErr)
}
