package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySource(t *testing.T) {
	ctx := context.Background()
	src := NewMemorySource()
	modTime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	src.Put("/docs/a.txt", []byte("hello"), modTime)

	info, err := src.Stat(ctx, "docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.Equal(t, modTime, info.ModTime)
	assert.Equal(t, "docs/a.txt", info.Name)

	f, err := src.Open(ctx, "/docs/../docs/a.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	require.NoError(t, f.Close())
	assert.Error(t, f.Close())

	src.Remove("docs/a.txt")
	_, err = src.Stat(ctx, "docs/a.txt")
	assert.True(t, IsNotExist(err))
	_, err = src.Open(ctx, "docs/a.txt")
	assert.True(t, IsNotExist(err))
}

func TestOpenWithRetryRecoversFromTransientErrors(t *testing.T) {
	src := NewMemorySource()
	src.Put("a.txt", []byte("data"), time.Now())
	failures := 2
	src.OpenErr = func(string) error {
		if failures > 0 {
			failures--
			return errors.New("sharing violation")
		}
		return nil
	}

	f, err := OpenWithRetry(context.Background(), src, "a.txt", 5, time.Millisecond)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, 3, src.Opens())
}

func TestOpenWithRetryGivesUp(t *testing.T) {
	src := NewMemorySource()
	src.OpenErr = func(string) error { return errors.New("locked") }

	_, err := OpenWithRetry(context.Background(), src, "a.txt", 3, time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, src.Opens())
}

func TestOpenWithRetryDoesNotRetryMissingFiles(t *testing.T) {
	src := NewMemorySource()

	_, err := OpenWithRetry(context.Background(), src, "missing.txt", 5, time.Millisecond)
	assert.True(t, IsNotExist(err))
	assert.Equal(t, 1, src.Opens())
}

func TestOpenWithRetryHonoursCancellation(t *testing.T) {
	src := NewMemorySource()
	src.OpenErr = func(string) error { return errors.New("locked") }
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := OpenWithRetry(ctx, src, "a.txt", 5, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalSource(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "css"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "css", "site.css"), []byte("body{}"), 0o644))
	ctx := context.Background()

	src := NewLocalSource(root)
	assert.Equal(t, root, src.Root())

	info, err := src.Stat(ctx, "/css/site.css")
	require.NoError(t, err)
	assert.Equal(t, int64(6), info.Size)
	assert.Equal(t, "css/site.css", info.Name)

	f, err := src.Open(ctx, "css/site.css")
	require.NoError(t, err)
	defer f.Close()
	_, err = f.Seek(2, io.SeekStart)
	require.NoError(t, err)
	rest, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "dy{}", string(rest))

	_, err = src.Stat(ctx, "css")
	assert.True(t, IsNotExist(err), "directories are not served")

	_, err = src.Stat(ctx, "missing.css")
	assert.True(t, IsNotExist(err))
}

func TestLocalSourceConfinesPathsToRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "public")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "secret.txt"), []byte("s3cr3t"), 0o644))

	src := NewLocalSource(root)
	_, err := src.Stat(context.Background(), "../secret.txt")
	assert.Error(t, err)
}

func TestContentType(t *testing.T) {
	ctx := context.Background()
	src := NewMemorySource()
	src.Put("index.html", []byte("<html></html>"), time.Now())
	src.Put("blob", []byte("%PDF-1.4\n%..."), time.Now())

	assert.Contains(t, ContentType(ctx, src, "index.html"), "text/html")
	assert.Equal(t, "application/pdf", ContentType(ctx, src, "blob"))
	assert.Equal(t, DefaultContentType, ContentType(ctx, src, "missing"))
}
