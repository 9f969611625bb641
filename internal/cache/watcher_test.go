package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muandane/estatic/internal/storage"
)

func TestWatcherInvalidatesChangedFiles(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "js"), 0o755))
	file := filepath.Join(root, "js", "app.js")
	require.NoError(t, os.WriteFile(file, []byte("let a = 1"), 0o644))

	s := newTestStore(storage.NewLocalSource(root), SystemClock, func(o *Options) { o.Revalidate = false })
	w, err := NewWatcher(root, s, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	_, err = s.GetOrCreate(ctx, "js/app.js", CompressionNone)
	require.NoError(t, err)
	w.Track("js/app.js")
	w.Track("js/app.js")
	require.Equal(t, 1, s.Len())

	require.NoError(t, os.WriteFile(file, []byte("let a = 2"), 0o644))

	assert.Eventually(t, func() bool { return s.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}
