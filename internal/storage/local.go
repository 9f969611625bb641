package storage

import (
	"context"
	"io/fs"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// LocalSource serves files from a directory on disk. Paths are confined to the
// root by billy's bound OS filesystem.
type LocalSource struct {
	root string
	bfs  billy.Filesystem
}

func NewLocalSource(root string) *LocalSource {
	return &LocalSource{
		root: root,
		bfs:  osfs.New(root, osfs.WithBoundOS()),
	}
}

// Root returns the directory the source is bound to.
func (s *LocalSource) Root() string {
	return s.root
}

func (s *LocalSource) Stat(_ context.Context, name string) (FileInfo, error) {
	name = CleanPath(name)
	info, err := s.bfs.Stat(name)
	if err != nil {
		return FileInfo{}, err
	}
	if info.IsDir() {
		return FileInfo{}, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return FileInfo{
		Name:    name,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

func (s *LocalSource) Open(_ context.Context, name string) (File, error) {
	return s.bfs.Open(CleanPath(name))
}

// CleanPath turns a request path into a clean slash path relative to the root.
func CleanPath(name string) string {
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}
