package storage

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"sync"
	"time"
)

// MemorySource is an in-memory Source. Files can be replaced at any time,
// which makes it useful for embedded assets and tests.
type MemorySource struct {
	mu    sync.RWMutex
	files map[string]memFile
	// OpenErr, when set, is returned by Open before the file is looked up.
	OpenErr func(name string) error
	opens   int
}

type memFile struct {
	data    []byte
	modTime time.Time
}

func NewMemorySource() *MemorySource {
	return &MemorySource{files: make(map[string]memFile)}
}

// Put stores a copy of data under name.
func (s *MemorySource) Put(name string, data []byte, modTime time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[CleanPath(name)] = memFile{data: bytes.Clone(data), modTime: modTime}
}

func (s *MemorySource) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, CleanPath(name))
}

// Opens reports how many times Open has been called.
func (s *MemorySource) Opens() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opens
}

func (s *MemorySource) Stat(_ context.Context, name string) (FileInfo, error) {
	name = CleanPath(name)
	s.mu.RLock()
	f, ok := s.files[name]
	s.mu.RUnlock()
	if !ok {
		return FileInfo{}, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return FileInfo{Name: name, Size: int64(len(f.data)), ModTime: f.modTime}, nil
}

func (s *MemorySource) Open(_ context.Context, name string) (File, error) {
	name = CleanPath(name)
	s.mu.Lock()
	s.opens++
	openErr := s.OpenErr
	f, ok := s.files[name]
	s.mu.Unlock()

	if openErr != nil {
		if err := openErr(name); err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return &memReader{Reader: bytes.NewReader(f.data)}, nil
}

type memReader struct {
	*bytes.Reader
	closed bool
}

func (r *memReader) Close() error {
	if r.closed {
		return errors.New("file already closed")
	}
	r.closed = true
	return nil
}
