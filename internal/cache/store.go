package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"golang.org/x/sync/singleflight"

	"github.com/muandane/estatic/internal/config"
	"github.com/muandane/estatic/internal/storage"
)

var (
	ErrNotFound = errors.New("file not found")
	ErrTooLarge = errors.New("file too large")
)

var (
	hitsTotal        = metrics.GetOrCreateCounter("estatic_cache_hits_total")
	missesTotal      = metrics.GetOrCreateCounter("estatic_cache_misses_total")
	populationsTotal = metrics.GetOrCreateCounter("estatic_cache_populations_total")
	evictionsTotal   = metrics.GetOrCreateCounter("estatic_cache_evictions_total")
)

type Options struct {
	// MaxFileSize is the largest servable file. Larger files yield ErrTooLarge.
	MaxFileSize int64

	// Revalidate stats the source on every hit and drops entries whose size
	// or modification time changed.
	Revalidate bool

	// SingleFlight collapses concurrent misses for one key into a single build.
	SingleFlight bool

	OpenRetries int
	RetryDelay  time.Duration
	Clock       Clock
	Logger      *slog.Logger

	// OnPopulate is called with the path of every newly inserted entity.
	OnPopulate func(path string)
}

type entry struct {
	entity     *FileEntity
	size       int64
	modTime    time.Time
	sliding    time.Duration
	lastAccess atomic.Int64
}

func (e *entry) idle(now time.Time) bool {
	if e.sliding <= 0 {
		return false
	}
	return now.Sub(time.Unix(0, e.lastAccess.Load())) > e.sliding
}

// Store caches file entities keyed by path and at-rest compression.
type Store struct {
	src      storage.Source
	policies *config.PolicyTable
	opts     Options
	logger   *slog.Logger

	mu      sync.RWMutex
	entries map[CacheKey]*entry
	group   singleflight.Group

	hits        atomic.Int64
	misses      atomic.Int64
	populations atomic.Int64
	evictions   atomic.Int64
	lastSweep   atomic.Int64

	// generation advances on every path invalidation. Builds that straddle
	// one are returned to their caller but not inserted.
	generation atomic.Uint64
}

func NewStore(src storage.Source, policies *config.PolicyTable, opts Options) *Store {
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.OpenRetries < 1 {
		opts.OpenRetries = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = storage.DefaultRetryDelay
	}
	if policies == nil {
		policies = config.DefaultPolicyTable()
	}
	return &Store{
		src:      src,
		policies: policies,
		opts:     opts,
		logger:   opts.Logger.With("component", "cache"),
		entries:  make(map[CacheKey]*entry),
	}
}

// Policies returns the table the store resolves rules from.
func (s *Store) Policies() *config.PolicyTable {
	return s.policies
}

// GetOrCreate returns the cached entity for name in the given at-rest
// compression, building it from the source on a miss.
func (s *Store) GetOrCreate(ctx context.Context, name string, c Compression) (*FileEntity, error) {
	key := CacheKey{Compression: c, Path: storage.CleanPath(name)}

	if entity, ok := s.lookup(ctx, key); ok {
		s.hits.Add(1)
		hitsTotal.Inc()
		return entity, nil
	}
	s.misses.Add(1)
	missesTotal.Inc()

	if !s.opts.SingleFlight {
		return s.populate(ctx, key)
	}
	// Waiters share the build, so it must not die with the first caller.
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(key.String(), func() (interface{}, error) {
		return s.populate(shared, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*FileEntity), nil
}

func (s *Store) lookup(ctx context.Context, key CacheKey) (*FileEntity, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	now := s.opts.Clock.Now()
	if e.idle(now) {
		s.evictEntry(key, e)
		return nil, false
	}

	if s.opts.Revalidate {
		info, err := s.src.Stat(ctx, key.Path)
		if err != nil || info.Size != e.size || !info.ModTime.Equal(e.modTime) {
			s.logger.Debug("source changed, invalidating", "path", key.Path)
			s.InvalidatePath(key.Path)
			return nil, false
		}
	}

	e.lastAccess.Store(now.UnixNano())
	return e.entity, true
}

func (s *Store) populate(ctx context.Context, key CacheKey) (*FileEntity, error) {
	gen := s.generation.Load()
	entity, info, err := s.build(ctx, key)
	if err != nil {
		return nil, err
	}
	rule := s.policies.Resolve(path.Ext(key.Path))

	e := &entry{
		entity:  entity,
		size:    info.Size,
		modTime: info.ModTime,
		sliding: rule.MemorySlidingExpiration,
	}
	e.lastAccess.Store(s.opts.Clock.Now().UnixNano())

	s.mu.Lock()
	if s.generation.Load() != gen {
		s.mu.Unlock()
		s.logger.Debug("invalidated during build, not caching", "key", key.String())
		return entity, nil
	}
	s.entries[key] = e
	s.mu.Unlock()

	s.populations.Add(1)
	populationsTotal.Inc()
	s.logger.Debug("entity cached",
		"key", key.String(),
		"etag", entity.ETag,
		"materialized", entity.Materialized(),
		"length", entity.ContentLength,
	)
	if s.opts.OnPopulate != nil {
		s.opts.OnPopulate(key.Path)
	}
	return entity, nil
}

func (s *Store) build(ctx context.Context, key CacheKey) (*FileEntity, storage.FileInfo, error) {
	info, err := s.src.Stat(ctx, key.Path)
	if err != nil {
		if storage.IsNotExist(err) {
			return nil, info, fmt.Errorf("%w: %s", ErrNotFound, key.Path)
		}
		return nil, info, fmt.Errorf("stat %s: %w", key.Path, err)
	}
	if s.opts.MaxFileSize > 0 && info.Size > s.opts.MaxFileSize {
		return nil, info, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, key.Path, info.Size)
	}

	rule := s.policies.Resolve(path.Ext(key.Path))
	entity := &FileEntity{
		Path:          key.Path,
		LastModified:  TruncateModTime(info.ModTime),
		ContentType:   storage.ContentType(ctx, s.src, key.Path),
		ContentLength: info.Size,
		SourceSize:    info.Size,
		Compression:   CompressionNone,
	}

	if rule.ServeFromMemory && info.Size <= rule.MaxMemorySize {
		raw, err := s.readAll(ctx, key.Path)
		if err != nil {
			return nil, info, err
		}
		if entity.ETag, err = ComputeETag(bytes.NewReader(raw), rule.ETagMethod, info.ModTime); err != nil {
			return nil, info, err
		}
		entity.Data = raw
		if key.Compression != CompressionNone {
			if entity.Data, err = CompressData(raw, key.Compression); err != nil {
				return nil, info, fmt.Errorf("compressing %s: %w", key.Path, err)
			}
			entity.Compression = key.Compression
		}
		entity.ContentLength = int64(len(entity.Data))
		return entity, info, nil
	}

	if rule.ETagMethod == config.ETagLastModified {
		entity.ETag, err = ComputeETag(nil, rule.ETagMethod, info.ModTime)
		return entity, info, err
	}
	f, err := storage.OpenWithRetry(ctx, s.src, key.Path, s.opts.OpenRetries, s.opts.RetryDelay)
	if err != nil {
		return nil, info, s.openError(key.Path, err)
	}
	defer f.Close()
	if entity.ETag, err = ComputeETag(f, rule.ETagMethod, info.ModTime); err != nil {
		return nil, info, fmt.Errorf("hashing %s: %w", key.Path, err)
	}
	return entity, info, nil
}

func (s *Store) readAll(ctx context.Context, name string) ([]byte, error) {
	f, err := storage.OpenWithRetry(ctx, s.src, name, s.opts.OpenRetries, s.opts.RetryDelay)
	if err != nil {
		return nil, s.openError(name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

func (s *Store) openError(name string, err error) error {
	if storage.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return err
}

// InvalidatePath evicts every compression variant of name and returns how
// many entries were removed.
func (s *Store) InvalidatePath(name string) int {
	name = storage.CleanPath(name)
	removed := 0

	s.mu.Lock()
	s.generation.Add(1)
	for _, c := range compressions {
		key := CacheKey{Compression: c, Path: name}
		if _, ok := s.entries[key]; ok {
			delete(s.entries, key)
			removed++
		}
	}
	s.mu.Unlock()

	s.countEvictions(removed)
	return removed
}

// Evict removes a single key.
func (s *Store) Evict(key CacheKey) bool {
	s.mu.Lock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	s.mu.Unlock()

	if ok {
		s.countEvictions(1)
	}
	return ok
}

// evictEntry removes key only while it still maps to e.
func (s *Store) evictEntry(key CacheKey, e *entry) {
	s.mu.Lock()
	current, ok := s.entries[key]
	removed := ok && current == e
	if removed {
		delete(s.entries, key)
	}
	s.mu.Unlock()

	if removed {
		s.countEvictions(1)
	}
}

// Sweep evicts entries idle for longer than their sliding expiration.
func (s *Store) Sweep() int {
	now := s.opts.Clock.Now()
	removed := 0

	s.mu.Lock()
	for key, e := range s.entries {
		if e.idle(now) {
			delete(s.entries, key)
			removed++
		}
	}
	s.mu.Unlock()

	s.countEvictions(removed)
	s.lastSweep.Store(now.UnixNano())
	return removed
}

// Start runs Sweep every interval until ctx is done.
func (s *Store) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					s.logger.Info("swept idle entries", "evicted", n)
				}
			}
		}
	}()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) countEvictions(n int) {
	if n == 0 {
		return
	}
	s.evictions.Add(int64(n))
	evictionsTotal.Add(n)
}
