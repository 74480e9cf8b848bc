// Package filecache keeps recently and frequently requested file contents in
// memory so a request path does not have to go to the backing store for them.
//
// A Cache admits files by priority: when it is full, a newly read file only
// replaces residents it strictly outranks, and nothing is evicted if it does
// not. Freshness is checked against the backing store's modification time on
// every request. Backing store I/O never happens while the cache's lock is
// held.
package filecache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"goflare.io/filecache/backend"
	"goflare.io/filecache/internal/config"
	"goflare.io/filecache/internal/doorkeeper"
	"goflare.io/filecache/internal/store"
	"goflare.io/filecache/models"
)

const tracerName = "goflare.io/filecache"

// FileCache is the caller-facing contract shared by Cache and Sharded.
type FileCache interface {
	// GetOrPopulate returns the current contents of path, from memory when a
	// fresh copy is resident and from the backing store otherwise.
	GetOrPopulate(ctx context.Context, path string) (*models.File, error)
	// Invalidate drops path if it is resident.
	Invalidate(ctx context.Context, path string)
	// InvalidateAll drops every resident file.
	InvalidateAll(ctx context.Context)

	SizeBytes() int64
	Len() int
	Contains(path string) bool
	Capacity() int64
	Snapshot() models.Snapshot
}

var _ FileCache = (*Cache)(nil)

// Cache is a size-bounded in-memory file cache in front of one backend.
// It is safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	store *store.Store

	backend    backend.Backend
	sf         *singleflight.Group
	doorkeeper *doorkeeper.Doorkeeper
	checks     bool

	metrics *models.Metrics
	tracer  trace.Tracer
	logger  *zap.Logger
}

// New creates a Cache holding at most capacityBytes of file contents read
// from b.
func New(b backend.Backend, capacityBytes int64, opts ...Option) (*Cache, error) {
	if b == nil {
		return nil, ErrNilBackend
	}

	cfg, err := config.NewConfig(capacityBytes, configOptions(opts)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create config: %w", err)
	}

	return newCache(b, cfg)
}

func newCache(b backend.Backend, cfg *config.Config) (*Cache, error) {
	c := &Cache{
		backend: b,
		checks:  cfg.InvariantChecks,
		metrics: models.NewMetrics(),
		tracer:  cfg.TracerProvider.Tracer(tracerName),
		logger:  cfg.Logger,
	}

	s, err := store.New(store.Config{
		Capacity:    cfg.CapacityBytes,
		MinFileSize: cfg.MinFileSize,
		MaxFileSize: cfg.MaxFileSize,
		Policy:      cfg.Policy,
		OnRemove:    c.onRemove,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	c.store = s

	if cfg.ReadCoalescing {
		c.sf = &singleflight.Group{}
	}
	if cfg.Doorkeeper.Enabled {
		c.doorkeeper = doorkeeper.New(cfg.Doorkeeper.ExpectedItems, cfg.Doorkeeper.FalsePositiveRate)
	}

	return c, nil
}

// GetOrPopulate returns the contents of path.
//
// A rejected admission is not an error: the freshly read file is returned
// whether or not it was cached. Backing store errors are returned unchanged
// and leave the cache untouched, except that a path the backing store no
// longer has is dropped from the cache.
func (c *Cache) GetOrPopulate(ctx context.Context, path string) (*models.File, error) {
	ctx, span := c.tracer.Start(ctx, "Cache.GetOrPopulate", trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	info, err := c.backend.Stat(ctx, path)
	if err != nil {
		if backend.IsNotFound(err) {
			c.drop(path)
		}
		c.recordBackendError(span, path, err)
		return nil, err
	}

	c.mu.Lock()
	file, res := c.store.Lookup(path, info.ModTime)
	c.verifyLocked()
	c.mu.Unlock()

	span.SetAttributes(attribute.String("cache.lookup", res.String()))
	switch res {
	case store.Hit:
		c.metrics.Hits.Inc()
		c.logger.Debug("Cache hit", zap.String("path", path))
		return file, nil
	case store.Stale:
		c.metrics.StaleReloads.Inc()
		c.logger.Debug("Cached file is stale", zap.String("path", path), zap.Time("mod_time", info.ModTime))
	}
	c.metrics.Misses.Inc()

	r, err := c.populate(ctx, path, info)
	if err != nil {
		c.recordBackendError(span, path, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("cache.admission", r.admission))
	return r.file, nil
}

type populated struct {
	file      *models.File
	admission string
}

func (c *Cache) populate(ctx context.Context, path string, info backend.Info) (populated, error) {
	if c.sf == nil {
		return c.fill(ctx, path, info)
	}

	// Callers only share a read started for the same modification time, so a
	// caller that has seen a newer version never receives the older bytes.
	// The shared read outlives any single caller so that abandoned work still
	// ends up cached for the others.
	key := path + "@" + strconv.FormatInt(info.ModTime.UnixNano(), 10)
	ch := c.sf.DoChan(key, func() (any, error) {
		return c.fill(context.WithoutCancel(ctx), path, info)
	})

	select {
	case <-ctx.Done():
		return populated{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return populated{}, res.Err
		}
		r := res.Val.(populated)
		if res.Shared {
			r.admission = "shared"
		}
		return r, nil
	}
}

// fill reads path and offers the result for admission.
func (c *Cache) fill(ctx context.Context, path string, info backend.Info) (populated, error) {
	data, err := c.backend.Read(ctx, path)
	if err != nil {
		return populated{}, err
	}

	file := models.NewFile(path, data, info.ModTime)
	return populated{file: file, admission: c.admit(file)}, nil
}

func (c *Cache) admit(file *models.File) string {
	if c.doorkeeper != nil && !c.doorkeeper.Allow(file.Path()) {
		c.metrics.Deferred.Inc()
		c.logger.Debug("Deferring admission until second request", zap.String("path", file.Path()))
		return "deferred"
	}

	c.mu.Lock()
	a := c.store.TryAdmit(file)
	c.verifyLocked()
	c.mu.Unlock()

	switch a.Result {
	case store.Admitted:
		c.metrics.Admissions.Inc()
	case store.RejectedTooLarge:
		c.metrics.RejectedSize.Inc()
	case store.RejectedLowPriority:
		c.metrics.RejectedLow.Inc()
	}

	c.logger.Debug("Admission evaluated",
		zap.String("path", file.Path()),
		zap.Int64("size", file.Size()),
		zap.Stringer("result", a.Result),
		zap.Float64("priority", float64(a.Priority)),
		zap.Int("evicted", a.Evicted),
		zap.Int64("freed_bytes", a.FreedBytes))

	return a.Result.String()
}

// Invalidate drops path if it is resident. Invalidating an absent path is a
// no-op.
func (c *Cache) Invalidate(ctx context.Context, path string) {
	_, span := c.tracer.Start(ctx, "Cache.Invalidate", trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	c.mu.Lock()
	removed := c.store.Remove(path)
	c.verifyLocked()
	c.mu.Unlock()

	span.SetAttributes(attribute.Bool("cache.removed", removed))
	if removed {
		c.logger.Debug("Invalidated cached file", zap.String("path", path))
	}
}

// InvalidateAll drops every resident file and, with a doorkeeper, the
// record of which paths have been requested before.
func (c *Cache) InvalidateAll(ctx context.Context) {
	_, span := c.tracer.Start(ctx, "Cache.InvalidateAll")
	defer span.End()

	c.mu.Lock()
	n := c.store.Clear()
	c.verifyLocked()
	c.mu.Unlock()

	if c.doorkeeper != nil {
		c.doorkeeper.Reset()
	}

	span.SetAttributes(attribute.Int("cache.removed", n))
	c.logger.Info("Invalidated all cached files", zap.Int("count", n))
}

// Resize changes the capacity, evicting the lowest-priority files until the
// resident size fits.
func (c *Cache) Resize(capacityBytes int64) error {
	c.mu.Lock()
	evicted, err := c.store.Resize(capacityBytes)
	c.verifyLocked()
	c.mu.Unlock()

	if err != nil {
		return err
	}
	c.logger.Info("Resized cache", zap.Int64("capacity", capacityBytes), zap.Int("evicted", evicted))
	return nil
}

// SizeBytes returns the total size of resident files.
func (c *Cache) SizeBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.SizeBytes()
}

// Len returns the number of resident files.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Len()
}

// Contains reports whether path is resident, without counting an access or
// checking freshness.
func (c *Cache) Contains(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Contains(path)
}

// Capacity returns the configured upper bound in bytes.
func (c *Cache) Capacity() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Capacity()
}

// Metrics returns the live counters.
func (c *Cache) Metrics() *models.Metrics {
	return c.metrics
}

// Snapshot returns a copy of the counters.
func (c *Cache) Snapshot() models.Snapshot {
	return c.metrics.Snapshot()
}

// Check verifies that the size accounting matches the resident files.
func (c *Cache) Check() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Check()
}

// drop removes a path the backing store reports as gone.
func (c *Cache) drop(path string) {
	c.mu.Lock()
	removed := c.store.Remove(path)
	c.verifyLocked()
	c.mu.Unlock()

	if removed {
		c.logger.Debug("Dropped cached file missing from backend", zap.String("path", path))
	}
}

func (c *Cache) onRemove(file *models.File, reason store.RemovalReason) {
	switch reason {
	case store.RemovedEvicted:
		c.metrics.Evictions.Inc()
		c.metrics.EvictedBytes.Add(file.Size())
		c.logger.Debug("Evicted cached file", zap.String("path", file.Path()), zap.Int64("size", file.Size()))
	case store.RemovedInvalidated:
		c.metrics.Invalidations.Inc()
	}
}

func (c *Cache) verifyLocked() {
	if !c.checks {
		return
	}
	if err := c.store.Check(); err != nil {
		c.logger.Error("Cache invariant violated", zap.Error(err))
		panic(err)
	}
}

func (c *Cache) recordBackendError(span trace.Span, path string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	switch {
	case backend.IsNotFound(err):
		c.logger.Debug("File not found", zap.String("path", path))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.logger.Debug("Request abandoned", zap.String("path", path), zap.Error(err))
	default:
		c.metrics.BackendErrors.Inc()
		c.logger.Warn("Backend request failed", zap.String("path", path), zap.Error(err))
	}
}
