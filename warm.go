package filecache

import (
	"context"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	warmConcurrency = 8
	warmTimeout     = 5 * time.Second
)

// Warm loads paths through GetOrPopulate with bounded concurrency, so they go
// through the usual admission rules. Failures are logged and skipped. It
// returns how many paths were read successfully.
func Warm(ctx context.Context, c FileCache, logger *zap.Logger, paths ...string) int {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		loaded = atomic.NewInt64(0)
		g      errgroup.Group
	)
	g.SetLimit(warmConcurrency)

	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(ctx, warmTimeout)
			defer cancel()

			if _, err := c.GetOrPopulate(ctx, path); err != nil {
				logger.Warn("Failed to warm cache for path", zap.String("path", path), zap.Error(err))
				return nil
			}
			loaded.Inc()
			return nil
		})
	}
	_ = g.Wait()

	return int(loaded.Load())
}
