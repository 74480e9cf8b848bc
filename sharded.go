package filecache

import (
	"context"
	"fmt"

	"goflare.io/filecache/backend"
	"goflare.io/filecache/internal/config"
	"goflare.io/filecache/internal/utils"
	"goflare.io/filecache/models"
)

var _ FileCache = (*Sharded)(nil)

// Sharded spreads paths over independent Caches to reduce lock contention.
// Each shard owns an equal part of the capacity and evicts only among its
// own files, so admission decisions are local to a shard.
type Sharded struct {
	shards []*Cache
}

// NewSharded creates shards Caches sharing capacityBytes. A shard count of 0
// picks a default from the number of CPUs.
func NewSharded(b backend.Backend, capacityBytes int64, shards uint64, opts ...Option) (*Sharded, error) {
	if b == nil {
		return nil, ErrNilBackend
	}
	if shards == 0 {
		shards = config.DefaultShardCount()
	}

	cfgOpts := append(configOptions(opts), config.WithShardCount(shards))
	cfg, err := config.NewConfig(capacityBytes, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create config: %w", err)
	}

	parts := utils.SplitCapacity(cfg.CapacityBytes, cfg.ShardCount)
	s := &Sharded{shards: make([]*Cache, len(parts))}
	for i, part := range parts {
		shardCfg := *cfg
		shardCfg.CapacityBytes = part
		if shardCfg.Doorkeeper.Enabled {
			shardCfg.Doorkeeper.ExpectedItems = max(1, cfg.Doorkeeper.ExpectedItems/uint(cfg.ShardCount))
		}

		c, err := newCache(b, &shardCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create cache shard %d: %w", i, err)
		}
		s.shards[i] = c
	}

	return s, nil
}

func (s *Sharded) shard(path string) *Cache {
	return s.shards[utils.ShardIndex(uint64(len(s.shards)), path)]
}

func (s *Sharded) GetOrPopulate(ctx context.Context, path string) (*models.File, error) {
	return s.shard(path).GetOrPopulate(ctx, path)
}

func (s *Sharded) Invalidate(ctx context.Context, path string) {
	s.shard(path).Invalidate(ctx, path)
}

func (s *Sharded) InvalidateAll(ctx context.Context) {
	for _, c := range s.shards {
		c.InvalidateAll(ctx)
	}
}

func (s *Sharded) Contains(path string) bool {
	return s.shard(path).Contains(path)
}

// ShardCount returns the number of shards.
func (s *Sharded) ShardCount() int {
	return len(s.shards)
}

func (s *Sharded) SizeBytes() int64 {
	var total int64
	for _, c := range s.shards {
		total += c.SizeBytes()
	}
	return total
}

func (s *Sharded) Len() int {
	total := 0
	for _, c := range s.shards {
		total += c.Len()
	}
	return total
}

func (s *Sharded) Capacity() int64 {
	var total int64
	for _, c := range s.shards {
		total += c.Capacity()
	}
	return total
}

// Snapshot sums the counters of every shard.
func (s *Sharded) Snapshot() models.Snapshot {
	var sum models.Snapshot
	for _, c := range s.shards {
		sum = sum.Add(c.Snapshot())
	}
	return sum
}

// Check runs the size accounting check on every shard.
func (s *Sharded) Check() error {
	for i, c := range s.shards {
		if err := c.Check(); err != nil {
			return fmt.Errorf("shard %d: %w", i, err)
		}
	}
	return nil
}
