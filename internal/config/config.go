package config

import (
	"errors"
	"runtime"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"goflare.io/filecache/internal/store"
	"goflare.io/filecache/priority"
)

// Config 用於 Cache 的配置
type Config struct {
	CapacityBytes int64
	MinFileSize   int64
	MaxFileSize   int64
	ShardCount    uint64

	Policy priority.Policy

	ReadCoalescing  bool
	InvariantChecks bool
	Doorkeeper      DoorkeeperConfig

	TracerProvider trace.TracerProvider
	Logger         *zap.Logger
}

// DoorkeeperConfig 准入過濾器配置
type DoorkeeperConfig struct {
	Enabled           bool
	ExpectedItems     uint
	FalsePositiveRate float64
}

// Option 函數類型
type Option func(*Config) error

var (
	ErrInvalidCapacity       = store.ErrInvalidCapacity
	ErrInvalidFileSizeBounds = store.ErrInvalidFileSizeBounds
	ErrNilPolicy             = store.ErrNilPolicy
	ErrShardCountZero        = errors.New("shard count must be at least 1")
	ErrInvalidDoorkeeper     = errors.New("doorkeeper needs expected items > 0 and a false positive rate in (0, 1)")
)

// NewConfig 創建一個默認的 Config，允許覆蓋特定參數
func NewConfig(capacityBytes int64, options ...Option) (*Config, error) {
	cfg := &Config{
		CapacityBytes:  capacityBytes,
		ShardCount:     1,
		Policy:         priority.Default,
		TracerProvider: otel.GetTracerProvider(),
		Logger:         zap.NewNop(),
	}

	for _, option := range options {
		if err := option(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 最終檢查
func (c *Config) Validate() error {
	switch {
	case c.CapacityBytes <= 0:
		return ErrInvalidCapacity
	case c.MinFileSize < 0 || c.MaxFileSize < 0:
		return ErrInvalidFileSizeBounds
	case c.MaxFileSize > 0 && c.MinFileSize > c.MaxFileSize:
		return ErrInvalidFileSizeBounds
	case c.Policy == nil:
		return ErrNilPolicy
	case c.ShardCount == 0:
		return ErrShardCountZero
	case uint64(c.CapacityBytes) < c.ShardCount:
		return ErrInvalidCapacity
	}

	if c.Doorkeeper.Enabled {
		d := c.Doorkeeper
		if d.ExpectedItems == 0 || d.FalsePositiveRate <= 0 || d.FalsePositiveRate >= 1 {
			return ErrInvalidDoorkeeper
		}
	}
	return nil
}

// WithLogger 設置自定義 Logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) error {
		if logger != nil {
			c.Logger = logger
		}
		return nil
	}
}

// WithMinFileSize 小於此大小的檔案不會被快取，0 表示不限制
func WithMinFileSize(size int64) Option {
	return func(c *Config) error {
		c.MinFileSize = size
		return nil
	}
}

// WithMaxFileSize 大於此大小的檔案不會被快取，0 表示只受容量限制
func WithMaxFileSize(size int64) Option {
	return func(c *Config) error {
		c.MaxFileSize = size
		return nil
	}
}

// WithPolicy 設置優先級策略
func WithPolicy(p priority.Policy) Option {
	return func(c *Config) error {
		if p == nil {
			return ErrNilPolicy
		}
		c.Policy = p
		return nil
	}
}

// WithShardCount 設置分片數量
func WithShardCount(count uint64) Option {
	return func(c *Config) error {
		if count == 0 {
			return ErrShardCountZero
		}
		c.ShardCount = count
		return nil
	}
}

// WithReadCoalescing 合併同一路徑的並發讀取
func WithReadCoalescing(enabled bool) Option {
	return func(c *Config) error {
		c.ReadCoalescing = enabled
		return nil
	}
}

// WithInvariantChecks 每次修改後驗證大小不變量
func WithInvariantChecks(enabled bool) Option {
	return func(c *Config) error {
		c.InvariantChecks = enabled
		return nil
	}
}

// WithDoorkeeper 啟用布隆過濾器准入
func WithDoorkeeper(expectedItems uint, falsePositiveRate float64) Option {
	return func(c *Config) error {
		c.Doorkeeper = DoorkeeperConfig{
			Enabled:           true,
			ExpectedItems:     expectedItems,
			FalsePositiveRate: falsePositiveRate,
		}
		return nil
	}
}

// WithTracerProvider 設置 OpenTelemetry TracerProvider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Config) error {
		if tp != nil {
			c.TracerProvider = tp
		}
		return nil
	}
}

// DefaultShardCount 計算動態分片數量
func DefaultShardCount() uint64 {
	// 限制分片數量不超過 CPU 核心數的 4 倍
	return uint64(runtime.NumCPU() * 4)
}
