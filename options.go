package filecache

import (
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"goflare.io/filecache/internal/config"
	"goflare.io/filecache/priority"
)

// Option 定義初始化 Cache 的選項
type Option func(*config.Config) error

// WithLogger 設置自定義的日誌記錄器
func WithLogger(logger *zap.Logger) Option {
	return Option(config.WithLogger(logger))
}

// WithMinFileSize 小於此大小的檔案不會被快取，0 表示不限制
func WithMinFileSize(size int64) Option {
	return Option(config.WithMinFileSize(size))
}

// WithMaxFileSize 大於此大小的檔案不會被快取，0 表示只受容量限制
func WithMaxFileSize(size int64) Option {
	return Option(config.WithMaxFileSize(size))
}

// WithPriorityPolicy 設置優先級策略
func WithPriorityPolicy(p priority.Policy) Option {
	return Option(config.WithPolicy(p))
}

// WithNamedPriorityPolicy 以名稱選擇內建策略: default, balanced, access, recency
func WithNamedPriorityPolicy(name string) Option {
	return func(cfg *config.Config) error {
		p, ok := priority.Named(name)
		if !ok {
			return ErrUnknownPolicy
		}
		cfg.Policy = p
		return nil
	}
}

// WithReadCoalescing 同一路徑的並發未命中只讀取一次
func WithReadCoalescing(enabled bool) Option {
	return Option(config.WithReadCoalescing(enabled))
}

// WithDoorkeeper 檔案第二次被請求時才考慮快取
func WithDoorkeeper(expectedItems uint, falsePositiveRate float64) Option {
	return Option(config.WithDoorkeeper(expectedItems, falsePositiveRate))
}

// WithTracerProvider 設置 OpenTelemetry TracerProvider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return Option(config.WithTracerProvider(tp))
}

// WithInvariantChecks 每次修改後驗證大小不變量，違反時 panic
func WithInvariantChecks(enabled bool) Option {
	return Option(config.WithInvariantChecks(enabled))
}

func configOptions(opts []Option) []config.Option {
	out := make([]config.Option, 0, len(opts))
	for _, opt := range opts {
		out = append(out, config.Option(opt))
	}
	return out
}
