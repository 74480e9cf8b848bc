package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"goflare.io/filecache/pkg/serialization"
)

const defaultRedisPrefix = "filecache:"

// Redis serves files kept in Redis. Each file is stored as two keys: an
// encoded metadata record and the raw contents, written together in one
// transaction so Stat never observes metadata for contents that are not there.
type Redis struct {
	client redis.Cmdable
	prefix string
	codec  serialization.Codec
}

var _ Backend = (*Redis)(nil)

// RedisOption configures a Redis backend.
type RedisOption func(*Redis) error

// WithKeyPrefix sets the prefix of every key the backend touches.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) error {
		r.prefix = prefix
		return nil
	}
}

// WithSerialization selects the metadata codec by name ("json" or "gob").
func WithSerialization(name string) RedisOption {
	return func(r *Redis) error {
		codec, err := serialization.Lookup(name)
		if err != nil {
			return err
		}
		r.codec = codec
		return nil
	}
}

type redisMeta struct {
	Size    int64
	ModTime time.Time
}

// NewRedis creates a Redis backend over client.
func NewRedis(client redis.Cmdable, opts ...RedisOption) (*Redis, error) {
	codec, err := serialization.Lookup(serialization.JSONType)
	if err != nil {
		return nil, err
	}

	r := &Redis{
		client: client,
		prefix: defaultRedisPrefix,
		codec:  codec,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return r, nil
}

// Stat implements Backend.
func (r *Redis) Stat(ctx context.Context, path string) (Info, error) {
	raw, err := r.client.Get(ctx, r.metaKey(path)).Bytes()
	if err != nil {
		return Info{}, r.mapError(path, err)
	}

	var meta redisMeta
	if err := r.codec.Decoder(bytes.NewReader(raw)).Decode(&meta); err != nil {
		return Info{}, fmt.Errorf("failed to decode metadata for %s: %w", path, err)
	}
	return Info{Size: meta.Size, ModTime: meta.ModTime}, nil
}

// Read implements Backend.
func (r *Redis) Read(ctx context.Context, path string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.dataKey(path)).Bytes()
	if err != nil {
		return nil, r.mapError(path, err)
	}
	return data, nil
}

// Put stores data under path with the given modification time.
func (r *Redis) Put(ctx context.Context, path string, data []byte, modTime time.Time) error {
	var buf bytes.Buffer
	meta := redisMeta{Size: int64(len(data)), ModTime: modTime.UTC()}
	if err := r.codec.Encoder(&buf).Encode(meta); err != nil {
		return fmt.Errorf("failed to encode metadata for %s: %w", path, err)
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.dataKey(path), data, 0)
		pipe.Set(ctx, r.metaKey(path), buf.Bytes(), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", path, err)
	}
	return nil
}

// Delete removes path. Deleting a missing path is not an error.
func (r *Redis) Delete(ctx context.Context, path string) error {
	if err := r.client.Del(ctx, r.metaKey(path), r.dataKey(path)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

func (r *Redis) metaKey(path string) string {
	return r.prefix + "meta:" + path
}

func (r *Redis) dataKey(path string) string {
	return r.prefix + "data:" + path
}

func (r *Redis) mapError(path string, err error) error {
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return fmt.Errorf("failed to read %s from redis: %w", path, err)
}
