// Package backend defines the backing store a file cache reads through to,
// and provides adapters for common storage layers.
//
// Paths are opaque keys to the cache; each adapter interprets them in its own
// namespace.
package backend

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when the backing store has no file at a path.
// Adapters wrap it, so compare with errors.Is.
var ErrNotFound = errors.New("file not found")

// Info is the metadata the cache needs to decide freshness.
type Info struct {
	Size    int64
	ModTime time.Time
}

// Backend reads files from persistent storage. Implementations must be safe
// for concurrent use.
type Backend interface {
	// Stat returns the current metadata for path, or an error wrapping
	// ErrNotFound.
	Stat(ctx context.Context, path string) (Info, error)
	// Read returns the full contents of path. The caller takes ownership of
	// the returned slice.
	Read(ctx context.Context, path string) ([]byte, error)
}

// IsNotFound reports whether err means the path does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
