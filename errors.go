package filecache

import (
	"errors"

	"goflare.io/filecache/backend"
	"goflare.io/filecache/internal/config"
	"goflare.io/filecache/internal/store"
)

var (
	ErrNotFound              = backend.ErrNotFound
	ErrNilBackend            = errors.New("backend must not be nil")
	ErrUnknownPolicy         = errors.New("unknown priority policy")
	ErrInvalidCapacity       = config.ErrInvalidCapacity
	ErrInvalidFileSizeBounds = config.ErrInvalidFileSizeBounds
	ErrNilPolicy             = config.ErrNilPolicy
	ErrInvalidDoorkeeper     = config.ErrInvalidDoorkeeper
	ErrInvariantViolation    = store.ErrInvariantViolation
)
