package store

import "goflare.io/filecache/priority"

// LookupResult describes the outcome of Store.Lookup.
type LookupResult int

const (
	Miss LookupResult = iota
	Hit
	// Stale means an entry was resident but older than the backing store.
	// The entry has been removed.
	Stale
)

func (r LookupResult) String() string {
	switch r {
	case Miss:
		return "miss"
	case Hit:
		return "hit"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// AdmissionResult describes why a file was or was not cached. None of the
// rejections are errors: the file was still read successfully.
type AdmissionResult int

const (
	Admitted AdmissionResult = iota
	// RejectedTooLarge covers files larger than the capacity or outside the
	// configured file size bounds.
	RejectedTooLarge
	// RejectedLowPriority means the file does not outrank the most valuable
	// entry it would displace.
	RejectedLowPriority
	// AlreadyResident means an equally fresh copy was admitted first, for
	// example by a concurrent miss on the same path.
	AlreadyResident
)

func (r AdmissionResult) String() string {
	switch r {
	case Admitted:
		return "admitted"
	case RejectedTooLarge:
		return "rejected_too_large"
	case RejectedLowPriority:
		return "rejected_low_priority"
	case AlreadyResident:
		return "already_resident"
	default:
		return "unknown"
	}
}

// Admission reports the outcome of Store.TryAdmit.
type Admission struct {
	Result AdmissionResult
	// Priority is the score the file was (or would have been) inserted with.
	Priority priority.Score
	// Evicted and FreedBytes are non-zero only when admission displaced
	// resident entries.
	Evicted    int
	FreedBytes int64
}

// RemovalReason says why an entry left the store.
type RemovalReason int

const (
	RemovedEvicted RemovalReason = iota
	RemovedStale
	RemovedInvalidated
)

func (r RemovalReason) String() string {
	switch r {
	case RemovedEvicted:
		return "evicted"
	case RemovedStale:
		return "stale"
	case RemovedInvalidated:
		return "invalidated"
	default:
		return "unknown"
	}
}
