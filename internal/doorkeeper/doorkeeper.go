// Package doorkeeper filters one-hit wonders out of cache admission.
//
// A path is only offered to the cache on its second miss within the current
// generation. Membership is tracked in a bloom filter, so false positives let
// a few first-time paths through early, and the filter is replaced once it
// has absorbed its expected number of items.
package doorkeeper

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Doorkeeper is safe for concurrent use.
type Doorkeeper struct {
	mu            sync.Mutex
	filter        *bloom.BloomFilter
	expectedItems uint
	fpRate        float64
	added         uint
	resets        uint64
}

// New sizes the filter for expectedItems distinct paths per generation at
// the given false positive rate.
func New(expectedItems uint, fpRate float64) *Doorkeeper {
	return &Doorkeeper{
		filter:        bloom.NewWithEstimates(expectedItems, fpRate),
		expectedItems: expectedItems,
		fpRate:        fpRate,
	}
}

// Allow records path and reports whether it had been seen before.
func (d *Doorkeeper) Allow(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.filter.TestString(path) {
		return true
	}

	if d.added >= d.expectedItems {
		d.filter.ClearAll()
		d.added = 0
		d.resets++
	}
	d.filter.AddString(path)
	d.added++
	return false
}

// Reset forgets every path.
func (d *Doorkeeper) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.filter.ClearAll()
	d.added = 0
	d.resets++
}

// Resets returns how many generations have been discarded.
func (d *Doorkeeper) Resets() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resets
}
