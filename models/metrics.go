package models

import "go.uber.org/atomic"

// Metrics stores cache statistics. Counters are updated outside the store
// lock and may be read at any time.
type Metrics struct {
	Hits          *atomic.Int64
	Misses        *atomic.Int64
	StaleReloads  *atomic.Int64
	Admissions    *atomic.Int64
	RejectedSize  *atomic.Int64
	RejectedLow   *atomic.Int64
	Deferred      *atomic.Int64
	Evictions     *atomic.Int64
	EvictedBytes  *atomic.Int64
	Invalidations *atomic.Int64
	BackendErrors *atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{
		Hits:          atomic.NewInt64(0),
		Misses:        atomic.NewInt64(0),
		StaleReloads:  atomic.NewInt64(0),
		Admissions:    atomic.NewInt64(0),
		RejectedSize:  atomic.NewInt64(0),
		RejectedLow:   atomic.NewInt64(0),
		Deferred:      atomic.NewInt64(0),
		Evictions:     atomic.NewInt64(0),
		EvictedBytes:  atomic.NewInt64(0),
		Invalidations: atomic.NewInt64(0),
		BackendErrors: atomic.NewInt64(0),
	}
}

// Snapshot is a point-in-time copy of Metrics.
type Snapshot struct {
	Hits          int64
	Misses        int64
	StaleReloads  int64
	Admissions    int64
	RejectedSize  int64
	RejectedLow   int64
	Deferred      int64
	Evictions     int64
	EvictedBytes  int64
	Invalidations int64
	BackendErrors int64
}

// Snapshot reads every counter once.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Hits:          m.Hits.Load(),
		Misses:        m.Misses.Load(),
		StaleReloads:  m.StaleReloads.Load(),
		Admissions:    m.Admissions.Load(),
		RejectedSize:  m.RejectedSize.Load(),
		RejectedLow:   m.RejectedLow.Load(),
		Deferred:      m.Deferred.Load(),
		Evictions:     m.Evictions.Load(),
		EvictedBytes:  m.EvictedBytes.Load(),
		Invalidations: m.Invalidations.Load(),
		BackendErrors: m.BackendErrors.Load(),
	}
}

// HitRatio returns hits / (hits + misses), or 0 before any lookup.
func (s Snapshot) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Add returns the field-wise sum of s and o.
func (s Snapshot) Add(o Snapshot) Snapshot {
	return Snapshot{
		Hits:          s.Hits + o.Hits,
		Misses:        s.Misses + o.Misses,
		StaleReloads:  s.StaleReloads + o.StaleReloads,
		Admissions:    s.Admissions + o.Admissions,
		RejectedSize:  s.RejectedSize + o.RejectedSize,
		RejectedLow:   s.RejectedLow + o.RejectedLow,
		Deferred:      s.Deferred + o.Deferred,
		Evictions:     s.Evictions + o.Evictions,
		EvictedBytes:  s.EvictedBytes + o.EvictedBytes,
		Invalidations: s.Invalidations + o.Invalidations,
		BackendErrors: s.BackendErrors + o.BackendErrors,
	}
}
