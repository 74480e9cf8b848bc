// Package metrics exports cache statistics to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"goflare.io/filecache/models"
)

const namespace = "filecache"

// Source is what the collector reads on every scrape. Both filecache.Cache
// and filecache.Sharded satisfy it.
type Source interface {
	Snapshot() models.Snapshot
	SizeBytes() int64
	Len() int
	Capacity() int64
}

// Collector implements prometheus.Collector over a Source.
type Collector struct {
	src Source

	hits          *prometheus.Desc
	misses        *prometheus.Desc
	staleReloads  *prometheus.Desc
	admissions    *prometheus.Desc
	evictions     *prometheus.Desc
	evictedBytes  *prometheus.Desc
	invalidations *prometheus.Desc
	backendErrors *prometheus.Desc
	sizeBytes     *prometheus.Desc
	capacityBytes *prometheus.Desc
	files         *prometheus.Desc
}

// NewCollector describes src's metrics. constLabels are attached to every
// series, which lets several caches share one registry.
func NewCollector(src Source, constLabels prometheus.Labels) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, constLabels)
	}

	return &Collector{
		src:           src,
		hits:          desc("hits_total", "Requests served from memory."),
		misses:        desc("misses_total", "Requests that went to the backend."),
		staleReloads:  desc("stale_reloads_total", "Misses caused by a resident file older than the backend copy."),
		admissions:    desc("admissions_total", "Admission decisions by outcome.", "result"),
		evictions:     desc("evictions_total", "Files evicted to make room."),
		evictedBytes:  desc("evicted_bytes_total", "Bytes evicted to make room."),
		invalidations: desc("invalidations_total", "Files dropped by invalidation or because the backend no longer has them."),
		backendErrors: desc("backend_errors_total", "Backend failures other than not found and cancellation."),
		sizeBytes:     desc("size_bytes", "Total size of resident files."),
		capacityBytes: desc("capacity_bytes", "Configured capacity."),
		files:         desc("files", "Number of resident files."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.staleReloads
	ch <- c.admissions
	ch <- c.evictions
	ch <- c.evictedBytes
	ch <- c.invalidations
	ch <- c.backendErrors
	ch <- c.sizeBytes
	ch <- c.capacityBytes
	ch <- c.files
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Snapshot()

	counter := func(d *prometheus.Desc, v int64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(d *prometheus.Desc, v int64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v))
	}

	counter(c.hits, s.Hits)
	counter(c.misses, s.Misses)
	counter(c.staleReloads, s.StaleReloads)
	counter(c.admissions, s.Admissions, "admitted")
	counter(c.admissions, s.RejectedSize, "rejected_too_large")
	counter(c.admissions, s.RejectedLow, "rejected_low_priority")
	counter(c.admissions, s.Deferred, "deferred")
	counter(c.evictions, s.Evictions)
	counter(c.evictedBytes, s.EvictedBytes)
	counter(c.invalidations, s.Invalidations)
	counter(c.backendErrors, s.BackendErrors)

	gauge(c.sizeBytes, c.src.SizeBytes())
	gauge(c.capacityBytes, c.src.Capacity())
	gauge(c.files, int64(c.src.Len()))
}

// Handler registers a collector for src on a fresh registry and serves it.
func Handler(src Source, constLabels prometheus.Labels) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(src, constLabels)); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
