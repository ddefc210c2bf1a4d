// Package metrics provides Prometheus metrics for the storage engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the engine exposes.
type Metrics struct {
	// Buffer pool metrics
	BufferPoolHitsTotal      prometheus.Counter
	BufferPoolMissesTotal    prometheus.Counter
	BufferPoolEvictionsTotal prometheus.Counter
	BufferPoolPinnedPages    prometheus.Gauge

	// Disk manager metrics
	DiskPagesAllocatedTotal prometheus.Counter
	DiskPagesDeallocated    prometheus.Counter
	DiskReadsTotal          prometheus.Counter
	DiskWritesTotal         prometheus.Counter
	DiskSizeBytes           prometheus.Gauge

	// B+-tree metrics
	BtreeSplitsTotal        *prometheus.CounterVec // labeled by "internal"/"leaf"
	BtreeMergesTotal        *prometheus.CounterVec
	BtreeRedistributesTotal *prometheus.CounterVec

	// Catalog metrics
	CatalogOperationsTotal *prometheus.CounterVec // labeled by op, status

	// Engine-level operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Process metrics
	UptimeSeconds prometheus.Gauge
	StartTime     time.Time
}

// NewMetrics creates and registers every collector.
func NewMetrics() *Metrics {
	m := &Metrics{StartTime: time.Now()}

	m.BufferPoolHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minisql_buffer_pool_hits_total",
		Help: "Total buffer pool fetches satisfied without a disk read",
	})
	m.BufferPoolMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minisql_buffer_pool_misses_total",
		Help: "Total buffer pool fetches that required a disk read",
	})
	m.BufferPoolEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minisql_buffer_pool_evictions_total",
		Help: "Total frames evicted by the replacer to make room",
	})
	m.BufferPoolPinnedPages = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "minisql_buffer_pool_pinned_pages",
		Help: "Current number of pinned frames in the buffer pool",
	})

	m.DiskPagesAllocatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minisql_disk_pages_allocated_total",
		Help: "Total pages allocated from the disk manager",
	})
	m.DiskPagesDeallocated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minisql_disk_pages_deallocated_total",
		Help: "Total pages returned to the free list",
	})
	m.DiskReadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minisql_disk_reads_total",
		Help: "Total physical page reads",
	})
	m.DiskWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minisql_disk_writes_total",
		Help: "Total physical page writes",
	})
	m.DiskSizeBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "minisql_disk_size_bytes",
		Help: "Current size of the database file in bytes",
	})

	m.BtreeSplitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minisql_btree_splits_total",
		Help: "Total node splits, labeled by node kind",
	}, []string{"kind"})
	m.BtreeMergesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minisql_btree_merges_total",
		Help: "Total node coalesces, labeled by node kind",
	}, []string{"kind"})
	m.BtreeRedistributesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minisql_btree_redistributes_total",
		Help: "Total sibling redistributions, labeled by node kind",
	}, []string{"kind"})

	m.CatalogOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minisql_catalog_operations_total",
		Help: "Total catalog operations, labeled by operation and status",
	}, []string{"operation", "status"})

	m.OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minisql_operations_total",
		Help: "Total engine-level statement operations, labeled by kind and status",
	}, []string{"operation", "status"})
	m.OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "minisql_operation_duration_seconds",
		Help:    "Duration of engine-level statement operations",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"operation"})

	m.UptimeSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "minisql_uptime_seconds",
		Help: "Process uptime in seconds",
	})

	go m.updateUptime()

	return m
}

func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		m.UptimeSeconds.Set(time.Since(m.StartTime).Seconds())
	}
}

// RecordOperation records an engine-level statement's outcome and
// latency.
func (m *Metrics) RecordOperation(operation string, status string, duration time.Duration) {
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCatalogOperation records a catalog-level operation's outcome.
func (m *Metrics) RecordCatalogOperation(operation string, status string) {
	m.CatalogOperationsTotal.WithLabelValues(operation, status).Inc()
}

// UpdateDiskStats refreshes the disk-size gauge.
func (m *Metrics) UpdateDiskStats(sizeBytes int64) {
	m.DiskSizeBytes.Set(float64(sizeBytes))
}
