// Package metrics implements the aggregator's wait-free metrics
// contract, plus a Prometheus exporter layered on top of it.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// exchangeCounters holds the atomic counters for one exchange tag.
// Every field is updated with atomic ops only — no locks on the common
// path.
type exchangeCounters struct {
	ticksReceived      uint64
	ticksProcessed     uint64
	duplicatesFiltered uint64
	totalProcessingMs  uint64 // sum of processing-time samples, for mean
}

// Registry is the wait-free metrics core. All Record* methods are safe
// for concurrent use from any number of goroutines and never block.
type Registry struct {
	startTime time.Time

	queueSize   int64 // atomic
	ticksStored uint64 // atomic

	exchanges sync.Map // string -> *exchangeCounters
	errors    sync.Map // string "exchange:kind" -> *uint64
}

// NewRegistry captures the process start time and returns an empty
// registry.
func NewRegistry() *Registry {
	return &Registry{startTime: time.Now()}
}

func (r *Registry) counters(exchange string) *exchangeCounters {
	v, _ := r.exchanges.LoadOrStore(exchange, &exchangeCounters{})
	return v.(*exchangeCounters)
}

// RecordTickReceived increments the receive counter for exchange.
func (r *Registry) RecordTickReceived(exchange string) {
	atomic.AddUint64(&r.counters(exchange).ticksReceived, 1)
}

// RecordTickProcessed increments the processed counter and folds ms
// into the running sum used for the mean processing time.
func (r *Registry) RecordTickProcessed(exchange string, ms float64) {
	c := r.counters(exchange)
	atomic.AddUint64(&c.ticksProcessed, 1)
	atomic.AddUint64(&c.totalProcessingMs, uint64(ms))
}

// RecordDuplicateFiltered increments the duplicate-filtered counter for
// exchange.
func (r *Registry) RecordDuplicateFiltered(exchange string) {
	atomic.AddUint64(&r.counters(exchange).duplicatesFiltered, 1)
}

// RecordPipelineQueueSize sets the current queue-depth gauge.
func (r *Registry) RecordPipelineQueueSize(n int) {
	atomic.StoreInt64(&r.queueSize, int64(n))
}

// RecordError increments the (exchange, kind) error counter.
func (r *Registry) RecordError(exchange, kind string) {
	key := exchange + ":" + kind
	v, _ := r.errors.LoadOrStore(key, new(uint64))
	atomic.AddUint64(v.(*uint64), 1)
}

// RecordTickStored adds n to the persisted-tick counter.
func (r *Registry) RecordTickStored(n int) {
	atomic.AddUint64(&r.ticksStored, uint64(n))
}

// ExchangeSnapshot is the point-in-time view of one exchange's counters.
type ExchangeSnapshot struct {
	TicksReceived      uint64
	TicksProcessed     uint64
	DuplicatesFiltered uint64
	AvgProcessingMs    float64
}

// Snapshot is the full point-in-time view returned by GetSnapshot.
type Snapshot struct {
	PerExchange             map[string]ExchangeSnapshot
	Errors                  map[string]uint64 // key "exchange:kind"
	TotalTicksReceived      uint64
	TotalTicksProcessed     uint64
	TotalDuplicatesFiltered uint64
	TotalTicksStored        uint64
	CurrentQueueSize        int64
	UptimeSeconds           float64
	SnapshotTime            time.Time
}

// GetSnapshot computes per-exchange means (total_ms / count) and
// aggregate totals. Safe for concurrent use; takes no lock since the
// underlying counters are atomics and sync.Map already handles its own
// concurrent iteration.
func (r *Registry) GetSnapshot() Snapshot {
	snap := Snapshot{
		PerExchange:      make(map[string]ExchangeSnapshot),
		Errors:           make(map[string]uint64),
		CurrentQueueSize: atomic.LoadInt64(&r.queueSize),
		TotalTicksStored: atomic.LoadUint64(&r.ticksStored),
		UptimeSeconds:    time.Since(r.startTime).Seconds(),
		SnapshotTime:     time.Now(),
	}

	r.exchanges.Range(func(k, v any) bool {
		exchange := k.(string)
		c := v.(*exchangeCounters)

		received := atomic.LoadUint64(&c.ticksReceived)
		processed := atomic.LoadUint64(&c.ticksProcessed)
		duplicates := atomic.LoadUint64(&c.duplicatesFiltered)
		totalMs := atomic.LoadUint64(&c.totalProcessingMs)

		avg := 0.0
		if processed > 0 {
			avg = float64(totalMs) / float64(processed)
		}

		snap.PerExchange[exchange] = ExchangeSnapshot{
			TicksReceived:      received,
			TicksProcessed:     processed,
			DuplicatesFiltered: duplicates,
			AvgProcessingMs:    avg,
		}
		snap.TotalTicksReceived += received
		snap.TotalTicksProcessed += processed
		snap.TotalDuplicatesFiltered += duplicates
		return true
	})

	r.errors.Range(func(k, v any) bool {
		snap.Errors[k.(string)] = atomic.LoadUint64(v.(*uint64))
		return true
	})

	return snap
}
