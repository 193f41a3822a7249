package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector adapts the wait-free Registry to prometheus.Collector: each
// scrape calls GetSnapshot() once and emits one descriptor set from it.
// This keeps the hot path (Record*) entirely lock-free while still
// exposing the same numbers over /metrics.
type Collector struct {
	registry *Registry

	ticksReceived      *prometheus.Desc
	ticksProcessed     *prometheus.Desc
	duplicatesFiltered *prometheus.Desc
	avgProcessingMs    *prometheus.Desc
	errorsTotal        *prometheus.Desc
	ticksStored        *prometheus.Desc
	queueSize          *prometheus.Desc
	uptimeSeconds      *prometheus.Desc
}

// NewCollector wraps registry as a prometheus.Collector.
func NewCollector(registry *Registry) *Collector {
	return &Collector{
		registry: registry,
		ticksReceived: prometheus.NewDesc(
			"marketagg_ticks_received_total", "Raw ticks received per exchange", []string{"exchange"}, nil),
		ticksProcessed: prometheus.NewDesc(
			"marketagg_ticks_processed_total", "Ticks that passed dedup/filter and reached handlers", []string{"exchange"}, nil),
		duplicatesFiltered: prometheus.NewDesc(
			"marketagg_duplicates_filtered_total", "Ticks dropped by the deduplicator", []string{"exchange"}, nil),
		avgProcessingMs: prometheus.NewDesc(
			"marketagg_avg_processing_ms", "Mean tick processing latency in milliseconds, since start", []string{"exchange"}, nil),
		errorsTotal: prometheus.NewDesc(
			"marketagg_errors_total", "Errors recorded per exchange and kind", []string{"exchange", "kind"}, nil),
		ticksStored: prometheus.NewDesc(
			"marketagg_ticks_stored_total", "Ticks successfully persisted via bulk insert", nil, nil),
		queueSize: prometheus.NewDesc(
			"marketagg_pipeline_queue_size", "Current depth of the ingest pipeline queue", nil, nil),
		uptimeSeconds: prometheus.NewDesc(
			"marketagg_uptime_seconds", "Seconds since the metrics registry was constructed", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.ticksReceived
	ch <- c.ticksProcessed
	ch <- c.duplicatesFiltered
	ch <- c.avgProcessingMs
	ch <- c.errorsTotal
	ch <- c.ticksStored
	ch <- c.queueSize
	ch <- c.uptimeSeconds
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.registry.GetSnapshot()

	for exchange, es := range snap.PerExchange {
		ch <- prometheus.MustNewConstMetric(c.ticksReceived, prometheus.CounterValue, float64(es.TicksReceived), exchange)
		ch <- prometheus.MustNewConstMetric(c.ticksProcessed, prometheus.CounterValue, float64(es.TicksProcessed), exchange)
		ch <- prometheus.MustNewConstMetric(c.duplicatesFiltered, prometheus.CounterValue, float64(es.DuplicatesFiltered), exchange)
		ch <- prometheus.MustNewConstMetric(c.avgProcessingMs, prometheus.GaugeValue, es.AvgProcessingMs, exchange)
	}

	for key, count := range snap.Errors {
		exchange, kind := splitErrorKey(key)
		ch <- prometheus.MustNewConstMetric(c.errorsTotal, prometheus.CounterValue, float64(count), exchange, kind)
	}

	ch <- prometheus.MustNewConstMetric(c.ticksStored, prometheus.CounterValue, float64(snap.TotalTicksStored))
	ch <- prometheus.MustNewConstMetric(c.queueSize, prometheus.GaugeValue, float64(snap.CurrentQueueSize))
	ch <- prometheus.MustNewConstMetric(c.uptimeSeconds, prometheus.GaugeValue, snap.UptimeSeconds)
}

func splitErrorKey(key string) (exchange, kind string) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == ':' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
