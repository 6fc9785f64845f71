package ioasid

import "github.com/prometheus/client_golang/prometheus"

// PrometheusCollector adapts a Metrics into a prometheus.Collector,
// exposing allocator-wide counters and live gauges for scraping.
type PrometheusCollector struct {
	metrics *Metrics

	opsDesc       *prometheus.Desc
	allocErrDesc  *prometheus.Desc
	setOpsDesc    *prometheus.Desc
	notifyOpsDesc *prometheus.Desc
	liveDesc      *prometheus.Desc
}

// NewPrometheusCollector builds a collector that scrapes m. Register it
// with a prometheus.Registerer to expose it.
func NewPrometheusCollector(m *Metrics) *PrometheusCollector {
	return &PrometheusCollector{
		metrics: m,
		opsDesc: prometheus.NewDesc(
			"ioasid_operations_total",
			"Number of allocator operations performed, by kind.",
			[]string{"op"}, nil,
		),
		allocErrDesc: prometheus.NewDesc(
			"ioasid_alloc_errors_total",
			"Number of Alloc calls that failed to mint an id.",
			nil, nil,
		),
		setOpsDesc: prometheus.NewDesc(
			"ioasid_set_operations_total",
			"Number of Set lifecycle operations, by kind.",
			[]string{"op"}, nil,
		),
		notifyOpsDesc: prometheus.NewDesc(
			"ioasid_notify_operations_total",
			"Number of explicit Notify calls dispatched.",
			nil, nil,
		),
		liveDesc: prometheus.NewDesc(
			"ioasid_live",
			"Current count of live objects tracked by the allocator, by kind.",
			[]string{"kind"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.opsDesc
	ch <- c.allocErrDesc
	ch <- c.setOpsDesc
	ch <- c.notifyOpsDesc
	ch <- c.liveDesc
}

// Collect implements prometheus.Collector.
func (c *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.metrics.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.opsDesc, prometheus.CounterValue, float64(snap.AllocOps), "alloc")
	ch <- prometheus.MustNewConstMetric(c.opsDesc, prometheus.CounterValue, float64(snap.FreeOps), "free")
	ch <- prometheus.MustNewConstMetric(c.opsDesc, prometheus.CounterValue, float64(snap.GetOps), "get")
	ch <- prometheus.MustNewConstMetric(c.opsDesc, prometheus.CounterValue, float64(snap.PutOps), "put")

	ch <- prometheus.MustNewConstMetric(c.allocErrDesc, prometheus.CounterValue, float64(snap.AllocErrors))

	ch <- prometheus.MustNewConstMetric(c.setOpsDesc, prometheus.CounterValue, float64(snap.SetsCreated), "created")
	ch <- prometheus.MustNewConstMetric(c.setOpsDesc, prometheus.CounterValue, float64(snap.SetsDestroyed), "destroyed")

	ch <- prometheus.MustNewConstMetric(c.notifyOpsDesc, prometheus.CounterValue, float64(snap.NotifyOps))

	ch <- prometheus.MustNewConstMetric(c.liveDesc, prometheus.GaugeValue, float64(snap.LiveEntries), "entries")
	ch <- prometheus.MustNewConstMetric(c.liveDesc, prometheus.GaugeValue, float64(snap.LiveSets), "sets")
}

var _ prometheus.Collector = (*PrometheusCollector)(nil)
