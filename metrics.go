package colobj

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	targetPageSize   prometheus.Gauge
	targetObjectSize prometheus.Gauge

	sizeEstimate   prometheus.Gauge
	appendedRows   prometheus.Counter
	appendedValues prometheus.Counter

	buildTime     prometheus.Histogram
	builtSize     prometheus.Histogram
	flushFailures prometheus.Counter
}

func newMetrics() *metrics {
	return &metrics{
		targetPageSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "colobj_config_target_page_size_bytes",
			Help: "Configured target page size in bytes.",
		}),
		targetObjectSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "colobj_config_target_object_size_bytes",
			Help: "Configured target object size in bytes.",
		}),
		sizeEstimate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "colobj_builder_estimated_size_bytes",
			Help: "Estimated size of the data buffered in the builder in bytes.",
		}),
		appendedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "colobj_builder_appended_rows_total",
			Help: "Total number of occurrences appended to the builder.",
		}),
		appendedValues: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "colobj_builder_appended_values_total",
			Help: "Total number of non-NULL values appended to the builder.",
		}),
		buildTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:                            "colobj_builder_build_seconds",
			Help:                            "Time taken to build a file in seconds.",
			Buckets:                         prometheus.DefBuckets,
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}),
		builtSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "colobj_builder_built_size_bytes",
			Help:    "Size of built files in bytes.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}),
		flushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "colobj_builder_flush_failures_total",
			Help: "Total number of flush failures.",
		}),
	}
}

// ObserveConfig records the builder configuration.
func (m *metrics) ObserveConfig(cfg BuilderConfig) {
	m.targetPageSize.Set(float64(cfg.TargetPageSize))
	m.targetObjectSize.Set(float64(cfg.TargetObjectSize))
}

func (m *metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.targetPageSize,
		m.targetObjectSize,
		m.sizeEstimate,
		m.appendedRows,
		m.appendedValues,
		m.buildTime,
		m.builtSize,
		m.flushFailures,
	}
}

// Register registers metrics to report to reg.
func (m *metrics) Register(reg prometheus.Registerer) error {
	for _, collector := range m.collectors() {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

// Unregister unregisters metrics from reg.
func (m *metrics) Unregister(reg prometheus.Registerer) {
	for _, collector := range m.collectors() {
		reg.Unregister(collector)
	}
}
