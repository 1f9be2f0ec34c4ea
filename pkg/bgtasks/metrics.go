package bgtasks

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	runTotal    *prometheus.CounterVec
	retryTotal  *prometheus.CounterVec
	failedTotal *prometheus.CounterVec

	runLatency *prometheus.HistogramVec

	pending prometheus.Gauge
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		runTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bgtasks",
			Name:      "run_total",
			Help:      "Total number of task attempts.",
		}, []string{"type", "result"}),
		retryTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bgtasks",
			Name:      "retry_total",
			Help:      "Total number of task attempts released for retry.",
		}, []string{"type"}),
		failedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bgtasks",
			Name:      "failed_total",
			Help:      "Total number of tasks that settled failed.",
		}, []string{"type"}),
		runLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bgtasks",
			Name:      "run_latency_seconds",
			Help:      "Latency distribution for task attempts.",
			Buckets: []float64{
				0.01, 0.02, 0.05,
				0.1, 0.2, 0.5,
				1, 2, 5, 10, 30, 60,
			},
		}, []string{"type", "result"}),
		pending: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "bgtasks",
			Name:      "pending",
			Help:      "Number of tasks currently pending.",
		}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}
