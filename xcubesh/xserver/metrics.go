package xserver

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	responseSize    *prometheus.HistogramVec
}

func createMetrics(logger *log.Logger) *metrics {
	namespace := "xcubesh"
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Overall number of requests served",
		}, []string{"kind", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request duration by key kind and status",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "status"}),
		responseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_size_bytes",
			Help:      "Response size by key kind and status",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		}, []string{"kind", "status"}),
	}
	for _, c := range []prometheus.Collector{m.requests, m.requestDuration, m.responseSize} {
		if err := prometheus.Register(c); err != nil {
			logger.Println("error registering metric", err)
		}
	}
	return m
}

func (m *metrics) observe(kind, status string, size int, start time.Time) {
	m.requests.WithLabelValues(kind, status).Inc()
	m.requestDuration.WithLabelValues(kind, status).Observe(time.Since(start).Seconds())
	m.responseSize.WithLabelValues(kind, status).Observe(float64(size))
}
