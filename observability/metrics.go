package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type rpcMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	throttle prometheus.Counter
	replays  prometheus.Counter
}

type ledgerMetrics struct {
	ops     *prometheus.CounterVec
	latency *prometheus.HistogramVec
	height  prometheus.Gauge
}

var (
	rpcMetricsOnce sync.Once
	rpcRegistry    *rpcMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *ledgerMetrics
)

// RPC returns the JSON-RPC request metrics.
func RPC() *rpcMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &rpcMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sodap",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "JSON-RPC requests by method and HTTP status class.",
			}, []string{"method", "class"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "sodap",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "JSON-RPC handler latency by method.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			throttle: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "sodap",
				Subsystem: "rpc",
				Name:      "throttled_total",
				Help:      "Write requests rejected by the per-client rate limit.",
			}),
			replays: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "sodap",
				Subsystem: "rpc",
				Name:      "idempotent_replays_total",
				Help:      "Write requests answered from the Idempotency-Key cache.",
			}),
		}
		prometheus.MustRegister(rpcRegistry.requests, rpcRegistry.latency, rpcRegistry.throttle, rpcRegistry.replays)
	})
	return rpcRegistry
}

// Observe records one request. method must come from a fixed set; callers
// pass "" for unknown methods so label cardinality stays bounded.
func (m *rpcMetrics) Observe(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	m.requests.WithLabelValues(method, statusClass(status)).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

func (m *rpcMetrics) RecordThrottle() {
	if m == nil {
		return
	}
	m.throttle.Inc()
}

func (m *rpcMetrics) RecordReplay() {
	if m == nil {
		return
	}
	m.replays.Inc()
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "other"
	}
	return fmt.Sprintf("%dxx", status/100)
}

// Ledger returns the metrics registry for applied operations.
func Ledger() *ledgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &ledgerMetrics{
			ops: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sodap",
				Subsystem: "ledger",
				Name:      "operations_total",
				Help:      "Operations submitted to the ledger segmented by type and result code.",
			}, []string{"op", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "sodap",
				Subsystem: "ledger",
				Name:      "apply_duration_seconds",
				Help:      "Time spent validating, executing and committing one operation.",
				Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
			}, []string{"op"}),
			height: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "sodap",
				Subsystem: "ledger",
				Name:      "height",
				Help:      "Number of committed operations.",
			}),
		}
		prometheus.MustRegister(ledgerRegistry.ops, ledgerRegistry.latency, ledgerRegistry.height)
	})
	return ledgerRegistry
}

// ObserveApply records one Apply call. code is "ok" on success or the error
// taxonomy code otherwise.
func (m *ledgerMetrics) ObserveApply(op, code string, duration time.Duration) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	m.ops.WithLabelValues(op, code).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *ledgerMetrics) SetHeight(height uint64) {
	if m == nil {
		return
	}
	m.height.Set(float64(height))
}
