package observability

import (
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
	dropped *prometheus.CounterVec
	escrow  *prometheus.GaugeVec
	revenue *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking committed ledger events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sodap",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of committed events segmented by event type.",
			}, []string{"type"}),
			dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sodap",
				Subsystem: "events",
				Name:      "dropped_total",
				Help:      "Events a downstream sink failed to accept, segmented by sink.",
			}, []string{"sink"}),
			escrow: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "sodap",
				Subsystem: "escrow",
				Name:      "balance",
				Help:      "Value currently held in escrow per store.",
			}, []string{"store"}),
			revenue: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sodap",
				Subsystem: "store",
				Name:      "revenue_total",
				Help:      "Value paid into stores through completed purchases.",
			}, []string{"store"}),
		}
		prometheus.MustRegister(eventRegistry.emitted, eventRegistry.dropped, eventRegistry.escrow, eventRegistry.revenue)
	})
	return eventRegistry
}

// RecordEvent increments the counter for the supplied event type.
func (m *eventMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToLower(eventType))
	if normalized == "" {
		normalized = "unknown"
	}
	m.emitted.WithLabelValues(normalized).Inc()
}

// RecordDrop counts an event a sink could not deliver.
func (m *eventMetrics) RecordDrop(sink string) {
	if m == nil {
		return
	}
	if sink == "" {
		sink = "unknown"
	}
	m.dropped.WithLabelValues(sink).Inc()
}

// RecordEscrowBalance sets the escrow gauge from the decimal balance carried
// on an escrow event. Unparseable values are ignored.
func (m *eventMetrics) RecordEscrowBalance(store, balance string) {
	if m == nil || store == "" {
		return
	}
	v, err := strconv.ParseUint(balance, 10, 64)
	if err != nil {
		return
	}
	m.escrow.WithLabelValues(store).Set(float64(v))
}

// RecordRevenue adds a completed purchase total to the store's revenue.
func (m *eventMetrics) RecordRevenue(store, total string) {
	if m == nil || store == "" {
		return
	}
	v, err := strconv.ParseUint(total, 10, 64)
	if err != nil {
		return
	}
	m.revenue.WithLabelValues(store).Add(float64(v))
}
