package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type LendingMetrics struct {
	operations *prometheus.CounterVec
	transfers  *prometheus.CounterVec
	published  prometheus.Counter
}

var (
	lendingOnce     sync.Once
	lendingRegistry *LendingMetrics
)

// Lending returns the process-wide collectors, registering them on first use.
func Lending() *LendingMetrics {
	lendingOnce.Do(func() {
		lendingRegistry = &LendingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lending_operations_total",
				Help: "Lifecycle operations by operation and outcome (ok or rejection kind).",
			}, []string{"operation", "outcome"}),
			transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lending_transfers_total",
				Help: "Value movements committed or attempted by transfer kind.",
			}, []string{"kind"}),
			published: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "lending_events_published_total",
				Help: "Notifications delivered by the outbox relay.",
			}),
		}
		prometheus.MustRegister(
			lendingRegistry.operations,
			lendingRegistry.transfers,
			lendingRegistry.published,
		)
	})
	return lendingRegistry
}

func (m *LendingMetrics) ObserveOperation(op, outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "ok"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
}

func (m *LendingMetrics) ObserveTransfer(kind string) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(kind).Inc()
}

func (m *LendingMetrics) ObservePublished(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.published.Add(float64(n))
}
