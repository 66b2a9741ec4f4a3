// Package metrics: prometheus-счётчики бота.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "blofin_bot"

type Metrics struct {
	Registry *prometheus.Registry

	// запросы к бирже
	ExchangeCalls    *prometheus.CounterVec
	ExchangeErrors   *prometheus.CounterVec
	ExchangeDuration *prometheus.HistogramVec

	// ордера
	OrdersPlaced *prometheus.CounterVec
	OrdersFailed *prometheus.CounterVec

	// монитор
	TrackedOrders prometheus.Gauge
	Cascades      prometheus.Gauge
	Fills         *prometheus.CounterVec
	PollSkipped   prometheus.Counter
	PollErrors    prometheus.Counter

	// исполнитель
	Executions *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Registry: prometheus.NewRegistry(),

		ExchangeCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "calls_total",
			Help:      "Signed requests sent to the exchange",
		}, []string{"method", "path"}),
		ExchangeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "errors_total",
			Help:      "Failed exchange requests by error class",
		}, []string{"path", "class"}),
		ExchangeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "request_duration_seconds",
			Help:      "Exchange request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),

		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "placed_total",
			Help:      "Orders accepted by the exchange",
		}, []string{"kind"}),
		OrdersFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "failed_total",
			Help:      "Orders rejected or failed",
		}, []string{"kind"}),

		TrackedOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "tracked_orders",
			Help:      "TP/SL orders currently tracked",
		}),
		Cascades: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "cascades",
			Help:      "Symbols with pending cascade levels",
		}),
		Fills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "fills_total",
			Help:      "Detected TP/SL fills",
		}, []string{"role"}),
		PollSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "poll_skipped_total",
			Help:      "Poll ticks skipped because the previous poll was still running",
		}),
		PollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "poll_errors_total",
			Help:      "Poll cycles aborted by a pending-list fetch error",
		}),

		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "executions_total",
			Help:      "Signal executions by final status",
		}, []string{"status"}),
	}
}

// Register регистрирует все метрики в собственном реестре.
func (m *Metrics) Register() error {
	collectors := []prometheus.Collector{
		m.ExchangeCalls,
		m.ExchangeErrors,
		m.ExchangeDuration,
		m.OrdersPlaced,
		m.OrdersFailed,
		m.TrackedOrders,
		m.Cascades,
		m.Fills,
		m.PollSkipped,
		m.PollErrors,
		m.Executions,
	}
	for _, c := range collectors {
		if err := m.Registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistered: New + Register, для fx и тестов.
func NewRegistered() (*Metrics, error) {
	m := New()
	if err := m.Register(); err != nil {
		return nil, err
	}
	return m, nil
}
