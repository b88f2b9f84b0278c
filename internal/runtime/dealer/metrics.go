package dealer

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the dealer's Prometheus collectors.
type Metrics struct {
	operations *prometheus.CounterVec
	bytes      *prometheus.CounterVec
	dropped    prometheus.Counter
	waiting    prometheus.Gauge
}

func newCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "axonbridge",
			Subsystem: "dealer",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewMetrics creates and registers the dealer collectors. A nil registerer
// means prometheus.DefaultRegisterer. Collectors already registered by
// another dealer are reused.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		operations: newCounterVec("operations_total", "Dealer operations by outcome", []string{"operation", "outcome"}),
		bytes:      newCounterVec("payload_bytes_total", "Encoded envelope bytes moved over the bus", []string{"direction"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "axonbridge",
			Subsystem: "dealer",
			Name:      "dropped_messages_total",
			Help:      "Bus messages discarded because they were not valid envelopes",
		}),
		waiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "axonbridge",
			Subsystem: "dealer",
			Name:      "waiting_receivers",
			Help:      "Receive calls currently blocked waiting for a message",
		}),
	}

	var err error
	if m.operations, err = register(registerer, m.operations); err != nil {
		return nil, err
	}
	if m.bytes, err = register(registerer, m.bytes); err != nil {
		return nil, err
	}
	if m.dropped, err = register(registerer, m.dropped); err != nil {
		return nil, err
	}
	if m.waiting, err = register(registerer, m.waiting); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](registerer prometheus.Registerer, c C) (C, error) {
	if err := registerer.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome(err)).Inc()
}

func (m *Metrics) addBytes(direction string, n int) {
	if m == nil {
		return
	}
	m.bytes.WithLabelValues(direction).Add(float64(n))
}

func (m *Metrics) drop() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *Metrics) receiverWaiting(delta float64) {
	if m == nil {
		return
	}
	m.waiting.Add(delta)
}
