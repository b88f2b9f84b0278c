package runtime

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/drblury/axonbridge/internal/runtime/events"
)

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newHTTPMetrics(registerer prometheus.Registerer) (*httpMetrics, error) {
	m := &httpMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "axonbridge",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests handled, by method and status",
			},
			[]string{"method", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "axonbridge",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Time from request start to response, by method",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
			},
			[]string{"method"},
		),
	}

	var err error
	if m.requests, err = registerOrReuse(registerer, m.requests); err != nil {
		return nil, err
	}
	if m.duration, err = registerOrReuse(registerer, m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers c, or returns the identical collector a previous
// server already registered.
func registerOrReuse[C prometheus.Collector](registerer prometheus.Registerer, c C) (C, error) {
	err := registerer.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, err
}

func (m *httpMetrics) observe(rec events.RequestRecord) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(rec.Method, strconv.Itoa(rec.Status)).Inc()
	m.duration.WithLabelValues(rec.Method).Observe(rec.Duration.Seconds())
}
