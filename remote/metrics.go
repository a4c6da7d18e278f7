package remote

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "uia_bridge"

// metrics are the Prometheus collectors of a [Server].
type metrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	connections prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	requests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "requests_total",
		Help:      "Total number of bridge requests, by operation and result.",
	}, []string{"op", "result"}))
	if err != nil {
		return nil, err
	}
	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "request_duration_seconds",
		Help:      "Time spent dispatching bridge requests.",
		Buckets:   []float64{.00001, .0001, .001, .01, .1, 1},
	}, []string{"op"}))
	if err != nil {
		return nil, err
	}
	connections, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "connections",
		Help:      "Number of open bridge connections.",
	}))
	if err != nil {
		return nil, err
	}
	return &metrics{requests, duration, connections}, nil
}

// register registers c with reg. If an identical collector is
// already registered, register returns the existing one, so that
// several servers can share a registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
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

// observe records the outcome of one request.
func (m *metrics) observe(o op, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = errorName(err)
	}
	m.requests.WithLabelValues(o.String(), result).Inc()
	m.duration.WithLabelValues(o.String()).Observe(time.Since(start).Seconds())
}
