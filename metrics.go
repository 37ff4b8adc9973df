package gptbatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// MetricsObserver: A ProgressObserver that exports batch progress as Prometheus metrics.
type MetricsObserver struct {
	batches  prometheus.Counter
	requests *prometheus.CounterVec
	tokens   prometheus.Counter
	pending  prometheus.Gauge
}

// NewMetricsObserver registers the collectors on reg under namespace.
func NewMetricsObserver(reg prometheus.Registerer, namespace string) (*MetricsObserver, error) {
	m := &MetricsObserver{
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "The total number of batches started.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "The total number of completed requests, by outcome.",
		}, []string{"outcome"}),
		tokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "The total number of answer tokens counted.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_pending",
			Help:      "The number of requests dispatched but not yet completed.",
		}),
	}

	for _, c := range []prometheus.Collector{m.batches, m.requests, m.tokens, m.pending} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *MetricsObserver) Start(total int) {
	m.batches.Inc()
	m.pending.Add(float64(total))
}

func (m *MetricsObserver) Advance(completed, total int, result Result) {
	m.pending.Dec()
	if result.Failed() {
		m.requests.WithLabelValues(outcomeFailure).Inc()
		return
	}
	m.requests.WithLabelValues(outcomeSuccess).Inc()
	m.tokens.Add(float64(result.Tokens))
}

func (m *MetricsObserver) Finish() {}
