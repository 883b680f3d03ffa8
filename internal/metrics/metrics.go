// Package metrics exposes Prometheus collectors for document generation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "briefdoc"

// Pipeline holds the collectors one Generator reports to. A nil *Pipeline
// is valid and records nothing.
type Pipeline struct {
	documents     *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec
	backendErrors *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	passagesKept  prometheus.Histogram
	sinkFailures  prometheus.Counter
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which is what tests usually want.
func New(reg prometheus.Registerer) (*Pipeline, error) {
	p := &Pipeline{
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents handed to the sink, by composition mode.",
		}, []string{"mode"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Deterministic fallbacks taken, by reason.",
		}, []string{"reason"}),
		backendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_errors_total",
			Help:      "Failed calls to an external backend.",
		}, []string{"backend"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   []float64{.005, .025, .1, .5, 1, 2.5, 5, 15, 45},
		}, []string{"stage"}),
		passagesKept: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "passages_kept",
			Help:      "Passages left after sanitizing, dedup and filtering.",
			Buckets:   prometheus.LinearBuckets(0, 4, 10),
		}),
		sinkFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_failures_total",
			Help:      "Documents the sink refused.",
		}),
	}
	if reg == nil {
		return p, nil
	}
	for _, c := range []prometheus.Collector{
		p.documents, p.fallbacks, p.backendErrors, p.stageDuration, p.passagesKept, p.sinkFailures,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Pipeline) DocumentCreated(mode string) {
	if p == nil {
		return
	}
	p.documents.WithLabelValues(mode).Inc()
}

func (p *Pipeline) Fallback(reason string) {
	if p == nil {
		return
	}
	p.fallbacks.WithLabelValues(reason).Inc()
}

// BackendErrors adds n failed calls for backend ("retrieval", "llm").
func (p *Pipeline) BackendErrors(backend string, n int) {
	if p == nil || n <= 0 {
		return
	}
	p.backendErrors.WithLabelValues(backend).Add(float64(n))
}

func (p *Pipeline) ObserveStage(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *Pipeline) PassagesKept(n int) {
	if p == nil {
		return
	}
	p.passagesKept.Observe(float64(n))
}

func (p *Pipeline) SinkFailed() {
	if p == nil {
		return
	}
	p.sinkFailures.Inc()
}
