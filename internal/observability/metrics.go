package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ActiveSessions    prometheus.Gauge
	Submissions       *prometheus.CounterVec
	Compactions       *prometheus.CounterVec
	RetrievalFailures *prometheus.CounterVec
	CompletionLatency *prometheus.HistogramVec
	CompletionErrors  *prometheus.CounterVec
	FeedPages         *prometheus.CounterVec
	CVEvaluations     *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of open chat sessions.",
		}),
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_submissions_total",
			Help:      "Chat submissions by outcome.",
		}, []string{"outcome"}),
		Compactions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_compactions_total",
			Help:      "History compactions by branch (summarized or truncated).",
		}, []string{"branch"}),
		RetrievalFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_failures_total",
			Help:      "Context retrieval failures by retriever.",
		}, []string{"retriever"}),
		CompletionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_latency_ms",
			Help:      "Completion call latency in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		}, []string{"mode"}),
		CompletionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_errors_total",
			Help:      "Completion failures by mode.",
		}, []string{"mode"}),
		FeedPages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_pages_total",
			Help:      "Fetched feed pages by source and status.",
		}, []string{"source", "status"}),
		CVEvaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cv_evaluations_total",
			Help:      "CV evaluations by outcome.",
		}, []string{"outcome"}),
	}
}

// Handler serves this instance's registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.ActiveSessions.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.ActiveSessions.Dec()
	}
}

func (m *Metrics) ObserveSubmission(outcome string) {
	if m != nil {
		m.Submissions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveCompaction(branch string) {
	if m != nil {
		m.Compactions.WithLabelValues(branch).Inc()
	}
}

func (m *Metrics) ObserveRetrievalFailure(retriever string) {
	if m != nil {
		m.RetrievalFailures.WithLabelValues(retriever).Inc()
	}
}

func (m *Metrics) ObserveCompletion(mode string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.CompletionLatency.WithLabelValues(mode).Observe(float64(d.Milliseconds()))
	if err != nil {
		m.CompletionErrors.WithLabelValues(mode).Inc()
	}
}

func (m *Metrics) ObserveFeedPage(source string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.FeedPages.WithLabelValues(source, status).Inc()
}

func (m *Metrics) ObserveCVEvaluation(outcome string) {
	if m != nil {
		m.CVEvaluations.WithLabelValues(outcome).Inc()
	}
}
