package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus metrics for the paper digest pipeline.
// Metrics are grouped by pipeline stage: runs, fetches, chunking and LLM calls.
// All collectors are registered through promauto with the default registry.
//
// Every Record method is safe to call on a nil *Metrics.
type Metrics struct {
	// RunsStarted counts pipeline runs, labeled by mode.
	RunsStarted *prometheus.CounterVec

	// RunsCompleted counts runs that produced a report, labeled by mode.
	RunsCompleted *prometheus.CounterVec

	// RunsFailed counts failed runs, labeled by the stage that failed.
	RunsFailed *prometheus.CounterVec

	// RunDuration observes end-to-end run duration in seconds, labeled by mode.
	RunDuration *prometheus.HistogramVec

	// ChunksPerRun observes the number of chunks produced per run.
	ChunksPerRun prometheus.Histogram

	// FetchRequests counts remote fetches, labeled by stage (metadata, content, html).
	FetchRequests *prometheus.CounterVec

	// FetchFailures counts fetches that failed after retries, labeled by stage.
	FetchFailures *prometheus.CounterVec

	// FetchDuration observes fetch duration in seconds, labeled by stage.
	FetchDuration *prometheus.HistogramVec

	// RetryAttempts counts retried remote calls, labeled by operation.
	RetryAttempts *prometheus.CounterVec

	// LLMRequests counts language-model calls, labeled by phase and model.
	LLMRequests *prometheus.CounterVec

	// LLMRequestsFailed counts failed language-model calls, labeled by phase and model.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes language-model call duration in seconds.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMTokensUsed counts tokens consumed, labeled by direction (input, output) and model.
	LLMTokensUsed *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics under the given namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		RunsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of pipeline runs started",
		}, []string{"mode"}),
		RunsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Total number of pipeline runs that produced a report",
		}, []string{"mode"}),
		RunsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_failed_total",
			Help:      "Total number of failed pipeline runs by failing stage",
		}, []string{"stage"}),
		RunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of pipeline runs in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"mode"}),
		ChunksPerRun: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunks_per_run",
			Help:      "Number of text chunks produced per run",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		}),
		FetchRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Total number of paper fetches by stage",
		}, []string{"stage"}),
		FetchFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Total number of paper fetches that failed after retries",
		}, []string{"stage"}),
		FetchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of paper fetches in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		RetryAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Total number of retried remote calls by operation",
		}, []string{"operation"}),
		LLMRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests by phase",
		}, []string{"phase", "model"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM requests by phase",
		}, []string{"phase", "model"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM requests in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"phase", "model"}),
		LLMTokensUsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of LLM tokens used",
		}, []string{"direction", "model"}),
	}
}

// RecordRunStarted records a pipeline run start.
func (m *Metrics) RecordRunStarted(mode string) {
	if m == nil {
		return
	}
	m.RunsStarted.WithLabelValues(mode).Inc()
}

// RecordRunCompleted records a successful run and its duration.
func (m *Metrics) RecordRunCompleted(mode string, chunks int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.RunsCompleted.WithLabelValues(mode).Inc()
	m.RunDuration.WithLabelValues(mode).Observe(durationSeconds)
	m.ChunksPerRun.Observe(float64(chunks))
}

// RecordStageFailed records a run that failed in the given stage.
func (m *Metrics) RecordStageFailed(stage string) {
	if m == nil {
		return
	}
	m.RunsFailed.WithLabelValues(stage).Inc()
}

// RecordFetch records a completed fetch attempt sequence.
func (m *Metrics) RecordFetch(stage string, durationSeconds float64, err error) {
	if m == nil {
		return
	}
	m.FetchRequests.WithLabelValues(stage).Inc()
	m.FetchDuration.WithLabelValues(stage).Observe(durationSeconds)
	if err != nil {
		m.FetchFailures.WithLabelValues(stage).Inc()
	}
}

// RecordRetry records one retry of a remote call.
func (m *Metrics) RecordRetry(operation string) {
	if m == nil {
		return
	}
	m.RetryAttempts.WithLabelValues(operation).Inc()
}

// RecordLLMRequest records a successful LLM call.
func (m *Metrics) RecordLLMRequest(phase, model string, durationSeconds float64, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.LLMRequests.WithLabelValues(phase, model).Inc()
	m.LLMRequestDuration.WithLabelValues(phase, model).Observe(durationSeconds)
	m.LLMTokensUsed.WithLabelValues("input", model).Add(float64(inputTokens))
	m.LLMTokensUsed.WithLabelValues("output", model).Add(float64(outputTokens))
}

// RecordLLMRequestFailed records a failed LLM call.
func (m *Metrics) RecordLLMRequestFailed(phase, model string) {
	if m == nil {
		return
	}
	m.LLMRequests.WithLabelValues(phase, model).Inc()
	m.LLMRequestsFailed.WithLabelValues(phase, model).Inc()
}
