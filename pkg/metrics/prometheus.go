package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder on top of a dedicated
// prometheus.Registry, using per-namespace Counter / CounterVec /
// HistogramVec / Gauge metrics.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	dispatchBatches   prometheus.Counter
	subscriberCalls   *prometheus.CounterVec
	subscriberLatency *prometheus.HistogramVec
	queueDepth        prometheus.Gauge
	pendingTasks      prometheus.Gauge

	aggregatorFires  *prometheus.CounterVec
	aggregatorErrors *prometheus.CounterVec

	llmCalls    *prometheus.CounterVec
	llmDuration *prometheus.HistogramVec
	toolCalls   *prometheus.CounterVec
	toolErrors  *prometheus.CounterVec

	solverIterations  *prometheus.CounterVec
	solverCompletions *prometheus.CounterVec
	solverDuration    *prometheus.HistogramVec
}

// NewPrometheusRecorder builds a Recorder registered under namespace, using
// its own prometheus.Registry so callers control exposition explicitly
// rather than polluting the default global registry.
func NewPrometheusRecorder(namespace string) *PrometheusRecorder {
	r := &PrometheusRecorder{registry: prometheus.NewRegistry()}

	r.dispatchBatches = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "dispatcher", Name: "batches_total",
		Help: "Total number of batch passes drained by the dispatcher",
	})
	r.subscriberCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "dispatcher", Name: "subscriber_invocations_total",
		Help: "Total subscriber invocations by event kind and outcome",
	}, []string{"kind", "ok"})
	r.subscriberLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "dispatcher", Name: "subscriber_duration_seconds",
		Help: "Subscriber invocation duration in seconds", Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	r.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "dispatcher", Name: "queue_depth",
		Help: "Current queue_size + pending_tasks",
	})
	r.pendingTasks = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "dispatcher", Name: "pending_tasks",
		Help: "Current number of in-flight subscriber invocations",
	})

	r.aggregatorFires = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "aggregator", Name: "fires_total",
		Help: "Total reducer fires by reducer name",
	}, []string{"reducer"})
	r.aggregatorErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "aggregator", Name: "errors_total",
		Help: "Total reducer errors by reducer name",
	}, []string{"reducer"})

	r.llmCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "broker", Name: "llm_calls_total",
		Help: "Total LLM calls by model",
	}, []string{"model"})
	r.llmDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "broker", Name: "llm_call_duration_seconds",
		Help: "LLM call duration in seconds", Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"model"})
	r.toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "broker", Name: "tool_calls_total",
		Help: "Total tool calls by tool name and outcome",
	}, []string{"tool", "ok"})
	r.toolErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "broker", Name: "tool_errors_total",
		Help: "Total tool errors by tool name",
	}, []string{"tool"})

	r.solverIterations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "solver", Name: "iterations_total",
		Help: "Total solver iterations by outcome",
	}, []string{"outcome"})
	r.solverCompletions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "solver", Name: "completions_total",
		Help: "Total solver runs by terminal outcome",
	}, []string{"outcome"})
	r.solverDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "solver", Name: "duration_seconds",
		Help: "Solver run duration in seconds", Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	r.registry.MustRegister(
		r.dispatchBatches, r.subscriberCalls, r.subscriberLatency, r.queueDepth, r.pendingTasks,
		r.aggregatorFires, r.aggregatorErrors,
		r.llmCalls, r.llmDuration, r.toolCalls, r.toolErrors,
		r.solverIterations, r.solverCompletions, r.solverDuration,
	)

	return r
}

// Registry exposes the underlying registry for wiring into an HTTP handler
// (promhttp.HandlerFor(r.Registry(), ...)).
func (r *PrometheusRecorder) Registry() *prometheus.Registry { return r.registry }

func (r *PrometheusRecorder) RecordDispatchBatch(_ int) { r.dispatchBatches.Inc() }

func (r *PrometheusRecorder) RecordSubscriberInvocation(kind string, duration time.Duration, ok bool) {
	r.subscriberCalls.WithLabelValues(kind, boolLabel(ok)).Inc()
	r.subscriberLatency.WithLabelValues(kind).Observe(duration.Seconds())
}

func (r *PrometheusRecorder) SetQueueDepth(depth int)   { r.queueDepth.Set(float64(depth)) }
func (r *PrometheusRecorder) SetPendingTasks(count int) { r.pendingTasks.Set(float64(count)) }

func (r *PrometheusRecorder) RecordAggregatorFire(reducerName string) {
	r.aggregatorFires.WithLabelValues(reducerName).Inc()
}

func (r *PrometheusRecorder) RecordAggregatorError(reducerName string) {
	r.aggregatorErrors.WithLabelValues(reducerName).Inc()
}

func (r *PrometheusRecorder) RecordLLMCall(model string, duration time.Duration) {
	r.llmCalls.WithLabelValues(model).Inc()
	r.llmDuration.WithLabelValues(model).Observe(duration.Seconds())
}

func (r *PrometheusRecorder) RecordToolCall(name string, duration time.Duration, ok bool) {
	r.toolCalls.WithLabelValues(name, boolLabel(ok)).Inc()
	if !ok {
		r.toolErrors.WithLabelValues(name).Inc()
	}
}

func (r *PrometheusRecorder) RecordSolverIteration(outcome string) {
	r.solverIterations.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRecorder) RecordSolverCompletion(outcome string, _ int, duration time.Duration) {
	r.solverCompletions.WithLabelValues(outcome).Inc()
	r.solverDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func boolLabel(ok bool) string {
	if ok {
		return "true"
	}
	return "false"
}

var _ Recorder = (*PrometheusRecorder)(nil)
var _ Recorder = noopRecorder{}
