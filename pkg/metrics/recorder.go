// Package metrics defines the Recorder interface the dispatcher, aggregator,
// broker and solver report through, plus a Prometheus-backed implementation
// and a no-op default.
package metrics

import "time"

// Recorder is the metrics-reporting collaborator every core component
// accepts. Like Tracer, a Noop implementation is always valid.
type Recorder interface {
	// Dispatcher metrics.
	RecordDispatchBatch(batchSize int)
	RecordSubscriberInvocation(kind string, duration time.Duration, ok bool)
	SetQueueDepth(depth int)
	SetPendingTasks(count int)

	// Aggregator metrics.
	RecordAggregatorFire(reducerName string)
	RecordAggregatorError(reducerName string)

	// Broker metrics.
	RecordLLMCall(model string, duration time.Duration)
	RecordToolCall(name string, duration time.Duration, ok bool)

	// Solver metrics.
	RecordSolverIteration(outcome string)
	RecordSolverCompletion(outcome string, iterations int, duration time.Duration)
}

// Noop returns a Recorder whose methods do nothing.
func Noop() Recorder { return noopRecorder{} }

type noopRecorder struct{}

func (noopRecorder) RecordDispatchBatch(_ int)                       {}
func (noopRecorder) RecordSubscriberInvocation(_ string, _ time.Duration, _ bool) {}
func (noopRecorder) SetQueueDepth(_ int)                             {}
func (noopRecorder) SetPendingTasks(_ int)                           {}
func (noopRecorder) RecordAggregatorFire(_ string)                   {}
func (noopRecorder) RecordAggregatorError(_ string)                  {}
func (noopRecorder) RecordLLMCall(_ string, _ time.Duration)         {}
func (noopRecorder) RecordToolCall(_ string, _ time.Duration, _ bool) {}
func (noopRecorder) RecordSolverIteration(_ string)                  {}
func (noopRecorder) RecordSolverCompletion(_ string, _ int, _ time.Duration) {}
