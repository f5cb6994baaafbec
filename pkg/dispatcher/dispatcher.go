// Package dispatcher implements the AsyncDispatcher: a FIFO event queue that
// drains in bounded batches and fans each event out to every subscriber the
// router matches it to. Dispatch never blocks on delivery;
// subscriber results are folded back into the same queue, and a distinguished
// Terminate event drains in-flight work before the dispatcher stops.
package dispatcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kadirpekel/agentcore/pkg/agentevent"
	"github.com/kadirpekel/agentcore/pkg/corelog"
	"github.com/kadirpekel/agentcore/pkg/corerrors"
	"github.com/kadirpekel/agentcore/pkg/metrics"
	"github.com/kadirpekel/agentcore/pkg/router"
	"github.com/kadirpekel/agentcore/pkg/tracing"
)

const (
	defaultBatchSize    = 5
	defaultTickInterval = 100 * time.Millisecond
)

// Option configures a Dispatcher at construction time.
type Option func(*Dispatcher)

// WithBatchSize overrides the maximum number of events popped per drain
// pass. Default is 5.
func WithBatchSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.batchSize = n
		}
	}
}

// WithTickInterval overrides the interval the background loop uses to poll
// for work in the absence of an explicit wake signal. Default is 100ms.
func WithTickInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.tickInterval = interval
		}
	}
}

// WithLogger attaches a structured logger. Defaults to corelog.Noop().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithTracer attaches a Tracer. Defaults to tracing.Noop().
func WithTracer(t tracing.Tracer) Option {
	return func(d *Dispatcher) { d.tracer = t }
}

// WithRecorder attaches a Recorder. Defaults to metrics.Noop().
func WithRecorder(r metrics.Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// Dispatcher is the AsyncDispatcher. The zero value is not usable; build one
// with New.
//
// Internal state (queue, pendingTasks, terminating) is owned by a mutex
// rather than serialized through a command channel: every mutation is a
// short, non-blocking critical section, which keeps Dispatch itself
// non-blocking without imposing a channel buffer limit on the queue.
type Dispatcher struct {
	mu           sync.Mutex
	queue        []agentevent.Event
	pendingTasks int
	terminating  bool

	router       *router.Router[Subscriber]
	batchSize    int
	tickInterval time.Duration

	logger   *slog.Logger
	tracer   tracing.Tracer
	recorder metrics.Recorder

	wake     chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// New builds a Dispatcher routing through r and starts its background
// drain loop. Callers must eventually call Stop to release the goroutine.
func New(r *router.Router[Subscriber], opts ...Option) *Dispatcher {
	d := &Dispatcher{
		router:       r,
		batchSize:    defaultBatchSize,
		tickInterval: defaultTickInterval,
		logger:       corelog.Noop(),
		tracer:       tracing.Noop(),
		recorder:     metrics.Noop(),
		wake:         make(chan struct{}, 1),
		doneCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.run()
	return d
}

// Dispatch enqueues event for fan-out, assigning it a fresh correlation id
// if it does not already carry one. It never blocks on delivery.
func (d *Dispatcher) Dispatch(event agentevent.Event) {
	event = event.EnsureCorrelationID()

	d.mu.Lock()
	if d.terminating {
		d.mu.Unlock()
		d.logger.Debug("dispatch dropped after terminate", "kind", event.Kind)
		return
	}
	d.queue = append(d.queue, event)
	depth := d.queueDepthLocked()
	d.mu.Unlock()

	d.recorder.SetQueueDepth(depth)
	d.wakeLoop()
}

// GetQueueSize returns the number of events still queued plus the number of
// subscriber invocations currently in flight.
func (d *Dispatcher) GetQueueSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queueDepthLocked()
}

func (d *Dispatcher) queueDepthLocked() int {
	return len(d.queue) + d.pendingTasks
}

// WaitForEmpty blocks until both the queue and in-flight task count reach
// zero, or timeout elapses (corerrors.ErrTimeout).
func (d *Dispatcher) WaitForEmpty(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	const pollInterval = 20 * time.Millisecond

	for {
		if d.GetQueueSize() == 0 {
			return nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return corerrors.ErrTimeout
		}
		if remaining > pollInterval {
			remaining = pollInterval
		}
		time.Sleep(remaining)
	}
}

// Stop marks the dispatcher as terminating and blocks until all in-flight
// work has drained, or timeout elapses (corerrors.ErrTimeout). It is
// equivalent to dispatching agentevent.Terminate and then waiting.
func (d *Dispatcher) Stop(timeout time.Duration) error {
	d.mu.Lock()
	d.terminating = true
	done := d.checkDoneLocked()
	d.mu.Unlock()
	if done {
		d.finish()
	}
	d.wakeLoop()

	select {
	case <-d.doneCh:
		return nil
	case <-time.After(timeout):
		return corerrors.ErrTimeout
	}
}

func (d *Dispatcher) checkDoneLocked() bool {
	return d.terminating && d.pendingTasks == 0 && len(d.queue) == 0
}

func (d *Dispatcher) finish() {
	d.stopOnce.Do(func() { close(d.doneCh) })
}

func (d *Dispatcher) wakeLoop() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) run() {
	ticker := time.NewTicker(d.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.wake:
			d.drainBatch()
		case <-ticker.C:
			d.drainBatch()
		case <-d.doneCh:
			return
		}
	}
}

// drainBatch pops up to batchSize events and dispatches each to its
// subscribers. Encountering agentevent.KindTerminate within a batch enters
// terminating mode and discards everything queued behind it: no event
// enqueued after Terminate is observed is ever dispatched.
func (d *Dispatcher) drainBatch() {
	d.mu.Lock()
	if len(d.queue) == 0 {
		d.mu.Unlock()
		return
	}
	n := d.batchSize
	if n > len(d.queue) {
		n = len(d.queue)
	}
	batch := make([]agentevent.Event, n)
	copy(batch, d.queue[:n])
	d.queue = d.queue[n:]
	d.mu.Unlock()

	d.recorder.RecordDispatchBatch(len(batch))
	d.tracer.DispatchBatch(context.Background(), len(batch), d.GetQueueSize())

	for i, ev := range batch {
		if ev.IsTerminate() {
			d.enterTerminating(len(batch) - i - 1)
			break
		}
		d.dispatchToSubscribers(ev)
	}

	d.mu.Lock()
	done := d.checkDoneLocked()
	d.mu.Unlock()
	if done {
		d.finish()
	}
}

func (d *Dispatcher) enterTerminating(droppedInBatch int) {
	d.mu.Lock()
	d.terminating = true
	droppedInQueue := len(d.queue)
	d.queue = nil
	done := d.checkDoneLocked()
	d.mu.Unlock()

	if droppedInBatch+droppedInQueue > 0 {
		d.logger.Warn("terminate observed, dropping trailing events",
			"dropped_in_batch", droppedInBatch, "dropped_in_queue", droppedInQueue)
	} else {
		d.logger.Info("terminate observed, draining in-flight work")
	}
	if done {
		d.finish()
	}
}

func (d *Dispatcher) dispatchToSubscribers(ev agentevent.Event) {
	subs := d.router.GetSubscribers(ev)
	if len(subs) == 0 {
		return
	}

	d.mu.Lock()
	d.pendingTasks += len(subs)
	pending := d.pendingTasks
	d.mu.Unlock()
	d.recorder.SetPendingTasks(pending)

	for _, sub := range subs {
		go d.invokeSubscriber(sub, ev)
	}
}

func (d *Dispatcher) invokeSubscriber(sub Subscriber, ev agentevent.Event) {
	start := time.Now()
	results, err := sub.invoke(context.Background(), ev)
	duration := time.Since(start)

	d.recorder.RecordSubscriberInvocation(string(ev.Kind), duration, err == nil)
	if err != nil {
		d.logger.Warn("subscriber invocation failed",
			"subscriber", sub.Name(), "kind", ev.Kind, "correlation_id", ev.CorrelationID, "error", err)
	}
	d.postResult(ev.CorrelationID, results, err)
}

// postResult folds a finished subscriber invocation's results back into the
// queue (unless the dispatcher is already terminating, in which case they
// are dropped) and decrements the in-flight count.
func (d *Dispatcher) postResult(correlationID string, results []agentevent.Event, invokeErr error) {
	d.mu.Lock()
	d.pendingTasks--
	pending := d.pendingTasks

	accepted := invokeErr == nil && !d.terminating
	if accepted {
		for _, e := range results {
			if e.CorrelationID == "" {
				e = e.WithCorrelationID(correlationID)
			}
			d.queue = append(d.queue, e)
		}
	}
	depth := d.queueDepthLocked()
	done := d.checkDoneLocked()
	d.mu.Unlock()

	d.recorder.SetPendingTasks(pending)
	d.recorder.SetQueueDepth(depth)

	if accepted && len(results) > 0 {
		d.wakeLoop()
	}
	if done {
		d.finish()
	} else if !accepted && invokeErr == nil && len(results) > 0 {
		d.logger.Debug("dropping results produced after terminate", "correlation_id", correlationID, "count", len(results))
	}
}
