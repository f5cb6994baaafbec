// Package aggregator implements the AsyncAggregator: a per-correlation-id
// accumulator that gathers events of a required set of kinds, fires a
// user-supplied reducer at most once the set completes, caches the result,
// and unblocks any waiters.
package aggregator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kadirpekel/agentcore/pkg/agentevent"
	"github.com/kadirpekel/agentcore/pkg/corelog"
	"github.com/kadirpekel/agentcore/pkg/corerrors"
	"github.com/kadirpekel/agentcore/pkg/metrics"
	"github.com/kadirpekel/agentcore/pkg/tracing"
)

// ReducerOutput is what a Reducer returns on success: the events to emit
// and the reducer's new state for this correlation id. The aggregator does
// not keep State: once the reducer has fired successfully, no later call
// for the same correlation id reaches the reducer.
type ReducerOutput struct {
	Events []agentevent.Event
	State  any
}

// Reducer is invoked when a correlation id's required kind set completes,
// and succeeds at most once per correlation id. On error, the correlation id's
// accumulated state is not advanced and the next arriving event for that
// id will retry the reducer from scratch.
type Reducer func(events []agentevent.Event, state any) (ReducerOutput, error)

// Option configures an Aggregator at construction time.
type Option func(*Aggregator)

// WithLogger attaches a structured logger. Defaults to corelog.Noop().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = logger }
}

// WithTracer attaches a Tracer. Defaults to tracing.Noop().
func WithTracer(t tracing.Tracer) Option {
	return func(a *Aggregator) { a.tracer = t }
}

// WithRecorder attaches a Recorder. Defaults to metrics.Noop().
func WithRecorder(r metrics.Recorder) Option {
	return func(a *Aggregator) { a.recorder = r }
}

type waiterResult struct {
	events []agentevent.Event
	err    error
}

// Aggregator is the AsyncAggregator. The zero value is not usable; build
// one with New.
//
// Like Dispatcher, all per-correlation state is owned by a single mutex
// rather than serialized through a command channel — every critical
// section here is short and never performs I/O, so a mutex gives the same
// single-owner guarantee without the awkwardness of modeling "wait for
// more events" as a channel protocol.
type Aggregator struct {
	name    string
	needed  map[agentevent.Kind]struct{}
	reducer Reducer

	mu        sync.Mutex
	events    map[string][]agentevent.Event
	kindsSeen map[string]map[agentevent.Kind]struct{}
	state     map[string]any
	results   map[string][]agentevent.Event
	waiters   map[string][]chan waiterResult
	firing    map[string]bool

	logger   *slog.Logger
	tracer   tracing.Tracer
	recorder metrics.Recorder
}

// New builds an Aggregator that fires reducer once the kinds in needed
// have all been observed for a correlation id. name identifies the
// reducer in logs, traces and metrics labels.
func New(name string, needed []agentevent.Kind, reducer Reducer, opts ...Option) *Aggregator {
	neededSet := make(map[agentevent.Kind]struct{}, len(needed))
	for _, k := range needed {
		neededSet[k] = struct{}{}
	}

	a := &Aggregator{
		name:      name,
		needed:    neededSet,
		reducer:   reducer,
		events:    make(map[string][]agentevent.Event),
		kindsSeen: make(map[string]map[agentevent.Kind]struct{}),
		state:     make(map[string]any),
		results:   make(map[string][]agentevent.Event),
		waiters:   make(map[string][]chan waiterResult),
		firing:    make(map[string]bool),
		logger:    corelog.Noop(),
		tracer:    tracing.Noop(),
		recorder:  metrics.Noop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ReceiveEvent implements dispatcher.Actor. It accumulates event under its
// correlation id and, if that completes the required kind set, invokes the
// reducer synchronously and returns its output. It returns the cached
// output immediately for a correlation id that has already fired.
//
// A correlation id can be observed as complete by more than one concurrent
// call — router.AddRoute allows registering the same subscriber for a kind
// twice, and nothing stops two independent subscribers needing the same
// kind set either. Completion and the claim to run the reducer are
// therefore decided in the same critical section: the first caller to see
// the kind set complete marks cid as firing and proceeds; any caller that
// arrives while cid is still firing registers as a waiter instead of
// re-entering fire, so the reducer still runs at most once per id.
func (a *Aggregator) ReceiveEvent(ctx context.Context, event agentevent.Event) ([]agentevent.Event, error) {
	cid := event.CorrelationID

	a.mu.Lock()
	if cached, ok := a.results[cid]; ok {
		a.mu.Unlock()
		return cached, nil
	}

	a.events[cid] = append(a.events[cid], event)
	if a.kindsSeen[cid] == nil {
		a.kindsSeen[cid] = make(map[agentevent.Kind]struct{})
	}
	a.kindsSeen[cid][event.Kind] = struct{}{}

	if !a.isCompleteLocked(cid) {
		a.mu.Unlock()
		return nil, nil
	}

	if a.firing[cid] {
		ch := make(chan waiterResult, 1)
		a.waiters[cid] = append(a.waiters[cid], ch)
		a.mu.Unlock()

		res := <-ch
		return res.events, res.err
	}
	a.firing[cid] = true

	events := append([]agentevent.Event(nil), a.events[cid]...)
	state := a.state[cid]
	a.mu.Unlock()

	return a.fire(ctx, cid, events, state)
}

// WaitForEvents blocks until the correlation id's required kind set
// completes and the reducer fires (by some concurrent ReceiveEvent call),
// or returns the cached result immediately if it already has. A timeout of
// zero or less blocks indefinitely.
func (a *Aggregator) WaitForEvents(correlationID string, timeout time.Duration) ([]agentevent.Event, error) {
	a.mu.Lock()
	if cached, ok := a.results[correlationID]; ok {
		a.mu.Unlock()
		return cached, nil
	}
	ch := make(chan waiterResult, 1)
	a.waiters[correlationID] = append(a.waiters[correlationID], ch)
	a.mu.Unlock()

	if timeout <= 0 {
		res := <-ch
		return res.events, res.err
	}

	select {
	case res := <-ch:
		return res.events, res.err
	case <-time.After(timeout):
		a.removeWaiter(correlationID, ch)
		return nil, corerrors.ErrTimeout
	}
}

func (a *Aggregator) isCompleteLocked(cid string) bool {
	seen := a.kindsSeen[cid]
	for k := range a.needed {
		if _, ok := seen[k]; !ok {
			return false
		}
	}
	return true
}

// fire invokes the reducer outside the lock (reducers may do arbitrary
// work) and then applies its outcome. On success the correlation id
// transitions to complete: its events, per-id state and waiter list are
// discarded and every waiter is unblocked with the reducer's output. On
// error the correlation id's accumulated events and state are left
// untouched so the next ReceiveEvent can retry the reducer from scratch;
// any waiters registered so far are failed with corerrors.ReducerError
// rather than left blocked.
func (a *Aggregator) fire(ctx context.Context, cid string, events []agentevent.Event, state any) ([]agentevent.Event, error) {
	output, err := a.reducer(events, state)

	a.mu.Lock()
	if err != nil {
		delete(a.firing, cid)
		waiters := a.waiters[cid]
		delete(a.waiters, cid)
		a.mu.Unlock()

		a.recorder.RecordAggregatorError(a.name)
		wrapped := &corerrors.ReducerError{CorrelationID: cid, Err: err}
		a.logger.Warn("reducer failed", "reducer", a.name, "correlation_id", cid, "error", err)
		for _, w := range waiters {
			w <- waiterResult{err: wrapped}
		}
		return nil, wrapped
	}

	a.results[cid] = output.Events
	delete(a.events, cid)
	delete(a.kindsSeen, cid)
	delete(a.state, cid)
	delete(a.firing, cid)
	waiters := a.waiters[cid]
	delete(a.waiters, cid)
	a.mu.Unlock()

	a.recorder.RecordAggregatorFire(a.name)
	a.tracer.AggregatorComplete(ctx, cid, a.neededKindStrings())
	for _, w := range waiters {
		w <- waiterResult{events: output.Events}
	}
	return output.Events, nil
}

func (a *Aggregator) neededKindStrings() []string {
	out := make([]string, 0, len(a.needed))
	for k := range a.needed {
		out = append(out, string(k))
	}
	return out
}

func (a *Aggregator) removeWaiter(cid string, target chan waiterResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	waiters := a.waiters[cid]
	for i, ch := range waiters {
		if ch == target {
			a.waiters[cid] = append(waiters[:i], waiters[i+1:]...)
			return
		}
	}
}
