// Package router implements the type-keyed fan-out table from event kind to
// subscriber set. It is deliberately generic over the subscriber
// representation so router does not have to import the dispatcher package,
// which defines what a subscriber actually is and itself imports router —
// avoiding a cyclic package reference.
package router

import (
	"sync"

	"github.com/kadirpekel/agentcore/pkg/agentevent"
)

// Router maps an event kind to the ordered sequence of subscribers
// registered for it. It is a pure function of its registration history: no
// I/O, no side effects beyond the table itself.
//
// Router is safe for concurrent AddRoute/GetSubscribers calls. Reads take a
// copy-on-write snapshot per kind so GetSubscribers never observes a
// partially-appended slice and never blocks a concurrent reader.
type Router[S any] struct {
	mu     sync.RWMutex
	routes map[agentevent.Kind][]S
}

// New returns an empty Router.
func New[S any]() *Router[S] {
	return &Router[S]{routes: make(map[agentevent.Kind][]S)}
}

// AddRoute appends subscriber to the ordered set registered for kind.
// Registering the same subscriber twice is allowed; it will then receive
// matching events twice.
func (r *Router[S]) AddRoute(kind agentevent.Kind, subscriber S) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing := r.routes[kind]
	// Copy-on-write: never mutate the slice a concurrent reader may hold.
	next := make([]S, len(existing), len(existing)+1)
	copy(next, existing)
	r.routes[kind] = append(next, subscriber)
}

// GetSubscribers returns the insertion-ordered subscribers registered for
// event.Kind, or an empty slice if the kind is unregistered.
func (r *Router[S]) GetSubscribers(event agentevent.Event) []S {
	return r.GetSubscribersForKind(event.Kind)
}

// GetSubscribersForKind is GetSubscribers without needing a full Event.
func (r *Router[S]) GetSubscribersForKind(kind agentevent.Kind) []S {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.routes[kind]
	if len(subs) == 0 {
		return nil
	}
	// Defensive copy: the map entry is swapped wholesale on AddRoute, so
	// this isn't strictly required for safety, but it keeps GetSubscribers
	// from ever handing out a slice the router itself might still hold.
	out := make([]S, len(subs))
	copy(out, subs)
	return out
}

// Kinds returns the set of kinds with at least one registered subscriber.
func (r *Router[S]) Kinds() []agentevent.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]agentevent.Kind, 0, len(r.routes))
	for k := range r.routes {
		kinds = append(kinds, k)
	}
	return kinds
}
