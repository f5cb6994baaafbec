package dispatcher

import (
	"context"
	"fmt"

	"github.com/kadirpekel/agentcore/pkg/agentevent"
)

// Actor is a long-lived subscriber invoked via a blocking ReceiveEvent entry
// point — the shape an AsyncAggregator satisfies.
type Actor interface {
	ReceiveEvent(ctx context.Context, event agentevent.Event) ([]agentevent.Event, error)
}

// HandlerFunc is a stateless subscriber identified by name, invoked via an
// async entry point.
type HandlerFunc func(ctx context.Context, event agentevent.Event) ([]agentevent.Event, error)

// Subscriber is the closed variant the dispatcher fans events out to:
// either a long-lived Actor or a stateless HandlerFunc. Never construct one
// directly; use FromActor or FromHandler.
type Subscriber struct {
	name    string
	actor   Actor
	handler HandlerFunc
}

// FromActor wraps a long-lived Actor (e.g. an AsyncAggregator) as a
// dispatcher subscriber.
func FromActor(name string, actor Actor) Subscriber {
	return Subscriber{name: name, actor: actor}
}

// FromHandler wraps a stateless handler function as a dispatcher
// subscriber.
func FromHandler(name string, handler HandlerFunc) Subscriber {
	return Subscriber{name: name, handler: handler}
}

// Name returns the subscriber's registered identity, used in logs, traces
// and metrics labels.
func (s Subscriber) Name() string { return s.name }

// invoke runs the subscriber against event, converting a panic into an
// error the same way a returned error would be handled.
func (s Subscriber) invoke(ctx context.Context, event agentevent.Event) (events []agentevent.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber %q panicked: %v", s.name, r)
		}
	}()

	if s.actor != nil {
		return s.actor.ReceiveEvent(ctx, event)
	}
	return s.handler(ctx, event)
}
