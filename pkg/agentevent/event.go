// Package agentevent defines the tagged event value that flows through the
// router, dispatcher, and aggregator. Applications close the set of Kind
// values they use; the core reserves only KindTerminate.
package agentevent

import (
	"time"

	"github.com/google/uuid"
)

// Kind discriminates an Event's payload shape. Each application defines its
// own closed set of kinds at compile time; the core only cares about
// KindTerminate.
type Kind string

// KindTerminate signals the dispatcher to drain remaining work and stop.
const KindTerminate Kind = "__terminate__"

// Event is a tagged record carrying a source, a correlation id, and a
// kind-specific payload.
//
// CorrelationID is preserved verbatim through every event derived from this
// one. If it is empty when the event reaches the dispatcher, the dispatcher
// assigns a fresh version-4 UUID before routing.
type Event struct {
	Kind          Kind
	Source        string
	CorrelationID string
	Payload       any
	CreatedAt     time.Time
}

// New builds an Event with the given kind, source and payload. CorrelationID
// is left empty; callers that already have one should use NewWithCorrelation.
func New(kind Kind, source string, payload any) Event {
	return Event{
		Kind:      kind,
		Source:    source,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}

// NewWithCorrelation builds an Event carrying an explicit correlation id.
func NewWithCorrelation(kind Kind, source, correlationID string, payload any) Event {
	e := New(kind, source, payload)
	e.CorrelationID = correlationID
	return e
}

// Terminate builds the distinguished terminate event for the given source.
func Terminate(source string) Event {
	return New(KindTerminate, source, nil)
}

// WithCorrelationID returns a copy of the event assigned to correlationID.
// It never mutates the receiver.
func (e Event) WithCorrelationID(correlationID string) Event {
	e.CorrelationID = correlationID
	return e
}

// EnsureCorrelationID returns e unchanged if it already carries a
// correlation id, or a copy with a fresh version-4 UUID assigned otherwise.
// This is the single place the core mints correlation ids, matching the
// invariant that one is assigned at most once per causal chain.
func (e Event) EnsureCorrelationID() Event {
	if e.CorrelationID != "" {
		return e
	}
	return e.WithCorrelationID(uuid.NewString())
}

// IsTerminate reports whether e is the distinguished terminate event.
func (e Event) IsTerminate() bool {
	return e.Kind == KindTerminate
}
