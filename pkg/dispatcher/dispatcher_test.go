package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agentcore/pkg/agentevent"
	"github.com/kadirpekel/agentcore/pkg/router"
)

const (
	kindA agentevent.Kind = "a"
	kindB agentevent.Kind = "b"
)

// sink collects events delivered to it via a HandlerFunc closure, guarded by
// a mutex since subscribers run on their own goroutines.
type sink struct {
	mu     sync.Mutex
	events []agentevent.Event
}

func (s *sink) record(_ context.Context, ev agentevent.Event) ([]agentevent.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil, nil
}

func (s *sink) snapshot() []agentevent.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]agentevent.Event, len(s.events))
	copy(out, s.events)
	return out
}

func TestDispatcher_BasicFanOut(t *testing.T) {
	r := router.New[Subscriber]()
	var s2 sink
	r.AddRoute(kindA, FromHandler("h1", func(ctx context.Context, ev agentevent.Event) ([]agentevent.Event, error) {
		return []agentevent.Event{agentevent.New(kindB, "h1", "from-h1")}, nil
	}))
	r.AddRoute(kindA, FromHandler("h2", s2.record))

	d := New(r)
	defer d.Stop(time.Second)

	d.Dispatch(agentevent.New(kindA, "test", "payload"))
	require.NoError(t, d.WaitForEmpty(2*time.Second))

	got := s2.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, kindA, got[0].Kind)
	assert.NotEmpty(t, got[0].CorrelationID)
}

func TestDispatcher_DerivedEventsInheritCorrelationID(t *testing.T) {
	r := router.New[Subscriber]()
	var bSink sink
	r.AddRoute(kindA, FromHandler("emitter", func(ctx context.Context, ev agentevent.Event) ([]agentevent.Event, error) {
		return []agentevent.Event{
			agentevent.New(kindB, "emitter", "derived-1"),
			agentevent.New(kindB, "emitter", "derived-2"),
		}, nil
	}))
	r.AddRoute(kindB, FromHandler("sink", bSink.record))

	d := New(r)
	defer d.Stop(time.Second)

	in := agentevent.NewWithCorrelation(kindA, "test", "corr-123", "payload")
	d.Dispatch(in)
	require.NoError(t, d.WaitForEmpty(2*time.Second))

	got := bSink.snapshot()
	require.Len(t, got, 2)
	for _, ev := range got {
		assert.Equal(t, "corr-123", ev.CorrelationID)
	}
}

func TestDispatcher_UnknownKindDropsSilently(t *testing.T) {
	r := router.New[Subscriber]()
	d := New(r)
	defer d.Stop(time.Second)

	d.Dispatch(agentevent.New("no-subscribers", "test", nil))
	require.NoError(t, d.WaitForEmpty(500*time.Millisecond))
	assert.Equal(t, 0, d.GetQueueSize())
}

func TestDispatcher_FreshCorrelationIDAssignedWhenMissing(t *testing.T) {
	r := router.New[Subscriber]()
	var s sink
	r.AddRoute(kindA, FromHandler("sink", s.record))
	d := New(r)
	defer d.Stop(time.Second)

	ev := agentevent.New(kindA, "test", nil)
	assert.Empty(t, ev.CorrelationID)
	d.Dispatch(ev)
	require.NoError(t, d.WaitForEmpty(500*time.Millisecond))

	got := s.snapshot()
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].CorrelationID)
}

func TestDispatcher_FIFOWithBatchSizeOne(t *testing.T) {
	r := router.New[Subscriber]()
	var order sink
	r.AddRoute(kindA, FromHandler("recorder", order.record))

	d := New(r, WithBatchSize(1), WithTickInterval(10*time.Millisecond))
	defer d.Stop(time.Second)

	for i := 0; i < 5; i++ {
		d.Dispatch(agentevent.NewWithCorrelation(kindA, "test", "", i))
	}
	require.NoError(t, d.WaitForEmpty(2*time.Second))

	got := order.snapshot()
	require.Len(t, got, 5)
	for i, ev := range got {
		assert.Equal(t, i, ev.Payload)
	}
}

func TestDispatcher_TerminateDrainsInFlightAndDropsTrailing(t *testing.T) {
	r := router.New[Subscriber]()
	var processed sink
	release := make(chan struct{})
	r.AddRoute(kindA, FromHandler("slow", func(ctx context.Context, ev agentevent.Event) ([]agentevent.Event, error) {
		<-release
		return processed.record(ctx, ev)
	}))

	d := New(r, WithBatchSize(10), WithTickInterval(10*time.Millisecond))

	d.Dispatch(agentevent.New(kindA, "test", "before-terminate"))
	time.Sleep(30 * time.Millisecond) // let the batch pop and the subscriber start (blocked on release)
	d.Dispatch(agentevent.Terminate("test"))
	d.Dispatch(agentevent.New(kindA, "test", "after-terminate"))

	close(release)
	require.NoError(t, d.Stop(2*time.Second))

	got := processed.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "before-terminate", got[0].Payload)
}

func TestDispatcher_WaitForEmptyTimesOut(t *testing.T) {
	r := router.New[Subscriber]()
	block := make(chan struct{})
	r.AddRoute(kindA, FromHandler("blocker", func(ctx context.Context, ev agentevent.Event) ([]agentevent.Event, error) {
		<-block
		return nil, nil
	}))

	d := New(r)
	defer func() {
		close(block)
		d.Stop(time.Second)
	}()

	d.Dispatch(agentevent.New(kindA, "test", nil))
	err := d.WaitForEmpty(50 * time.Millisecond)
	assert.Error(t, err)
}

func TestDispatcher_DuplicateRegistrationInvokesTwice(t *testing.T) {
	r := router.New[Subscriber]()
	var s sink
	r.AddRoute(kindA, FromHandler("dup", s.record))
	r.AddRoute(kindA, FromHandler("dup", s.record))

	d := New(r)
	defer d.Stop(time.Second)

	d.Dispatch(agentevent.New(kindA, "test", nil))
	require.NoError(t, d.WaitForEmpty(time.Second))
	assert.Len(t, s.snapshot(), 2)
}

func TestDispatcher_SubscriberPanicIsConvertedToError(t *testing.T) {
	r := router.New[Subscriber]()
	r.AddRoute(kindA, FromHandler("panicker", func(ctx context.Context, ev agentevent.Event) ([]agentevent.Event, error) {
		panic("boom")
	}))

	d := New(r)
	defer d.Stop(time.Second)

	d.Dispatch(agentevent.New(kindA, "test", nil))
	require.NoError(t, d.WaitForEmpty(time.Second))
	assert.Equal(t, 0, d.GetQueueSize())
}
