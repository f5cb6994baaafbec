package router

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agentcore/pkg/agentevent"
)

func TestGetSubscribers_UnknownKindReturnsEmpty(t *testing.T) {
	r := New[string]()
	subs := r.GetSubscribersForKind(agentevent.Kind("A"))
	assert.Empty(t, subs)
}

func TestAddRoute_PreservesInsertionOrder(t *testing.T) {
	r := New[string]()
	r.AddRoute("A", "handler-1")
	r.AddRoute("A", "handler-2")
	r.AddRoute("A", "handler-3")

	subs := r.GetSubscribersForKind("A")
	require.Equal(t, []string{"handler-1", "handler-2", "handler-3"}, subs)
}

func TestAddRoute_DuplicateRegistrationDeliversTwice(t *testing.T) {
	r := New[string]()
	r.AddRoute("A", "handler-1")
	r.AddRoute("A", "handler-1")

	subs := r.GetSubscribersForKind("A")
	assert.Equal(t, []string{"handler-1", "handler-1"}, subs)
}

func TestGetSubscribers_IsolatedFromFutureAddRoute(t *testing.T) {
	r := New[string]()
	r.AddRoute("A", "handler-1")

	subs := r.GetSubscribersForKind("A")
	r.AddRoute("A", "handler-2")

	assert.Equal(t, []string{"handler-1"}, subs, "snapshot must not observe later writes")
}

func TestRouter_ConcurrentAddAndRead(t *testing.T) {
	r := New[int]()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			r.AddRoute("A", i)
		}(i)
		go func() {
			defer wg.Done()
			_ = r.GetSubscribersForKind("A")
		}()
	}
	wg.Wait()

	assert.Len(t, r.GetSubscribersForKind("A"), 50)
}

func TestGetSubscribers_UsesEventKind(t *testing.T) {
	r := New[string]()
	r.AddRoute("B", "handler-b")

	subs := r.GetSubscribers(agentevent.New("B", "test", nil))
	assert.Equal(t, []string{"handler-b"}, subs)
}
