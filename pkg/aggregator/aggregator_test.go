package aggregator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agentcore/pkg/agentevent"
	"github.com/kadirpekel/agentcore/pkg/corerrors"
)

const (
	kindLeft  agentevent.Kind = "left"
	kindRight agentevent.Kind = "right"
	kindMerge agentevent.Kind = "merged"
)

func concatReducer(events []agentevent.Event, _ any) (ReducerOutput, error) {
	var payloads []any
	for _, e := range events {
		payloads = append(payloads, e.Payload)
	}
	out := agentevent.NewWithCorrelation(kindMerge, "reducer", events[0].CorrelationID, payloads)
	return ReducerOutput{Events: []agentevent.Event{out}}, nil
}

func TestAggregator_FiresOnceSetCompletes(t *testing.T) {
	a := New("concat", []agentevent.Kind{kindLeft, kindRight}, concatReducer)

	out, err := a.ReceiveEvent(context.Background(), agentevent.NewWithCorrelation(kindLeft, "test", "c1", "L"))
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = a.ReceiveEvent(context.Background(), agentevent.NewWithCorrelation(kindRight, "test", "c1", "R"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, kindMerge, out[0].Kind)
}

func TestAggregator_CachedAfterComplete(t *testing.T) {
	a := New("concat", []agentevent.Kind{kindLeft, kindRight}, concatReducer)

	a.ReceiveEvent(context.Background(), agentevent.NewWithCorrelation(kindLeft, "test", "c1", "L"))
	first, err := a.ReceiveEvent(context.Background(), agentevent.NewWithCorrelation(kindRight, "test", "c1", "R"))
	require.NoError(t, err)

	// A third, superfluous event for the same correlation id must return the
	// cached result rather than firing the reducer again.
	second, err := a.ReceiveEvent(context.Background(), agentevent.NewWithCorrelation(kindLeft, "test", "c1", "L-again"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAggregator_WaitForEventsUnblockedByLaterReceive(t *testing.T) {
	a := New("concat", []agentevent.Kind{kindLeft, kindRight}, concatReducer)

	var wg sync.WaitGroup
	var waited []agentevent.Event
	var waitErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		waited, waitErr = a.WaitForEvents("c1", 2*time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	a.ReceiveEvent(context.Background(), agentevent.NewWithCorrelation(kindLeft, "test", "c1", "L"))
	a.ReceiveEvent(context.Background(), agentevent.NewWithCorrelation(kindRight, "test", "c1", "R"))

	wg.Wait()
	require.NoError(t, waitErr)
	require.Len(t, waited, 1)
}

func TestAggregator_WaitForEventsReturnsCachedImmediately(t *testing.T) {
	a := New("concat", []agentevent.Kind{kindLeft, kindRight}, concatReducer)

	a.ReceiveEvent(context.Background(), agentevent.NewWithCorrelation(kindLeft, "test", "c1", "L"))
	a.ReceiveEvent(context.Background(), agentevent.NewWithCorrelation(kindRight, "test", "c1", "R"))

	out, err := a.WaitForEvents("c1", time.Second)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestAggregator_WaitForEventsTimesOut(t *testing.T) {
	a := New("concat", []agentevent.Kind{kindLeft, kindRight}, concatReducer)

	a.ReceiveEvent(context.Background(), agentevent.NewWithCorrelation(kindLeft, "test", "c1", "L"))

	_, err := a.WaitForEvents("c1", 30*time.Millisecond)
	assert.ErrorIs(t, err, corerrors.ErrTimeout)
}

func TestAggregator_ReducerErrorFailsWaitersAndAllowsRetry(t *testing.T) {
	var attempt int
	flaky := func(events []agentevent.Event, state any) (ReducerOutput, error) {
		attempt++
		if attempt == 1 {
			return ReducerOutput{}, errors.New("transient failure")
		}
		return concatReducer(events, state)
	}
	a := New("flaky", []agentevent.Kind{kindLeft, kindRight}, flaky)

	var wg sync.WaitGroup
	var waitErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, waitErr = a.WaitForEvents("c1", 2*time.Second)
	}()
	time.Sleep(20 * time.Millisecond)

	a.ReceiveEvent(context.Background(), agentevent.NewWithCorrelation(kindLeft, "test", "c1", "L"))
	_, err := a.ReceiveEvent(context.Background(), agentevent.NewWithCorrelation(kindRight, "test", "c1", "R"))
	require.Error(t, err)
	var reducerErr *corerrors.ReducerError
	assert.ErrorAs(t, err, &reducerErr)

	wg.Wait()
	require.Error(t, waitErr)

	// A fresh event retries the reducer from scratch and can still succeed.
	out, err := a.ReceiveEvent(context.Background(), agentevent.NewWithCorrelation(kindLeft, "test", "c1", "L-retry"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, kindMerge, out[0].Kind)
}

// TestAggregator_ConcurrentCompletingReceivesFireReducerOnce covers a
// duplicate subscriber registration (router.AddRoute allows registering the
// same subscriber for a kind twice): two goroutines each deliver the event
// that completes "c1"'s kind set at the same time, so both observe
// isCompleteLocked true. Only one may actually invoke the reducer.
func TestAggregator_ConcurrentCompletingReceivesFireReducerOnce(t *testing.T) {
	var fires int32
	reducer := func(events []agentevent.Event, _ any) (ReducerOutput, error) {
		atomic.AddInt32(&fires, 1)
		time.Sleep(20 * time.Millisecond)
		return concatReducer(events, nil)
	}
	a := New("concat", []agentevent.Kind{kindLeft, kindRight}, reducer)

	a.ReceiveEvent(context.Background(), agentevent.NewWithCorrelation(kindLeft, "test", "c1", "L"))

	var wg sync.WaitGroup
	results := make([][]agentevent.Event, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = a.ReceiveEvent(context.Background(), agentevent.NewWithCorrelation(kindRight, "test", "c1", "R"))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&fires))
	for i := 0; i < 2; i++ {
		require.NoError(t, errs[i])
		require.Len(t, results[i], 1)
		assert.Equal(t, kindMerge, results[i][0].Kind)
	}
}

func TestAggregator_UnrelatedCorrelationIDsDoNotInterfere(t *testing.T) {
	a := New("concat", []agentevent.Kind{kindLeft, kindRight}, concatReducer)

	a.ReceiveEvent(context.Background(), agentevent.NewWithCorrelation(kindLeft, "test", "c1", "L1"))
	a.ReceiveEvent(context.Background(), agentevent.NewWithCorrelation(kindLeft, "test", "c2", "L2"))

	out1, err := a.ReceiveEvent(context.Background(), agentevent.NewWithCorrelation(kindRight, "test", "c1", "R1"))
	require.NoError(t, err)
	require.Len(t, out1, 1)

	_, err = a.WaitForEvents("c2", 30*time.Millisecond)
	assert.ErrorIs(t, err, corerrors.ErrTimeout)
}
