package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForState(t *testing.T, q *Queue, id string, want State) Status {
	t.Helper()
	var st Status
	require.Eventually(t, func() bool {
		var ok bool
		st, ok = q.Status(id)
		return ok && st.State == want
	}, 2*time.Second, 5*time.Millisecond)
	return st
}

func TestQueueRunsRegisteredHandler(t *testing.T) {
	q := NewQueue("test", QueueConfig{Workers: 2})
	q.Register("echo", func(_ context.Context, job Job) (interface{}, error) {
		return job.Payload, nil
	})
	q.Start(context.Background())
	defer q.Stop()

	id, err := q.Enqueue(Job{Type: "echo", Payload: "hello"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	st := waitForState(t, q, id, StateSucceeded)
	assert.Equal(t, "hello", st.Result)
	assert.Equal(t, 1, st.Attempts)
	assert.NotNil(t, st.FinishedAt)
}

func TestQueueRetriesThenFails(t *testing.T) {
	var calls int32
	q := NewQueue("test", QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: time.Millisecond})
	q.Register("boom", func(context.Context, Job) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("boom")
	})
	q.Start(context.Background())
	defer q.Stop()

	id, err := q.Enqueue(Job{Type: "boom"})
	require.NoError(t, err)

	st := waitForState(t, q, id, StateFailed)
	assert.Equal(t, "boom", st.Error)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestQueueRejectsUnknownTypeAndUnstarted(t *testing.T) {
	q := NewQueue("test", QueueConfig{})
	q.Register("known", func(context.Context, Job) (interface{}, error) { return nil, nil })

	_, err := q.Enqueue(Job{Type: "known"})
	require.Error(t, err)

	q.Start(context.Background())
	defer q.Stop()

	_, err = q.Enqueue(Job{Type: "unknown"})
	require.Error(t, err)

	_, ok := q.Status("missing")
	assert.False(t, ok)
}

func TestQueueEnqueueAfterStopLeavesNoQueuedStatus(t *testing.T) {
	q := NewQueue("test", QueueConfig{Workers: 1})
	q.Register("known", func(context.Context, Job) (interface{}, error) { return nil, nil })
	q.Start(context.Background())
	q.Stop()

	for i := 0; i < 20; i++ {
		_, err := q.Enqueue(Job{ID: "late", Type: "known"})
		require.Error(t, err)
	}
	st, ok := q.Status("late")
	if ok {
		assert.NotEqual(t, StateQueued, st.State)
	}
}

func TestQueuePendingRetryFailsOnStop(t *testing.T) {
	q := NewQueue("test", QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: time.Hour})
	q.Register("flaky", func(context.Context, Job) (interface{}, error) {
		return nil, errors.New("flaky")
	})
	q.Start(context.Background())

	id, err := q.Enqueue(Job{Type: "flaky"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		st, ok := q.Status(id)
		return ok && st.State == StateQueued && st.Error == "flaky"
	}, 2*time.Second, 5*time.Millisecond)

	q.Stop()
	st := waitForState(t, q, id, StateFailed)
	assert.Contains(t, st.Error, "stopped before retry")
}
