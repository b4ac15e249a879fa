package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func echoHandler(ctx context.Context, payload []byte) ([]byte, error) {
	return payload, nil
}

func TestAddTaskRunsHandlerAndDeliversResult(t *testing.T) {
	e := Create(Config{Min: 2})
	e.Start()
	defer e.Destroy()

	id, err := e.AddTask([]byte("hello"), AddTaskOptions{Handler: echoHandler})
	assert.NoError(t, err)

	ok, result, err := e.WaitForResult(id, time.Second)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello", string(result))

	status, err := e.GetStatus(id)
	assert.NoError(t, err)
	assert.Equal(t, Succeeded, status)
}

func TestCriticalTaskDispatchedBeforeLowWhenBothQueued(t *testing.T) {
	e := Create(Config{Min: 1})
	// Don't start workers yet: queue both, then start, so ordering
	// depends purely on priority, not arrival timing.
	order := []string{}
	var mu sync.Mutex
	record := func(label string) Handler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			mu.Lock()
			order = append(order, label)
			mu.Unlock()
			return nil, nil
		}
	}

	_, err := e.AddTask(nil, AddTaskOptions{Handler: record("low"), Priority: Low})
	assert.NoError(t, err)
	_, err = e.AddTask(nil, AddTaskOptions{Handler: record("critical"), Priority: Critical})
	assert.NoError(t, err)

	e.Start()
	defer e.Destroy()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"critical", "low"}, order)
}

func TestDelayedTaskDoesNotRunBeforeDelayElapses(t *testing.T) {
	e := Create(Config{Min: 1})
	e.Start()
	defer e.Destroy()

	var ran int32
	id, err := e.AddTask(nil, AddTaskOptions{
		Handler: func(ctx context.Context, payload []byte) ([]byte, error) {
			atomic.StoreInt32(&ran, 1)
			return nil, nil
		},
		DelayMS: 200,
	})
	assert.NoError(t, err)

	status, _ := e.GetStatus(id)
	assert.Equal(t, Delayed, status)
	assert.EqualValues(t, 0, atomic.LoadInt32(&ran))

	ok, _, err := e.WaitForResult(id, 2*time.Second)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 1, atomic.LoadInt32(&ran))
}

func TestCancelPendingTaskNeverRuns(t *testing.T) {
	e := Create(Config{Min: 1})
	// Keep the one worker busy so the second task stays pending.
	block := make(chan struct{})
	_, err := e.AddTask(nil, AddTaskOptions{Handler: func(ctx context.Context, payload []byte) ([]byte, error) {
		<-block
		return nil, nil
	}})
	assert.NoError(t, err)
	e.Start()

	var ran int32
	id, err := e.AddTask(nil, AddTaskOptions{Handler: func(ctx context.Context, payload []byte) ([]byte, error) {
		atomic.StoreInt32(&ran, 1)
		return nil, nil
	}})
	assert.NoError(t, err)

	assert.NoError(t, e.Cancel(id))
	close(block)

	status, err := e.GetStatus(id)
	assert.NoError(t, err)
	assert.Equal(t, Cancelled, status)

	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 0, atomic.LoadInt32(&ran))

	e.Destroy()
}

func TestFailedTaskRetriesUpToMaxThenFails(t *testing.T) {
	e := Create(Config{Min: 1, RetryBackoffFactor: 1})
	e.Start()
	defer e.Destroy()

	var attempts int32
	var retryCalls int32
	var failureCalls int32

	id, err := e.AddTask(nil, AddTaskOptions{
		Handler: func(ctx context.Context, payload []byte) ([]byte, error) {
			atomic.AddInt32(&attempts, 1)
			return nil, errors.New("boom")
		},
		MaxRetries: 2,
		OnRetry: func(id string, attempt int, err error) {
			atomic.AddInt32(&retryCalls, 1)
		},
		OnFailure: func(id string, err error) {
			atomic.AddInt32(&failureCalls, 1)
		},
	})
	assert.NoError(t, err)

	ok, _, err := e.WaitForResult(id, 2*time.Second)
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.EqualValues(t, 3, atomic.LoadInt32(&attempts)) // initial + 2 retries
	assert.EqualValues(t, 2, atomic.LoadInt32(&retryCalls))
	assert.EqualValues(t, 1, atomic.LoadInt32(&failureCalls))

	status, _ := e.GetStatus(id)
	assert.Equal(t, Failed, status)
}

func TestWaitForResultTimesOutWhileTaskStillRunning(t *testing.T) {
	e := Create(Config{Min: 1})
	e.Start()
	defer e.Destroy()

	id, err := e.AddTask(nil, AddTaskOptions{Handler: func(ctx context.Context, payload []byte) ([]byte, error) {
		time.Sleep(200 * time.Millisecond)
		return nil, nil
	}})
	assert.NoError(t, err)

	_, _, err = e.WaitForResult(id, 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestAddTaskAfterStopReturnsErrEngineStopped(t *testing.T) {
	e := Create(Config{Min: 1})
	e.Start()
	e.Stop(true)

	_, err := e.AddTask(nil, AddTaskOptions{Handler: echoHandler})
	assert.ErrorIs(t, err, ErrEngineStopped)
}

func TestGetStatusAndCancelUnknownIDReturnErrNotFound(t *testing.T) {
	e := Create(Config{Min: 1})
	e.Start()
	defer e.Destroy()

	_, err := e.GetStatus("ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	err = e.Cancel("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetStatsReflectsSucceededAndFailedCounts(t *testing.T) {
	e := Create(Config{Min: 2})
	e.Start()
	defer e.Destroy()

	id1, _ := e.AddTask(nil, AddTaskOptions{Handler: echoHandler})
	id2, _ := e.AddTask(nil, AddTaskOptions{Handler: func(ctx context.Context, payload []byte) ([]byte, error) {
		return nil, errors.New("boom")
	}})

	e.WaitForResult(id1, time.Second)
	e.WaitForResult(id2, time.Second)

	stats := e.GetStats()
	assert.EqualValues(t, 1, stats.Succeeded)
	assert.EqualValues(t, 1, stats.Failed)
	assert.EqualValues(t, 2, stats.WorkerCount)
}

func TestTimeoutCancelsRunningTaskViaContext(t *testing.T) {
	e := Create(Config{Min: 1})
	e.Start()
	defer e.Destroy()

	var sawDone int32
	id, err := e.AddTask(nil, AddTaskOptions{
		Handler: func(ctx context.Context, payload []byte) ([]byte, error) {
			select {
			case <-ctx.Done():
				atomic.StoreInt32(&sawDone, 1)
				return nil, ctx.Err()
			case <-time.After(time.Second):
				return nil, nil
			}
		},
		TimeoutMS: 20,
	})
	assert.NoError(t, err)

	ok, _, err := e.WaitForResult(id, time.Second)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.EqualValues(t, 1, atomic.LoadInt32(&sawDone))
}
