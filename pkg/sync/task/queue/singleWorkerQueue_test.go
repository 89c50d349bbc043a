package queue_test

import (
	"sync"
	"testing"
	"time"

	"github.com/plgd-dev/device-bridge/pkg/sync/task/queue"
	"github.com/stretchr/testify/require"
)

type testArray struct {
	result []int
	mutex  sync.Mutex
}

func (a *testArray) append(i int) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.result = append(a.result, i)
}

func (a *testArray) copy() []int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	b := make([]int, len(a.result))
	copy(b, a.result)
	return b
}

func TestQueueSubmitForOneWorker(t *testing.T) {
	tests := []struct {
		name          string
		separateTasks bool
	}{
		{name: "ok"},
		{name: "ok - separate tasks", separateTasks: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := queue.New(queue.Config{
				GoPoolSize:  100,
				Size:        100,
				MaxIdleTime: time.Millisecond * 100,
			})
			require.NoError(t, err)
			defer q.Release()

			var result testArray
			var wg sync.WaitGroup
			tasks := make([]func(), 0, 10)
			want := make([]int, 0, 10)
			for i := 0; i < 10; i++ {
				v := i
				wg.Add(1)
				tasks = append(tasks, func() {
					defer wg.Done()
					time.Sleep(time.Millisecond)
					result.append(v)
				})
				want = append(want, v)
			}
			if tt.separateTasks {
				for _, task := range tasks {
					require.NoError(t, q.SubmitForOneWorker("dev", task))
				}
			} else {
				require.NoError(t, q.SubmitForOneWorker("dev", tasks...))
			}
			wg.Wait()
			require.Equal(t, want, result.copy())
		})
	}
}

func TestQueueSubmitForOneWorkerLimit(t *testing.T) {
	q, err := queue.New(queue.Config{
		GoPoolSize: 2,
		Size:       1,
	})
	require.NoError(t, err)
	defer q.Release()

	started := make(chan struct{})
	unblock := make(chan struct{})
	err = q.SubmitForOneWorker("dev", func() {
		close(started)
		<-unblock
	})
	require.NoError(t, err)
	<-started

	done := make(chan struct{})
	err = q.SubmitForOneWorker("dev", func() { close(done) })
	require.NoError(t, err)
	err = q.SubmitForOneWorker("dev", func() {})
	require.ErrorIs(t, err, queue.ErrLimitExceeded)

	close(unblock)
	select {
	case <-done:
	case <-time.After(time.Second * 5):
		require.FailNow(t, "queued task was not executed")
	}
}

func TestQueueSubmitForOneWorkerKeysRunConcurrently(t *testing.T) {
	q, err := queue.New(queue.Config{
		GoPoolSize: 10,
		Size:       10,
	})
	require.NoError(t, err)
	defer q.Release()

	unblock := make(chan struct{})
	defer close(unblock)
	err = q.SubmitForOneWorker("a", func() { <-unblock })
	require.NoError(t, err)

	done := make(chan struct{})
	err = q.SubmitForOneWorker("b", func() { close(done) })
	require.NoError(t, err)
	select {
	case <-done:
	case <-time.After(time.Second * 5):
		require.FailNow(t, "task of other key was blocked")
	}
}

func TestQueueSubmitForOneWorkerPoolOverload(t *testing.T) {
	q, err := queue.New(queue.Config{
		GoPoolSize: 1,
		Size:       10,
	})
	require.NoError(t, err)
	defer q.Release()

	unblock := make(chan struct{})
	defer close(unblock)
	err = q.SubmitForOneWorker("a", func() { <-unblock })
	require.NoError(t, err)

	err = q.SubmitForOneWorker("b", func() {})
	require.ErrorIs(t, err, queue.ErrLimitExceeded)
}
