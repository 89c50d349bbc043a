package queue

import (
	"container/list"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// ErrLimitExceeded is returned when the queue cannot take more tasks.
var ErrLimitExceeded = errors.New("reached limit of max processed jobs")

// Queue runs tasks of the same key one by one on a pool of goroutines.
type Queue struct {
	goPool *ants.Pool
	limit  int

	mutex sync.Mutex
	// pending tasks per key, a key is present while its worker runs
	pending    map[interface{}]*list.List
	pendingLen int
}

// New creates task queue which is processed by goroutines.
func New(cfg Config) (*Queue, error) {
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("invalid value of Size")
	}
	p, err := ants.NewPool(cfg.GoPoolSize, ants.WithPreAlloc(true), ants.WithExpiryDuration(cfg.MaxIdleTime), ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	return &Queue{
		pending: make(map[interface{}]*list.List),
		goPool:  p,
		limit:   cfg.Size,
	}, nil
}

func (q *Queue) pop(key interface{}) func() {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	l, ok := q.pending[key]
	if !ok {
		return nil
	}
	if l.Len() == 0 {
		delete(q.pending, key)
		return nil
	}
	q.pendingLen--
	return l.Remove(l.Front()).(func())
}

// SubmitForOneWorker appends tasks which are executed one by one in the order of
// submission for the same key. Tasks for different keys run concurrently.
func (q *Queue) SubmitForOneWorker(key interface{}, tasks ...func()) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.pendingLen+len(tasks) > q.limit {
		return ErrLimitExceeded
	}
	l, running := q.pending[key]
	if !running {
		l = list.New()
	}
	for _, t := range tasks {
		l.PushBack(t)
	}
	if running {
		q.pendingLen += len(tasks)
		return nil
	}
	err := q.goPool.Submit(func() {
		for {
			task := q.pop(key)
			if task == nil {
				return
			}
			task()
		}
	})
	if errors.Is(err, ants.ErrPoolOverload) {
		return fmt.Errorf("cannot run worker for %v: %w", key, ErrLimitExceeded)
	}
	if err != nil {
		return fmt.Errorf("cannot run worker for %v: %w", key, err)
	}
	q.pending[key] = l
	q.pendingLen += len(tasks)
	return nil
}

// Release closes queue and release it.
func (q *Queue) Release() {
	q.goPool.Release()
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.pending = make(map[interface{}]*list.List)
	q.pendingLen = 0
}
