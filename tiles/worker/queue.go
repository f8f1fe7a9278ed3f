// Package worker runs tasks on one dedicated goroutine fed by a bounded
// queue.
package worker

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrFull   = errors.New("worker queue full")
	ErrClosed = errors.New("worker queue closed")
)

// Task is skipped when Ctx is done before the worker gets to it.
type Task struct {
	Ctx  context.Context
	Work func(ctx context.Context)
}

type Queue struct {
	tasks  chan Task
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// New starts the worker. size bounds the number of queued tasks.
func New(size int) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		tasks:  make(chan Task, max(1, size)),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		select {
		case <-q.ctx.Done():
			return
		case task := <-q.tasks:
			ctx := task.Ctx
			if ctx == nil {
				ctx = q.ctx
			}
			if ctx.Err() != nil || q.ctx.Err() != nil {
				continue
			}
			task.Work(ctx)
		}
	}
}

// Submit queues t without blocking.
func (q *Queue) Submit(t Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.tasks <- t:
		return nil
	default:
		return ErrFull
	}
}

// Len is the number of queued tasks.
func (q *Queue) Len() int { return len(q.tasks) }

// Close stops the worker and waits for the running task to return.
// Queued tasks are dropped.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.cancel()
	<-q.done
}
