// Package queue implements the bounded FIFO task queue that decouples a
// Parallel node's fan-out from the fixed-size worker pool: each submitted
// task carries everything a worker needs to execute an independent subtree
// fragment without touching the submitter's stack.
package queue

import (
	"context"
	"sync"

	"github.com/sakura-lang/sakura/pkg/ast"
	"github.com/sakura-lang/sakura/pkg/barrier"
	"github.com/sakura-lang/sakura/pkg/value"
)

// Task is one unit of scheduled work: a cloned AST fragment to execute
// against a fresh environment, reporting back to a shared barrier.
type Task struct {
	Ctx       context.Context
	Node      ast.Node
	Env       *value.Environment
	Barrier   *barrier.Barrier
	Hierarchy string
	FilePath  string
}

// Queue is a thread-safe bounded FIFO. Enqueue blocks when full; Dequeue
// blocks when empty. Close unblocks every blocked caller; subsequent
// Dequeue calls drain remaining items before reporting closed.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    []Task
	capacity int
	closed   bool
}

// New returns a queue bounded at capacity (capacity <= 0 means unbounded).
func New(capacity int) *Queue {
	q := &Queue{capacity: capacity}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends a task, blocking while the queue is full. It returns
// false if the queue has been closed.
func (q *Queue) Enqueue(t Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.capacity > 0 && len(q.items) >= q.capacity && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return false
	}
	q.items = append(q.items, t)
	q.notEmpty.Signal()
	return true
}

// Dequeue removes and returns the oldest task, blocking while the queue is
// empty. ok is false once the queue is closed and drained.
func (q *Queue) Dequeue() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if len(q.items) == 0 {
		return Task{}, false
	}
	t := q.items[0]
	q.items = q.items[1:]
	q.notFull.Signal()
	return t, true
}

// Close marks the queue closed and wakes every blocked caller. Already
// enqueued tasks remain available to Dequeue until drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Len returns the current number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
