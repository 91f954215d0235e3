// Package barrier implements the active-counter join used by a Parallel
// node: each fanned-out task increments the counter on completion, and the
// submitting worker blocks until every expected task has checked in, failed
// or not. Mutex-guarded counters and a condition variable
// gate make this a reusable, independently-waitable join object, since
// Parallel nodes can nest arbitrarily deep.
package barrier

import (
	"context"
	"sync"

	"github.com/sakura-lang/sakura/pkg/value"
)

// Barrier tracks how many of an expected count of tasks have completed,
// captures the first failure sticky (later failures are recorded but do
// not overwrite the first), collects each successful task's produced
// output map, and wakes waiters once the count is satisfied. A failure
// does not release waiters early: the batch still waits for every task.
type Barrier struct {
	mu          sync.Mutex
	cond        *sync.Cond
	shouldCount int
	isCount     int
	success     bool
	message     string
	done        bool
	results     []map[string]value.Value
}

// New returns a barrier expecting shouldCount completions.
func New(shouldCount int) *Barrier {
	b := &Barrier{shouldCount: shouldCount, success: true}
	b.cond = sync.NewCond(&b.mu)
	if shouldCount == 0 {
		b.done = true
	}
	return b
}

// Increment records one task completion. ok is false for a failed task;
// message is recorded as the barrier's sticky failure message the first
// time ok is false. result, when non-nil and ok is true, is appended to
// the barrier's result slot for the waiter to merge back into its
// environment once every task has checked in.
func (b *Barrier) Increment(ok bool, message string, result map[string]value.Value) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.isCount++
	if ok && result != nil {
		b.results = append(b.results, result)
	}
	if !ok && b.success {
		b.success = false
		b.message = message
	}
	if b.isCount >= b.shouldCount {
		b.done = true
	}
	b.cond.Broadcast()
}

// RegisterError is an alias for Increment(false, message, nil), used by
// callers that only ever report failures explicitly.
func (b *Barrier) RegisterError(message string) {
	b.Increment(false, message, nil)
}

// Results returns a copy of every successful task's produced output map,
// in the order they completed.
func (b *Barrier) Results() []map[string]value.Value {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]map[string]value.Value, len(b.results))
	copy(out, b.results)
	return out
}

// IsDone reports whether every expected task has checked in.
func (b *Barrier) IsDone() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

// Success reports whether no task has failed so far.
func (b *Barrier) Success() (bool, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.success, b.message
}

// Wait blocks until the barrier is done or ctx is cancelled, using a
// condition variable rather than polling. It returns (success, message,
// err): err is non-nil only when ctx was cancelled before completion.
func (b *Barrier) Wait(ctx context.Context) (bool, string, error) {
	done := make(chan struct{})
	go func() {
		b.mu.Lock()
		for !b.done {
			b.cond.Wait()
		}
		b.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		ok, msg := b.Success()
		return ok, msg, nil
	case <-ctx.Done():
		// Wake the waiting goroutine so it can exit; it will find b.done
		// eventually true and the done channel will still close, but we
		// don't wait for it.
		b.cond.Broadcast()
		return false, "", ctx.Err()
	}
}
