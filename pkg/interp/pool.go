package interp

import (
	"sync"

	"github.com/sakura-lang/sakura/pkg/queue"
)

// workerPool drains q with a fixed number of goroutines, handing each
// dequeued task to run. It is the one piece of the interpreter that owns
// long-lived goroutines; the nested-fan-out fallback (executeInline) starts
// short-lived goroutines of its own, one per child.
type workerPool struct {
	q    *queue.Queue
	run  func(queue.Task)
	size int
	wg   sync.WaitGroup
}

func newWorkerPool(q *queue.Queue, size int, run func(queue.Task)) *workerPool {
	return &workerPool{q: q, run: run, size: size}
}

// Start launches size worker goroutines, each looping Dequeue->run until
// the queue closes.
func (p *workerPool) Start() {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				task, ok := p.q.Dequeue()
				if !ok {
					return
				}
				p.run(task)
			}
		}()
	}
}

// Stop closes the queue and waits for every worker to drain and exit.
func (p *workerPool) Stop() {
	p.q.Close()
	p.wg.Wait()
}
