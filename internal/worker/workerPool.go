package worker

import (
	"sync"
)

type Task interface {
	Execute()
}

// Pool runs ops-notification tasks off the request path. Bounded queue: if
// the staff chats back up, Exec blocks rather than growing without limit.
type Pool struct {
	mu    sync.Mutex
	size  int
	tasks chan Task
	kill  chan struct{}
	wg    sync.WaitGroup
}

func NewPool(workers int, queue int) *Pool {
	if workers < 1 {
		workers = 1
	}
	pool := &Pool{
		tasks: make(chan Task, queue),
		kill:  make(chan struct{}),
	}
	pool.Resize(workers)
	return pool
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			task.Execute()
		case <-p.kill:
			return
		}
	}
}

func (p *Pool) Resize(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.size < n {
		p.size++
		p.wg.Add(1)
		go p.worker()
	}
	for p.size > n {
		p.size--
		p.kill <- struct{}{}
	}
}

// Close stops accepting tasks; queued ones still drain.
func (p *Pool) Close() {
	close(p.tasks)
}

func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) Exec(task Task) {
	p.tasks <- task
}
