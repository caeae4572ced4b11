package scheduler

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned by Run after the Pool has been closed.
var ErrClosed = errors.New("worker pool is closed")

// Pool is a fixed set of worker goroutines. Each call to Run hands every
// worker the same function and blocks until all of them have returned.
type Pool struct {
	g     errgroup.Group
	tasks []chan func(worker int) error
	errs  []error
	wg    sync.WaitGroup

	// Held for the duration of Run and Close.
	mx     sync.Mutex
	closed bool
}

// NewPool starts n workers. Close must be called to stop them.
func NewPool(n int) *Pool {
	if n < 1 {
		n = 1
	}

	p := &Pool{
		tasks: make([]chan func(int) error, n),
		errs:  make([]error, n),
	}

	for i := range p.tasks {
		worker := i
		tasks := make(chan func(int) error)
		p.tasks[i] = tasks
		p.g.Go(func() error {
			for fn := range tasks {
				p.errs[worker] = safeCall(fn, worker)
				p.wg.Done()
			}

			return nil
		})
	}

	return p
}

func (p *Pool) NumWorkers() int {
	return len(p.tasks)
}

// Run calls fn(worker) on every worker concurrently and waits for all of
// them to finish. If any call fails, the error of the lowest numbered
// failing worker is returned. Concurrent calls are serialized.
func (p *Pool) Run(fn func(worker int) error) error {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.closed {
		return ErrClosed
	}

	p.wg.Add(len(p.tasks))
	for _, tasks := range p.tasks {
		tasks <- fn
	}

	p.wg.Wait()
	for i, err := range p.errs {
		if err != nil {
			for j := range p.errs {
				p.errs[j] = nil
			}

			return errors.Wrapf(err, "worker %d", i)
		}
	}

	return nil
}

// Close stops all workers and waits for them to exit. Closing a closed
// Pool does nothing.
func (p *Pool) Close() error {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.closed {
		return nil
	}

	p.closed = true
	for _, tasks := range p.tasks {
		close(tasks)
	}

	return p.g.Wait()
}

// safeCall converts a panic in fn into an error.
func safeCall(fn func(int) error, worker int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()

	return fn(worker)
}
