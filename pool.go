package tessera

import (
	"errors"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

var ErrPoolClosed = errors.New("pool is shut down")

// Pool runs submitted tasks on a bounded number of goroutines.
type Pool struct {
	mu     sync.RWMutex
	group  errgroup.Group
	closed bool
}

func NewPool(size int) *Pool {
	p := &Pool{}
	p.group.SetLimit(size)
	return p
}

// Submit blocks until a worker is free and runs fn on it.
func (p *Pool) Submit(fn func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.group.Go(func() error {
		fn()
		return nil
	})
	return nil
}

// Shutdown stops accepting tasks and waits for the running ones.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.group.Wait()
}

// renderThreads is half the cores unless configured, never less than one.
func renderThreads(configured int) int {
	if configured > 0 {
		return configured
	}
	return max(runtime.NumCPU()/2, 1)
}

// ioThreads is a quarter of the cores unless configured, never less than one.
func ioThreads(configured int) int {
	if configured > 0 {
		return configured
	}
	return max(runtime.NumCPU()/4, 1)
}
