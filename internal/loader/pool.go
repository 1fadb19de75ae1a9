package loader

import (
	"errors"
	"runtime"
	"sync"
)

var (
	// ErrQueueFull is returned when the pool queue cannot take another job.
	ErrQueueFull = errors.New("loader: job queue is full")
	// ErrPoolStopped is returned when submitting to a stopped pool.
	ErrPoolStopped = errors.New("loader: worker pool stopped")
)

// Executor runs jobs off the owning goroutine.
type Executor interface {
	Submit(job func()) error
}

// PoolConfig contains configuration for the worker pool.
type PoolConfig struct {
	Workers   int // default 2 x GOMAXPROCS
	QueueSize int // default 1024
}

// WorkerPool is a fixed set of goroutines draining a bounded job queue.
type WorkerPool struct {
	queue    chan func()
	mu       sync.RWMutex
	stopped  bool
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// DefaultWorkers returns twice the available parallelism.
func DefaultWorkers() int {
	return 2 * runtime.GOMAXPROCS(0)
}

// NewWorkerPool creates a pool and starts its workers.
func NewWorkerPool(cfg PoolConfig) *WorkerPool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}

	p := &WorkerPool{queue: make(chan func(), cfg.QueueSize)}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit enqueues job without blocking.
func (p *WorkerPool) Submit(job func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for running jobs to return.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		close(p.queue)
		p.mu.Unlock()
		p.wg.Wait()
	})
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for job := range p.queue {
		job()
	}
}
