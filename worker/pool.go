// Package worker provides the bounded execution lanes for handler
// work — fixed-size goroutine pools fed by a task channel. The engine
// runs two pools: a general-purpose lane for non-blocking handlers and
// a dedicated lane for blocking I/O, so slow I/O cannot starve cheap
// handlers.
package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/xraph/herald"
)

// Task is a unit of handler work scheduled onto a pool.
type Task func()

// Pool is a fixed-size worker pool. Tasks submitted to a running pool
// execute on one of its goroutines in submission order (single FIFO
// channel). Completion order is not guaranteed across workers.
type Pool struct {
	name   string
	size   int
	depth  int
	logger *slog.Logger

	tasks  chan Task
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
	stopped bool
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithQueueDepth sets the task queue buffer. Defaults to the pool size.
func WithQueueDepth(n int) PoolOption {
	return func(p *Pool) { p.depth = n }
}

// WithLogger sets the pool's logger.
func WithLogger(l *slog.Logger) PoolOption {
	return func(p *Pool) { p.logger = l }
}

// NewPool creates a pool with the given name (for logs) and worker
// count. Size values below one are clamped to one.
func NewPool(name string, size int, opts ...PoolOption) *Pool {
	if size < 1 {
		size = 1
	}

	p := &Pool{
		name:   name,
		size:   size,
		depth:  size,
		logger: slog.Default(),
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.tasks = make(chan Task, p.depth)
	return p
}

// Name returns the pool name.
func (p *Pool) Name() string { return p.name }

// Size returns the number of worker goroutines.
func (p *Pool) Size() int { return p.size }

// Start launches the worker goroutines. It returns immediately and is
// idempotent while running.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	if p.stopped {
		return herald.ErrPoolStopped
	}
	p.running = true

	p.logger.Info("worker pool starting",
		slog.String("pool", p.name),
		slog.Int("size", p.size),
	)

	for range p.size {
		p.wg.Add(1)
		go p.run()
	}

	return nil
}

// Submit schedules a task. It blocks while the queue is full, until a
// slot frees, the context is cancelled, or the pool stops.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case <-p.stopCh:
		return herald.ErrPoolStopped
	default:
	}

	select {
	case p.tasks <- task:
		return nil
	case <-p.stopCh:
		return herald.ErrPoolStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop signals workers to stop and waits for in-flight and queued tasks
// to finish. If the context expires first, Stop returns without waiting
// further; workers still drain in the background.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.stopped = true
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.stopped = true
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("pool", p.name))

	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully", slog.String("pool", p.name))
		return nil
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out", slog.String("pool", p.name))
		return ctx.Err()
	}
}

// run is the loop executed by each worker goroutine. On stop it drains
// any queued tasks before exiting so submitted work is never dropped.
func (p *Pool) run() {
	defer p.wg.Done()

	for {
		select {
		case task := <-p.tasks:
			task()
		case <-p.stopCh:
			for {
				select {
				case task := <-p.tasks:
					task()
				default:
					return
				}
			}
		}
	}
}
