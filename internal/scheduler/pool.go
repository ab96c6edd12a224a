package scheduler

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Pool is the global, cross-execution bound on concurrently running
// node workers (§5 "worker pool is a bounded shared resource; admission
// is FIFO by submission time"). It layers golang.org/x/sync/errgroup
// (for goroutine lifecycle + first-error aggregation across the whole
// pool's lifetime) over a buffered-channel ticket queue (FIFO by Go
// channel semantics, the same semaphore idiom the teacher's
// branchExecutionCoordinator uses for its per-execution cap) for
// admission control.
type Pool struct {
	tickets chan struct{}
	group   *errgroup.Group
	ctx     context.Context
}

// NewPool creates a pool bound to size concurrent goroutines for the
// lifetime of ctx (typically the process's root context). Call Wait at
// shutdown to drain in-flight workers and collect the first error.
func NewPool(ctx context.Context, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	return &Pool{tickets: make(chan struct{}, size), group: g, ctx: gctx}
}

// Go blocks until a pool slot is free or callerCtx is cancelled, then
// runs fn in the pool's errgroup under a context that is cancelled when
// either callerCtx (the owning execution, per §4.10 "workers are
// cancellation-aware") or the pool's own root context (process
// shutdown) is done. Returns immediately once fn is scheduled; callers
// awaiting fn's outcome use their own signaling (the Scheduler's
// per-execution completion channel) rather than Pool.Wait, which is
// reserved for graceful-shutdown draining.
func (p *Pool) Go(callerCtx context.Context, fn func(context.Context) error) error {
	select {
	case p.tickets <- struct{}{}:
	case <-callerCtx.Done():
		return callerCtx.Err()
	}

	workCtx, cancel := context.WithCancel(callerCtx)
	p.group.Go(func() error {
		defer func() { <-p.tickets }()
		defer cancel()
		go func() {
			select {
			case <-p.ctx.Done():
				cancel()
			case <-workCtx.Done():
			}
		}()
		return fn(workCtx)
	})
	return nil
}

// Wait blocks until every scheduled worker has returned, returning the
// first non-nil error. Used during graceful shutdown.
func (p *Pool) Wait() error {
	return p.group.Wait()
}
