// Package pipeline runs the generate, batch, upload and cleanup stages.
//
// Three tiers of bounded concurrency cooperate: an outer tier of
// (date, chunk) tasks, a write Pool shared by every task, and an upload
// Pool shared by every batch. Pools are created once per run and never per
// task, so the goroutine count is bounded independently of the number of
// tasks.
package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool runs jobs with at most size of them in flight.
type Pool struct {
	name string
	size int
	sem  *semaphore.Weighted
	wg   sync.WaitGroup
}

// NewPool creates a pool that runs at most size jobs concurrently.
func NewPool(name string, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		name: name,
		size: size,
		sem:  semaphore.NewWeighted(int64(size)),
	}
}

// Name returns the pool name used in logs.
func (p *Pool) Name() string { return p.name }

// Size returns the concurrency bound.
func (p *Pool) Size() int { return p.size }

// Submit blocks until a slot is free, then runs job on its own goroutine and
// returns a Handle that resolves with job's result. Callers queue on Submit
// while the pool is saturated. An error is returned only when ctx ends
// before a slot frees up; job has not run in that case.
func (p *Pool) Submit(ctx context.Context, job func() error) (*Handle, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	h := newHandle()
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		h.resolve(job())
	}()
	return h, nil
}

// Wait blocks until every submitted job has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Handle is the eventual result of one pool job.
type Handle struct {
	done chan struct{}
	err  error
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// Resolved returns a Handle that is already complete with err.
func Resolved(err error) *Handle {
	h := newHandle()
	h.resolve(err)
	return h
}

func (h *Handle) resolve(err error) {
	h.err = err
	close(h.done)
}

// Done is closed when the job has finished.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the job finishes and returns its error.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}
