// Package sched implements the linker's parallel phase scheduler: a
// work-stealing-flavored task group whose Wait() acts as the global
// barrier between phases, as described in spec.md §5 ("Scheduling
// model"). It is a thin wrapper over golang.org/x/sync/errgroup plus a
// golang.org/x/sync/semaphore to cap in-flight goroutines at the
// configured thread count, since errgroup alone has no concurrency cap.
package sched

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Group runs CPU-bound, non-blocking tasks with bounded parallelism and
// collects the first error, matching spec §5's "tasks are CPU-bound and
// run to completion" / "no ordering guarantees within a phase."
type Group struct {
	eg  *errgroup.Group
	sem *semaphore.Weighted
	ctx context.Context
}

// NewGroup creates a phase task group capped at n concurrent tasks. n<=0
// defaults to runtime.GOMAXPROCS(0), mirroring the default thread count
// in spec §5 ("default = hardware parallelism").
func NewGroup(n int) *Group {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	ctx := context.Background()
	return &Group{
		eg:  new(errgroup.Group),
		sem: semaphore.NewWeighted(int64(n)),
		ctx: ctx,
	}
}

// Go schedules fn to run, blocking only long enough to acquire a
// concurrency slot. Never call Go after Wait has returned.
func (g *Group) Go(fn func() error) {
	if err := g.sem.Acquire(g.ctx, 1); err != nil {
		// Only fails if ctx is canceled, which this package never does;
		// schedule fn without a slot rather than silently drop work.
		g.eg.Go(fn)
		return
	}
	g.eg.Go(func() error {
		defer g.sem.Release(1)
		return fn()
	})
}

// Wait blocks until every scheduled task has retired — the phase
// barrier — and returns the first error encountered, if any.
func (g *Group) Wait() error {
	return g.eg.Wait()
}

// Parallel runs fn(i) for i in [0, n) under a fresh Group capped at
// threads, and waits for all of them. This is the common case used by
// every "in parallel across all objects" step in the spec (§4.2, §4.3,
// §4.5, §4.6, §4.8).
func Parallel(threads, n int, fn func(i int) error) error {
	g := NewGroup(threads)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error { return fn(i) })
	}
	return g.Wait()
}

// Slices splits [0, n) into chunks of at most size elements, returning
// the [start, end) bounds of each slice. Used by the §4.5 section
// binner.
func Slices(n, size int) [][2]int {
	if size <= 0 {
		size = n
	}
	var out [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	if len(out) == 0 {
		out = append(out, [2]int{0, 0})
	}
	return out
}
