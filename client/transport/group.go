package transport

import (
	"context"
	"sync"
	"sync/atomic"
)

// workFunc is the body of a task run.
type workFunc func(ctx context.Context) error

// group runs task bodies on their own goroutines with an optional
// concurrency limit.
type group struct {
	wg       sync.WaitGroup
	sem      chan struct{}
	shutdown atomic.Bool
	active   atomic.Int64
	idle     func()
}

// newGroup creates a group with the given concurrency limit.
// If maxConcurrent <= 0, concurrency is unlimited.
func newGroup(maxConcurrent int, idle func()) *group {
	g := &group{idle: idle}
	if maxConcurrent > 0 {
		g.sem = make(chan struct{}, maxConcurrent)
	}
	return g
}

// start launches fn and always calls finish with its result, even when
// fn never ran because ctx ended or the group was shut down.
func (g *group) start(ctx context.Context, fn workFunc, finish func(error)) {
	g.wg.Add(1)
	g.active.Add(1)

	go func() {
		defer func() {
			g.wg.Done()
			if g.active.Add(-1) == 0 && g.idle != nil {
				g.idle()
			}
		}()

		finish(g.run(ctx, fn))
	}()
}

func (g *group) run(ctx context.Context, fn workFunc) error {
	if g.sem != nil {
		select {
		case g.sem <- struct{}{}:
			defer func() {
				<-g.sem
			}()
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if g.shutdown.Load() {
		return ErrSessionInvalidated
	}

	return fn(ctx)
}

// wait blocks until every started fn has finished.
func (g *group) wait() {
	g.wg.Wait()
}

// close prevents queued work from running.
func (g *group) close() {
	g.shutdown.Store(true)
}
