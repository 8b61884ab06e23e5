package transport

import (
	"context"
	"sync"
)

// gate pauses a body transfer between chunks while a task is suspended.
type gate struct {
	mu     sync.Mutex
	closed bool
	ch     chan struct{}
}

func (g *gate) close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.closed {
		g.closed = true
		g.ch = make(chan struct{})
	}
}

func (g *gate) open() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		g.closed = false
		close(g.ch)
	}
}

// wait blocks while the gate is closed. It fails once ctx is done,
// whether or not the gate is open.
func (g *gate) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	if !g.closed {
		g.mu.Unlock()
		return nil
	}
	ch := g.ch
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
