package client

import "sync"

// opQueue runs queued functions in order on a single goroutine. It holds
// everything until start is called; functions added afterwards run in
// order after those already queued.
type opQueue struct {
	mu      sync.Mutex
	items   []func()
	started bool
	running bool
}

func (q *opQueue) add(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, fn)
	q.kick()
}

// start unblocks the queue. Calls after the first do nothing.
func (q *opQueue) start() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return false
	}
	q.started = true
	q.kick()

	return true
}

// kick launches the drainer if there is work and none is running.
// q.mu must be held.
func (q *opQueue) kick() {
	if !q.started || q.running || len(q.items) == 0 {
		return
	}
	q.running = true
	go q.drain()
}

func (q *opQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		fn := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.mu.Unlock()

		fn()
	}
}
