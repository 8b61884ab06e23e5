package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func collect(t *testing.T) (func(error), func() error) {
	t.Helper()

	ch := make(chan error, 1)
	return func(err error) { ch <- err }, func() error {
		select {
		case err := <-ch:
			return err
		case <-time.After(time.Second):
			t.Fatal("finish was not called in time")
			return nil
		}
	}
}

func TestGroup_FinishReceivesResult(t *testing.T) {
	wantErr := errors.New("boom")
	g := newGroup(0, nil)

	finish, result := collect(t)
	g.start(t.Context(), func(ctx context.Context) error { return wantErr }, finish)

	if err := result(); !errors.Is(err, wantErr) {
		t.Errorf("expected %v, got %v", wantErr, err)
	}
}

func TestGroup_FinishOnCancelledContext(t *testing.T) {
	g := newGroup(1, nil)

	block := make(chan struct{})
	g.start(t.Context(), func(ctx context.Context) error {
		<-block
		return nil
	}, func(error) {})

	ctx, cancel := context.WithCancel(t.Context())
	finish, result := collect(t)

	var ran atomic.Bool
	g.start(ctx, func(ctx context.Context) error {
		ran.Store(true)
		return nil
	}, finish)

	cancel()
	if err := result(); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if ran.Load() {
		t.Error("work ran after its context was cancelled")
	}

	close(block)
	g.wait()
}

func TestGroup_Closed(t *testing.T) {
	g := newGroup(0, nil)
	g.close()

	finish, result := collect(t)
	g.start(t.Context(), func(ctx context.Context) error { return nil }, finish)

	if err := result(); !errors.Is(err, ErrSessionInvalidated) {
		t.Errorf("expected %v, got %v", ErrSessionInvalidated, err)
	}
}

func TestGroup_ConcurrencyLimit(t *testing.T) {
	const limit = 2
	const total = 5

	g := newGroup(limit, nil)

	var running atomic.Int32
	var maxRunning atomic.Int32
	barrier := make(chan struct{})

	for range total {
		g.start(t.Context(), func(ctx context.Context) error {
			cur := running.Add(1)
			for {
				old := maxRunning.Load()
				if cur <= old || maxRunning.CompareAndSwap(old, cur) {
					break
				}
			}
			<-barrier
			running.Add(-1)
			return nil
		}, func(error) {})
	}

	time.Sleep(50 * time.Millisecond)
	close(barrier)
	g.wait()

	if peak := maxRunning.Load(); peak > limit {
		t.Errorf("max concurrent was %d, want <= %d", peak, limit)
	}
}

func TestGroup_Idle(t *testing.T) {
	var idle atomic.Int32
	g := newGroup(0, func() { idle.Add(1) })

	var wg sync.WaitGroup
	wg.Add(3)
	release := make(chan struct{})
	for range 3 {
		g.start(t.Context(), func(ctx context.Context) error {
			wg.Done()
			<-release
			return nil
		}, func(error) {})
	}

	wg.Wait()
	if got := idle.Load(); got != 0 {
		t.Fatalf("idle fired %d times while work was running", got)
	}

	close(release)
	g.wait()

	// The idle callback runs after wg.Done in the deferred func.
	deadline := time.After(time.Second)
	for idle.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("idle was never called")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestGate(t *testing.T) {
	var g gate

	if err := g.wait(t.Context()); err != nil {
		t.Fatalf("open gate: unexpected error: %v", err)
	}

	g.close()
	done := make(chan error, 1)
	go func() { done <- g.wait(t.Context()) }()

	select {
	case <-done:
		t.Fatal("wait returned while the gate was closed")
	case <-time.After(20 * time.Millisecond):
	}

	g.open()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("wait did not return after open")
	}

	g.close()
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if err := g.wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
