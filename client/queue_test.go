package client

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestOpQueue_HoldsUntilStart(t *testing.T) {
	var q opQueue

	ran := make(chan int, 3)
	for i := range 3 {
		q.add(func() { ran <- i })
	}

	select {
	case i := <-ran:
		t.Fatalf("op %d ran before start", i)
	case <-time.After(20 * time.Millisecond):
	}

	if !q.start() {
		t.Fatal("first start returned false")
	}
	if q.start() {
		t.Error("second start returned true")
	}

	var got []int
	for range 3 {
		select {
		case i := <-ran:
			got = append(got, i)
		case <-time.After(time.Second):
			t.Fatal("queued ops did not run")
		}
	}

	if diff := cmp.Diff([]int{0, 1, 2}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestOpQueue_AddAfterStart(t *testing.T) {
	var q opQueue

	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup

	record := func(i int) func() {
		wg.Add(1)
		return func() {
			defer wg.Done()
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}
	}

	q.add(record(0))
	q.add(record(1))
	q.start()
	for i := 2; i < 50; i++ {
		q.add(record(i))
	}
	wg.Wait()

	want := make([]int, 50)
	for i := range want {
		want[i] = i
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestOpQueue_SingleDrainer(t *testing.T) {
	var q opQueue
	q.start()

	var mu sync.Mutex
	active, peak := 0, 0
	var wg sync.WaitGroup

	for range 20 {
		wg.Add(1)
		go q.add(func() {
			defer wg.Done()
			mu.Lock()
			active++
			peak = max(peak, active)
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		})
	}
	wg.Wait()

	if peak != 1 {
		t.Errorf("ops ran concurrently, peak %d", peak)
	}
}
