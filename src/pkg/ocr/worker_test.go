package ocr

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

func TestNewPoolDefaultsToNumCPU(t *testing.T) {
	if got := NewPool(0).Size(); got != runtime.NumCPU() {
		t.Errorf("Size() = %d, want NumCPU %d", got, runtime.NumCPU())
	}
	if got := NewPool(-3).Size(); got != runtime.NumCPU() {
		t.Errorf("Size() = %d, want NumCPU %d", got, runtime.NumCPU())
	}
	if got := NewPool(4).Size(); got != 4 {
		t.Errorf("Size() = %d, want 4", got)
	}
}

// The pool must never let more than Size callbacks run at once.
func TestPoolBoundsConcurrency(t *testing.T) {
	const slots = 3
	pool := NewPool(slots)

	var running, peak atomic.Int64
	gate := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Do(func() {
				now := running.Add(1)
				for {
					seen := peak.Load()
					if now <= seen || peak.CompareAndSwap(seen, now) {
						break
					}
				}
				<-gate
				running.Add(-1)
			})
		}()
	}

	// Release everyone and let the pool drain.
	close(gate)
	wg.Wait()

	if got := peak.Load(); got > slots {
		t.Errorf("peak concurrency = %d, want <= %d", got, slots)
	}
}

func TestPoolDoRunsFunction(t *testing.T) {
	pool := NewPool(1)
	ran := false
	pool.Do(func() { ran = true })
	if !ran {
		t.Error("Do did not run the function")
	}
}
