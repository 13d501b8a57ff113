package ocr

import (
	"runtime"
)

/*
Pool bounds how many native OCR calls run at once. OCR is a synchronous,
CPU/native-library-bound operation, so it must run off the request-handling
goroutine with a hard cap; otherwise one slow page stalls every unrelated
request behind it.

There is deliberately no cancellation or timeout here: an engine call is
non-cancelable once started, so callers needing bounded latency impose an
external timeout and let the call finish on its slot.
*/
type Pool struct {
	slots chan struct{}
}

// NewPool creates a pool with the given number of slots, defaulting to
// NumCPU when size <= 0.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{slots: make(chan struct{}, size)}
}

// Do runs fn on an acquired slot, blocking until one frees up.
func (p *Pool) Do(fn func()) {
	p.slots <- struct{}{}
	defer func() { <-p.slots }()
	fn()
}

// Size reports the slot count.
func (p *Pool) Size() int {
	return cap(p.slots)
}
