package chainindex

import (
	"sync"
)

// throttle bounds in-flight batch dispatches with a running-work counter.
// Dispatching suspends above the high-water mark until the counter drains to
// the low-water mark. The first fatal error of any in-flight dispatch is
// captured exactly once, later ones are dropped.
type throttle struct {
	mu      sync.Mutex
	cond    *sync.Cond
	running int
	high    int
	low     int
	fatal   error
}

func newThrottle(high, low int) *throttle {
	if high < 1 || low < 0 || low > high {
		panic("invalid water marks")
	}
	t := &throttle{high: high, low: low}
	t.cond = sync.NewCond(&t.mu)
	return t
}

//incr account one dispatched batch
func (t *throttle) incr() {
	t.mu.Lock()
	t.running++
	t.mu.Unlock()
}

//done account one resolved batch and capture its fatal error if it is the first
func (t *throttle) done(err error) {
	t.mu.Lock()
	if t.running > 0 {
		t.running--
	}
	if err != nil && t.fatal == nil {
		t.fatal = err
	}
	t.cond.Broadcast()
	t.mu.Unlock()
}

//waitCapacity suspend while the counter is above the high-water mark, resume
//once it has drained to the low-water mark
func (t *throttle) waitCapacity() {
	t.mu.Lock()
	if t.running > t.high {
		for t.running > t.low {
			t.cond.Wait()
		}
	}
	t.mu.Unlock()
}

//drain suspend until every dispatched batch has resolved
func (t *throttle) drain() {
	t.mu.Lock()
	for t.running > 0 {
		t.cond.Wait()
	}
	t.mu.Unlock()
}

func (t *throttle) fatalErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fatal
}

func (t *throttle) runningCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
