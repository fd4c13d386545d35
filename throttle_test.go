package chainindex

import (
	"sync"
	"testing"
	"time"

	"github.com/bmizerany/assert"
	"github.com/pkg/errors"
)

func TestThrottle_CounterNeverNegative(t *testing.T) {
	thr := newThrottle(10, 5)
	thr.done(nil)
	assert.Equal(t, 0, thr.runningCount())
	thr.incr()
	thr.done(nil)
	thr.done(nil)
	assert.Equal(t, 0, thr.runningCount())
}

func TestThrottle_FirstFatalWins(t *testing.T) {
	thr := newThrottle(10, 5)
	first := errors.New("first")
	second := errors.New("second")
	thr.incr()
	thr.incr()
	thr.done(first)
	thr.done(second)
	assert.Equal(t, first, thr.fatalErr())
}

func TestThrottle_RacingFatals(t *testing.T) {
	thr := newThrottle(100, 50)
	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := 0; i < 20; i++ {
		errs[i] = errors.Errorf("fatal-%v", i)
		thr.incr()
	}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(err error) {
			defer wg.Done()
			thr.done(err)
		}(errs[i])
	}
	wg.Wait()
	//exactly one of the racing errors is retained
	captured := thr.fatalErr()
	found := false
	for _, err := range errs {
		if captured == err {
			found = true
		}
	}
	assert.Equal(t, true, found)
	assert.Equal(t, 0, thr.runningCount())
}

func TestThrottle_WaitCapacity(t *testing.T) {
	thr := newThrottle(4, 2)
	for i := 0; i < 5; i++ {
		thr.incr()
	}
	resumed := make(chan struct{})
	go func() {
		thr.waitCapacity()
		close(resumed)
	}()
	time.Sleep(20 * time.Millisecond)
	select {
	case <-resumed:
		t.Fatal("resumed above low-water mark")
	default:
	}
	thr.done(nil)
	thr.done(nil)
	time.Sleep(20 * time.Millisecond)
	select {
	case <-resumed:
		t.Fatal("resumed above low-water mark")
	default:
	}
	//drops to the low-water mark of 2
	thr.done(nil)
	select {
	case <-resumed:
	case <-time.After(time.Second):
		t.Fatal("dispatch did not resume at low-water mark")
	}
}

func TestThrottle_WaitCapacityBelowHighWater(t *testing.T) {
	thr := newThrottle(4, 2)
	for i := 0; i < 4; i++ {
		thr.incr()
	}
	//at the high-water mark dispatch is still allowed
	done := make(chan struct{})
	go func() {
		thr.waitCapacity()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waitCapacity blocked below high-water mark")
	}
}

func TestThrottle_Drain(t *testing.T) {
	thr := newThrottle(10, 5)
	for i := 0; i < 3; i++ {
		thr.incr()
	}
	drained := make(chan struct{})
	go func() {
		thr.drain()
		close(drained)
	}()
	thr.done(nil)
	thr.done(nil)
	select {
	case <-drained:
		t.Fatal("drained with work in flight")
	case <-time.After(20 * time.Millisecond):
	}
	thr.done(nil)
	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("drain did not finish")
	}
	assert.Equal(t, 0, thr.runningCount())
}
