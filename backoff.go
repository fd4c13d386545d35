package chainindex

import (
	"context"
	"math/rand"
	"time"
)

// retryPolicy retries an operation with exponentially growing, capped and
// jittered delays, then surfaces the last failure unchanged. It wraps whole
// batch dispatches at the importer level and is independent from the linear
// per-batch wait applied inside the batch writer.
type retryPolicy struct {
	maxAttempts int
	minDelay    time.Duration
	maxDelay    time.Duration
	jitter      time.Duration
}

const (
	DefaultRetryAttempts = 3
	DefaultRetryMinDelay = 100 * time.Millisecond
	DefaultRetryMaxDelay = 10 * time.Second
	DefaultRetryJitter   = 100 * time.Millisecond
)

func newRetryPolicy(maxAttempts int, minDelay, maxDelay, jitter time.Duration) *retryPolicy {
	if maxAttempts < 1 {
		panic("retry attempts must be positive")
	}
	return &retryPolicy{
		maxAttempts: maxAttempts,
		minDelay:    minDelay,
		maxDelay:    maxDelay,
		jitter:      jitter,
	}
}

func (p *retryPolicy) execute(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if attempt == p.maxAttempts-1 {
			break
		}
		delay := p.delay(attempt)
		logger.Warn(ctx, "operation failed, attempt:%v, wait:%v, err:%v", attempt+1, delay, err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return err
		}
	}
	return err
}

func (p *retryPolicy) delay(attempt int) time.Duration {
	delay := p.minDelay << uint(attempt)
	if delay > p.maxDelay || delay <= 0 {
		delay = p.maxDelay
	}
	if p.jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(p.jitter)))
	}
	return delay
}
