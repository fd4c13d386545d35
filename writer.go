package chainindex

import (
	"context"
	"sync/atomic"
	"time"
)

// batchWriter executes one partition's batch against the store and resolves
// failures locally: a rejected payload is split in half, an oversized record
// is dropped, anything else is requeued after a linearly growing wait until
// the failure budget runs out. Only a fatal error escapes Dispatch.
type batchWriter struct {
	store     Store
	deferUnit time.Duration
	indexed   *int64
	listeners []ImportListener
}

func newBatchWriter(store Store, deferUnit time.Duration, indexed *int64, listeners []ImportListener) *batchWriter {
	return &batchWriter{
		store:     store,
		deferUnit: deferUnit,
		indexed:   indexed,
		listeners: listeners,
	}
}

//Dispatch work the batch and everything derived from it to a terminal outcome
func (w *batchWriter) Dispatch(ctx context.Context, batch *Batch) error {
	queue := []*Batch{batch}
	failures := 0
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		if b.Size() == 0 {
			continue
		}
		err := w.write(ctx, b)
		if err == nil {
			atomic.AddInt64(w.indexed, int64(b.Size()))
			if failures > 0 {
				failures = 0
				logger.Info(ctx, "batch committed after retries, partition:%v, size:%v", b.Key, b.Size())
				for _, listener := range w.listeners {
					listener.OnRetrySuccess(b)
				}
			}
			continue
		}
		for _, listener := range w.listeners {
			listener.OnBatchFail(b, err)
		}
		v, index := classify(err)
		if v == verdictSplit && b.Size() > 1 {
			lower, upper := b.split()
			logger.Warn(ctx, "batch payload too large, split, partition:%v, sizes:%v+%v", b.Key, lower.Size(), upper.Size())
			queue = append(queue, lower, upper)
			continue
		}
		if v == verdictTrim && index < b.Size() {
			dropped := b.Records[index]
			b.trim(index)
			logger.Warn(ctx, "record too large, dropped, partition:%v, rowKey:%v, payload:%v bytes", b.Key, dropped.RowKey(), len(dropped.Value()))
			queue = append(queue, b)
			continue
		}
		// transient, or a malformed too-large error we cannot act on
		failures++
		if failures > maxConsecutiveFailures {
			logger.Error(ctx, "batch failed %v times, giving up, partition:%v, size:%v, err:%v", failures, b.Key, b.Size(), err)
			return err
		}
		wait := time.Duration(failures) * w.deferUnit
		logger.Warn(ctx, "batch write failed, requeue after %v, partition:%v, failures:%v, err:%v", wait, b.Key, failures, err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return err
		}
		queue = append(queue, b)
	}
	return nil
}

//write singleton batches skip the batch protocol
func (w *batchWriter) write(ctx context.Context, b *Batch) BatchError {
	if b.Size() == 1 {
		return w.store.WriteOne(ctx, b.Key, b.Records[0])
	}
	return w.store.Write(ctx, b.Key, b.Records)
}
