package chainindex

// accumulator buffers incoming records per partition key and emits a full
// Batch once a partition reaches the target size. Ready batches keep the
// order in which partitions filled. FlushIncomplete must be called before a
// checkpoint save and at stream end, otherwise trailing records are lost.
type accumulator struct {
	size    int
	buffers map[string][]Record
	ready   []*Batch
}

func newAccumulator(size int) *accumulator {
	return &accumulator{
		size:    size,
		buffers: map[string][]Record{},
	}
}

func (acc *accumulator) Add(record Record) {
	key := record.PartitionKey()
	buf := append(acc.buffers[key], record)
	if len(buf) >= acc.size {
		acc.ready = append(acc.ready, newBatch(key, buf))
		delete(acc.buffers, key)
	} else {
		acc.buffers[key] = buf
	}
}

func (acc *accumulator) HasReadyBatch() bool {
	return len(acc.ready) > 0
}

//Pop next ready batch in fill order
func (acc *accumulator) Pop() *Batch {
	if len(acc.ready) == 0 {
		return nil
	}
	batch := acc.ready[0]
	acc.ready = acc.ready[1:]
	return batch
}

//FlushIncomplete move every non-empty under-sized buffer into the ready queue
func (acc *accumulator) FlushIncomplete() {
	for key, buf := range acc.buffers {
		if len(buf) > 0 {
			acc.ready = append(acc.ready, newBatch(key, buf))
		}
		delete(acc.buffers, key)
	}
}
