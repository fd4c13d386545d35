package chainindex

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bmizerany/assert"
	"github.com/chararch/chainindex/status"
)

//block source replaying prepared record sets
type fakeSource struct {
	mu     sync.Mutex
	blocks [][]Record
	pos    int
	saveAt map[int]bool
	saves  int
	onSave func()
}

func (s *fakeSource) Next(ctx context.Context) (interface{}, BatchError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.blocks) {
		return nil, nil
	}
	block := s.blocks[s.pos]
	s.pos++
	return block, nil
}

func (s *fakeSource) ShouldSave() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveAt[s.pos]
}

func (s *fakeSource) SaveCheckpoint(ctx context.Context) BatchError {
	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	if s.onSave != nil {
		s.onSave()
	}
	return nil
}

func (s *fakeSource) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

//transformer passing prepared records through
type identityTransformer struct {
}

func (t *identityTransformer) Transform(block interface{}) ([]Record, BatchError) {
	return block.([]Record), nil
}

func fastImporter(name string, store Store) *importerBuilder {
	return NewImporter(name, store).
		Transformer(&identityTransformer{}).
		DeferUnit(time.Millisecond).
		Retry(1, time.Millisecond, time.Millisecond, 0)
}

func TestImporter_IndexStream(t *testing.T) {
	store := newFakeStore()
	source := &fakeSource{blocks: [][]Record{makeRecords("a", 150), makeRecords("b", 100)}}
	rowsAtSave := -1
	source.onSave = func() {
		rowsAtSave = store.rowCount()
	}
	imp := fastImporter("stream", store).PartitionSize(100).Build()
	err := imp.Index(context.Background(), source)
	assert.Equal(t, nil, err)
	assert.Equal(t, int64(250), imp.IndexedCount())
	assert.Equal(t, 250, store.rowCount())
	assert.Equal(t, status.COMPLETED, imp.Status())

	sizes := store.committedSizes()
	sort.Ints(sizes)
	assert.Equal(t, []int{50, 100, 100}, sizes)

	//the final checkpoint only happens after everything drained
	assert.Equal(t, 1, source.saveCount())
	assert.Equal(t, 250, rowsAtSave)
}

func TestImporter_CheckpointMidStream(t *testing.T) {
	store := newFakeStore()
	blocks := make([][]Record, 0, 10)
	for i := 0; i < 10; i++ {
		blocks = append(blocks, makeRecordsFrom("p", i*10, 10))
	}
	//save point after the fifth block was pulled, before it is processed
	source := &fakeSource{blocks: blocks, saveAt: map[int]bool{6: true}}
	rowsAtSave := []int{}
	source.onSave = func() {
		rowsAtSave = append(rowsAtSave, store.rowCount())
	}
	imp := fastImporter("checkpointed", store).PartitionSize(25).Build()
	err := imp.Index(context.Background(), source)
	assert.Equal(t, nil, err)
	assert.Equal(t, int64(100), imp.IndexedCount())
	assert.Equal(t, 2, source.saveCount())
	//first save covers blocks 0..4, the final one everything
	assert.Equal(t, []int{50, 100}, rowsAtSave)
}

func TestImporter_IgnoreCheckpoint(t *testing.T) {
	store := newFakeStore()
	source := &fakeSource{
		blocks: [][]Record{makeRecords("a", 30), makeRecords("b", 30)},
		saveAt: map[int]bool{1: true, 2: true},
	}
	imp := fastImporter("fresh", store).PartitionSize(10).IgnoreCheckpoint(true).Build()
	err := imp.Index(context.Background(), source)
	assert.Equal(t, nil, err)
	assert.Equal(t, int64(60), imp.IndexedCount())
	assert.Equal(t, 0, source.saveCount())
}

func TestImporter_FatalAborts(t *testing.T) {
	store := newFakeStore()
	failure := NewBatchError(ErrCodeDbFail, "store down")
	store.failFn = func(partitionKey string, records []Record) BatchError {
		return failure
	}
	source := &fakeSource{blocks: [][]Record{makeRecords("a", 100)}}
	imp := fastImporter("doomed", store).PartitionSize(100).Build()
	err := imp.Index(context.Background(), source)
	//the original backend error surfaces verbatim
	assert.Equal(t, failure, err)
	assert.Equal(t, int64(0), imp.IndexedCount())
	assert.Equal(t, status.ABORTED, imp.Status())
	assert.T(t, imp.Status().Terminal())
	assert.Equal(t, 0, source.saveCount())
}

func TestImporter_IndexCollection(t *testing.T) {
	store := newFakeStore()
	records := make([]Record, 0, 600)
	for _, key := range []string{"p0", "p1", "p2", "p3", "p4"} {
		records = append(records, makeRecords(key, 120)...)
	}
	imp := NewImporter("collection", store).PartitionSize(100).Build()
	err := imp.IndexCollection(context.Background(), records)
	assert.Equal(t, nil, err)
	assert.Equal(t, int64(600), imp.IndexedCount())
	assert.Equal(t, status.COMPLETED, imp.Status())

	//two chunks per partition key
	sizes := store.committedSizes()
	assert.Equal(t, 10, len(sizes))
	sort.Ints(sizes)
	assert.Equal(t, []int{20, 20, 20, 20, 20, 100, 100, 100, 100, 100}, sizes)
}

func TestImporter_IndexCollectionFailure(t *testing.T) {
	store := newFakeStore()
	failure := NewBatchError(ErrCodeDbFail, "p3 partition unavailable")
	store.failFn = func(partitionKey string, records []Record) BatchError {
		if partitionKey == "p3" {
			return failure
		}
		return nil
	}
	records := make([]Record, 0, 250)
	for _, key := range []string{"p1", "p2", "p3", "p4", "p5"} {
		records = append(records, makeRecords(key, 50)...)
	}
	imp := NewImporter("collection_fail", store).PartitionSize(100).DeferUnit(time.Millisecond).Build()
	err := imp.IndexCollection(context.Background(), records)
	assert.Equal(t, failure, err)
	assert.Equal(t, status.ABORTED, imp.Status())
}

func TestImporter_ReleasedPoolAborts(t *testing.T) {
	store := newFakeStore()
	source := &fakeSource{blocks: [][]Record{makeRecords("a", 20)}}
	imp := fastImporter("released", store).PartitionSize(10).Build()
	pool := newTaskPool(1)
	pool.Release()
	imp.pool = pool
	//a rejected dispatch must resolve its throttle slot, not hang the drain
	err := imp.Index(context.Background(), source)
	assert.NotEqual(t, nil, err)
	assert.Equal(t, status.ABORTED, imp.Status())
	assert.Equal(t, 0, store.writeCount())
}

func TestImporter_ConcurrentRunRejected(t *testing.T) {
	imp := NewImporter("busy", newFakeStore()).Build()
	imp.setStatus(status.RUNNING)
	err := imp.IndexCollection(context.Background(), makeRecords("p", 10))
	assert.Equal(t, ErrCodeConcurrency, ErrCode(err))
}

func TestImporter_RunsAgainAfterCompletion(t *testing.T) {
	store := newFakeStore()
	imp := NewImporter("rerun", store).PartitionSize(10).Build()
	assert.Equal(t, nil, imp.IndexCollection(context.Background(), makeRecords("p", 30)))
	assert.Equal(t, int64(30), imp.IndexedCount())
	//idempotent replace, a re-run does not double the store
	assert.Equal(t, nil, imp.IndexCollection(context.Background(), makeRecords("p", 30)))
	assert.Equal(t, int64(30), imp.IndexedCount())
	assert.Equal(t, 30, store.rowCount())
}
