package chainindex

import (
	"context"
	"fmt"
	"sync"
)

//test record
type testRecord struct {
	partition string
	key       string
	payload   []byte
}

func (r *testRecord) PartitionKey() string {
	return r.partition
}

func (r *testRecord) RowKey() string {
	return r.key
}

func (r *testRecord) Value() []byte {
	return r.payload
}

func makeRecords(partition string, count int) []Record {
	return makeRecordsFrom(partition, 0, count)
}

func makeRecordsFrom(partition string, start, count int) []Record {
	records := make([]Record, 0, count)
	for i := start; i < start+count; i++ {
		records = append(records, &testRecord{
			partition: partition,
			key:       fmt.Sprintf("%v-%v", partition, i),
			payload:   []byte(fmt.Sprintf(`{"n":%v}`, i)),
		})
	}
	return records
}

//in-memory store with a pluggable failure hook
type fakeStore struct {
	mu         sync.Mutex
	rows       map[string]map[string][]byte
	writes     int
	batchSizes []int
	commitKeys []string
	failFn     func(partitionKey string, records []Record) BatchError
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]map[string][]byte{}}
}

func (s *fakeStore) Write(ctx context.Context, partitionKey string, records []Record) BatchError {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.failFn != nil {
		if err := s.failFn(partitionKey, records); err != nil {
			return err
		}
	}
	partition := s.rows[partitionKey]
	if partition == nil {
		partition = map[string][]byte{}
		s.rows[partitionKey] = partition
	}
	for _, record := range records {
		partition[record.RowKey()] = record.Value()
		s.commitKeys = append(s.commitKeys, record.RowKey())
	}
	s.batchSizes = append(s.batchSizes, len(records))
	return nil
}

func (s *fakeStore) WriteOne(ctx context.Context, partitionKey string, record Record) BatchError {
	return s.Write(ctx, partitionKey, []Record{record})
}

func (s *fakeStore) rowCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, partition := range s.rows {
		count += len(partition)
	}
	return count
}

func (s *fakeStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *fakeStore) committedSizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	sizes := make([]int, len(s.batchSizes))
	copy(sizes, s.batchSizes)
	return sizes
}

func (s *fakeStore) committedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, len(s.commitKeys))
	copy(keys, s.commitKeys)
	return keys
}
