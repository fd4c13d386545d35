package chainindex

// Record is one unit to persist into the store. Records carrying the same
// partition key are written together; RowKey must be stable across retries so
// that a replayed write replaces the earlier row instead of appending.
type Record interface {
	//PartitionKey scope of the physical batch the record belongs to
	PartitionKey() string
	//RowKey identity of the record within its partition
	RowKey() string
	//Value serialized payload of the record
	Value() []byte
}

// Batch an ordered set of pending writes sharing one partition key. A batch
// may shrink while error handling splits or trims it, it never grows.
type Batch struct {
	Key     string
	Records []Record
}

func newBatch(key string, records []Record) *Batch {
	return &Batch{Key: key, Records: records}
}

//Size number of pending writes in the batch
func (b *Batch) Size() int {
	return len(b.Records)
}

//split the batch into lower and upper halves preserving record order
func (b *Batch) split() (*Batch, *Batch) {
	mid := len(b.Records) / 2
	return newBatch(b.Key, b.Records[:mid:mid]), newBatch(b.Key, b.Records[mid:])
}

//trim remove the record at index, keeping the order of the rest
func (b *Batch) trim(index int) {
	size := len(b.Records)
	copy(b.Records[index:], b.Records[index+1:])
	b.Records = b.Records[:size-1]
}
