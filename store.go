package chainindex

import "context"

// Store batch-write API of the remote partitioned key-value store. Writes are
// idempotent insert-or-replace operations scoped to one partition key. A
// failed write should return a BatchError whose code tells the importer how
// to recover: ErrCodePayloadTooLarge when the whole payload is rejected,
// ErrCodeEntityTooLarge when a single record is oversized (the message must
// lead with the zero-based index of the offender), any other error is treated
// as transient.
type Store interface {
	//Write apply all records of one partition as a single batch
	Write(ctx context.Context, partitionKey string, records []Record) BatchError
	//WriteOne apply a single record without batch protocol overhead
	WriteOne(ctx context.Context, partitionKey string, record Record) BatchError
}
