package chainindex

import (
	"context"
	"database/sql"
	"strings"
)

// SqlStore a Store backed by a relational table. Rows are applied with
// REPLACE semantics so a replayed batch overwrites earlier rows instead of
// appending, which keeps re-imports after a checkpoint resume idempotent.
// The table needs columns partition_key, row_key and payload with a primary
// key over (partition_key, row_key).
type SqlStore struct {
	db         *sql.DB
	table      string
	maxPayload int
	maxEntity  int
}

//NewSqlStore new instance. maxPayload and maxEntity bound the accepted batch
//and record payload sizes in bytes, zero disables the bound.
func NewSqlStore(db *sql.DB, table string, maxPayload, maxEntity int) *SqlStore {
	if db == nil {
		panic("sqlDb must not be nil")
	}
	if table == "" {
		panic("table name must not be empty")
	}
	return &SqlStore{db: db, table: table, maxPayload: maxPayload, maxEntity: maxEntity}
}

func (store *SqlStore) Write(ctx context.Context, partitionKey string, records []Record) BatchError {
	if len(records) == 0 {
		return nil
	}
	total := 0
	for i, record := range records {
		size := len(record.Value())
		if store.maxEntity > 0 && size > store.maxEntity {
			return NewBatchError(ErrCodeEntityTooLarge, "%d: record payload exceeds %v bytes, partition:%v, rowKey:%v, size:%v",
				i, store.maxEntity, partitionKey, record.RowKey(), size)
		}
		total += size
	}
	if store.maxPayload > 0 && total > store.maxPayload {
		return NewBatchError(ErrCodePayloadTooLarge, "batch payload exceeds %v bytes, partition:%v, records:%v, size:%v",
			store.maxPayload, partitionKey, len(records), total)
	}
	query := strings.Builder{}
	query.WriteString("replace into " + store.table + " (partition_key, row_key, payload) values ")
	args := make([]interface{}, 0, len(records)*3)
	for i, record := range records {
		if i > 0 {
			query.WriteString(",")
		}
		query.WriteString("(?,?,?)")
		args = append(args, partitionKey, record.RowKey(), record.Value())
	}
	_, err := store.db.ExecContext(ctx, query.String(), args...)
	if err != nil {
		return NewBatchError(ErrCodeDbFail, "write batch failed, partition:%v, records:%v", partitionKey, len(records), err)
	}
	return nil
}

func (store *SqlStore) WriteOne(ctx context.Context, partitionKey string, record Record) BatchError {
	if store.maxEntity > 0 && len(record.Value()) > store.maxEntity {
		return NewBatchError(ErrCodeEntityTooLarge, "0: record payload exceeds %v bytes, partition:%v, rowKey:%v, size:%v",
			store.maxEntity, partitionKey, record.RowKey(), len(record.Value()))
	}
	_, err := store.db.ExecContext(ctx, "replace into "+store.table+" (partition_key, row_key, payload) values (?,?,?)",
		partitionKey, record.RowKey(), record.Value())
	if err != nil {
		return NewBatchError(ErrCodeDbFail, "write record failed, partition:%v, rowKey:%v", partitionKey, record.RowKey(), err)
	}
	return nil
}
