package chainindex

//ImportListener observability hooks of a running import job
type ImportListener interface {
	//OnBatchFail invoked when a batch write attempt fails, before any recovery
	OnBatchFail(batch *Batch, err error)
	//OnRetrySuccess invoked when a batch commits after earlier failures
	OnRetrySuccess(batch *Batch)
	//OnProgress invoked periodically with the count of committed records
	OnProgress(indexed int64)
}
