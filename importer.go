package chainindex

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chararch/chainindex/status"
	"github.com/chararch/chainindex/util"
	"golang.org/x/sync/errgroup"
)

// BlockSource produces a lazy, finite sequence of blocks and owns the resume
// position of the import. SaveCheckpoint is only invoked once every batch
// covering records up to the current block has committed.
type BlockSource interface {
	//Next next block of the stream, nil marks the end
	Next(ctx context.Context) (interface{}, BatchError)
	//ShouldSave report whether the source wants its position persisted now
	ShouldSave() bool
	//SaveCheckpoint persist the current position as the resume point
	SaveCheckpoint(ctx context.Context) BatchError
}

// Transformer maps one block into the records to persist. Only used by block
// stream imports, direct collection imports carry materialized records.
type Transformer interface {
	Transform(block interface{}) ([]Record, BatchError)
}

// Importer writes derived records into a partitioned store in bounded
// concurrent batches. One Importer value runs one import job at a time.
type Importer struct {
	name             string
	store            Store
	transformer      Transformer
	partitionSize    int
	highWater        int
	lowWater         int
	retry            *retryPolicy
	deferUnit        time.Duration
	ignoreCheckpoint bool
	listeners        []ImportListener
	pool             *taskPool

	mu           sync.Mutex
	importStatus status.ImportStatus
	indexed      int64
}

type importerBuilder struct {
	importer *Importer
}

//NewImporter new instance of importer builder
func NewImporter(name string, store Store) *importerBuilder {
	if name == "" {
		panic("importer name must not be empty")
	}
	if store == nil {
		panic("store must not be nil")
	}
	return &importerBuilder{
		importer: &Importer{
			name:          name,
			store:         store,
			partitionSize: DefaultPartitionSize,
			highWater:     DefaultHighWaterMark,
			lowWater:      DefaultLowWaterMark,
			retry:         newRetryPolicy(DefaultRetryAttempts, DefaultRetryMinDelay, DefaultRetryMaxDelay, DefaultRetryJitter),
			deferUnit:     DefaultDeferUnit,
			pool:          writePool,
			importStatus:  status.PENDING,
		},
	}
}

//Transformer set the block transformation hook, required for stream imports
func (builder *importerBuilder) Transformer(transformer Transformer) *importerBuilder {
	builder.importer.transformer = transformer
	return builder
}

//PartitionSize set the target batch size per partition
func (builder *importerBuilder) PartitionSize(size int) *importerBuilder {
	if size < 1 {
		panic("partition size must be positive")
	}
	builder.importer.partitionSize = size
	return builder
}

//WaterMarks set the backpressure thresholds for in-flight batches
func (builder *importerBuilder) WaterMarks(high, low int) *importerBuilder {
	if high < 1 || low < 0 || low > high {
		panic("invalid water marks")
	}
	builder.importer.highWater = high
	builder.importer.lowWater = low
	return builder
}

//Retry set the dispatch retry policy
func (builder *importerBuilder) Retry(maxAttempts int, minDelay, maxDelay, jitter time.Duration) *importerBuilder {
	builder.importer.retry = newRetryPolicy(maxAttempts, minDelay, maxDelay, jitter)
	return builder
}

//DeferUnit set the base wait of the per-batch linear backoff
func (builder *importerBuilder) DeferUnit(unit time.Duration) *importerBuilder {
	builder.importer.deferUnit = unit
	return builder
}

//IgnoreCheckpoint re-import from scratch, never ask the source to save
func (builder *importerBuilder) IgnoreCheckpoint(ignore bool) *importerBuilder {
	builder.importer.ignoreCheckpoint = ignore
	return builder
}

//Listener register observability listeners
func (builder *importerBuilder) Listener(listener ...ImportListener) *importerBuilder {
	builder.importer.listeners = append(builder.importer.listeners, listener...)
	return builder
}

//Build build the importer
func (builder *importerBuilder) Build() *Importer {
	return builder.importer
}

//IndexedCount count of records committed by the current or last import job
func (imp *Importer) IndexedCount() int64 {
	return atomic.LoadInt64(&imp.indexed)
}

//Status status of the current or last import job
func (imp *Importer) Status() status.ImportStatus {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	return imp.importStatus
}

//Index import a block stream synchronously, see IndexAsync
func (imp *Importer) Index(ctx context.Context, source BlockSource) error {
	_, err := imp.IndexAsync(ctx, source).Get()
	return err
}

// IndexAsync import a block stream: blocks are pulled from the source,
// transformed into records, accumulated into per-partition batches and
// written concurrently under backpressure. The source checkpoint is only
// saved after all in-flight batches have drained.
func (imp *Importer) IndexAsync(ctx context.Context, source BlockSource) Future {
	fu, _ := importPool.Submit(ctx, func() (interface{}, error) {
		err := imp.runStream(ctx, source)
		if err != nil {
			return nil, err
		}
		return imp.IndexedCount(), nil
	})
	return fu
}

//IndexCollection import an already-materialized record collection, see
//IndexCollectionAsync
func (imp *Importer) IndexCollection(ctx context.Context, records []Record) error {
	_, err := imp.IndexCollectionAsync(ctx, records).Get()
	return err
}

// IndexCollectionAsync import a record collection: records are grouped by
// partition key, chunked and all chunks written concurrently without
// throttling. No checkpoint interaction, appropriate only for bounded
// in-memory inputs.
func (imp *Importer) IndexCollectionAsync(ctx context.Context, records []Record) Future {
	fu, _ := importPool.Submit(ctx, func() (interface{}, error) {
		err := imp.runCollection(ctx, records)
		if err != nil {
			return nil, err
		}
		return imp.IndexedCount(), nil
	})
	return fu
}

func (imp *Importer) runStream(ctx context.Context, source BlockSource) (err error) {
	if source == nil {
		panic("block source must not be nil")
	}
	if imp.transformer == nil {
		panic("transformer must not be nil for block stream import")
	}
	if err := imp.begin(); err != nil {
		return err
	}
	defer func() {
		imp.finish(err)
	}()
	logger.Info(ctx, "start import job, name:%v, partitionSize:%v", imp.name, imp.partitionSize)
	acc := newAccumulator(imp.partitionSize)
	thr := newThrottle(imp.highWater, imp.lowWater)
	writer := newBatchWriter(imp.store, imp.deferUnit, &imp.indexed, imp.listeners)
	blocks := 0
	for {
		if err = thr.fatalErr(); err != nil {
			imp.abort(ctx, thr, err)
			return err
		}
		block, berr := source.Next(ctx)
		if berr != nil {
			err = berr
			imp.abort(ctx, thr, err)
			return err
		}
		if block == nil {
			break
		}
		if !imp.ignoreCheckpoint && source.ShouldSave() {
			if err = imp.checkpoint(ctx, source, acc, thr, writer); err != nil {
				return err
			}
		}
		records, terr := imp.transformer.Transform(block)
		if terr != nil {
			err = terr
			imp.abort(ctx, thr, err)
			return err
		}
		for _, record := range records {
			acc.Add(record)
		}
		if err = imp.dispatchReady(ctx, acc, thr, writer); err != nil {
			imp.abort(ctx, thr, err)
			return err
		}
		blocks++
		if blocks%progressInterval == 0 {
			imp.progress(ctx, blocks)
		}
	}
	if err = imp.drainAll(ctx, acc, thr, writer); err != nil {
		return err
	}
	if !imp.ignoreCheckpoint {
		if serr := source.SaveCheckpoint(ctx); serr != nil {
			err = serr
			return err
		}
	}
	logger.Info(ctx, "import job completed, name:%v, blocks:%v, indexed:%v", imp.name, blocks, imp.IndexedCount())
	imp.progress(ctx, blocks)
	return nil
}

func (imp *Importer) runCollection(ctx context.Context, records []Record) (err error) {
	if err := imp.begin(); err != nil {
		return err
	}
	defer func() {
		imp.finish(err)
	}()
	logger.Info(ctx, "start collection import, name:%v, records:%v", imp.name, len(records))
	writer := newBatchWriter(imp.store, imp.deferUnit, &imp.indexed, imp.listeners)
	keys := make([]string, 0)
	groups := map[string][]Record{}
	for _, record := range records {
		key := record.PartitionKey()
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], record)
	}
	group := new(errgroup.Group)
	chunks := 0
	for _, key := range keys {
		buf := groups[key]
		for len(buf) > 0 {
			size := imp.partitionSize
			if size > len(buf) {
				size = len(buf)
			}
			batch := newBatch(key, buf[:size:size])
			buf = buf[size:]
			chunks++
			group.Go(func() error {
				return writer.Dispatch(ctx, batch)
			})
		}
	}
	logger.Info(ctx, "collection import dispatched, name:%v, partitions:%v, chunks:%v", imp.name, len(keys), chunks)
	err = group.Wait()
	if err == nil {
		imp.progress(ctx, 0)
		logger.Info(ctx, "collection import completed, name:%v, indexed:%v", imp.name, imp.IndexedCount())
	}
	return err
}

//progressInterval blocks between progress reports
const progressInterval = 100

func (imp *Importer) dispatchReady(ctx context.Context, acc *accumulator, thr *throttle, writer *batchWriter) error {
	for acc.HasReadyBatch() {
		if err := thr.fatalErr(); err != nil {
			return err
		}
		thr.waitCapacity()
		imp.dispatch(ctx, acc.Pop(), thr, writer)
	}
	return nil
}

func (imp *Importer) dispatch(ctx context.Context, batch *Batch, thr *throttle, writer *batchWriter) {
	thr.incr()
	_, serr := imp.pool.Submit(ctx, func() (interface{}, error) {
		err := imp.retry.execute(ctx, func() error {
			return writer.Dispatch(ctx, batch)
		})
		thr.done(err)
		return nil, err
	})
	if serr != nil {
		//the task never ran, resolve its throttle slot or drain would hang
		thr.done(serr)
	}
}

//drainAll flush the accumulator, dispatch the remainder and wait for zero
//in-flight work
func (imp *Importer) drainAll(ctx context.Context, acc *accumulator, thr *throttle, writer *batchWriter) error {
	imp.setStatus(status.DRAINING)
	acc.FlushIncomplete()
	if err := imp.dispatchReady(ctx, acc, thr, writer); err != nil {
		imp.abort(ctx, thr, err)
		return err
	}
	thr.drain()
	if err := thr.fatalErr(); err != nil {
		logger.Error(ctx, "import job failed while draining, name:%v, err:%v", imp.name, err)
		return err
	}
	imp.setStatus(status.RUNNING)
	return nil
}

//checkpoint drain everything dispatched so far, then let the source persist
//its position
func (imp *Importer) checkpoint(ctx context.Context, source BlockSource, acc *accumulator, thr *throttle, writer *batchWriter) error {
	if err := imp.drainAll(ctx, acc, thr, writer); err != nil {
		return err
	}
	if err := source.SaveCheckpoint(ctx); err != nil {
		imp.abort(ctx, thr, err)
		return err
	}
	logger.Debug(ctx, "checkpoint saved, name:%v, indexed:%v", imp.name, imp.IndexedCount())
	imp.progress(ctx, 0)
	return nil
}

//abort stop dispatching and let already in-flight batches drain
func (imp *Importer) abort(ctx context.Context, thr *throttle, err error) {
	imp.setStatus(status.DRAINING)
	thr.drain()
	logger.Error(ctx, "import job aborted, name:%v, indexed:%v, err:%v", imp.name, imp.IndexedCount(), err)
}

func (imp *Importer) progress(ctx context.Context, blocks int) {
	indexed := imp.IndexedCount()
	if blocks > 0 {
		logger.Info(ctx, "import progress, name:%v, blocks:%v, indexed:%v", imp.name, blocks, indexed)
	}
	for _, listener := range imp.listeners {
		listener.OnProgress(indexed)
	}
}

func (imp *Importer) begin() BatchError {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	if util.In(imp.importStatus, []interface{}{status.RUNNING, status.DRAINING}) {
		return NewBatchError(ErrCodeConcurrency, "import job:%v is already running", imp.name)
	}
	imp.importStatus = status.RUNNING
	atomic.StoreInt64(&imp.indexed, 0)
	return nil
}

func (imp *Importer) finish(err error) {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	if err != nil {
		imp.importStatus = imp.importStatus.And(status.ABORTED)
	} else {
		imp.importStatus = imp.importStatus.And(status.COMPLETED)
	}
}

func (imp *Importer) setStatus(s status.ImportStatus) {
	imp.mu.Lock()
	imp.importStatus = s
	imp.mu.Unlock()
}
