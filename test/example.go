package test

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/chararch/chainindex"
	"github.com/chararch/chainindex/file"
	"github.com/chararch/chainindex/internal/logs"
	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

//block source replaying a fixed height range, saving every 100 blocks
type heightSource struct {
	next uint64
	last uint64
	save uint64
}

func (s *heightSource) Next(ctx context.Context) (interface{}, chainindex.BatchError) {
	if s.next > s.last {
		return nil, nil
	}
	height := s.next
	s.next++
	return height, nil
}

func (s *heightSource) ShouldSave() bool {
	return s.next > s.save+100
}

func (s *heightSource) SaveCheckpoint(ctx context.Context) chainindex.BatchError {
	s.save = s.next
	fmt.Printf("checkpoint saved at height %v\n", s.save)
	return nil
}

//transformer deriving one transfer record per block
type transferTransformer struct {
}

func (t *transferTransformer) Transform(block interface{}) ([]chainindex.Record, chainindex.BatchError) {
	height := block.(uint64)
	row := &file.DumpRow{
		Partition: fmt.Sprintf("shard-%v", height%4),
		Key:       fmt.Sprintf("transfer-%v", height),
		Payload:   []byte(fmt.Sprintf(`{"height":%v}`, height)),
	}
	return []chainindex.Record{row}, nil
}

func main() {
	//route chainindex logs through zap
	zlog, _ := zap.NewProduction()
	chainindex.SetLogger(logs.NewZapLogger(zlog.Sugar()))

	//store for the indexed rows
	db, err := sql.Open("mysql", "root:root123@tcp(127.0.0.1:3306)/chainindex?charset=utf8&parseTime=true")
	if err != nil {
		panic(err)
	}
	store := chainindex.NewSqlStore(db, "chain_record", 4*1024*1024, 1024*1024)

	importer := chainindex.NewImporter("transfer_import", store).
		Transformer(&transferTransformer{}).
		PartitionSize(100).
		Build()

	//stream import with checkpointing
	source := &heightSource{next: 1, last: 1000}
	if err := importer.Index(context.Background(), source); err != nil {
		panic(err)
	}
	fmt.Printf("indexed %v records\n", importer.IndexedCount())

	//re-import a dump file in direct-collection mode
	rows, err := file.NewDumpReader(&file.LocalFileSystem{}, "transfers.dump").ReadAll()
	if err == nil {
		records := make([]chainindex.Record, 0, len(rows))
		for _, row := range rows {
			records = append(records, row)
		}
		reimport := chainindex.NewImporter("transfer_reimport", store).Build()
		if err := reimport.IndexCollection(context.Background(), records); err != nil {
			panic(err)
		}
	}
}
