package chainindex

import (
	"os"
	"time"

	"github.com/chararch/chainindex/internal/logs"
)

//log
var logger logs.Logger = logs.NewLogger(os.Stdout, logs.Info)

//SetLogger set a logger instance for chainindex
func SetLogger(l logs.Logger) {
	logger = l
}

//task pool
const (
	DefaultImportPoolSize = 10
	DefaultWritePoolSize  = 1000
)

var importPool = newTaskPool(DefaultImportPoolSize)
var writePool = newTaskPool(DefaultWritePoolSize)

//SetMaxRunningImports set max number of parallel import jobs for chainindex
func SetMaxRunningImports(size int) {
	importPool.SetMaxSize(size)
}

//SetMaxRunningWrites set max number of parallel batch writes for chainindex
func SetMaxRunningWrites(size int) {
	writePool.SetMaxSize(size)
}

//importer defaults
const (
	DefaultPartitionSize = 100
	DefaultHighWaterMark = 100
	DefaultLowWaterMark  = 70
	DefaultDeferUnit     = time.Second
)
