package file

import (
	"bufio"

	"github.com/chararch/chainindex/util"
	"github.com/pkg/errors"
)

// DumpRow one exported record, serialized as a JSON line. The methods
// satisfy the importer's Record interface so a loaded dump can be fed to a
// collection import directly.
type DumpRow struct {
	Partition string `json:"partition"`
	Key       string `json:"key"`
	Payload   []byte `json:"payload"`
}

func (row *DumpRow) PartitionKey() string {
	return row.Partition
}

func (row *DumpRow) RowKey() string {
	return row.Key
}

func (row *DumpRow) Value() []byte {
	return row.Payload
}

// DumpReader reads a JSON-lines record dump from a FileSystem
type DumpReader struct {
	fs       FileSystem
	fileName string
}

//NewDumpReader new instance
func NewDumpReader(fs FileSystem, fileName string) *DumpReader {
	return &DumpReader{fs: fs, fileName: fileName}
}

//ReadAll load every row of the dump
func (r *DumpReader) ReadAll() ([]*DumpRow, error) {
	exists, err := r.fs.Exists(r.fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "check dump file:%v", r.fileName)
	}
	if !exists {
		return nil, errors.Errorf("dump file:%v does not exist", r.fileName)
	}
	reader, err := r.fs.Open(r.fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "open dump file:%v", r.fileName)
	}
	defer reader.Close()
	rows := make([]*DumpRow, 0)
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		row := &DumpRow{}
		if err = util.ParseJson(string(data), row); err != nil {
			return nil, errors.Wrapf(err, "parse dump file:%v line:%v", r.fileName, line)
		}
		rows = append(rows, row)
	}
	if err = scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "read dump file:%v", r.fileName)
	}
	return rows, nil
}

// DumpWriter writes records as a JSON-lines dump to a FileSystem
type DumpWriter struct {
	fs       FileSystem
	fileName string
}

//NewDumpWriter new instance
func NewDumpWriter(fs FileSystem, fileName string) *DumpWriter {
	return &DumpWriter{fs: fs, fileName: fileName}
}

//WriteAll write all rows, replacing an existing dump
func (w *DumpWriter) WriteAll(rows []*DumpRow) error {
	writer, err := w.fs.Create(w.fileName)
	if err != nil {
		return errors.Wrapf(err, "create dump file:%v", w.fileName)
	}
	defer writer.Close()
	buf := bufio.NewWriter(writer)
	for _, row := range rows {
		data, err := util.JsonString(row)
		if err != nil {
			return errors.Wrapf(err, "marshal dump row, partition:%v, key:%v", row.Partition, row.Key)
		}
		if _, err = buf.WriteString(data + "\n"); err != nil {
			return errors.Wrapf(err, "write dump file:%v", w.fileName)
		}
	}
	return errors.Wrapf(buf.Flush(), "flush dump file:%v", w.fileName)
}
