package archive

import (
	"bytes"

	"github.com/xitongsys/parquet-go/source"
)

// parquetRejection is the parquet row layout for archived rejections.
type parquetRejection struct {
	RunID      string `parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Entity     string `parquet:"name=entity, type=BYTE_ARRAY, convertedtype=UTF8"`
	Key        string `parquet:"name=key, type=BYTE_ARRAY, convertedtype=UTF8"`
	Reason     string `parquet:"name=reason, type=BYTE_ARRAY, convertedtype=UTF8"`
	RejectedAt int64  `parquet:"name=rejected_at, type=INT64"`
}

// memoryFileWriter implements the ParquetFile interface for in-memory
// writing.
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{
		buffer: &bytes.Buffer{},
	}
}

func (mfw *memoryFileWriter) Create(name string) (source.ParquetFile, error) {
	return mfw, nil
}

func (mfw *memoryFileWriter) Open(name string) (source.ParquetFile, error) {
	return mfw, nil
}

func (mfw *memoryFileWriter) Seek(offset int64, whence int) (int64, error) {
	// Writing is append-only, seeking is not needed.
	return int64(mfw.buffer.Len()), nil
}

func (mfw *memoryFileWriter) Read(b []byte) (int, error) {
	return mfw.buffer.Read(b)
}

func (mfw *memoryFileWriter) Write(b []byte) (int, error) {
	return mfw.buffer.Write(b)
}

func (mfw *memoryFileWriter) Close() error {
	return nil
}

func (mfw *memoryFileWriter) Bytes() []byte {
	return mfw.buffer.Bytes()
}
