// Package storage writes generated entity batches to parquet files and loads
// tabular data back as Arrow records.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/23skdu/longbow-smoke/client"
	lberrors "github.com/23skdu/longbow-smoke/internal/errors"
	"github.com/23skdu/longbow-smoke/internal/metrics"
)

// EntityRow is one float entity as stored in a parquet dump. Column names
// match the default collection schema.
type EntityRow struct {
	ID     int64     `parquet:"int64"`
	Double float64   `parquet:"double"`
	Vector []float32 `parquet:"float_vector,list"`
}

// writeEntities writes a float entity batch (int64, double, float vector)
// as a single parquet file.
func writeEntities(w io.Writer, cols []client.Column) (int, error) {
	if len(cols) != 3 {
		return 0, lberrors.NewValidationError("write_entities", "want int64, double and float vector columns").
			WithContext("columns", len(cols))
	}
	ids, ok1 := cols[0].(client.Int64Column)
	values, ok2 := cols[1].(client.DoubleColumn)
	vectors, ok3 := cols[2].(client.FloatVectorColumn)
	if !ok1 || !ok2 || !ok3 {
		return 0, lberrors.NewValidationError("write_entities", "unexpected column types")
	}
	if len(values) != len(ids) || len(vectors) != len(ids) {
		return 0, lberrors.NewValidationError("write_entities", "columns differ in length")
	}

	rows := make([]EntityRow, len(ids))
	for i := range ids {
		rows[i] = EntityRow{ID: ids[i], Double: values[i], Vector: vectors[i]}
	}

	pw := parquet.NewGenericWriter[EntityRow](w, parquet.Compression(&parquet.Zstd))
	if _, err := pw.Write(rows); err != nil {
		_ = pw.Close()
		return 0, err
	}
	if err := pw.Close(); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// readEntities reads a parquet dump back into entity columns.
func readEntities(r io.ReaderAt, size int64) ([]client.Column, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, err
	}

	pr := parquet.NewGenericReader[EntityRow](pf)
	defer func() { _ = pr.Close() }()

	rows := make([]EntityRow, pr.NumRows())
	n, err := pr.Read(rows)
	if err != nil && err != io.EOF {
		return nil, err
	}
	rows = rows[:n]

	ids := make(client.Int64Column, len(rows))
	values := make(client.DoubleColumn, len(rows))
	vectors := make(client.FloatVectorColumn, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
		values[i] = row.Double
		vectors[i] = row.Vector
	}
	return []client.Column{ids, values, vectors}, nil
}

// DumpEntities writes cols to <dir>/<collection>.parquet and returns the
// file path. The directory is created if needed.
func DumpEntities(dir, collection string, cols []client.Column) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", lberrors.WrapStorageError(err, "dump_entities", "create dump directory").
			WithContext("dir", dir)
	}

	path := filepath.Join(dir, collection+".parquet")
	f, err := os.Create(path)
	if err != nil {
		return "", lberrors.WrapStorageError(err, "dump_entities", "create dump file").
			WithContext("path", path)
	}
	defer func() { _ = f.Close() }()

	start := time.Now()
	if _, err := writeEntities(f, cols); err != nil {
		return "", lberrors.WrapStorageError(err, "dump_entities", "write parquet").
			WithContext("path", path)
	}
	metrics.DumpWriteDurationSeconds.Observe(time.Since(start).Seconds())
	if stat, err := f.Stat(); err == nil {
		metrics.DumpSizeBytes.Observe(float64(stat.Size()))
	}

	if err := f.Sync(); err != nil {
		return "", lberrors.WrapStorageError(err, "dump_entities", "sync dump file")
	}
	return path, nil
}

// ReadEntities loads a dump written by DumpEntities.
func ReadEntities(path string) ([]client.Column, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, lberrors.WrapStorageError(err, "read_entities", "open dump file").
			WithContext("path", path)
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, lberrors.WrapStorageError(err, "read_entities", "stat dump file")
	}
	cols, err := readEntities(f, stat.Size())
	if err != nil {
		return nil, lberrors.WrapStorageError(err, "read_entities", fmt.Sprintf("read %s", path))
	}
	return cols, nil
}
