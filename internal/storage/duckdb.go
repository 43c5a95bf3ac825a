package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	duckdb "github.com/marcboeker/go-duckdb"

	lberrors "github.com/23skdu/longbow-smoke/internal/errors"
	"github.com/23skdu/longbow-smoke/internal/metrics"
)

// LoadRecord reads a parquet file through an in-memory DuckDB instance and
// returns its rows as a single Arrow record. List columns of floats are
// rewritten as fixed size lists of float32 so they can back a float vector
// field. The caller must release the record.
func LoadRecord(ctx context.Context, path string, mem memory.Allocator) (arrow.Record, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, lberrors.WrapStorageError(err, "load_record", "open duckdb")
	}
	defer func() { _ = db.Close() }()

	// The Arrow interface needs the driver connection itself.
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, lberrors.WrapStorageError(err, "load_record", "open duckdb connection")
	}
	defer func() { _ = conn.Close() }()

	var ar *duckdb.Arrow
	err = conn.Raw(func(c interface{}) error {
		dc, ok := c.(driver.Conn)
		if !ok {
			return fmt.Errorf("not a duckdb driver connection")
		}
		var err error
		ar, err = duckdb.NewArrowFromConn(dc)
		return err
	})
	if err != nil {
		return nil, lberrors.WrapStorageError(err, "load_record", "init arrow interface")
	}

	query := fmt.Sprintf("SELECT * FROM read_parquet('%s')", strings.ReplaceAll(path, "'", "''"))
	rdr, err := ar.QueryContext(ctx, query)
	if err != nil {
		return nil, lberrors.WrapStorageError(err, "load_record", "query parquet file").
			WithContext("path", path)
	}
	defer rdr.Release()

	var batches []arrow.Record
	defer func() {
		for _, b := range batches {
			b.Release()
		}
	}()
	for rdr.Next() {
		rec := rdr.Record()
		rec.Retain()
		batches = append(batches, rec)
	}
	if err := rdr.Err(); err != nil {
		return nil, lberrors.WrapStorageError(err, "load_record", "read query results")
	}

	merged, err := concatRecords(rdr.Schema(), batches, mem)
	if err != nil {
		return nil, lberrors.WrapStorageError(err, "load_record", "merge batches")
	}
	defer merged.Release()

	if merged.NumRows() == 0 {
		return nil, lberrors.NewValidationError("load_record", "file has no rows").WithContext("path", path)
	}

	out, err := NormalizeVectors(merged, mem)
	if err != nil {
		return nil, lberrors.WrapValidationError(err, "load_record", "normalize vector columns")
	}
	metrics.DataFrameRowsLoadedTotal.Add(float64(out.NumRows()))
	return out, nil
}

func concatRecords(schema *arrow.Schema, batches []arrow.Record, mem memory.Allocator) (arrow.Record, error) {
	if len(batches) == 1 {
		batches[0].Retain()
		return batches[0], nil
	}

	cols := make([]arrow.Array, schema.NumFields())
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()

	var rows int64
	for _, b := range batches {
		rows += b.NumRows()
	}
	for i := range cols {
		parts := make([]arrow.Array, len(batches))
		for j, b := range batches {
			parts[j] = b.Column(i)
		}
		if len(parts) == 0 {
			cols[i] = array.MakeArrayOfNull(mem, schema.Field(i).Type, 0)
			continue
		}
		col, err := array.Concatenate(parts, mem)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", schema.Field(i).Name, err)
		}
		cols[i] = col
	}
	return array.NewRecord(schema, cols, rows), nil
}

// NormalizeVectors returns a copy of rec in which every list of float32 or
// float64 values becomes a FixedSizeList<float32>. All rows of such a column
// must have the same, non-zero length and no nulls.
func NormalizeVectors(rec arrow.Record, mem memory.Allocator) (arrow.Record, error) {
	fields := make([]arrow.Field, rec.NumCols())
	cols := make([]arrow.Array, rec.NumCols())
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()

	for i, col := range rec.Columns() {
		field := rec.Schema().Field(i)
		converted, err := toFixedSizeList(col, mem)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", field.Name, err)
		}
		if converted == nil {
			col.Retain()
			converted = col
		} else {
			field.Type = converted.DataType()
		}
		fields[i] = field
		cols[i] = converted
	}

	md := rec.Schema().Metadata()
	return array.NewRecord(arrow.NewSchema(fields, &md), cols, rec.NumRows()), nil
}

// toFixedSizeList converts float list arrays. It returns nil for arrays that
// need no conversion.
func toFixedSizeList(col arrow.Array, mem memory.Allocator) (arrow.Array, error) {
	type offsetList interface {
		arrow.Array
		ValueOffsets(i int) (start, end int64)
		ListValues() arrow.Array
	}

	var (
		values arrow.Array
		bounds func(i int) (int64, int64)
		dim    int
	)
	switch arr := col.(type) {
	case *array.FixedSizeList:
		typ := arr.DataType().(*arrow.FixedSizeListType)
		if typ.Elem().ID() == arrow.FLOAT32 {
			return nil, nil
		}
		dim = int(typ.Len())
		values = arr.ListValues()
		bounds = arr.ValueOffsets
	case offsetList:
		values = arr.ListValues()
		bounds = arr.ValueOffsets
		if arr.Len() > 0 {
			s, e := bounds(0)
			dim = int(e - s)
		}
	default:
		return nil, nil
	}

	var get func(j int64) float32
	switch v := values.(type) {
	case *array.Float32:
		get = func(j int64) float32 { return v.Value(int(j)) }
	case *array.Float64:
		get = func(j int64) float32 { return float32(v.Value(int(j))) }
	default:
		// Lists of other element types are left alone.
		return nil, nil
	}

	if dim <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}

	b := array.NewFixedSizeListBuilder(mem, int32(dim), arrow.PrimitiveTypes.Float32)
	defer b.Release()
	vb := b.ValueBuilder().(*array.Float32Builder)

	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) {
			return nil, fmt.Errorf("row %d is null", i)
		}
		start, end := bounds(i)
		if int(end-start) != dim {
			return nil, fmt.Errorf("row %d has dimension %d, want %d", i, end-start, dim)
		}
		b.Append(true)
		for j := start; j < end; j++ {
			vb.Append(get(j))
		}
	}
	return b.NewArray(), nil
}
