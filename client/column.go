package client

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Column holds the values of one field for a batch of entities. Columns are
// matched to schema fields by position.
type Column interface {
	Len() int
	appendTo(b array.Builder) error
}

type (
	BoolColumn         []bool
	Int32Column        []int32
	Int64Column        []int64
	FloatColumn        []float32
	DoubleColumn       []float64
	VarCharColumn      []string
	FloatVectorColumn  [][]float32
	BinaryVectorColumn [][]byte
)

func (c BoolColumn) Len() int         { return len(c) }
func (c Int32Column) Len() int        { return len(c) }
func (c Int64Column) Len() int        { return len(c) }
func (c FloatColumn) Len() int        { return len(c) }
func (c DoubleColumn) Len() int       { return len(c) }
func (c VarCharColumn) Len() int      { return len(c) }
func (c FloatVectorColumn) Len() int  { return len(c) }
func (c BinaryVectorColumn) Len() int { return len(c) }

func (c BoolColumn) appendTo(b array.Builder) error {
	bb, ok := b.(*array.BooleanBuilder)
	if !ok {
		return mismatch("bool", b)
	}
	bb.AppendValues(c, nil)
	return nil
}

func (c Int32Column) appendTo(b array.Builder) error {
	ib, ok := b.(*array.Int32Builder)
	if !ok {
		return mismatch("int32", b)
	}
	ib.AppendValues(c, nil)
	return nil
}

func (c Int64Column) appendTo(b array.Builder) error {
	ib, ok := b.(*array.Int64Builder)
	if !ok {
		return mismatch("int64", b)
	}
	ib.AppendValues(c, nil)
	return nil
}

func (c FloatColumn) appendTo(b array.Builder) error {
	fb, ok := b.(*array.Float32Builder)
	if !ok {
		return mismatch("float", b)
	}
	fb.AppendValues(c, nil)
	return nil
}

func (c DoubleColumn) appendTo(b array.Builder) error {
	fb, ok := b.(*array.Float64Builder)
	if !ok {
		return mismatch("double", b)
	}
	fb.AppendValues(c, nil)
	return nil
}

func (c VarCharColumn) appendTo(b array.Builder) error {
	sb, ok := b.(*array.StringBuilder)
	if !ok {
		return mismatch("varchar", b)
	}
	sb.AppendValues(c, nil)
	return nil
}

func (c FloatVectorColumn) appendTo(b array.Builder) error {
	lb, ok := b.(*array.FixedSizeListBuilder)
	if !ok {
		return mismatch("float vector", b)
	}
	dim := int(lb.Type().(*arrow.FixedSizeListType).Len())
	vb := lb.ValueBuilder().(*array.Float32Builder)
	for i, vec := range c {
		if len(vec) != dim {
			return fmt.Errorf("row %d has dimension %d, want %d", i, len(vec), dim)
		}
		lb.Append(true)
		vb.AppendValues(vec, nil)
	}
	return nil
}

func (c BinaryVectorColumn) appendTo(b array.Builder) error {
	bb, ok := b.(*array.FixedSizeBinaryBuilder)
	if !ok {
		return mismatch("binary vector", b)
	}
	width := bb.Type().(*arrow.FixedSizeBinaryType).ByteWidth
	for i, vec := range c {
		if len(vec) != width {
			return fmt.Errorf("row %d has %d bytes, want %d", i, len(vec), width)
		}
		bb.Append(vec)
	}
	return nil
}

func mismatch(kind string, b array.Builder) error {
	return fmt.Errorf("%s values cannot be stored in a %s field", kind, b.Type())
}

// BuildRecord packs columns into an Arrow record shaped by the schema.
// The caller owns the returned record and must release it.
func BuildRecord(mem memory.Allocator, schema *CollectionSchema, cols []Column) (arrow.Record, error) {
	if len(cols) != len(schema.Fields) {
		return nil, &ColumnError{Message: fmt.Sprintf("got %d columns for %d fields", len(cols), len(schema.Fields))}
	}
	rows := -1
	for i, col := range cols {
		if col == nil {
			return nil, &ColumnError{Field: schema.Fields[i].Name, Message: "column is nil"}
		}
		if rows >= 0 && col.Len() != rows {
			return nil, &ColumnError{Field: schema.Fields[i].Name, Message: fmt.Sprintf("has %d rows, want %d", col.Len(), rows)}
		}
		rows = col.Len()
	}

	as, err := schema.ArrowSchema()
	if err != nil {
		return nil, err
	}

	b := array.NewRecordBuilder(mem, as)
	defer b.Release()

	for i, col := range cols {
		if err := col.appendTo(b.Field(i)); err != nil {
			return nil, &ColumnError{Field: schema.Fields[i].Name, Message: err.Error()}
		}
	}
	return b.NewRecord(), nil
}
