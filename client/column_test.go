package client

import (
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allTypesSchema(t *testing.T) *CollectionSchema {
	t.Helper()
	s, err := NewCollectionSchema([]FieldSchema{
		{Name: "id", DataType: DataTypeInt64, IsPrimary: true},
		{Name: "flag", DataType: DataTypeBool},
		{Name: "small", DataType: DataTypeInt32},
		{Name: "f", DataType: DataTypeFloat},
		{Name: "d", DataType: DataTypeDouble},
		{Name: "s", DataType: DataTypeVarChar},
		{Name: "fv", DataType: DataTypeFloatVector, Dim: 2},
		{Name: "bv", DataType: DataTypeBinaryVector, Dim: 16},
	}, "", "")
	require.NoError(t, err)
	return s
}

func TestBuildRecord(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rec, err := BuildRecord(mem, allTypesSchema(t), []Column{
		Int64Column{1, 2},
		BoolColumn{true, false},
		Int32Column{3, 4},
		FloatColumn{0.5, 1.5},
		DoubleColumn{2.5, 3.5},
		VarCharColumn{"a", "b"},
		FloatVectorColumn{{1, 2}, {3, 4}},
		BinaryVectorColumn{{0xFF, 0x00}, {0x0F, 0xF0}},
	})
	require.NoError(t, err)
	defer rec.Release()

	assert.Equal(t, int64(2), rec.NumRows())
	assert.Equal(t, int64(8), rec.NumCols())
	assert.Equal(t, "b", rec.Column(5).(*array.String).Value(1))
	fv := rec.Column(6).(*array.FixedSizeList)
	assert.Equal(t, []float32{1, 2, 3, 4}, fv.ListValues().(*array.Float32).Float32Values())
	assert.Equal(t, []byte{0x0F, 0xF0}, rec.Column(7).(*array.FixedSizeBinary).Value(1))
}

func TestBuildRecordErrors(t *testing.T) {
	mem := memory.NewGoAllocator()
	schema := allTypesSchema(t)
	valid := func() []Column {
		return []Column{
			Int64Column{1}, BoolColumn{true}, Int32Column{3}, FloatColumn{0.5},
			DoubleColumn{2.5}, VarCharColumn{"a"}, FloatVectorColumn{{1, 2}}, BinaryVectorColumn{{0xFF, 0x00}},
		}
	}

	tests := []struct {
		name   string
		mutate func([]Column) []Column
		field  string
	}{
		{"too few columns", func(c []Column) []Column { return c[:3] }, ""},
		{"nil column", func(c []Column) []Column { c[1] = nil; return c }, "flag"},
		{"row count", func(c []Column) []Column { c[2] = Int32Column{1, 2}; return c }, "small"},
		{"wrong type", func(c []Column) []Column { c[3] = DoubleColumn{1}; return c }, "f"},
		{"vector dimension", func(c []Column) []Column { c[6] = FloatVectorColumn{{1, 2, 3}}; return c }, "fv"},
		{"binary width", func(c []Column) []Column { c[7] = BinaryVectorColumn{{0xFF}}; return c }, "bv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildRecord(mem, schema, tt.mutate(valid()))
			var colErr *ColumnError
			require.True(t, errors.As(err, &colErr), "got %v", err)
			assert.Equal(t, tt.field, colErr.Field)
		})
	}
}
