package schemas

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/longbow-smoke/client"
)

func TestBuildersValidate(t *testing.T) {
	builders := map[string]func(int64) *client.CollectionSchema{
		"default":            Default,
		"primary_key_flag":   WithPrimaryKeyFlag,
		"primary_field_name": WithPrimaryFieldName,
		"binary":             Binary,
	}
	for name, build := range builders {
		t.Run(name, func(t *testing.T) {
			s := build(DefaultDim)
			require.NoError(t, s.Validate())

			pk, ok := s.Primary()
			require.True(t, ok)
			assert.Equal(t, FieldInt64, pk.Name)
			assert.Equal(t, "test collection", s.Description)
		})
	}
}

func TestPrimaryKeyVariantsAreEquivalent(t *testing.T) {
	flag := WithPrimaryKeyFlag(DefaultDim)
	named := WithPrimaryFieldName(DefaultDim)

	assert.True(t, flag.Fields[0].IsPrimary)
	assert.Empty(t, flag.PrimaryField)
	assert.False(t, named.Fields[0].IsPrimary)
	assert.Equal(t, FieldInt64, named.PrimaryField)

	assert.True(t, flag.Equivalent(named))
}

func TestBinaryArrowSchema(t *testing.T) {
	as, err := Binary(DefaultDim).ArrowSchema()
	require.NoError(t, err)

	vec, ok := as.FieldsByName(FieldBinaryVector)
	require.True(t, ok)
	fsb, ok := vec[0].Type.(*arrow.FixedSizeBinaryType)
	require.True(t, ok)
	assert.Equal(t, DefaultDim/8, fsb.ByteWidth)
}

func TestDefaultArrowSchema(t *testing.T) {
	as, err := Default(DefaultDim).ArrowSchema()
	require.NoError(t, err)
	require.Equal(t, 3, as.NumFields())

	assert.Equal(t, arrow.PrimitiveTypes.Int64, as.Field(0).Type)
	assert.Equal(t, arrow.PrimitiveTypes.Float64, as.Field(1).Type)
	fsl, ok := as.Field(2).Type.(*arrow.FixedSizeListType)
	require.True(t, ok)
	assert.Equal(t, int32(DefaultDim), fsl.Len())
}
