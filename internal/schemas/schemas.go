// Package schemas builds the fixed collection schemas used by the smoke
// routines. Each variant declares its primary key a different way.
package schemas

import (
	"github.com/23skdu/longbow-smoke/client"
)

const (
	DefaultDim = 128

	FieldInt64        = "int64"
	FieldDouble       = "double"
	FieldFloat        = "float"
	FieldFloatVector  = "float_vector"
	FieldBinaryVector = "binary_vector"

	description = "test collection"
)

// Default has the primary key flagged on the int64 field.
func Default(dim int64) *client.CollectionSchema {
	return &client.CollectionSchema{
		Fields: []client.FieldSchema{
			{Name: FieldInt64, DataType: client.DataTypeInt64, IsPrimary: true},
			{Name: FieldDouble, DataType: client.DataTypeDouble},
			{Name: FieldFloatVector, DataType: client.DataTypeFloatVector, Dim: dim},
		},
		Description: description,
	}
}

// WithPrimaryKeyFlag declares the primary key on the field itself.
func WithPrimaryKeyFlag(dim int64) *client.CollectionSchema {
	return Default(dim)
}

// WithPrimaryFieldName names the primary key on the collection schema
// instead of flagging the field.
func WithPrimaryFieldName(dim int64) *client.CollectionSchema {
	return &client.CollectionSchema{
		Fields: []client.FieldSchema{
			{Name: FieldInt64, DataType: client.DataTypeInt64},
			{Name: FieldDouble, DataType: client.DataTypeDouble},
			{Name: FieldFloatVector, DataType: client.DataTypeFloatVector, Dim: dim},
		},
		Description:  description,
		PrimaryField: FieldInt64,
	}
}

// Binary carries a binary vector field instead of a float one.
func Binary(dim int64) *client.CollectionSchema {
	return &client.CollectionSchema{
		Fields: []client.FieldSchema{
			{Name: FieldInt64, DataType: client.DataTypeInt64, IsPrimary: true},
			{Name: FieldDouble, DataType: client.DataTypeDouble},
			{Name: FieldBinaryVector, DataType: client.DataTypeBinaryVector, Dim: dim},
		},
		Description: description,
	}
}
