package client

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// DataType identifies the type of a collection field. Values follow the
// numbering used by Milvus-compatible services.
type DataType int32

const (
	DataTypeNone         DataType = 0
	DataTypeBool         DataType = 1
	DataTypeInt8         DataType = 2
	DataTypeInt16        DataType = 3
	DataTypeInt32        DataType = 4
	DataTypeInt64        DataType = 5
	DataTypeFloat        DataType = 10
	DataTypeDouble       DataType = 11
	DataTypeVarChar      DataType = 21
	DataTypeBinaryVector DataType = 100
	DataTypeFloatVector  DataType = 101
)

var dataTypeNames = map[DataType]string{
	DataTypeNone:         "NONE",
	DataTypeBool:         "BOOL",
	DataTypeInt8:         "INT8",
	DataTypeInt16:        "INT16",
	DataTypeInt32:        "INT32",
	DataTypeInt64:        "INT64",
	DataTypeFloat:        "FLOAT",
	DataTypeDouble:       "DOUBLE",
	DataTypeVarChar:      "VARCHAR",
	DataTypeBinaryVector: "BINARY_VECTOR",
	DataTypeFloatVector:  "FLOAT_VECTOR",
}

func (d DataType) String() string {
	if name, ok := dataTypeNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DataType(%d)", int32(d))
}

// IsVector reports whether the type holds vectors.
func (d DataType) IsVector() bool {
	return d == DataTypeFloatVector || d == DataTypeBinaryVector
}

// MarshalText encodes the type by name so wire payloads stay readable.
func (d DataType) MarshalText() ([]byte, error) {
	name, ok := dataTypeNames[d]
	if !ok {
		return nil, fmt.Errorf("unknown data type %d", int32(d))
	}
	return []byte(name), nil
}

// UnmarshalText decodes a type name produced by MarshalText.
func (d *DataType) UnmarshalText(text []byte) error {
	want := strings.ToUpper(string(text))
	for dt, name := range dataTypeNames {
		if name == want {
			*d = dt
			return nil
		}
	}
	return fmt.Errorf("unknown data type %q", string(text))
}

// FieldSchema describes one field of a collection.
type FieldSchema struct {
	Name        string   `json:"name"`
	DataType    DataType `json:"data_type"`
	Dim         int64    `json:"dim,omitempty"`
	IsPrimary   bool     `json:"is_primary,omitempty"`
	AutoID      bool     `json:"auto_id,omitempty"`
	Description string   `json:"description,omitempty"`
}

// CollectionSchema is an ordered list of fields plus the primary key choice.
// The primary key is declared either with FieldSchema.IsPrimary or by naming
// it in PrimaryField; when both are present they must agree.
type CollectionSchema struct {
	Fields       []FieldSchema `json:"fields"`
	Description  string        `json:"description,omitempty"`
	PrimaryField string        `json:"primary_field,omitempty"`
}

// NewCollectionSchema builds and validates a schema.
func NewCollectionSchema(fields []FieldSchema, description, primaryField string) (*CollectionSchema, error) {
	s := &CollectionSchema{
		Fields:       append([]FieldSchema(nil), fields...),
		Description:  description,
		PrimaryField: primaryField,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks field names, vector dimensions and the primary key.
func (s *CollectionSchema) Validate() error {
	if s == nil || len(s.Fields) == 0 {
		return &SchemaError{Message: "schema must contain at least one field"}
	}

	seen := make(map[string]struct{}, len(s.Fields))
	flagged := ""
	for _, f := range s.Fields {
		if f.Name == "" {
			return &SchemaError{Message: "field name cannot be empty"}
		}
		if _, dup := seen[f.Name]; dup {
			return &SchemaError{Field: f.Name, Message: "duplicate field name"}
		}
		seen[f.Name] = struct{}{}

		if _, ok := dataTypeNames[f.DataType]; !ok || f.DataType == DataTypeNone {
			return &SchemaError{Field: f.Name, Message: fmt.Sprintf("unsupported data type %s", f.DataType)}
		}
		if f.DataType.IsVector() {
			if f.Dim <= 0 {
				return &SchemaError{Field: f.Name, Message: "vector dimension must be positive"}
			}
			if f.DataType == DataTypeBinaryVector && f.Dim%8 != 0 {
				return &SchemaError{Field: f.Name, Message: "binary vector dimension must be a multiple of 8"}
			}
		}
		if f.IsPrimary {
			if flagged != "" {
				return &SchemaError{Field: f.Name, Message: "more than one primary field"}
			}
			flagged = f.Name
		}
	}

	primary := flagged
	if s.PrimaryField != "" {
		if _, ok := seen[s.PrimaryField]; !ok {
			return &SchemaError{Field: s.PrimaryField, Message: "primary field does not exist"}
		}
		if flagged != "" && flagged != s.PrimaryField {
			return &SchemaError{Field: s.PrimaryField, Message: fmt.Sprintf("conflicts with primary flag on %q", flagged)}
		}
		primary = s.PrimaryField
	}
	if primary == "" {
		return &SchemaError{Message: "schema must have a primary field"}
	}

	pk, _ := s.Field(primary)
	if pk.DataType != DataTypeInt64 && pk.DataType != DataTypeVarChar {
		return &SchemaError{Field: primary, Message: "primary field must be INT64 or VARCHAR"}
	}
	return nil
}

// Field returns the named field.
func (s *CollectionSchema) Field(name string) (FieldSchema, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSchema{}, false
}

// Primary returns the primary field, resolving PrimaryField and IsPrimary.
func (s *CollectionSchema) Primary() (FieldSchema, bool) {
	if s.PrimaryField != "" {
		return s.Field(s.PrimaryField)
	}
	for _, f := range s.Fields {
		if f.IsPrimary {
			return f, true
		}
	}
	return FieldSchema{}, false
}

// Equivalent reports whether two schemas describe the same fields and primary key.
func (s *CollectionSchema) Equivalent(other *CollectionSchema) bool {
	if s == nil || other == nil || len(s.Fields) != len(other.Fields) {
		return false
	}
	for i, f := range s.Fields {
		o := other.Fields[i]
		if f.Name != o.Name || f.DataType != o.DataType || f.Dim != o.Dim || f.AutoID != o.AutoID {
			return false
		}
	}
	a, okA := s.Primary()
	b, okB := other.Primary()
	return okA == okB && a.Name == b.Name
}

// ArrowType returns the Arrow type used to carry values of the field.
func (f FieldSchema) ArrowType() (arrow.DataType, error) {
	switch f.DataType {
	case DataTypeBool:
		return arrow.FixedWidthTypes.Boolean, nil
	case DataTypeInt8:
		return arrow.PrimitiveTypes.Int8, nil
	case DataTypeInt16:
		return arrow.PrimitiveTypes.Int16, nil
	case DataTypeInt32:
		return arrow.PrimitiveTypes.Int32, nil
	case DataTypeInt64:
		return arrow.PrimitiveTypes.Int64, nil
	case DataTypeFloat:
		return arrow.PrimitiveTypes.Float32, nil
	case DataTypeDouble:
		return arrow.PrimitiveTypes.Float64, nil
	case DataTypeVarChar:
		return arrow.BinaryTypes.String, nil
	case DataTypeFloatVector:
		return arrow.FixedSizeListOf(int32(f.Dim), arrow.PrimitiveTypes.Float32), nil
	case DataTypeBinaryVector:
		return &arrow.FixedSizeBinaryType{ByteWidth: int(f.Dim / 8)}, nil
	default:
		return nil, &SchemaError{Field: f.Name, Message: fmt.Sprintf("no arrow mapping for %s", f.DataType)}
	}
}

// ArrowSchema converts the collection schema to the Arrow schema used on the wire.
func (s *CollectionSchema) ArrowSchema() (*arrow.Schema, error) {
	fields := make([]arrow.Field, 0, len(s.Fields))
	for _, f := range s.Fields {
		dt, err := f.ArrowType()
		if err != nil {
			return nil, err
		}
		fields = append(fields, arrow.Field{Name: f.Name, Type: dt})
	}
	return arrow.NewSchema(fields, nil), nil
}

// SchemaFromArrow infers a collection schema from an Arrow schema, the way a
// dataframe's column dtypes determine field types.
func SchemaFromArrow(as *arrow.Schema, primaryField string) (*CollectionSchema, error) {
	fields := make([]FieldSchema, 0, as.NumFields())
	for _, af := range as.Fields() {
		f := FieldSchema{Name: af.Name}
		switch t := af.Type.(type) {
		case *arrow.BooleanType:
			f.DataType = DataTypeBool
		case *arrow.Int8Type:
			f.DataType = DataTypeInt8
		case *arrow.Int16Type:
			f.DataType = DataTypeInt16
		case *arrow.Int32Type:
			f.DataType = DataTypeInt32
		case *arrow.Int64Type:
			f.DataType = DataTypeInt64
		case *arrow.Float32Type:
			f.DataType = DataTypeFloat
		case *arrow.Float64Type:
			f.DataType = DataTypeDouble
		case *arrow.StringType:
			f.DataType = DataTypeVarChar
		case *arrow.FixedSizeListType:
			if t.Elem().ID() != arrow.FLOAT32 {
				return nil, &SchemaError{Field: af.Name, Message: fmt.Sprintf("vector element type %s is not float32", t.Elem())}
			}
			f.DataType = DataTypeFloatVector
			f.Dim = int64(t.Len())
		case *arrow.FixedSizeBinaryType:
			f.DataType = DataTypeBinaryVector
			f.Dim = int64(t.ByteWidth) * 8
		default:
			return nil, &SchemaError{Field: af.Name, Message: fmt.Sprintf("cannot infer field type from %s", af.Type)}
		}
		fields = append(fields, f)
	}
	return NewCollectionSchema(fields, "", primaryField)
}
