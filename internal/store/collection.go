package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/coder/hnsw"

	"github.com/23skdu/longbow-smoke/client"
	"github.com/23skdu/longbow-smoke/internal/metrics"
)

// Collection holds the records inserted under one name plus the indexes
// built on its vector fields.
type Collection struct {
	name        string
	schema      *client.CollectionSchema
	arrowSchema *arrow.Schema
	primary     client.FieldSchema

	mu      sync.RWMutex // Protects records, rows, loaded, indexes
	records []arrow.Record
	rows    int64
	loaded  bool
	indexes map[string]*fieldIndex
}

func newCollection(name string, schema *client.CollectionSchema) (*Collection, error) {
	as, err := schema.ArrowSchema()
	if err != nil {
		return nil, NewInvalidArgumentError("schema", err.Error())
	}
	primary, _ := schema.Primary()
	return &Collection{
		name:        name,
		schema:      schema,
		arrowSchema: as,
		primary:     primary,
		indexes:     make(map[string]*fieldIndex),
	}, nil
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// NumEntities returns the number of stored rows.
func (c *Collection) NumEntities() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rows
}

// conform checks rec against the collection schema and returns a record with
// the columns in schema order. Fields are matched by name.
func (c *Collection) conform(rec arrow.Record) (arrow.Record, error) {
	if int(rec.NumCols()) != len(c.schema.Fields) {
		return nil, NewSchemaMismatchError(c.name,
			fmt.Sprintf("record has %d columns, schema has %d fields", rec.NumCols(), len(c.schema.Fields)))
	}

	cols := make([]arrow.Array, len(c.schema.Fields))
	for i, want := range c.arrowSchema.Fields() {
		idx := rec.Schema().FieldIndices(want.Name)
		if len(idx) != 1 {
			return nil, NewSchemaMismatchError(c.name, fmt.Sprintf("missing field %q", want.Name))
		}
		col := rec.Column(idx[0])

		if !arrow.TypeEqual(want.Type, col.DataType()) {
			if wantFSL, ok := want.Type.(*arrow.FixedSizeListType); ok {
				if gotFSL, ok := col.DataType().(*arrow.FixedSizeListType); ok && arrow.TypeEqual(wantFSL.Elem(), gotFSL.Elem()) {
					return nil, NewDimensionMismatchError(c.name, int(wantFSL.Len()), int(gotFSL.Len()))
				}
			}
			return nil, NewSchemaMismatchError(c.name,
				fmt.Sprintf("field %q has type %s, want %s", want.Name, col.DataType(), want.Type))
		}
		if want.Name == c.primary.Name && col.NullN() > 0 {
			return nil, NewInvalidArgumentError(want.Name, "primary key values cannot be null")
		}
		cols[i] = col
	}
	return array.NewRecord(c.arrowSchema, cols, rec.NumRows()), nil
}

// insert appends rec and feeds the new rows to existing indexes. A row batch
// that an index rejects is not stored.
func (c *Collection) insert(rec arrow.Record) (int64, error) {
	conformed, err := c.conform(rec)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	base := c.rows
	pending := make(map[*fieldIndex][]hnsw.Node[int64], len(c.indexes))
	for field, idx := range c.indexes {
		nodes, err := idx.prepare(base, conformed.Column(c.fieldPos(field)))
		if err != nil {
			conformed.Release()
			return 0, NewInternalError("index insert", err)
		}
		pending[idx] = nodes
	}
	for idx, nodes := range pending {
		idx.commit(conformed.NumRows(), nodes)
	}

	c.records = append(c.records, conformed)
	c.rows += conformed.NumRows()
	return conformed.NumRows(), nil
}

func (c *Collection) fieldPos(name string) int {
	for i, f := range c.schema.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func (c *Collection) load() {
	c.mu.Lock()
	c.loaded = true
	c.mu.Unlock()
}

// createIndex builds an index on field over every stored row and replaces
// any index the field already had.
func (c *Collection) createIndex(field string, params client.IndexParams) (*fieldIndex, error) {
	f, ok := c.schema.Field(field)
	if !ok {
		return nil, NewNotFoundError("field", field)
	}
	if err := validateIndex(f, params); err != nil {
		return nil, err
	}

	idx := newFieldIndex(f, params)

	c.mu.Lock()
	defer c.mu.Unlock()

	pos := c.fieldPos(field)
	var base int64
	for _, rec := range c.records {
		if err := idx.add(base, rec.Column(pos)); err != nil {
			return nil, NewInternalError("index build", err)
		}
		base += rec.NumRows()
	}
	c.indexes[field] = idx
	return idx, nil
}

// indexList returns the indexes sorted by field name.
func (c *Collection) indexList() []client.Index {
	out := make([]client.Index, 0, len(c.indexes))
	for _, idx := range c.indexes {
		out = append(out, idx.describe())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

func (c *Collection) info() client.CollectionInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return client.CollectionInfo{
		Name:        c.name,
		Schema:      *c.schema,
		NumEntities: c.rows,
		Loaded:      c.loaded,
		Indexes:     c.indexList(),
	}
}

// search answers a float vector query with an exact scan, so a stored vector
// is always its own best match. A graph index on the field is queried
// alongside and its recall against the exact hits is recorded.
func (c *Collection) search(field string, queries [][]float32, topK int) ([]client.SearchResult, error) {
	f, ok := c.schema.Field(field)
	if !ok {
		return nil, NewNotFoundError("field", field)
	}
	if f.DataType != client.DataTypeFloatVector {
		return nil, NewInvalidArgumentError(field, "search needs a float vector field")
	}
	if c.primary.DataType != client.DataTypeInt64 {
		return nil, NewInvalidArgumentError(c.primary.Name, "search needs an INT64 primary key")
	}
	if topK <= 0 {
		return nil, NewInvalidArgumentError("top_k", "must be positive")
	}
	for _, q := range queries {
		if int64(len(q)) != f.Dim {
			return nil, NewDimensionMismatchError(c.name, int(f.Dim), len(q))
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.loaded {
		return nil, NewFailedPreconditionError(c.name, "collection is not loaded")
	}

	rows := newRowView(c.records, c.fieldPos(field), c.fieldPos(c.primary.Name))
	metric := client.MetricL2
	idx := c.indexes[field]
	if idx != nil {
		metric = idx.params.MetricType
	}

	results := make([]client.SearchResult, len(queries))
	for i, q := range queries {
		hits := bruteForce(q, topK, metric, rows)
		if idx != nil {
			if r, ok := idx.recall(q, hits); ok {
				metrics.StoreGraphRecall.WithLabelValues(string(idx.params.IndexType)).Observe(r)
			}
		}
		res := client.SearchResult{
			IDs:       make([]int64, len(hits)),
			Distances: make([]float32, len(hits)),
		}
		for j, h := range hits {
			res.IDs[j] = rows.primaryKey(h.row)
			res.Distances[j] = h.distance
		}
		results[i] = res
	}
	return results, nil
}

func (c *Collection) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range c.records {
		rec.Release()
	}
	c.records = nil
	c.rows = 0
	c.indexes = make(map[string]*fieldIndex)
}
