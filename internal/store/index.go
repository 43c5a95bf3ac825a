package store

import (
	"fmt"
	"math"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/coder/hnsw"

	"github.com/23skdu/longbow-smoke/client"
)

const (
	defaultGraphM        = 16
	maxGraphM            = 16
	defaultGraphEfSearch = 64
)

// validateIndex checks that params suit the field. Float vector fields take
// the non-binary index types with L2, IP or COSINE; binary vector fields take
// BIN_FLAT or BIN_IVF_FLAT with a binary metric.
func validateIndex(f client.FieldSchema, params client.IndexParams) error {
	if params.IndexType == "" {
		return NewInvalidArgumentError("index_type", "index type is required")
	}
	switch f.DataType {
	case client.DataTypeFloatVector:
		if params.IndexType.IsBinary() {
			return NewInvalidArgumentError("index_type",
				fmt.Sprintf("%s applies to binary vectors, %s is a float vector field", params.IndexType, f.Name))
		}
		switch params.MetricType {
		case client.MetricL2, client.MetricIP, client.MetricCosine:
		default:
			return NewInvalidArgumentError("metric_type",
				fmt.Sprintf("%s is not a float vector metric", params.MetricType))
		}
	case client.DataTypeBinaryVector:
		if !params.IndexType.IsBinary() {
			return NewInvalidArgumentError("index_type",
				fmt.Sprintf("%s does not apply to binary vector field %s", params.IndexType, f.Name))
		}
		if !params.MetricType.IsBinary() {
			return NewInvalidArgumentError("metric_type",
				fmt.Sprintf("%s is not a binary vector metric", params.MetricType))
		}
	default:
		return NewInvalidArgumentError("field", fmt.Sprintf("%s is not a vector field", f.Name))
	}

	if !knownIndexType(params.IndexType) {
		return NewInvalidArgumentError("index_type", fmt.Sprintf("unknown index type %s", params.IndexType))
	}
	if params.Params.NList < 0 || params.Params.M < 0 || params.Params.EfConstruction < 0 {
		return NewInvalidArgumentError("params", "index parameters cannot be negative")
	}
	return nil
}

func knownIndexType(t client.IndexType) bool {
	switch t {
	case client.IndexFlat, client.IndexIVFFlat, client.IndexIVFSQ8, client.IndexIVFSQ8Hybrid,
		client.IndexIVFPQ, client.IndexHNSW, client.IndexNSG, client.IndexANNOY,
		client.IndexRHNSWFlat, client.IndexRHNSWPQ, client.IndexRHNSWSQ,
		client.IndexBinFlat, client.IndexBinIVFFlat:
		return true
	}
	return false
}

// fieldIndex is the index attached to one vector field. Graph index types
// keep an HNSW graph keyed by row ordinal; the rest only record their
// parameters and are served by exhaustive search.
type fieldIndex struct {
	field     string
	params    client.IndexParams
	builtRows int64
	graph     *hnsw.Graph[int64]
}

func newFieldIndex(f client.FieldSchema, params client.IndexParams) *fieldIndex {
	idx := &fieldIndex{field: f.Name, params: params}
	if params.IndexType.IsGraph() && f.DataType == client.DataTypeFloatVector {
		g := hnsw.NewGraph[int64]()
		g.M = defaultGraphM
		if m := params.Params.M; m > 0 {
			g.M = min(m, maxGraphM)
		}
		g.EfSearch = defaultGraphEfSearch
		g.Distance = graphDistance(params.MetricType)
		idx.graph = g
	}
	return idx
}

// graphDistance orders graph neighbours the same way score ranks hits.
func graphDistance(m client.MetricType) hnsw.DistanceFunc {
	switch m {
	case client.MetricIP:
		return innerProductDistance
	case client.MetricCosine:
		return hnsw.CosineDistance
	default:
		return hnsw.EuclideanDistance
	}
}

func innerProductDistance(a, b []float32) float32 {
	return -dot(a, b)
}

// prepare turns the rows of col, whose first row has ordinal base, into
// graph nodes. Nothing is added until commit.
func (idx *fieldIndex) prepare(base int64, col arrow.Array) ([]hnsw.Node[int64], error) {
	if idx.graph == nil {
		return nil, nil
	}
	fsl, ok := col.(*array.FixedSizeList)
	if !ok {
		return nil, fmt.Errorf("field %s: expected fixed size list, got %s", idx.field, col.DataType())
	}
	values, ok := fsl.ListValues().(*array.Float32)
	if !ok {
		return nil, fmt.Errorf("field %s: expected float32 values", idx.field)
	}
	nodes := make([]hnsw.Node[int64], 0, fsl.Len())
	for i := 0; i < fsl.Len(); i++ {
		start, end := fsl.ValueOffsets(i)
		vec := make([]float32, end-start)
		copy(vec, values.Float32Values()[start:end])
		nodes = append(nodes, hnsw.MakeNode(base+int64(i), vec))
	}
	return nodes, nil
}

func (idx *fieldIndex) commit(rows int64, nodes []hnsw.Node[int64]) {
	if idx.graph != nil && len(nodes) > 0 {
		idx.graph.Add(nodes...)
	}
	idx.builtRows += rows
}

// add indexes the rows of col, whose first row has ordinal base.
func (idx *fieldIndex) add(base int64, col arrow.Array) error {
	nodes, err := idx.prepare(base, col)
	if err != nil {
		return err
	}
	idx.commit(int64(col.Len()), nodes)
	return nil
}

func (idx *fieldIndex) describe() client.Index {
	return client.Index{Field: idx.field, Params: idx.params, BuiltRows: idx.builtRows}
}

type hit struct {
	row      int64
	distance float32
}

// recall returns the fraction of exact hits the graph also finds for q.
// Queries wider than EfSearch are not measured.
func (idx *fieldIndex) recall(q []float32, exact []hit) (float64, bool) {
	if idx.graph == nil || idx.graph.Len() == 0 || len(exact) == 0 || len(exact) > idx.graph.EfSearch {
		return 0, false
	}
	found := make(map[int64]bool, len(exact))
	for _, n := range idx.graph.Search(q, len(exact)) {
		found[n.Key] = true
	}
	var n int
	for _, h := range exact {
		if found[h.row] {
			n++
		}
	}
	return float64(n) / float64(len(exact)), true
}

func bruteForce(q []float32, k int, metric client.MetricType, rows *rowView) []hit {
	hits := make([]hit, 0, rows.len())
	for r := int64(0); r < rows.len(); r++ {
		hits = append(hits, hit{row: r, distance: score(metric, q, rows.vector(r))})
	}
	sortHits(hits, metric)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// score returns squared L2 distance for L2, and the inner product or cosine
// similarity for IP and COSINE.
func score(metric client.MetricType, a, b []float32) float32 {
	switch metric {
	case client.MetricIP:
		return dot(a, b)
	case client.MetricCosine:
		na, nb := math.Sqrt(float64(dot(a, a))), math.Sqrt(float64(dot(b, b)))
		if na == 0 || nb == 0 {
			return 0
		}
		return float32(float64(dot(a, b)) / (na * nb))
	default:
		var sum float32
		for i := range a {
			d := a[i] - b[i]
			sum += d * d
		}
		return sum
	}
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// sortHits orders hits best first: ascending distance for L2, descending
// similarity otherwise. Ties keep row order.
func sortHits(hits []hit, metric client.MetricType) {
	sort.SliceStable(hits, func(i, j int) bool {
		if metric == client.MetricIP || metric == client.MetricCosine {
			return hits[i].distance > hits[j].distance
		}
		return hits[i].distance < hits[j].distance
	})
}

// rowView addresses the rows of a collection by global ordinal.
type rowView struct {
	vectors []*array.FixedSizeList
	keys    []*array.Int64
	starts  []int64
	total   int64
}

func newRowView(records []arrow.Record, vecPos, pkPos int) *rowView {
	v := &rowView{}
	for _, rec := range records {
		v.vectors = append(v.vectors, rec.Column(vecPos).(*array.FixedSizeList))
		v.keys = append(v.keys, rec.Column(pkPos).(*array.Int64))
		v.starts = append(v.starts, v.total)
		v.total += rec.NumRows()
	}
	return v
}

func (v *rowView) len() int64 { return v.total }

func (v *rowView) locate(row int64) (int, int) {
	b := sort.Search(len(v.starts), func(i int) bool { return v.starts[i] > row }) - 1
	return b, int(row - v.starts[b])
}

func (v *rowView) vector(row int64) []float32 {
	b, i := v.locate(row)
	fsl := v.vectors[b]
	start, end := fsl.ValueOffsets(i)
	return fsl.ListValues().(*array.Float32).Float32Values()[start:end]
}

func (v *rowView) primaryKey(row int64) int64 {
	b, i := v.locate(row)
	return v.keys[b].Value(i)
}
