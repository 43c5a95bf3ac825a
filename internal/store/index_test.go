package store

import (
	"fmt"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/longbow-smoke/client"
	"github.com/23skdu/longbow-smoke/internal/datagen"
	"github.com/23skdu/longbow-smoke/internal/indexes"
	"github.com/23skdu/longbow-smoke/internal/metrics"
	"github.com/23skdu/longbow-smoke/internal/schemas"
)

func TestValidateIndex(t *testing.T) {
	floatField := client.FieldSchema{Name: "v", DataType: client.DataTypeFloatVector, Dim: 8}
	binaryField := client.FieldSchema{Name: "b", DataType: client.DataTypeBinaryVector, Dim: 8}
	scalarField := client.FieldSchema{Name: "x", DataType: client.DataTypeInt64}

	tests := []struct {
		name    string
		field   client.FieldSchema
		params  client.IndexParams
		wantErr bool
	}{
		{"ivf flat on float", floatField, indexes.Default(), false},
		{"bin flat on binary", binaryField, indexes.DefaultBinary(), false},
		{"bin flat on float", floatField, client.IndexParams{IndexType: client.IndexBinFlat, MetricType: client.MetricL2}, true},
		{"ivf flat on binary", binaryField, client.IndexParams{IndexType: client.IndexIVFFlat, MetricType: client.MetricJaccard}, true},
		{"binary metric on float", floatField, client.IndexParams{IndexType: client.IndexFlat, MetricType: client.MetricHamming}, true},
		{"float metric on binary", binaryField, client.IndexParams{IndexType: client.IndexBinFlat, MetricType: client.MetricL2}, true},
		{"scalar field", scalarField, indexes.Default(), true},
		{"missing type", floatField, client.IndexParams{MetricType: client.MetricL2}, true},
		{"unknown type", floatField, client.IndexParams{IndexType: "DISKANN", MetricType: client.MetricL2}, true},
		{"negative nlist", floatField, client.IndexParams{IndexType: client.IndexIVFFlat, MetricType: client.MetricL2, Params: client.IndexHyperParams{NList: -1}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateIndex(tt.field, tt.params)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateIndex_SimpleCatalog(t *testing.T) {
	f := client.FieldSchema{Name: "v", DataType: client.DataTypeFloatVector, Dim: 128}
	for _, p := range indexes.Simple() {
		assert.NoError(t, validateIndex(f, p), "index %s", p.IndexType)
	}
}

func TestScore(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	assert.Equal(t, float32(2), score(client.MetricL2, a, b))
	assert.Equal(t, float32(0), score(client.MetricL2, a, a))
	assert.Equal(t, float32(0), score(client.MetricIP, a, b))
	assert.Equal(t, float32(1), score(client.MetricIP, a, a))
	assert.InDelta(t, 1.0, score(client.MetricCosine, []float32{2, 0}, a), 1e-6)
	assert.Equal(t, float32(0), score(client.MetricCosine, []float32{0, 0}, a))
}

func TestSortHits(t *testing.T) {
	hits := []hit{{0, 3}, {1, 1}, {2, 2}}
	sortHits(hits, client.MetricL2)
	assert.Equal(t, []int64{1, 2, 0}, []int64{hits[0].row, hits[1].row, hits[2].row})

	sortHits(hits, client.MetricIP)
	assert.Equal(t, []int64{0, 2, 1}, []int64{hits[0].row, hits[1].row, hits[2].row})
}

func newLoadedCollection(t *testing.T, nb int, batches int) *Collection {
	t.Helper()
	coll, err := newCollection("c", schemas.Default(16))
	require.NoError(t, err)

	g := datagen.New(21)
	for b := 0; b < batches; b++ {
		cols, err := g.FloatEntities(nb, 16)
		require.NoError(t, err)
		ids := cols[0].(client.Int64Column)
		for i := range ids {
			ids[i] += int64(b * nb)
		}
		rec, err := client.BuildRecord(memory.NewGoAllocator(), coll.schema, cols)
		require.NoError(t, err)
		_, err = coll.insert(rec)
		rec.Release()
		require.NoError(t, err)
	}
	coll.load()
	return coll
}

func TestSearchFindsSelf(t *testing.T) {
	for _, p := range []client.IndexParams{
		indexes.Default(),
		{IndexType: client.IndexHNSW, MetricType: client.MetricL2, Params: client.IndexHyperParams{M: 16, EfConstruction: 500}},
		{IndexType: client.IndexRHNSWFlat, MetricType: client.MetricIP, Params: client.IndexHyperParams{M: 16, EfConstruction: 500}},
	} {
		t.Run(string(p.IndexType), func(t *testing.T) {
			coll := newLoadedCollection(t, 200, 3)
			defer coll.release()

			idx, err := coll.createIndex("float_vector", p)
			require.NoError(t, err)
			assert.Equal(t, int64(600), idx.builtRows)
			assert.Equal(t, p.IndexType.IsGraph(), idx.graph != nil)

			rows := newRowView(coll.records, 2, 0)
			queries := [][]float32{rows.vector(0), rows.vector(250), rows.vector(599)}
			results, err := coll.search("float_vector", queries, 5)
			require.NoError(t, err)
			require.Len(t, results, 3)

			assert.Equal(t, int64(0), results[0].IDs[0])
			assert.Equal(t, int64(250), results[1].IDs[0])
			assert.Equal(t, int64(599), results[2].IDs[0])
			for _, r := range results {
				assert.Len(t, r.IDs, 5)
				assert.Len(t, r.Distances, 5)
			}
		})
	}
}

func TestIndexFollowsInserts(t *testing.T) {
	coll := newLoadedCollection(t, 50, 1)
	defer coll.release()

	_, err := coll.createIndex("float_vector", client.IndexParams{IndexType: client.IndexHNSW, MetricType: client.MetricL2})
	require.NoError(t, err)

	cols, err := datagen.New(5).FloatEntities(10, 16)
	require.NoError(t, err)
	rec, err := client.BuildRecord(memory.NewGoAllocator(), coll.schema, cols)
	require.NoError(t, err)
	defer rec.Release()
	_, err = coll.insert(rec)
	require.NoError(t, err)

	info := coll.info()
	require.Len(t, info.Indexes, 1)
	assert.Equal(t, int64(60), info.Indexes[0].BuiltRows)
	assert.Equal(t, 60, coll.indexes["float_vector"].graph.Len())
}

func TestRowView(t *testing.T) {
	coll := newLoadedCollection(t, 10, 3)
	defer coll.release()

	rows := newRowView(coll.records, 2, 0)
	assert.Equal(t, int64(30), rows.len())
	assert.Equal(t, int64(0), rows.primaryKey(0))
	assert.Equal(t, int64(10), rows.primaryKey(10))
	assert.Equal(t, int64(29), rows.primaryKey(29))
	assert.Len(t, rows.vector(15), 16)
}

func loadedCollection(t *testing.T, seed int64, nb, dim int) (*Collection, client.FloatVectorColumn) {
	t.Helper()
	coll, err := newCollection("c", schemas.Default(int64(dim)))
	require.NoError(t, err)

	cols, err := datagen.New(seed).FloatEntities(nb, dim)
	require.NoError(t, err)
	rec, err := client.BuildRecord(memory.NewGoAllocator(), coll.schema, cols)
	require.NoError(t, err)
	defer rec.Release()
	_, err = coll.insert(rec)
	require.NoError(t, err)
	coll.load()
	return coll, cols[2].(client.FloatVectorColumn)
}

func TestSearchFindsSelfAtDefaultSize(t *testing.T) {
	if testing.Short() {
		t.Skip("builds 3000x128 graphs")
	}
	entry, ok := indexes.Lookup(client.IndexHNSW)
	require.True(t, ok)
	params := client.IndexParams{IndexType: entry.Type, MetricType: client.MetricL2, Params: entry.Params}

	for _, seed := range []int64{1, 2, 3} {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			coll, vectors := loadedCollection(t, seed, 3000, 128)
			defer coll.release()

			_, err := coll.createIndex("float_vector", params)
			require.NoError(t, err)

			queries := [][]float32{vectors[0], vectors[1], vectors[2], vectors[1499], vectors[2999]}
			want := []int64{0, 1, 2, 1499, 2999}
			results, err := coll.search("float_vector", queries, 5)
			require.NoError(t, err)
			require.Len(t, results, len(queries))
			for i, r := range results {
				require.Len(t, r.IDs, 5)
				assert.Equal(t, want[i], r.IDs[0])
				assert.InDelta(t, 0, r.Distances[0], 1e-6)
			}
		})
	}
	assert.Positive(t, testutil.CollectAndCount(metrics.StoreGraphRecall))
}

func TestGraphMIsCapped(t *testing.T) {
	coll := newLoadedCollection(t, 20, 1)
	defer coll.release()

	entry, _ := indexes.Lookup(client.IndexHNSW)
	require.Greater(t, entry.Params.M, maxGraphM)
	idx, err := coll.createIndex("float_vector", client.IndexParams{IndexType: entry.Type, MetricType: client.MetricL2, Params: entry.Params})
	require.NoError(t, err)

	assert.Equal(t, maxGraphM, idx.graph.M)
	assert.Equal(t, entry.Params.M, idx.describe().Params.Params.M)
}

func TestGraphDistanceFollowsMetric(t *testing.T) {
	q := []float32{3, 0}
	near := []float32{3, 1}
	far := []float32{4, 1}

	// Inner product prefers the longer vector even though it is farther away.
	ip := graphDistance(client.MetricIP)
	assert.Less(t, ip(q, far), ip(q, near))
	assert.Equal(t, -score(client.MetricIP, q, far), ip(q, far))

	l2 := graphDistance(client.MetricL2)
	assert.Less(t, l2(q, near), l2(q, far))
}

func TestRecallAgainstExactHits(t *testing.T) {
	coll, vectors := loadedCollection(t, 9, 300, 16)
	defer coll.release()

	idx, err := coll.createIndex("float_vector", client.IndexParams{IndexType: client.IndexHNSW, MetricType: client.MetricL2})
	require.NoError(t, err)

	rows := newRowView(coll.records, 2, 0)
	exact := bruteForce(vectors[7], 5, client.MetricL2, rows)
	r, ok := idx.recall(vectors[7], exact)
	require.True(t, ok)
	assert.GreaterOrEqual(t, r, 0.0)
	assert.LessOrEqual(t, r, 1.0)

	_, ok = idx.recall(vectors[7], bruteForce(vectors[7], defaultGraphEfSearch+1, client.MetricL2, rows))
	assert.False(t, ok)

	flat, err := coll.createIndex("float_vector", indexes.Default())
	require.NoError(t, err)
	_, ok = flat.recall(vectors[7], exact)
	assert.False(t, ok)
}
