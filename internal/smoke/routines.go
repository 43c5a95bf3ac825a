package smoke

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/23skdu/longbow-smoke/client"
	"github.com/23skdu/longbow-smoke/internal/indexes"
	"github.com/23skdu/longbow-smoke/internal/schemas"
	"github.com/23skdu/longbow-smoke/internal/storage"
)

const (
	routineCreateCollection = "create_collection"
	routineOnlyName         = "collection_only_name"
	routineDataFrame        = "collection_with_dataframe"
	routineFloatIndex       = "create_index_float_vector"
	routineBinaryIndex      = "create_index_binary_vector"
	routinePrimaryKey       = "specify_primary_key"
	routineSearch           = "search_float_vector"

	searchQueries = 5
	searchTopK    = 5
)

// Routine is one smoke check. Banner is logged before it runs.
type Routine struct {
	Name   string
	Banner string
	Run    func(ctx context.Context, s *Suite) error
}

// Routines returns every routine in run order.
func Routines() []Routine {
	return []Routine{
		{Name: routineCreateCollection, Banner: "test collection", Run: testCreateCollection},
		{Name: routineOnlyName, Banner: "test collection only name", Run: testCollectionOnlyName},
		{Name: routineDataFrame, Banner: "test collection with dataframe", Run: testCollectionWithDataFrame},
		{Name: routineFloatIndex, Banner: "test collection index float vector", Run: testCreateIndexFloatVector},
		{Name: routineBinaryIndex, Banner: "test collection binary vector", Run: testCreateIndexBinaryVector},
		{Name: routinePrimaryKey, Banner: "test collection specify primary key", Run: testSpecifyPrimaryKey},
		{Name: routineSearch, Banner: "test collection search float vector", Run: testSearchFloatVector},
	}
}

// RoutineNames returns the routine names in run order.
func RoutineNames() []string {
	routines := Routines()
	names := make([]string, len(routines))
	for i, r := range routines {
		names[i] = r.Name
	}
	return names
}

func (s *Suite) create(ctx context.Context, schema *client.CollectionSchema, opts ...client.CollectionOption) (*client.Collection, error) {
	name := s.gen.UniqueName("")
	coll, err := s.client.CreateCollection(ctx, name, schema, opts...)
	if err != nil {
		return nil, callError("create_collection", err)
	}
	s.track(coll)
	return coll, nil
}

func testCreateCollection(ctx context.Context, s *Suite) error {
	coll, err := s.create(ctx, schemas.Default(int64(s.cfg.Dim)))
	if err != nil {
		return err
	}

	empty, err := coll.IsEmpty(ctx)
	if err != nil {
		return callError("is_empty", err)
	}
	if err := expectTrue(routineCreateCollection, empty, "new collection is not empty"); err != nil {
		return err
	}
	n, err := coll.NumEntities(ctx)
	if err != nil {
		return callError("num_entities", err)
	}
	if err := expectEqual(routineCreateCollection, "num_entities", int64(0), n); err != nil {
		return err
	}
	return s.drop(ctx, coll)
}

func testCollectionOnlyName(ctx context.Context, s *Suite) error {
	created, err := s.create(ctx, schemas.Default(int64(s.cfg.Dim)))
	if err != nil {
		return err
	}

	coll, err := s.client.Collection(ctx, created.Name())
	if err != nil {
		return callError("open_collection", err)
	}

	data, err := s.floatData(coll.Name())
	if err != nil {
		return err
	}
	if _, err := coll.Insert(ctx, data...); err != nil {
		return callError("insert", err)
	}
	if err := coll.Load(ctx); err != nil {
		return callError("load", err)
	}
	return s.expectRows(ctx, routineOnlyName, coll, int64(s.cfg.NB))
}

func testCollectionWithDataFrame(ctx context.Context, s *Suite) error {
	var (
		rec arrow.Record
		err error
	)
	if s.cfg.DataFrameFile != "" {
		rec, err = storage.LoadRecord(ctx, s.cfg.DataFrameFile, s.mem)
	} else {
		rec, err = s.gen.DataFrame(s.cfg.NB, s.cfg.Dim)
	}
	if err != nil {
		return err
	}
	defer rec.Release()

	name := s.gen.UniqueName("")
	coll, _, err := s.client.ConstructFromRecord(ctx, name, rec, schemas.FieldInt64)
	if coll != nil {
		s.track(coll)
	}
	if err != nil {
		if h, herr := s.client.Collection(ctx, name); herr == nil {
			s.track(h)
		}
		return callError("construct_from_dataframe", err)
	}

	if err := coll.Load(ctx); err != nil {
		return callError("load", err)
	}
	return s.expectRows(ctx, routineDataFrame, coll, rec.NumRows())
}

func (s *Suite) expectRows(ctx context.Context, op string, coll *client.Collection, want int64) error {
	empty, err := coll.IsEmpty(ctx)
	if err != nil {
		return callError("is_empty", err)
	}
	if err := expectTrue(op, !empty, "collection is empty after insert"); err != nil {
		return err
	}
	n, err := coll.NumEntities(ctx)
	if err != nil {
		return callError("num_entities", err)
	}
	if err := expectEqual(op, "num_entities", want, n); err != nil {
		return err
	}
	return s.drop(ctx, coll)
}

func testCreateIndexFloatVector(ctx context.Context, s *Suite) error {
	return s.indexAllSimple(ctx, routineFloatIndex, schemas.Default(int64(s.cfg.Dim)), nil)
}

// indexAllSimple creates a collection with float data, builds every simple
// index on the float vector field and checks the index list. A nil data
// batch is generated.
func (s *Suite) indexAllSimple(ctx context.Context, op string, schema *client.CollectionSchema, data []client.Column) error {
	name := s.gen.UniqueName("")
	if data == nil {
		var err error
		if data, err = s.floatData(name); err != nil {
			return err
		}
	}

	coll, err := s.client.CreateCollection(ctx, name, schema, client.WithData(data...))
	if err != nil {
		if h, herr := s.client.Collection(ctx, name); herr == nil {
			s.track(h)
		}
		return callError("create_collection", err)
	}
	s.track(coll)

	for _, params := range indexes.Simple() {
		if err := coll.CreateIndex(ctx, schemas.FieldFloatVector, params); err != nil {
			return callError("create_index", err)
		}
		s.logger.Debug().
			Str("collection", name).
			Str("index_type", string(params.IndexType)).
			Msg("Index created")
	}

	idx, err := coll.Indexes(ctx)
	if err != nil {
		return callError("indexes", err)
	}
	if err := expectTrue(op, len(idx) != 0, "index list is empty after create_index"); err != nil {
		return err
	}
	return s.drop(ctx, coll)
}

func testCreateIndexBinaryVector(ctx context.Context, s *Suite) error {
	coll, err := s.create(ctx, schemas.Binary(int64(s.cfg.Dim)))
	if err != nil {
		return err
	}

	data, err := s.gen.BinaryEntities(s.cfg.NB, s.cfg.Dim)
	if err != nil {
		return err
	}
	if _, err := coll.Insert(ctx, data...); err != nil {
		return callError("insert", err)
	}
	if err := coll.CreateIndex(ctx, schemas.FieldBinaryVector, indexes.DefaultBinary()); err != nil {
		return callError("create_index", err)
	}

	idx, err := coll.Indexes(ctx)
	if err != nil {
		return callError("indexes", err)
	}
	if err := expectTrue(routineBinaryIndex, len(idx) != 0, "index list is empty after create_index"); err != nil {
		return err
	}
	return s.drop(ctx, coll)
}

func testSpecifyPrimaryKey(ctx context.Context, s *Suite) error {
	data, err := s.gen.FloatEntities(s.cfg.NB, s.cfg.Dim)
	if err != nil {
		return err
	}
	dim := int64(s.cfg.Dim)
	if err := s.indexAllSimple(ctx, routinePrimaryKey, schemas.WithPrimaryKeyFlag(dim), data); err != nil {
		return err
	}
	return s.indexAllSimple(ctx, routinePrimaryKey, schemas.WithPrimaryFieldName(dim), data)
}

func testSearchFloatVector(ctx context.Context, s *Suite) error {
	name := s.gen.UniqueName("")
	data, err := s.floatData(name)
	if err != nil {
		return err
	}
	coll, err := s.client.CreateCollection(ctx, name, schemas.Default(int64(s.cfg.Dim)), client.WithData(data...))
	if err != nil {
		if h, herr := s.client.Collection(ctx, name); herr == nil {
			s.track(h)
		}
		return callError("create_collection", err)
	}
	s.track(coll)

	entry, _ := indexes.Lookup(client.IndexHNSW)
	params := client.IndexParams{IndexType: entry.Type, MetricType: client.MetricL2, Params: entry.Params}
	if err := coll.CreateIndex(ctx, schemas.FieldFloatVector, params); err != nil {
		return callError("create_index", err)
	}
	if err := coll.Load(ctx); err != nil {
		return callError("load", err)
	}

	vectors := data[2].(client.FloatVectorColumn)
	n := searchQueries
	if len(vectors) < n {
		n = len(vectors)
	}
	results, err := coll.Search(ctx, schemas.FieldFloatVector, vectors[:n], searchTopK)
	if err != nil {
		return callError("search", err)
	}
	if err := expectEqual(routineSearch, "result sets", n, len(results)); err != nil {
		return err
	}
	ids := data[0].(client.Int64Column)
	for i, res := range results {
		if err := expectTrue(routineSearch, len(res.IDs) > 0, "search returned no hits"); err != nil {
			return err
		}
		if err := expectEqual(routineSearch, "top hit id", ids[i], res.IDs[0]); err != nil {
			return err
		}
	}
	return s.drop(ctx, coll)
}
