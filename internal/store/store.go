// Package store implements an in-memory Arrow Flight collection service. It
// speaks the protocol the client package uses and backs the harness's
// embedded mode and the package tests.
package store

import (
	"sort"
	"sync"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"

	"github.com/23skdu/longbow-smoke/client"
	"github.com/23skdu/longbow-smoke/internal/metrics"
)

// VectorStore implements flight.FlightServer over in-memory collections.
type VectorStore struct {
	flight.BaseFlightServer
	mem    memory.Allocator
	logger zerolog.Logger

	mu          sync.RWMutex // Protects collections
	collections map[string]*Collection
}

// NewVectorStore creates an empty store.
func NewVectorStore(mem memory.Allocator, logger zerolog.Logger) *VectorStore {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &VectorStore{
		mem:         mem,
		logger:      logger.With().Str("component", "store").Logger(),
		collections: make(map[string]*Collection),
	}
}

func (s *VectorStore) getCollection(name string) (*Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, ok := s.collections[name]
	if !ok {
		return nil, NewNotFoundError("collection", name)
	}
	return coll, nil
}

// createCollection registers a collection. Creating one that already exists
// with an equivalent schema returns the existing collection.
func (s *VectorStore) createCollection(name string, schema *client.CollectionSchema) (*Collection, bool, error) {
	if name == "" {
		return nil, false, NewInvalidArgumentError("name", "collection name cannot be empty")
	}
	if err := schema.Validate(); err != nil {
		return nil, false, NewInvalidArgumentError("schema", err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.collections[name]; ok {
		if existing.schema.Equivalent(schema) {
			return existing, false, nil
		}
		return nil, false, NewAlreadyExistsError("collection", name, "schema differs")
	}

	coll, err := newCollection(name, schema)
	if err != nil {
		return nil, false, err
	}
	s.collections[name] = coll
	metrics.StoreCollections.Set(float64(len(s.collections)))
	return coll, true, nil
}

func (s *VectorStore) dropCollection(name string) error {
	s.mu.Lock()
	coll, ok := s.collections[name]
	if !ok {
		s.mu.Unlock()
		return NewNotFoundError("collection", name)
	}
	delete(s.collections, name)
	metrics.StoreCollections.Set(float64(len(s.collections)))
	s.mu.Unlock()

	coll.release()
	return nil
}

// IterateCollections calls fn for every collection in name order.
func (s *VectorStore) IterateCollections(fn func(*Collection)) {
	s.mu.RLock()
	colls := make([]*Collection, 0, len(s.collections))
	for _, c := range s.collections {
		colls = append(colls, c)
	}
	s.mu.RUnlock()

	sort.Slice(colls, func(i, j int) bool { return colls[i].name < colls[j].name })
	for _, c := range colls {
		fn(c)
	}
}

// Close drops every collection and releases its records.
func (s *VectorStore) Close() error {
	s.mu.Lock()
	colls := s.collections
	s.collections = make(map[string]*Collection)
	metrics.StoreCollections.Set(0)
	s.mu.Unlock()

	for _, c := range colls {
		c.release()
	}
	return nil
}
