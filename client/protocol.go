package client

// Flight action types understood by the collection service. Bodies are JSON.
const (
	ActionCreateCollection   = "create-collection"
	ActionDescribeCollection = "describe-collection"
	ActionLoadCollection     = "load-collection"
	ActionCreateIndex        = "create-index"
	ActionDropCollection     = "drop-collection"
	ActionSearch             = "search"
)

// CreateCollectionRequest is the body of ActionCreateCollection.
type CreateCollectionRequest struct {
	Name   string           `json:"name"`
	Schema CollectionSchema `json:"schema"`
}

// CollectionRequest names the collection for describe, load and drop.
type CollectionRequest struct {
	Name string `json:"name"`
}

// CreateIndexRequest is the body of ActionCreateIndex.
type CreateIndexRequest struct {
	Collection string      `json:"collection"`
	Field      string      `json:"field"`
	Index      IndexParams `json:"index"`
}

// SearchRequest is the body of ActionSearch.
type SearchRequest struct {
	Collection string      `json:"collection"`
	Field      string      `json:"field"`
	Vectors    [][]float32 `json:"vectors"`
	TopK       int         `json:"top_k"`
}

// SearchResult holds the hits for one query vector, closest first.
type SearchResult struct {
	IDs       []int64   `json:"ids"`
	Distances []float32 `json:"distances"`
}

// SearchResponse is the single result body of ActionSearch.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// CollectionInfo is the result body of ActionDescribeCollection.
type CollectionInfo struct {
	Name        string           `json:"name"`
	Schema      CollectionSchema `json:"schema"`
	NumEntities int64            `json:"num_entities"`
	Loaded      bool             `json:"loaded"`
	Indexes     []Index          `json:"indexes"`
}

// InsertResult is sent back as PutResult metadata after a DoPut.
type InsertResult struct {
	Inserted int64 `json:"inserted"`
}
