package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"

	"github.com/23skdu/longbow-smoke/internal/metrics"
)

// Client is a connection to a collection service.
type Client struct {
	conn *SmartClient
	mem  memory.Allocator
}

// Option configures Connect.
type Option func(*options)

type options struct {
	dialOpts []grpc.DialOption
	mem      memory.Allocator
}

// WithDialOptions replaces the default gRPC dial options.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *options) { o.dialOpts = opts }
}

// WithAllocator sets the allocator used to build Arrow records.
func WithAllocator(mem memory.Allocator) Option {
	return func(o *options) { o.mem = mem }
}

// Connect opens a client for the service at addr.
func Connect(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	o := options{mem: memory.NewGoAllocator()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := NewSmartClient(addr, o.dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, mem: o.mem}, nil
}

// Addr returns the service address.
func (c *Client) Addr() string {
	return c.conn.Addr()
}

// Close releases the underlying connections.
func (c *Client) Close() error {
	return c.conn.Close()
}

// CollectionOption configures CreateCollection.
type CollectionOption func(*collectionOptions)

type collectionOptions struct {
	data []Column
}

// WithData inserts the given columns right after the collection is created.
func WithData(cols ...Column) CollectionOption {
	return func(o *collectionOptions) { o.data = cols }
}

// CreateCollection creates a collection with the given schema. Creating a
// collection that already exists with an equivalent schema returns it.
func (c *Client) CreateCollection(ctx context.Context, name string, schema *CollectionSchema, opts ...CollectionOption) (*Collection, error) {
	var o collectionOptions
	for _, opt := range opts {
		opt(&o)
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	req := CreateCollectionRequest{Name: name, Schema: *schema}
	if _, err := c.action(ctx, ActionCreateCollection, req); err != nil {
		return nil, fmt.Errorf("create collection %s: %w", name, err)
	}

	coll := &Collection{client: c, name: name, schema: schema}
	if len(o.data) > 0 {
		if _, err := coll.Insert(ctx, o.data...); err != nil {
			return nil, err
		}
	}
	return coll, nil
}

// Collection opens an existing collection by name.
func (c *Client) Collection(ctx context.Context, name string) (*Collection, error) {
	info, err := c.describe(ctx, name)
	if err != nil {
		return nil, err
	}
	schema := info.Schema
	return &Collection{client: c, name: name, schema: &schema}, nil
}

// HasCollection reports whether the named collection exists.
func (c *Client) HasCollection(ctx context.Context, name string) (bool, error) {
	_, err := c.describe(ctx, name)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListCollections returns the collection names known to the service.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	start := time.Now()
	infos, err := c.conn.ListFlights(ctx, nil)
	observe("ListCollections", start, err)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if d := info.GetFlightDescriptor(); d != nil && len(d.Path) > 0 {
			names = append(names, d.Path[0])
		}
	}
	sort.Strings(names)
	return names, nil
}

// ConstructFromRecord creates a collection whose schema is inferred from the
// record, then inserts the record.
func (c *Client) ConstructFromRecord(ctx context.Context, name string, rec arrow.Record, primaryField string) (*Collection, InsertResult, error) {
	schema, err := SchemaFromArrow(rec.Schema(), primaryField)
	if err != nil {
		return nil, InsertResult{}, err
	}
	coll, err := c.CreateCollection(ctx, name, schema)
	if err != nil {
		return nil, InsertResult{}, err
	}
	res, err := coll.InsertRecord(ctx, rec)
	if err != nil {
		return nil, InsertResult{}, err
	}
	return coll, res, nil
}

func (c *Client) describe(ctx context.Context, name string) (*CollectionInfo, error) {
	bodies, err := c.action(ctx, ActionDescribeCollection, CollectionRequest{Name: name})
	if err != nil {
		return nil, fmt.Errorf("describe collection %s: %w", name, err)
	}
	if len(bodies) == 0 {
		return nil, fmt.Errorf("describe collection %s: empty response", name)
	}
	var info CollectionInfo
	if err := json.Unmarshal(bodies[0], &info); err != nil {
		return nil, fmt.Errorf("describe collection %s: decode response: %w", name, err)
	}
	return &info, nil
}

func (c *Client) action(ctx context.Context, typ string, req any) ([][]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	bodies, err := c.conn.DoAction(ctx, &flight.Action{Type: typ, Body: body})
	observe(typ, start, err)
	return bodies, err
}

func observe(method string, start time.Time, err error) {
	metrics.ClientOperationsTotal.WithLabelValues(method, metrics.Status(err)).Inc()
	metrics.ClientOperationDurationSeconds.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

// Collection is a handle on a named collection.
type Collection struct {
	client *Client
	name   string
	schema *CollectionSchema
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Schema returns the collection schema.
func (c *Collection) Schema() *CollectionSchema { return c.schema }

// Insert builds a record from columns matched positionally to the schema
// fields and sends it to the service.
func (c *Collection) Insert(ctx context.Context, cols ...Column) (InsertResult, error) {
	rec, err := BuildRecord(c.client.mem, c.schema, cols)
	if err != nil {
		return InsertResult{}, fmt.Errorf("insert into %s: %w", c.name, err)
	}
	defer rec.Release()
	return c.InsertRecord(ctx, rec)
}

// InsertRecord streams an Arrow record to the collection with DoPut.
func (c *Collection) InsertRecord(ctx context.Context, rec arrow.Record) (InsertResult, error) {
	start := time.Now()
	res, err := c.put(ctx, rec)
	observe("Insert", start, err)
	if err != nil {
		return InsertResult{}, fmt.Errorf("insert into %s: %w", c.name, err)
	}
	metrics.ClientRowsSentTotal.Add(float64(rec.NumRows()))
	return res, nil
}

func (c *Collection) put(ctx context.Context, rec arrow.Record) (InsertResult, error) {
	desc := &flight.FlightDescriptor{
		Type: flight.DescriptorPATH,
		Path: []string{c.name},
	}

	stream, err := c.client.conn.DoPut(ctx, desc)
	if err != nil {
		return InsertResult{}, err
	}

	wr := flight.NewRecordWriter(stream, ipc.WithSchema(rec.Schema()))
	wr.SetFlightDescriptor(desc)
	writeErr := wr.Write(rec)
	if err := wr.Close(); err != nil && writeErr == nil {
		writeErr = err
	}
	if err := stream.CloseSend(); err != nil && writeErr == nil {
		writeErr = err
	}

	// The server's verdict arrives on the result stream; it explains a
	// failed write better than the write error itself.
	var res InsertResult
	for {
		pr, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return InsertResult{}, err
		}
		if len(pr.AppMetadata) > 0 {
			if err := json.Unmarshal(pr.AppMetadata, &res); err != nil {
				return InsertResult{}, fmt.Errorf("decode put result: %w", err)
			}
		}
	}
	if writeErr != nil {
		return InsertResult{}, writeErr
	}
	return res, nil
}

// Load makes the collection searchable.
func (c *Collection) Load(ctx context.Context) error {
	if _, err := c.client.action(ctx, ActionLoadCollection, CollectionRequest{Name: c.name}); err != nil {
		return fmt.Errorf("load collection %s: %w", c.name, err)
	}
	return nil
}

// CreateIndex builds an index on a vector field, replacing any existing one.
func (c *Collection) CreateIndex(ctx context.Context, field string, params IndexParams) error {
	req := CreateIndexRequest{Collection: c.name, Field: field, Index: params}
	if _, err := c.client.action(ctx, ActionCreateIndex, req); err != nil {
		return fmt.Errorf("create %s index on %s.%s: %w", params.IndexType, c.name, field, err)
	}
	return nil
}

// Describe returns the service's view of the collection.
func (c *Collection) Describe(ctx context.Context) (*CollectionInfo, error) {
	return c.client.describe(ctx, c.name)
}

// Indexes returns the indexes attached to the collection.
func (c *Collection) Indexes(ctx context.Context) ([]Index, error) {
	info, err := c.Describe(ctx)
	if err != nil {
		return nil, err
	}
	return info.Indexes, nil
}

// NumEntities returns the number of rows stored in the collection.
func (c *Collection) NumEntities(ctx context.Context) (int64, error) {
	start := time.Now()
	info, err := c.client.conn.GetFlightInfo(ctx, &flight.FlightDescriptor{
		Type: flight.DescriptorPATH,
		Path: []string{c.name},
	})
	observe("NumEntities", start, err)
	if err != nil {
		return 0, fmt.Errorf("count entities in %s: %w", c.name, err)
	}
	return info.GetTotalRecords(), nil
}

// IsEmpty reports whether the collection holds no rows.
func (c *Collection) IsEmpty(ctx context.Context) (bool, error) {
	n, err := c.NumEntities(ctx)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// Search returns the topK nearest rows for each query vector.
func (c *Collection) Search(ctx context.Context, field string, vectors [][]float32, topK int) ([]SearchResult, error) {
	req := SearchRequest{Collection: c.name, Field: field, Vectors: vectors, TopK: topK}
	bodies, err := c.client.action(ctx, ActionSearch, req)
	if err != nil {
		return nil, fmt.Errorf("search %s.%s: %w", c.name, field, err)
	}
	if len(bodies) == 0 {
		return nil, fmt.Errorf("search %s.%s: empty response", c.name, field)
	}
	var resp SearchResponse
	if err := json.Unmarshal(bodies[0], &resp); err != nil {
		return nil, fmt.Errorf("search %s.%s: decode response: %w", c.name, field, err)
	}
	return resp.Results, nil
}

// Drop deletes the collection and its data.
func (c *Collection) Drop(ctx context.Context) error {
	if _, err := c.client.action(ctx, ActionDropCollection, CollectionRequest{Name: c.name}); err != nil {
		return fmt.Errorf("drop collection %s: %w", c.name, err)
	}
	return nil
}
