// Package datagen produces the synthetic entities the smoke routines insert.
package datagen

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/longbow-smoke/client"
	lberrors "github.com/23skdu/longbow-smoke/internal/errors"
	"github.com/23skdu/longbow-smoke/internal/metrics"
	"github.com/23skdu/longbow-smoke/internal/schemas"
)

const nameAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Generator produces random vectors from a seeded source. It is safe for
// concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
	mem memory.Allocator
}

// New returns a generator seeded with seed. A zero seed uses the clock.
func New(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		rng: rand.New(rand.NewSource(seed)),
		mem: memory.NewGoAllocator(),
	}
}

func validate(op string, n, dim int) error {
	if n < 0 {
		return lberrors.NewValidationError(op, "count must not be negative").WithContext("count", n)
	}
	if dim <= 0 {
		return lberrors.NewValidationError(op, "dimension must be positive").WithContext("dim", dim)
	}
	return nil
}

// FloatVectors returns n vectors of dimension dim with components drawn from
// [0, 1), each scaled to unit L2 norm. A vector that is all zeros is left as is.
func (g *Generator) FloatVectors(n, dim int) ([][]float32, error) {
	if err := validate("float_vectors", n, dim); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	vectors := make([][]float32, n)
	for i := range vectors {
		vec := make([]float64, dim)
		var sum float64
		for j := range vec {
			v := g.rng.Float64()
			vec[j] = v
			sum += v * v
		}
		norm := math.Sqrt(sum)

		out := make([]float32, dim)
		for j, v := range vec {
			if norm > 0 {
				v /= norm
			}
			out[j] = float32(v)
		}
		vectors[i] = out
	}

	metrics.GeneratedVectorsTotal.WithLabelValues("float").Add(float64(n))
	return vectors, nil
}

// BinaryVectors returns n random bit vectors of dimension dim, both as raw
// 0/1 values and packed into bytes with the first bit in the most
// significant position. Each packed vector is ceil(dim/8) bytes long.
func (g *Generator) BinaryVectors(n, dim int) (raw [][]uint8, packed [][]byte, err error) {
	if err := validate("binary_vectors", n, dim); err != nil {
		return nil, nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	raw = make([][]uint8, n)
	packed = make([][]byte, n)
	for i := 0; i < n; i++ {
		bits := make([]uint8, dim)
		for j := range bits {
			bits[j] = uint8(g.rng.Intn(2))
		}
		raw[i] = bits
		packed[i] = PackBits(bits)
	}

	metrics.GeneratedVectorsTotal.WithLabelValues("binary").Add(float64(n))
	return raw, packed, nil
}

// PackBits packs 0/1 values into bytes, most significant bit first. Trailing
// bits of the last byte are zero.
func PackBits(bits []uint8) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b != 0 {
			out[i/8] |= 0x80 >> (i % 8)
		}
	}
	return out
}

// FloatEntities returns nb rows of (sequential id, id as double, float vector)
// matching schemas.Default.
func (g *Generator) FloatEntities(nb, dim int) ([]client.Column, error) {
	vectors, err := g.FloatVectors(nb, dim)
	if err != nil {
		return nil, err
	}
	ids, values := sequence(nb)
	return []client.Column{ids, values, client.FloatVectorColumn(vectors)}, nil
}

// BinaryEntities returns nb rows of (sequential id, id as double, packed
// binary vector) matching schemas.Binary.
func (g *Generator) BinaryEntities(nb, dim int) ([]client.Column, error) {
	_, packed, err := g.BinaryVectors(nb, dim)
	if err != nil {
		return nil, err
	}
	ids, values := sequence(nb)
	return []client.Column{ids, values, client.BinaryVectorColumn(packed)}, nil
}

func sequence(n int) (client.Int64Column, client.DoubleColumn) {
	ids := make(client.Int64Column, n)
	values := make(client.DoubleColumn, n)
	for i := 0; i < n; i++ {
		ids[i] = int64(i)
		values[i] = float64(i)
	}
	return ids, values
}

// DataFrame returns an Arrow record with int64, float (float32) and
// float_vector columns, the tabular shape a collection can be inferred from.
// The caller must release the record.
func (g *Generator) DataFrame(nb, dim int) (arrow.Record, error) {
	vectors, err := g.FloatVectors(nb, dim)
	if err != nil {
		return nil, err
	}

	schema := arrow.NewSchema([]arrow.Field{
		{Name: schemas.FieldInt64, Type: arrow.PrimitiveTypes.Int64},
		{Name: schemas.FieldFloat, Type: arrow.PrimitiveTypes.Float32},
		{Name: schemas.FieldFloatVector, Type: arrow.FixedSizeListOf(int32(dim), arrow.PrimitiveTypes.Float32)},
	}, nil)

	b := array.NewRecordBuilder(g.mem, schema)
	defer b.Release()

	idBuilder := b.Field(0).(*array.Int64Builder)
	floatBuilder := b.Field(1).(*array.Float32Builder)
	vecBuilder := b.Field(2).(*array.FixedSizeListBuilder)
	valBuilder := vecBuilder.ValueBuilder().(*array.Float32Builder)

	for i := 0; i < nb; i++ {
		idBuilder.Append(int64(i))
		floatBuilder.Append(float32(i))
		vecBuilder.Append(true)
		valBuilder.AppendValues(vectors[i], nil)
	}

	return b.NewRecord(), nil
}

// UniqueName returns "collection_" followed by eight random letters or
// digits, or "<prefix>_" followed by them when prefix is set.
func (g *Generator) UniqueName(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	suffix := make([]byte, 8)
	for i := range suffix {
		suffix[i] = nameAlphabet[g.rng.Intn(len(nameAlphabet))]
	}
	if prefix == "" {
		prefix = "collection"
	}
	return prefix + "_" + string(suffix)
}

// L2Norm returns the Euclidean norm of v.
func L2Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
