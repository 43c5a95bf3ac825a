// Package indexes holds the index configurations the smoke routines build.
//
// Every entry pairs an index type with its default build parameters in one
// record, so the catalog cannot drift out of alignment.
package indexes

import (
	"github.com/23skdu/longbow-smoke/client"
)

// Entry is one index type with its default build parameters.
type Entry struct {
	Type   client.IndexType
	Params client.IndexHyperParams
	// Disabled entries are kept for reference but never built.
	Disabled bool
	// Reason explains why a disabled entry is not built.
	Reason string
}

var catalog = []Entry{
	{Type: client.IndexFlat, Params: client.IndexHyperParams{NList: 128}},
	{Type: client.IndexIVFFlat, Params: client.IndexHyperParams{NList: 128}},
	{Type: client.IndexIVFSQ8, Params: client.IndexHyperParams{NList: 128}},
	{
		Type:     client.IndexIVFSQ8Hybrid,
		Params:   client.IndexHyperParams{NList: 128},
		Disabled: true,
		Reason:   "GPU-only index type",
	},
	{Type: client.IndexIVFPQ, Params: client.IndexHyperParams{NList: 128, PQSubQuantizers: 16, NBits: 8}},
	{Type: client.IndexHNSW, Params: client.IndexHyperParams{M: 48, EfConstruction: 500}},
	{
		Type:     client.IndexNSG,
		Params:   client.IndexHyperParams{SearchLength: 50, OutDegree: 40, CandidatePoolSize: 100, KNNG: 50},
		Disabled: true,
		Reason:   "not supported by the collection service",
	},
	{Type: client.IndexANNOY, Params: client.IndexHyperParams{NTrees: 50}},
	{Type: client.IndexRHNSWFlat, Params: client.IndexHyperParams{M: 48, EfConstruction: 500}},
	{Type: client.IndexRHNSWPQ, Params: client.IndexHyperParams{M: 48, EfConstruction: 500, PQM: 64}},
	{Type: client.IndexRHNSWSQ, Params: client.IndexHyperParams{M: 48, EfConstruction: 500}},
	{Type: client.IndexBinFlat, Params: client.IndexHyperParams{NList: 128}},
	{Type: client.IndexBinIVFFlat, Params: client.IndexHyperParams{NList: 128}},
}

// Catalog returns every known entry, including disabled ones, in build order.
func Catalog() []Entry {
	return append([]Entry(nil), catalog...)
}

// Lookup returns the entry for an index type.
func Lookup(t client.IndexType) (Entry, bool) {
	for _, e := range catalog {
		if e.Type == t {
			return e, true
		}
	}
	return Entry{}, false
}

// Enabled returns the entries that are built by the smoke routines.
func Enabled() []Entry {
	out := make([]Entry, 0, len(catalog))
	for _, e := range catalog {
		if !e.Disabled {
			out = append(out, e)
		}
	}
	return out
}

// KnownUnsupported returns the disabled entries.
func KnownUnsupported() []Entry {
	var out []Entry
	for _, e := range catalog {
		if e.Disabled {
			out = append(out, e)
		}
	}
	return out
}

// BinaryOnly returns the index types that require a binary metric.
func BinaryOnly() []client.IndexType {
	var out []client.IndexType
	for _, e := range catalog {
		if e.Type.IsBinary() {
			out = append(out, e.Type)
		}
	}
	return out
}

// IsBinaryOnly reports whether t only applies to binary vectors.
func IsBinaryOnly(t client.IndexType) bool {
	for _, b := range BinaryOnly() {
		if b == t {
			return true
		}
	}
	return false
}

// Simple returns an L2 index request for every enabled float-vector entry.
func Simple() []client.IndexParams {
	var out []client.IndexParams
	for _, e := range Enabled() {
		if IsBinaryOnly(e.Type) {
			continue
		}
		out = append(out, client.IndexParams{
			IndexType:  e.Type,
			MetricType: client.MetricL2,
			Params:     e.Params,
		})
	}
	return out
}

// Default is the index built on float vectors when none is specified.
func Default() client.IndexParams {
	return client.IndexParams{
		IndexType:  client.IndexIVFFlat,
		MetricType: client.MetricL2,
		Params:     client.IndexHyperParams{NList: 128},
	}
}

// DefaultBinary is the index built on binary vectors.
func DefaultBinary() client.IndexParams {
	return client.IndexParams{
		IndexType:  client.IndexBinFlat,
		MetricType: client.MetricJaccard,
		Params:     client.IndexHyperParams{NList: 1024},
	}
}
