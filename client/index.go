package client

// IndexType names an index algorithm understood by the service.
type IndexType string

const (
	IndexFlat         IndexType = "FLAT"
	IndexIVFFlat      IndexType = "IVF_FLAT"
	IndexIVFSQ8       IndexType = "IVF_SQ8"
	IndexIVFSQ8Hybrid IndexType = "IVF_SQ8_HYBRID"
	IndexIVFPQ        IndexType = "IVF_PQ"
	IndexHNSW         IndexType = "HNSW"
	IndexNSG          IndexType = "NSG"
	IndexANNOY        IndexType = "ANNOY"
	IndexRHNSWFlat    IndexType = "RHNSW_FLAT"
	IndexRHNSWPQ      IndexType = "RHNSW_PQ"
	IndexRHNSWSQ      IndexType = "RHNSW_SQ"
	IndexBinFlat      IndexType = "BIN_FLAT"
	IndexBinIVFFlat   IndexType = "BIN_IVF_FLAT"
)

// IsBinary reports whether the index type only applies to binary vectors.
func (t IndexType) IsBinary() bool {
	return t == IndexBinFlat || t == IndexBinIVFFlat
}

// IsGraph reports whether the index type is an HNSW-family graph index.
func (t IndexType) IsGraph() bool {
	switch t {
	case IndexHNSW, IndexRHNSWFlat, IndexRHNSWPQ, IndexRHNSWSQ:
		return true
	}
	return false
}

// MetricType names the distance function used to compare vectors.
type MetricType string

const (
	MetricL2             MetricType = "L2"
	MetricIP             MetricType = "IP"
	MetricCosine         MetricType = "COSINE"
	MetricJaccard        MetricType = "JACCARD"
	MetricHamming        MetricType = "HAMMING"
	MetricTanimoto       MetricType = "TANIMOTO"
	MetricSubstructure   MetricType = "SUBSTRUCTURE"
	MetricSuperstructure MetricType = "SUPERSTRUCTURE"
)

// IsBinary reports whether the metric compares bit vectors.
func (m MetricType) IsBinary() bool {
	switch m {
	case MetricJaccard, MetricHamming, MetricTanimoto, MetricSubstructure, MetricSuperstructure:
		return true
	}
	return false
}

// IndexHyperParams carries the build parameters of every supported index
// type. Unused fields stay zero and are omitted on the wire.
type IndexHyperParams struct {
	// IVF family
	NList int `json:"nlist,omitempty"`
	// IVF_PQ sub-quantizers and bits per code
	PQSubQuantizers int `json:"m,omitempty"`
	NBits           int `json:"nbits,omitempty"`

	// HNSW family
	M              int `json:"M,omitempty"`
	EfConstruction int `json:"efConstruction,omitempty"`
	PQM            int `json:"PQM,omitempty"`

	// ANNOY
	NTrees int `json:"n_trees,omitempty"`

	// NSG
	SearchLength      int `json:"search_length,omitempty"`
	OutDegree         int `json:"out_degree,omitempty"`
	CandidatePoolSize int `json:"candidate_pool_size,omitempty"`
	KNNG              int `json:"knng,omitempty"`
}

// IndexParams describes an index build request.
type IndexParams struct {
	IndexType  IndexType        `json:"index_type"`
	MetricType MetricType       `json:"metric_type"`
	Params     IndexHyperParams `json:"params"`
}

// Index is an index attached to a collection field.
type Index struct {
	Field  string      `json:"field"`
	Params IndexParams `json:"params"`
	// BuiltRows is the number of rows the service indexed.
	BuiltRows int64 `json:"built_rows"`
}
