package match

import (
	"hash/fnv"
	"math"

	"github.com/coder/hnsw"

	"github.com/Aman-CERP/schemamatch/internal/index"
)

// Prefilter narrows the entries a query is scored against.
type Prefilter interface {
	Candidates(query []string) Candidates
}

// Candidates is the set of entries selected for exact scoring.
type Candidates struct {
	Tables  map[index.TableKey]struct{}
	Columns map[index.ColumnKey]struct{}
}

func (c Candidates) filterTables(entries []index.TableEntry) []index.TableEntry {
	out := make([]index.TableEntry, 0, len(c.Tables))
	for _, e := range entries {
		if _, ok := c.Tables[e.Key]; ok {
			out = append(out, e)
		}
	}
	return out
}

func (c Candidates) filterColumns(entries []index.ColumnEntry) []index.ColumnEntry {
	out := make([]index.ColumnEntry, 0, len(c.Columns))
	for _, e := range entries {
		if _, ok := c.Columns[e.Key]; ok {
			out = append(out, e)
		}
	}
	return out
}

// trigramDims is the width of the hashed character-trigram vectors.
const trigramDims = 256

// DefaultCandidateK is the number of nearest keywords taken per query keyword.
const DefaultCandidateK = 16

// HNSWPrefilter finds, for each query keyword, the nearest catalog keywords
// in character-trigram space and selects the entries that contain them.
// The selection is approximate: an entry whose keywords are all far from
// every query keyword in trigram space is never scored.
type HNSWPrefilter struct {
	graph   *hnsw.Graph[string]
	k       int
	tables  map[string][]index.TableKey
	columns map[string][]index.ColumnKey
}

// NewHNSWPrefilter indexes the vocabulary of idx. k <= 0 uses DefaultCandidateK.
func NewHNSWPrefilter(idx *index.Index, k int) *HNSWPrefilter {
	if k <= 0 {
		k = DefaultCandidateK
	}

	graph := hnsw.NewGraph[string]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = max(20, k*2)
	graph.Ml = 0.25

	p := &HNSWPrefilter{
		graph:   graph,
		k:       k,
		tables:  make(map[string][]index.TableKey),
		columns: make(map[string][]index.ColumnKey),
	}

	for _, t := range idx.Tables() {
		for _, term := range t.Terms {
			p.tables[term] = append(p.tables[term], t.Key)
		}
	}
	for _, c := range idx.Columns() {
		for _, term := range c.Terms {
			p.columns[term] = append(p.columns[term], c.Key)
		}
	}

	for _, term := range idx.Vocabulary() {
		graph.Add(hnsw.MakeNode(term, trigramVector(term)))
	}
	return p
}

// Len returns the number of indexed keywords.
func (p *HNSWPrefilter) Len() int {
	return p.graph.Len()
}

// Candidates returns the entries holding any of the nearest keywords.
func (p *HNSWPrefilter) Candidates(query []string) Candidates {
	c := Candidates{
		Tables:  make(map[index.TableKey]struct{}),
		Columns: make(map[index.ColumnKey]struct{}),
	}
	if p.graph.Len() == 0 {
		return c
	}

	for _, q := range query {
		for _, node := range p.graph.Search(trigramVector(q), p.k) {
			p.include(c, node.Key)
		}
		// Exact hits are always candidates, whatever the graph returns.
		p.include(c, q)
	}
	return c
}

func (p *HNSWPrefilter) include(c Candidates, term string) {
	for _, k := range p.tables[term] {
		c.Tables[k] = struct{}{}
	}
	for _, k := range p.columns[term] {
		c.Columns[k] = struct{}{}
	}
}

// trigramVector hashes the padded character trigrams of word into a
// unit-length vector. Non-empty words always yield a non-zero vector.
func trigramVector(word string) []float32 {
	vec := make([]float32, trigramDims)
	runes := append(append([]rune{'^'}, []rune(word)...), '$')
	h := fnv.New32a()
	if len(runes) < 3 {
		runes = append(runes, '$')
	}
	for i := 0; i+3 <= len(runes); i++ {
		h.Reset()
		_, _ = h.Write([]byte(string(runes[i : i+3])))
		vec[h.Sum32()%trigramDims]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}
