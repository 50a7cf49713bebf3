package match

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/schemamatch/internal/index"
)

// DefaultCacheSize is the number of match results kept by CachedRanker.
const DefaultCacheSize = 256

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}

// CachedRanker memoizes ranking results per index generation.
// Keys include the generation, so results computed against an older index
// are never served after a swap; they simply age out of the LRU.
type CachedRanker struct {
	ranker *Ranker
	cache  *lru.Cache[string, *Matches]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedRanker wraps ranker with an LRU of the given size.
// size <= 0 uses DefaultCacheSize.
func NewCachedRanker(ranker *Ranker, size int) (*CachedRanker, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *Matches](size)
	if err != nil {
		return nil, err
	}
	return &CachedRanker{ranker: ranker, cache: cache}, nil
}

// Rank returns cached results for snap when available, otherwise ranks and
// stores them. Callers must not modify the returned Matches.
func (c *CachedRanker) Rank(ctx context.Context, snap *index.Snapshot, pf Prefilter, keywords []string, threshold float64) (*Matches, error) {
	if err := ValidateThreshold(threshold); err != nil {
		return nil, err
	}

	key := cacheKey(snap.Generation, threshold, keywords)
	if m, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return m, nil
	}
	c.misses.Add(1)

	m, err := c.ranker.RankCandidates(ctx, snap.Index, pf, keywords, threshold)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, m)
	return m, nil
}

// Purge drops every cached result.
func (c *CachedRanker) Purge() {
	c.cache.Purge()
}

// Stats returns hit and miss counters and the current size.
func (c *CachedRanker) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   c.cache.Len(),
	}
}

// cacheKey is order-insensitive in keywords: the matcher treats them as a set.
func cacheKey(gen uint64, threshold float64, keywords []string) string {
	kws := NormalizeKeywords(keywords)
	slices.Sort(kws)

	var sb strings.Builder
	sb.WriteString(strconv.FormatUint(gen, 10))
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatFloat(threshold, 'g', -1, 64))
	sb.WriteByte('|')
	sb.WriteString(strings.Join(kws, "\x00"))
	return sb.String()
}
