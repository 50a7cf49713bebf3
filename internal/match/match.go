// Package match ranks catalog tables and columns against a set of query
// keywords using fuzzy string similarity.
//
// An entry's score is the best similarity between any query keyword and any
// of the entry's keywords. Entries scoring strictly above the threshold are
// returned, best first; ties keep index order (schema, table, column).
// Tables and columns are ranked independently.
package match

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	smerrors "github.com/Aman-CERP/schemamatch/internal/errors"
	"github.com/Aman-CERP/schemamatch/internal/index"
	"github.com/Aman-CERP/schemamatch/internal/similarity"
)

// DefaultThreshold is the minimum score an entry must exceed.
const DefaultThreshold = 0.6

// ErrInvalidThreshold matches, via errors.Is, every rejected threshold.
var ErrInvalidThreshold = smerrors.New(smerrors.ErrCodeInvalidThreshold, "invalid threshold", nil)

// Result is one ranked table or column.
type Result struct {
	Schema string  `json:"schema"`
	Table  string  `json:"table"`
	Column string  `json:"column,omitempty"`
	Score  float64 `json:"score"`

	// Keywords is the column's full keyword set, sorted. Empty for tables.
	Keywords []string `json:"keywords,omitempty"`

	// Query and Term are the keyword pair that produced Score.
	Query string `json:"query"`
	Term  string `json:"term"`
}

// Name renders schema.table or schema.table.column.
func (r Result) Name() string {
	if r.Column == "" {
		return index.TableKey{Schema: r.Schema, Table: r.Table}.String()
	}
	return index.ColumnKey{Schema: r.Schema, Table: r.Table, Column: r.Column}.String()
}

// Matches holds ranked tables and columns.
type Matches struct {
	Tables  []Result `json:"tables"`
	Columns []Result `json:"columns"`
}

// Empty reports whether nothing matched.
func (m *Matches) Empty() bool {
	return m == nil || (len(m.Tables) == 0 && len(m.Columns) == 0)
}

func emptyMatches() *Matches {
	return &Matches{Tables: []Result{}, Columns: []Result{}}
}

// ValidateThreshold rejects thresholds outside [0,1], including NaN.
func ValidateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return smerrors.New(smerrors.ErrCodeInvalidThreshold,
			fmt.Sprintf("threshold %v outside [0,1]", threshold), nil).
			WithSuggestion("Use a threshold between 0 and 1, e.g. 0.6")
	}
	return nil
}

// NormalizeKeywords lowercases and trims keywords, dropping empties and
// duplicates while keeping first-seen order.
func NormalizeKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithSimilarity sets the similarity function. Nil keeps the default.
func WithSimilarity(fn similarity.Func) Option {
	return func(r *Ranker) {
		if fn != nil {
			r.sim = fn
		}
	}
}

// WithWorkers sets how many goroutines score entries.
// Values below 1 use runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(r *Ranker) {
		if n < 1 {
			n = runtime.NumCPU()
		}
		r.workers = n
	}
}

// Ranker scores index entries against query keywords.
// A Ranker holds no per-query state and is safe for concurrent use.
type Ranker struct {
	sim     similarity.Func
	workers int
}

// NewRanker creates a Ranker. Defaults: similarity.Ratio, one worker.
func NewRanker(opts ...Option) *Ranker {
	r := &Ranker{
		sim:     similarity.Ratio,
		workers: 1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Workers returns the configured worker count.
func (r *Ranker) Workers() int {
	return r.workers
}

// FindMatches ranks idx against keywords with the default Ranker.
func FindMatches(keywords []string, idx *index.Index, threshold float64) (*Matches, error) {
	return NewRanker().Rank(context.Background(), idx, keywords, threshold)
}

// Rank scores every entry of idx.
func (r *Ranker) Rank(ctx context.Context, idx *index.Index, keywords []string, threshold float64) (*Matches, error) {
	return r.RankCandidates(ctx, idx, nil, keywords, threshold)
}

// RankCandidates is Rank restricted to the entries pf selects.
// A nil pf scores every entry.
func (r *Ranker) RankCandidates(ctx context.Context, idx *index.Index, pf Prefilter, keywords []string, threshold float64) (*Matches, error) {
	if err := ValidateThreshold(threshold); err != nil {
		return nil, err
	}

	query := NormalizeKeywords(keywords)
	if len(query) == 0 || idx == nil {
		return emptyMatches(), nil
	}

	tables := idx.Tables()
	columns := idx.Columns()
	if pf != nil {
		c := pf.Candidates(query)
		tables = c.filterTables(tables)
		columns = c.filterColumns(columns)
	}

	tableScores := make([]scored, len(tables))
	columnScores := make([]scored, len(columns))

	err := r.score(ctx, len(tables)+len(columns), func(i int) {
		if i < len(tables) {
			tableScores[i] = r.best(query, tables[i].Terms)
			return
		}
		j := i - len(tables)
		columnScores[j] = r.best(query, columns[j].Terms)
	})
	if err != nil {
		return nil, err
	}

	m := emptyMatches()
	for i, s := range tableScores {
		if s.ok && s.score > threshold {
			k := tables[i].Key
			m.Tables = append(m.Tables, Result{
				Schema: k.Schema, Table: k.Table,
				Score: s.score, Query: s.query, Term: s.term,
			})
		}
	}
	for i, s := range columnScores {
		if s.ok && s.score > threshold {
			k := columns[i].Key
			m.Columns = append(m.Columns, Result{
				Schema: k.Schema, Table: k.Table, Column: k.Column,
				Score: s.score, Keywords: slices.Clone(columns[i].Terms),
				Query: s.query, Term: s.term,
			})
		}
	}

	sortResults(m.Tables)
	sortResults(m.Columns)
	return m, nil
}

// sortResults orders by score descending. The sort is stable, so equal
// scores keep index order.
func sortResults(results []Result) {
	slices.SortStableFunc(results, func(a, b Result) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
}

type scored struct {
	ok    bool
	score float64
	query string
	term  string
}

// best returns the maximum similarity over query x terms.
// Ties go to the lexically smallest (query, term) pair, so keyword order
// never changes the reported pair.
// An empty side yields ok=false and the entry is skipped.
func (r *Ranker) best(query, terms []string) scored {
	if len(query) == 0 || len(terms) == 0 {
		return scored{}
	}
	out := scored{ok: true, score: -1}
	for _, q := range query {
		for _, t := range terms {
			s := r.sim(q, t)
			if s > out.score || (s == out.score && pairLess(q, t, out.query, out.term)) {
				out.score, out.query, out.term = s, q, t
			}
		}
	}
	return out
}

func pairLess(q1, t1, q2, t2 string) bool {
	if c := strings.Compare(q1, q2); c != 0 {
		return c < 0
	}
	return t1 < t2
}

// chunkSize bounds how many entries one goroutine scores per task.
const chunkSize = 256

// score calls fn for every position in [0,n). Each position is written by
// exactly one goroutine, so fn needs no locking.
func (r *Ranker) score(ctx context.Context, n int, fn func(i int)) error {
	if r.workers <= 1 || n <= chunkSize {
		for i := 0; i < n; i++ {
			if i%chunkSize == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			fn(i)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for start := 0; start < n; start += chunkSize {
		start, end := start, min(start+chunkSize, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				fn(i)
			}
			return nil
		})
	}
	return g.Wait()
}
