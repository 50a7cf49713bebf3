package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/schemamatch/internal/catalog"
	smerrors "github.com/Aman-CERP/schemamatch/internal/errors"
	"github.com/Aman-CERP/schemamatch/internal/index"
	"github.com/Aman-CERP/schemamatch/internal/keywords"
	"github.com/Aman-CERP/schemamatch/internal/match"
	"github.com/Aman-CERP/schemamatch/internal/similarity"
	"github.com/Aman-CERP/schemamatch/internal/store"
	"github.com/Aman-CERP/schemamatch/internal/telemetry"
)

// Candidate selection modes.
const (
	CandidatesExhaustive = "exhaustive"
	CandidatesHNSW       = "hnsw"
)

// ErrNotLoaded is returned by queries issued before the first successful Reload.
var ErrNotLoaded = smerrors.New(smerrors.ErrCodeIndexNotLoaded, "index not loaded", nil).
	WithSuggestion("Check the catalog source and reload the index")

// ErrNoExecutor is returned by Execute when the catalog source cannot run SQL.
var ErrNoExecutor = smerrors.New(smerrors.ErrCodeInvalidInput, "catalog source cannot execute SQL", nil).
	WithSuggestion("Configure database.dsn to execute SQL")

// Config configures an Engine.
type Config struct {
	Threshold  float64 // default for callers that do not choose one
	Similarity string
	Workers    int
	CacheSize  int // 0 disables result caching
	Candidates string
	CandidateK int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:  match.DefaultThreshold,
		Similarity: similarity.Default,
		Workers:    1,
		CacheSize:  match.DefaultCacheSize,
		Candidates: CandidatesExhaustive,
		CandidateK: match.DefaultCandidateK,
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records every match in m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithExtractor sets the question analyzer used by Ask.
func WithExtractor(x *keywords.Extractor) Option {
	return func(e *Engine) {
		e.extractor = x
	}
}

// loaded is everything derived from one catalog read.
type loaded struct {
	snap      *index.Snapshot
	prefilter match.Prefilter
	records   []catalog.AttributeRecord
}

// Engine ranks catalog entries against keywords. Safe for concurrent use.
type Engine struct {
	source    catalog.Source
	config    Config
	ranker    *match.Ranker
	cache     *match.CachedRanker
	extractor *keywords.Extractor
	metrics   *telemetry.Metrics
	logger    *slog.Logger

	holder   index.Holder
	current  atomic.Pointer[loaded]
	reloadMu sync.Mutex
}

// NewEngine creates an engine over source. Call Reload before querying.
func NewEngine(source catalog.Source, cfg Config, opts ...Option) (*Engine, error) {
	if source == nil {
		return nil, smerrors.InternalError("catalog source is required", nil)
	}
	if err := match.ValidateThreshold(cfg.Threshold); err != nil {
		return nil, err
	}
	if cfg.Similarity == "" {
		cfg.Similarity = similarity.Default
	}
	sim, err := similarity.Named(cfg.Similarity)
	if err != nil {
		return nil, err
	}
	switch cfg.Candidates {
	case "":
		cfg.Candidates = CandidatesExhaustive
	case CandidatesExhaustive, CandidatesHNSW:
	default:
		return nil, smerrors.New(smerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown candidate mode %q", cfg.Candidates), nil)
	}

	e := &Engine{
		source: source,
		config: cfg,
		ranker: match.NewRanker(match.WithSimilarity(sim), match.WithWorkers(cfg.Workers)),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if cfg.CacheSize > 0 {
		e.cache, err = match.NewCachedRanker(e.ranker, cfg.CacheSize)
		if err != nil {
			return nil, smerrors.InternalError("create match cache", err)
		}
	}
	if e.extractor == nil {
		e.extractor, err = keywords.NewExtractor(keywords.DefaultLanguage, keywords.WithStemming(false))
		if err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Reload reads the catalog and publishes a freshly built index.
// Invalid records are skipped and logged. On a read error the previous
// index stays in place. Concurrent calls run one at a time.
func (e *Engine) Reload(ctx context.Context) (*index.Snapshot, error) {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	start := time.Now()
	records, err := e.source.Attributes(ctx)
	if err != nil {
		e.logger.Warn("index_reload_failed", smerrors.LogAttrs(err)...)
		return nil, err
	}

	idx, skipped := index.BuildLenient(records, e.logger)

	var pf match.Prefilter
	if e.config.Candidates == CandidatesHNSW {
		pf = match.NewHNSWPrefilter(idx, e.config.CandidateK)
	}

	snap := e.holder.Swap(idx, len(skipped))
	e.current.Store(&loaded{snap: snap, prefilter: pf, records: records})
	if e.cache != nil {
		// Entries are keyed by generation; older ones can never hit again.
		e.cache.Purge()
	}

	stats := idx.Stats()
	e.logger.Info("index_rebuilt",
		slog.Uint64("generation", snap.Generation),
		slog.Int("tables", stats.Tables),
		slog.Int("columns", stats.Columns),
		slog.Int("keywords", stats.Keywords),
		slog.Int("skipped", len(skipped)),
		slog.Duration("elapsed", time.Since(start)))
	return snap, nil
}

// Snapshot returns the current index snapshot, or nil before the first Reload.
func (e *Engine) Snapshot() *index.Snapshot {
	if l := e.current.Load(); l != nil {
		return l.snap
	}
	return nil
}

// Threshold returns the configured default threshold.
func (e *Engine) Threshold() float64 {
	return e.config.Threshold
}

// Match ranks tables and columns against keywords. Callers without a
// threshold of their own pass Threshold().
func (e *Engine) Match(ctx context.Context, kws []string, threshold float64) (*match.Matches, error) {
	return e.match(ctx, telemetry.KindMatch, kws, threshold)
}

func (e *Engine) match(ctx context.Context, kind telemetry.Kind, kws []string, threshold float64) (*match.Matches, error) {
	if err := match.ValidateThreshold(threshold); err != nil {
		return nil, err
	}

	l := e.current.Load()
	if l == nil {
		return nil, ErrNotLoaded
	}

	query := match.NormalizeKeywords(kws)
	start := time.Now()

	var m *match.Matches
	var err error
	if e.cache != nil {
		m, err = e.cache.Rank(ctx, l.snap, l.prefilter, query, threshold)
	} else {
		m, err = e.ranker.RankCandidates(ctx, l.snap.Index, l.prefilter, query, threshold)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, smerrors.New(smerrors.ErrCodeMatchFailed, "match failed", err)
	}
	elapsed := time.Since(start)

	if e.metrics != nil && len(query) > 0 {
		e.metrics.Record(telemetry.MatchEvent{
			Kind:     kind,
			Keywords: query,
			Tables:   len(m.Tables),
			Columns:  len(m.Columns),
			Latency:  elapsed,
		})
	}
	e.logger.Debug("match_completed",
		slog.String("keywords", strings.Join(query, " ")),
		slog.Float64("threshold", threshold),
		slog.Int("tables", len(m.Tables)),
		slog.Int("columns", len(m.Columns)),
		slog.Uint64("generation", l.snap.Generation),
		slog.Duration("elapsed", elapsed))
	return m, nil
}

// Ask extracts keywords from question, ranks them and renders the hint.
func (e *Engine) Ask(ctx context.Context, question string, threshold float64) (*Answer, error) {
	analysis := e.extractor.Analyze(question)
	m, err := e.match(ctx, telemetry.KindAsk, analysis.Keywords, threshold)
	if err != nil {
		return nil, err
	}
	return &Answer{
		Question: question,
		Analysis: analysis,
		Matches:  m,
		Hint:     match.Hint(m),
	}, nil
}

// Describe returns a column's description, or store.NoDescription when the
// catalog has none. Sources implementing Describer are asked directly;
// otherwise the loaded records are searched case-insensitively.
func (e *Engine) Describe(ctx context.Context, schema, table, column string) (string, error) {
	if d, ok := e.source.(Describer); ok {
		return d.ColumnDescription(ctx, schema, table, column)
	}
	l := e.current.Load()
	if l == nil {
		return "", ErrNotLoaded
	}
	if desc, ok := catalog.Describe(l.records, schema, table, column); ok && desc != "" {
		return desc, nil
	}
	return store.NoDescription, nil
}

// Execute runs SQL on the catalog database.
func (e *Engine) Execute(ctx context.Context, query string) (*store.Result, error) {
	x, ok := e.source.(Executor)
	if !ok {
		return nil, ErrNoExecutor
	}
	if strings.TrimSpace(query) == "" {
		return nil, smerrors.New(smerrors.ErrCodeQueryEmpty, "query is empty", nil)
	}
	start := time.Now()
	res, err := x.Execute(ctx, query)
	if err != nil {
		e.logger.Warn("sql_failed", smerrors.LogAttrs(err)...)
		return nil, err
	}
	e.logger.Info("sql_executed",
		slog.Int("rows", len(res.Rows)),
		slog.Int64("rows_affected", res.RowsAffected),
		slog.Duration("elapsed", time.Since(start)))
	return res, nil
}

// Records returns the records of the current snapshot.
func (e *Engine) Records() []catalog.AttributeRecord {
	if l := e.current.Load(); l != nil {
		return l.records
	}
	return nil
}

// Stats describes the current index, cache and telemetry.
func (e *Engine) Stats() Stats {
	s := Stats{
		Similarity: e.config.Similarity,
		Threshold:  e.config.Threshold,
		Candidates: e.config.Candidates,
		Workers:    e.ranker.Workers(),
	}
	if l := e.current.Load(); l != nil {
		is := l.snap.Index.Stats()
		s.Loaded = true
		s.Generation = l.snap.Generation
		s.BuiltAt = l.snap.BuiltAt
		s.Tables = is.Tables
		s.Columns = is.Columns
		s.Keywords = is.Keywords
		s.Skipped = l.snap.Skipped
	}
	if e.cache != nil {
		cs := e.cache.Stats()
		s.Cache = &cs
	}
	if e.metrics != nil {
		s.Telemetry = e.metrics.Snapshot()
	}
	return s
}
