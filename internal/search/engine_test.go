package search

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/schemamatch/internal/catalog"
	smerrors "github.com/Aman-CERP/schemamatch/internal/errors"
	"github.com/Aman-CERP/schemamatch/internal/match"
	"github.com/Aman-CERP/schemamatch/internal/store"
	"github.com/Aman-CERP/schemamatch/internal/telemetry"
)

// memSource is a catalog.Source whose contents tests can swap.
type memSource struct {
	mu      sync.Mutex
	records []catalog.AttributeRecord
	err     error
}

func (s *memSource) Attributes(context.Context) ([]catalog.AttributeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]catalog.AttributeRecord(nil), s.records...), nil
}

func (s *memSource) Close() error { return nil }

func (s *memSource) set(records []catalog.AttributeRecord, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records, s.err = records, err
}

func sampleRecords() []catalog.AttributeRecord {
	return []catalog.AttributeRecord{
		{ID: 1, Schema: "public", Table: "clients", Column: "nom", Description: "nom du client"},
		{ID: 2, Schema: "public", Table: "clients", Column: "id"},
		{ID: 3, Schema: "public", Table: "commandes", Column: "montant", Description: "montant total"},
		{ID: 4, Schema: "public", Table: "commandes", Column: "date_commande", Description: "date de la commande"},
	}
}

func newTestEngine(t *testing.T, src catalog.Source, cfg Config, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(src, cfg, opts...)
	require.NoError(t, err)
	return e
}

func loadedEngine(t *testing.T, opts ...Option) (*Engine, *memSource) {
	t.Helper()
	src := &memSource{records: sampleRecords()}
	e := newTestEngine(t, src, DefaultConfig(), opts...)
	_, err := e.Reload(context.Background())
	require.NoError(t, err)
	return e, src
}

func TestEngine_MatchBeforeReload_ReturnsNotLoaded(t *testing.T) {
	e := newTestEngine(t, &memSource{}, DefaultConfig())

	_, err := e.Match(context.Background(), []string{"client"}, 0.6)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotLoaded))
	assert.Nil(t, e.Snapshot())
	assert.False(t, e.Stats().Loaded)
}

func TestEngine_Match_RanksTablesAndColumns(t *testing.T) {
	// Given: an engine loaded with clients and commandes
	e, _ := loadedEngine(t)

	// When: matching "client"
	m, err := e.Match(context.Background(), []string{"client"}, 0.6)

	// Then: the clients table and its nom column match exactly
	require.NoError(t, err)
	require.NotEmpty(t, m.Tables)
	assert.Equal(t, "clients", m.Tables[0].Table)
	assert.Equal(t, 1.0, m.Tables[0].Score)
	require.NotEmpty(t, m.Columns)
	assert.Equal(t, "nom", m.Columns[0].Column)
	assert.Equal(t, []string{"client", "du", "nom"}, m.Columns[0].Keywords)
}

func TestEngine_Match_InvalidThreshold(t *testing.T) {
	e, _ := loadedEngine(t)

	tests := []struct {
		name      string
		threshold float64
	}{
		{"above one", 1.5},
		{"negative", -0.5},
		{"minus one", -1},
		{"NaN", math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Match(context.Background(), []string{"client"}, tt.threshold)

			require.Error(t, err)
			assert.ErrorIs(t, err, match.ErrInvalidThreshold)
			assert.Equal(t, smerrors.ErrCodeInvalidThreshold, smerrors.GetCode(err))
		})
	}

	_, err := e.Ask(context.Background(), "montant des commandes", -0.5)
	assert.ErrorIs(t, err, match.ErrInvalidThreshold)
}

func TestEngine_Match_EmptyKeywords(t *testing.T) {
	e, _ := loadedEngine(t)

	m, err := e.Match(context.Background(), []string{" ", ""}, 0.6)

	require.NoError(t, err)
	assert.True(t, m.Empty())
}

func TestEngine_Reload_SkipsInvalidRecords(t *testing.T) {
	src := &memSource{records: append(sampleRecords(),
		catalog.AttributeRecord{Schema: "public", Table: "", Column: "orphan"})}
	e := newTestEngine(t, src, DefaultConfig())

	snap, err := e.Reload(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, snap.Skipped)
	stats := e.Stats()
	assert.True(t, stats.Loaded)
	assert.Equal(t, 2, stats.Tables)
	assert.Equal(t, 4, stats.Columns)
	assert.Equal(t, 1, stats.Skipped)
}

func TestEngine_Reload_FailureKeepsPreviousIndex(t *testing.T) {
	// Given: a loaded engine
	e, src := loadedEngine(t)
	before := e.Snapshot()

	// When: the source starts failing
	src.set(nil, smerrors.DatabaseError("connection lost", nil))
	_, err := e.Reload(context.Background())

	// Then: the error surfaces and queries still see the old index
	require.Error(t, err)
	assert.Same(t, before, e.Snapshot())
	m, err := e.Match(context.Background(), []string{"client"}, 0.6)
	require.NoError(t, err)
	assert.NotEmpty(t, m.Tables)
}

func TestEngine_Reload_NewGenerationInvalidatesCache(t *testing.T) {
	// Given: a cached match against generation 1
	e, src := loadedEngine(t)
	ctx := context.Background()
	first, err := e.Match(ctx, []string{"fournisseur"}, 0.6)
	require.NoError(t, err)
	assert.True(t, first.Empty())

	// When: the catalog gains a fournisseurs table and is reloaded
	src.set(append(sampleRecords(), catalog.AttributeRecord{
		Schema: "public", Table: "fournisseurs", Column: "raison_sociale", Description: "nom du fournisseur",
	}), nil)
	snap, err := e.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Generation)
	assert.Zero(t, e.Stats().Cache.Size, "reload drops results of the previous generation")

	// Then: the same query sees the new table
	second, err := e.Match(ctx, []string{"fournisseur"}, 0.6)
	require.NoError(t, err)
	require.NotEmpty(t, second.Tables)
	assert.Equal(t, "fournisseurs", second.Tables[0].Table)
}

func TestEngine_Match_CacheHits(t *testing.T) {
	e, _ := loadedEngine(t)
	ctx := context.Background()

	_, err := e.Match(ctx, []string{"client", "nom"}, 0.6)
	require.NoError(t, err)
	_, err = e.Match(ctx, []string{"NOM", "client"}, 0.6)
	require.NoError(t, err)

	stats := e.Stats()
	require.NotNil(t, stats.Cache)
	assert.Equal(t, int64(1), stats.Cache.Hits)
	assert.Equal(t, int64(1), stats.Cache.Misses)
}

func TestEngine_NoCache(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheSize = 0
	src := &memSource{records: sampleRecords()}
	e := newTestEngine(t, src, cfg)
	_, err := e.Reload(context.Background())
	require.NoError(t, err)

	m, err := e.Match(context.Background(), []string{"client"}, 0.6)

	require.NoError(t, err)
	assert.NotEmpty(t, m.Tables)
	assert.Nil(t, e.Stats().Cache)
}

func TestEngine_HNSWCandidates_FindsExactHits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Candidates = CandidatesHNSW
	cfg.CandidateK = 4
	e := newTestEngine(t, &memSource{records: sampleRecords()}, cfg)
	_, err := e.Reload(context.Background())
	require.NoError(t, err)

	m, err := e.Match(context.Background(), []string{"montant"}, 0.6)

	require.NoError(t, err)
	require.NotEmpty(t, m.Tables)
	assert.Equal(t, "commandes", m.Tables[0].Table)
	assert.Equal(t, CandidatesHNSW, e.Stats().Candidates)
}

func TestEngine_Ask_ExtractsKeywordsAndRendersHint(t *testing.T) {
	e, _ := loadedEngine(t)

	answer, err := e.Ask(context.Background(), "Quel est le nom du client ?", 0.6)

	require.NoError(t, err)
	assert.Contains(t, answer.Analysis.Keywords, "nom")
	assert.Contains(t, answer.Analysis.Keywords, "client")
	assert.Contains(t, answer.Hint, "Table: public.clients (Score: 1.00)")
	assert.Contains(t, answer.Hint, "Table: public.clients, Colonne: nom (Score: 1.00)")
}

func TestEngine_Ask_BlankQuestion(t *testing.T) {
	e, _ := loadedEngine(t)

	answer, err := e.Ask(context.Background(), "   ", 0.6)

	require.NoError(t, err)
	assert.True(t, answer.Matches.Empty())
	assert.Empty(t, answer.Hint)
}

func TestEngine_Describe_FromLoadedRecords(t *testing.T) {
	e, _ := loadedEngine(t)
	ctx := context.Background()

	desc, err := e.Describe(ctx, "public", "CLIENTS", "nom")
	require.NoError(t, err)
	assert.Equal(t, "nom du client", desc)

	desc, err = e.Describe(ctx, "public", "clients", "id")
	require.NoError(t, err)
	assert.Equal(t, store.NoDescription, desc)

	desc, err = e.Describe(ctx, "public", "clients", "missing")
	require.NoError(t, err)
	assert.Equal(t, store.NoDescription, desc)
}

func TestEngine_Execute_WithoutDatabase(t *testing.T) {
	e, _ := loadedEngine(t)

	_, err := e.Execute(context.Background(), "SELECT 1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoExecutor))
}

func TestEngine_SQLiteSource_EndToEnd(t *testing.T) {
	// Given: a SQLite catalog
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")
	s, err := store.Open(ctx, "sqlite://"+path, store.Options{
		ConnectTimeout: time.Second,
		Retry:          &smerrors.RetryConfig{MaxRetries: 0},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	sqlite, ok := s.(*store.SQLiteStore)
	require.True(t, ok)
	require.NoError(t, sqlite.Import(ctx, sampleRecords()))

	e := newTestEngine(t, s, DefaultConfig())
	_, err = e.Reload(ctx)
	require.NoError(t, err)

	// When / Then: match, describe and execute all reach the database
	m, err := e.Match(ctx, []string{"commande"}, 0.6)
	require.NoError(t, err)
	require.NotEmpty(t, m.Tables)
	assert.Equal(t, "commandes", m.Tables[0].Table)

	desc, err := e.Describe(ctx, "public", "commandes", "montant")
	require.NoError(t, err)
	assert.Equal(t, "montant total", desc)

	res, err := e.Execute(ctx, "SELECT COUNT(*) AS n FROM metadata_attributs")
	require.NoError(t, err)
	assert.Equal(t, []string{"n"}, res.Columns)
	assert.EqualValues(t, 4, res.Rows[0][0])

	_, err = e.Execute(ctx, "  ")
	assert.Equal(t, smerrors.ErrCodeQueryEmpty, smerrors.GetCode(err))
}

func TestEngine_RecordsTelemetry(t *testing.T) {
	metrics := telemetry.New(nil)
	t.Cleanup(func() { _ = metrics.Close() })
	e, _ := loadedEngine(t, WithMetrics(metrics))
	ctx := context.Background()

	_, err := e.Match(ctx, []string{"client"}, 0.6)
	require.NoError(t, err)
	_, err = e.Ask(ctx, "xyzzy plugh", 0.6)
	require.NoError(t, err)

	snap := e.Stats().Telemetry
	require.NotNil(t, snap)
	assert.Equal(t, int64(2), snap.TotalMatches)
	assert.Equal(t, int64(1), snap.KindCounts[telemetry.KindAsk])
	assert.Equal(t, int64(1), snap.ZeroResultCount)
}

func TestEngine_ConcurrentMatchDuringReload(t *testing.T) {
	e, _ := loadedEngine(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				m, err := e.Match(ctx, []string{"client"}, 0.6)
				if err != nil {
					errs <- err
					return
				}
				if len(m.Tables) == 0 {
					errs <- errors.New("clients table missing from a published snapshot")
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := e.Reload(ctx); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, uint64(9), e.Snapshot().Generation)
}

func TestNewEngine_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		code   string
	}{
		{"threshold", func(c *Config) { c.Threshold = 2 }, smerrors.ErrCodeInvalidThreshold},
		{"similarity", func(c *Config) { c.Similarity = "jaccard" }, smerrors.ErrCodeUnknownMetric},
		{"candidates", func(c *Config) { c.Candidates = "bm25" }, smerrors.ErrCodeConfigInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := NewEngine(&memSource{}, cfg)
			require.Error(t, err)
			assert.Equal(t, tt.code, smerrors.GetCode(err))
		})
	}
}
