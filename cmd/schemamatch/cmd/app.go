package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/Aman-CERP/schemamatch/internal/catalog"
	"github.com/Aman-CERP/schemamatch/internal/config"
	smerrors "github.com/Aman-CERP/schemamatch/internal/errors"
	"github.com/Aman-CERP/schemamatch/internal/keywords"
	"github.com/Aman-CERP/schemamatch/internal/search"
	"github.com/Aman-CERP/schemamatch/internal/store"
	"github.com/Aman-CERP/schemamatch/internal/telemetry"
)

// loadConfig loads --config when given, else the layered configuration of
// the working directory.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	dir, err := os.Getwd()
	if err != nil {
		return nil, smerrors.IOError("resolve working directory", err)
	}
	return config.Load(dir)
}

// openSource opens the configured catalog: the database when a DSN is set,
// otherwise the snapshot file. db is nil for a file source.
func openSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (src catalog.Source, db store.Store, err error) {
	switch {
	case cfg.Database.DSN != "":
		db, err = store.Open(ctx, cfg.Database.DSN, store.Options{
			MetadataTable:  cfg.Database.MetadataTable,
			ConnectTimeout: cfg.ConnectTimeout(),
			Logger:         logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return db, db, nil
	case cfg.Catalog.File != "":
		return catalog.NewFileSource(cfg.Catalog.File), nil, nil
	default:
		return nil, nil, smerrors.ConfigError("no catalog configured", nil).
			WithSuggestion("Set database.dsn (or SCHEMAMATCH_DSN) or catalog.file, then run 'schemamatch config show'")
	}
}

// appOptions selects what openApp sets up.
type appOptions struct {
	// reload builds the index before returning.
	reload bool
	// telemetry persists match statistics when enabled in the config.
	telemetry bool
	logger    *slog.Logger
}

// app is an engine over the configured catalog plus what must be closed with it.
type app struct {
	cfg     *config.Config
	source  catalog.Source
	db      store.Store
	engine  *search.Engine
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

func openApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	logger := opts.logger
	if logger == nil {
		logger = slog.Default()
	}

	src, db, err := openSource(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, source: src, db: db, logger: logger}

	extractor, err := keywords.NewExtractor(cfg.Keywords.Language, keywords.WithStemming(cfg.Keywords.Stem))
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	engineOpts := []search.Option{search.WithLogger(logger), search.WithExtractor(extractor)}
	if opts.telemetry && cfg.Telemetry.Enabled {
		a.metrics = openMetrics(cfg.Telemetry.Path, logger)
		engineOpts = append(engineOpts, search.WithMetrics(a.metrics))
	}

	a.engine, err = search.NewEngine(src, search.Config{
		Threshold:  cfg.Matcher.Threshold,
		Similarity: cfg.Matcher.Similarity,
		Workers:    cfg.Matcher.Workers,
		CacheSize:  cfg.Matcher.CacheSize,
		Candidates: cfg.Matcher.Candidates,
		CandidateK: cfg.Matcher.CandidateK,
	}, engineOpts...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	if opts.reload {
		if _, err := a.engine.Reload(ctx); err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	return a, nil
}

// openMetrics persists telemetry to path, falling back to memory only when
// the database cannot be opened.
func openMetrics(path string, logger *slog.Logger) *telemetry.Metrics {
	if path == "" {
		return telemetry.New(nil)
	}
	ms, err := telemetry.OpenSQLiteMetricsStore(path)
	if err != nil {
		logger.Warn("telemetry_store_unavailable",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return telemetry.New(nil)
	}
	return telemetry.New(ms)
}

// Close releases the metrics and the catalog source.
func (a *app) Close() error {
	var errs []error
	if a.metrics != nil {
		errs = append(errs, a.metrics.Close())
	}
	if a.source != nil {
		errs = append(errs, a.source.Close())
	}
	return errors.Join(errs...)
}
