package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/schemamatch/internal/catalog"
	"github.com/Aman-CERP/schemamatch/internal/logging"
	"github.com/Aman-CERP/schemamatch/internal/mcp"
	"github.com/Aman-CERP/schemamatch/internal/store"
	"github.com/Aman-CERP/schemamatch/internal/watcher"
	"github.com/Aman-CERP/schemamatch/pkg/version"
)

// serveOptions holds CLI flags for serve. Empty values keep the config.
type serveOptions struct {
	transport string
	addr      string
	watch     bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Serve the matcher to MCP clients.

Tools: match_schema, describe_column, execute_sql, index_status, reload_index.
Resources: schemamatch://catalog and schemamatch://match_metrics.

With the stdio transport, stdout carries JSON-RPC only: logs go to
` + logging.DefaultLogPath() + `. With --watch, the index is rebuilt whenever the
catalog file or SQLite database changes; a failed rebuild keeps the
previous index.`,
		Example: `  schemamatch serve
  schemamatch serve --transport http --addr 127.0.0.1:8765
  schemamatch serve --watch`,
		Annotations: map[string]string{annotationOwnLogging: "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("watch") {
				return runServe(cmd.Context(), opts, &opts.watch)
			}
			return runServe(cmd.Context(), opts, nil)
		},
	}

	cmd.Flags().StringVar(&opts.transport, "transport", "", "Transport: stdio, http (default: server.transport)")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address for http (default: server.addr)")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Rebuild the index when the catalog changes (default: catalog.watch)")

	return cmd
}

func runServe(ctx context.Context, opts serveOptions, watch *bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.transport != "" {
		cfg.Server.Transport = opts.transport
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	if watch != nil {
		cfg.Catalog.Watch = *watch
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, cleanup, err := logging.Setup(logging.ServerConfig(effectiveLogLevel(cfg.Server.LogLevel)))
	if err != nil {
		return err
	}
	defer cleanup()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("server_starting",
		slog.String("version", version.Version),
		slog.String("transport", cfg.Server.Transport),
		slog.String("catalog_source", cfg.Source()))

	a, err := openApp(ctx, cfg, appOptions{telemetry: true, logger: logger})
	if err != nil {
		logger.Error("catalog_open_failed", slog.String("error", err.Error()))
		return err
	}
	defer func() { _ = a.Close() }()

	// A catalog that fails to load is reported by the tools; the server
	// still starts so clients can call reload_index once it is fixed.
	if _, err := a.engine.Reload(ctx); err != nil {
		logger.Warn("initial_index_failed", slog.String("error", err.Error()))
	}

	srv, err := mcp.NewServer(a.engine, logger)
	if err != nil {
		return err
	}
	if a.metrics != nil {
		srv.SetMetrics(a.metrics)
	}

	// Serving ends when the client disconnects; that also stops the watcher.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Catalog.Watch {
		if err := startWatcher(gctx, g, a, logger); err != nil {
			logger.Warn("watcher_unavailable", slog.String("error", err.Error()))
		}
	}
	g.Go(func() error {
		defer cancel()
		return srv.Serve(gctx, strings.ToLower(cfg.Server.Transport), cfg.Server.Addr)
	})

	err = g.Wait()
	logger.Info("server_stopped")
	return err
}

// startWatcher rebuilds the index on every debounced change to the catalog.
// Watching runs until ctx is done; it never fails the group.
func startWatcher(ctx context.Context, g *errgroup.Group, a *app, logger *slog.Logger) error {
	path, ok := watchTarget(a)
	if !ok {
		logger.Warn("watch_unsupported", slog.String("driver", a.db.Driver()))
		return nil
	}

	opts := watcher.DefaultOptions()
	opts.DebounceWindow = a.cfg.Debounce()
	w, err := watcher.NewFileWatcher(path, opts, logger)
	if err != nil {
		return err
	}

	g.Go(func() error {
		if err := w.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("watcher_stopped", slog.String("error", err.Error()))
		}
		return nil
	})
	g.Go(func() error {
		defer func() { _ = w.Stop() }()
		watcher.Run(ctx, w, func(ctx context.Context) error {
			_, err := a.engine.Reload(ctx)
			return err
		}, logger)
		return nil
	})

	logger.Info("watcher_started",
		slog.String("path", path),
		slog.String("type", w.WatcherType()),
		slog.Duration("debounce", opts.DebounceWindow))
	return nil
}

// watchTarget returns the file whose changes should trigger a rebuild:
// the snapshot file, or the SQLite database. PostgreSQL cannot be watched.
func watchTarget(a *app) (string, bool) {
	if fs, ok := a.source.(*catalog.FileSource); ok {
		return fs.Path(), true
	}
	if s, ok := a.db.(*store.SQLiteStore); ok {
		path := strings.TrimPrefix(s.Path(), "file:")
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		if path == "" || path == ":memory:" {
			return "", false
		}
		return path, true
	}
	return "", false
}
