package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/schemamatch/internal/catalog"
	smerrors "github.com/Aman-CERP/schemamatch/internal/errors"
	"github.com/Aman-CERP/schemamatch/internal/index"
	"github.com/Aman-CERP/schemamatch/internal/match"
	"github.com/Aman-CERP/schemamatch/internal/search"
	"github.com/Aman-CERP/schemamatch/internal/store"
	"github.com/Aman-CERP/schemamatch/internal/telemetry"
	"github.com/Aman-CERP/schemamatch/pkg/version"
)

// ServerName is the implementation name announced to clients.
const ServerName = "schemamatch"

// Engine is what the server needs from the matching engine.
// *search.Engine implements it.
type Engine interface {
	Match(ctx context.Context, keywords []string, threshold float64) (*match.Matches, error)
	Ask(ctx context.Context, question string, threshold float64) (*search.Answer, error)
	Describe(ctx context.Context, schema, table, column string) (string, error)
	Execute(ctx context.Context, query string) (*store.Result, error)
	Reload(ctx context.Context) (*index.Snapshot, error)
	Records() []catalog.AttributeRecord
	Stats() search.Stats
	Threshold() float64
}

var _ Engine = (*search.Engine)(nil)

// Server bridges MCP clients with the matching engine.
type Server struct {
	mcp    *mcp.Server
	engine Engine
	logger *slog.Logger

	metrics *telemetry.Metrics
	mu      sync.RWMutex
}

// NewServer creates a server and registers its tools and resources.
func NewServer(engine Engine, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		engine: engine,
		logger: logger,
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		}, nil),
	}
	s.registerTools()
	s.registerCatalogResource()
	return s, nil
}

// SetMetrics exposes m as the match_metrics resource.
func (s *Server) SetMetrics(m *telemetry.Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
	if m != nil {
		s.registerMetricsResource()
	}
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "match_schema",
		Description: "Find the tables and columns of the database that best match a set of keywords " +
			"or a natural-language question, by fuzzy similarity against names and descriptions. " +
			"Returns ranked matches and a hint to paste into a SQL-generation prompt.",
	}, s.handleMatchSchema)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "describe_column",
		Description: "Return the catalog description of one column.",
	}, s.handleDescribeColumn)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "execute_sql",
		Description: "Run a SQL statement on the catalog database and return its rows. " +
			"Errors come back as text starting with 'Erreur:'.",
	}, s.handleExecuteSQL)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Report whether the catalog index is loaded, its size and the matcher settings.",
	}, s.handleIndexStatus)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "reload_index",
		Description: "Re-read the catalog and rebuild the index. The previous index keeps serving if the read fails.",
	}, s.handleReloadIndex)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", 5))
}

func (s *Server) handleMatchSchema(ctx context.Context, _ *mcp.CallToolRequest, in MatchSchemaInput) (
	*mcp.CallToolResult, MatchSchemaOutput, error,
) {
	requestID := generateRequestID()
	start := time.Now()

	threshold := s.engine.Threshold()
	if in.Threshold != nil {
		threshold = *in.Threshold
	}

	var kws []string
	var m *match.Matches
	var err error
	switch {
	case len(match.NormalizeKeywords(in.Keywords)) > 0:
		kws = match.NormalizeKeywords(in.Keywords)
		m, err = s.engine.Match(ctx, kws, threshold)
	case strings.TrimSpace(in.Question) != "":
		var answer *search.Answer
		answer, err = s.engine.Ask(ctx, in.Question, threshold)
		if answer != nil {
			kws, m = answer.Analysis.Keywords, answer.Matches
		}
	default:
		return nil, MatchSchemaOutput{}, NewInvalidParamsError("keywords or question is required")
	}
	if err != nil {
		s.logger.Warn("match_schema_failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return nil, MatchSchemaOutput{}, MapError(err)
	}

	m = m.Top(in.Limit)
	if kws == nil {
		kws = []string{}
	}

	s.logger.Info("match_schema_completed",
		slog.String("request_id", requestID),
		slog.Int("tables", len(m.Tables)),
		slog.Int("columns", len(m.Columns)),
		slog.Duration("duration", time.Since(start)))

	return nil, MatchSchemaOutput{
		Keywords:  kws,
		Threshold: threshold,
		Tables:    m.Tables,
		Columns:   m.Columns,
		Hint:      match.Hint(m),
	}, nil
}

func (s *Server) handleDescribeColumn(ctx context.Context, _ *mcp.CallToolRequest, in DescribeColumnInput) (
	*mcp.CallToolResult, DescribeColumnOutput, error,
) {
	if strings.TrimSpace(in.Table) == "" || strings.TrimSpace(in.Column) == "" {
		return nil, DescribeColumnOutput{}, NewInvalidParamsError("table and column are required")
	}
	desc, err := s.engine.Describe(ctx, in.Schema, in.Table, in.Column)
	if err != nil {
		return nil, DescribeColumnOutput{}, MapError(err)
	}
	name := index.ColumnKey{Schema: in.Schema, Table: in.Table, Column: in.Column}.String()
	return nil, DescribeColumnOutput{Column: name, Description: desc}, nil
}

// handleExecuteSQL reports SQL failures as tool text rather than protocol
// errors, so the agent can read the message and correct its query.
func (s *Server) handleExecuteSQL(ctx context.Context, _ *mcp.CallToolRequest, in ExecuteSQLInput) (
	*mcp.CallToolResult, any, error,
) {
	requestID := generateRequestID()
	start := time.Now()

	res, err := s.engine.Execute(ctx, in.Query)
	if err != nil {
		s.logger.Warn("execute_sql_failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "Erreur: " + errorText(err)}},
			IsError: true,
		}, nil, nil
	}

	s.logger.Info("execute_sql_completed",
		slog.String("request_id", requestID),
		slog.Int("rows", len(res.Rows)),
		slog.Duration("duration", time.Since(start)))

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatResult(res)}},
	}, nil, nil
}

func (s *Server) handleIndexStatus(_ context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult, IndexStatusOutput, error,
) {
	return nil, statusOutput(s.engine.Stats()), nil
}

func (s *Server) handleReloadIndex(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult, IndexStatusOutput, error,
) {
	if _, err := s.engine.Reload(ctx); err != nil {
		return nil, IndexStatusOutput{}, MapError(err)
	}
	return nil, statusOutput(s.engine.Stats()), nil
}

func statusOutput(st search.Stats) IndexStatusOutput {
	out := IndexStatusOutput{
		Loaded:     st.Loaded,
		Generation: st.Generation,
		Tables:     st.Tables,
		Columns:    st.Columns,
		Keywords:   st.Keywords,
		Skipped:    st.Skipped,
		Similarity: st.Similarity,
		Threshold:  st.Threshold,
		Candidates: st.Candidates,
		Workers:    st.Workers,
	}
	if !st.BuiltAt.IsZero() {
		out.BuiltAt = st.BuiltAt.Format(time.RFC3339)
	}
	if st.Cache != nil {
		out.CacheHits = st.Cache.Hits
		out.CacheMiss = st.Cache.Misses
	}
	if st.Telemetry != nil {
		out.Matches = st.Telemetry.TotalMatches
	}
	return out
}

// errorText is the message of a coded error without its code prefix.
func errorText(err error) string {
	if e, ok := smerrors.As(err); ok {
		return e.Message
	}
	return err.Error()
}

// Serve runs the server on transport until ctx is canceled.
// "stdio" speaks JSON-RPC on stdin/stdout; "http" serves streamable HTTP on addr.
func (s *Server) Serve(ctx context.Context, transport, addr string) error {
	s.logger.Info("mcp_server_starting",
		slog.String("transport", transport),
		slog.String("addr", addr))

	var err error
	switch transport {
	case "stdio":
		err = s.mcp.Run(ctx, &mcp.StdioTransport{})
	case "http":
		err = s.serveHTTP(ctx, addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, http)", transport)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("mcp_server_failed", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp_server_stopped")
	return nil
}

func (s *Server) serveHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// generateRequestID creates a short random ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
