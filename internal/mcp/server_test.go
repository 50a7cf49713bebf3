package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/schemamatch/internal/catalog"
	smerrors "github.com/Aman-CERP/schemamatch/internal/errors"
	"github.com/Aman-CERP/schemamatch/internal/search"
	"github.com/Aman-CERP/schemamatch/internal/store"
	"github.com/Aman-CERP/schemamatch/internal/telemetry"
)

func sampleRecords() []catalog.AttributeRecord {
	return []catalog.AttributeRecord{
		{ID: 1, Schema: "public", Table: "clients", Column: "nom", Type: "text", Description: "nom du client"},
		{ID: 2, Schema: "public", Table: "clients", Column: "ville", Type: "text", Description: "ville du client"},
		{ID: 3, Schema: "public", Table: "commandes", Column: "montant", Type: "numeric", Description: "montant total"},
	}
}

type fixture struct {
	server  *Server
	engine  *search.Engine
	session *mcp.ClientSession
}

// newFixture serves a SQLite-backed engine over in-memory transports.
func newFixture(t *testing.T, load bool) *fixture {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "catalog.db")
	s, err := store.Open(ctx, "sqlite://"+path, store.Options{
		ConnectTimeout: time.Second,
		Retry:          &smerrors.RetryConfig{MaxRetries: 0},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.(*store.SQLiteStore).Import(ctx, sampleRecords()))

	metrics := telemetry.New(nil)
	engine, err := search.NewEngine(s, search.DefaultConfig(), search.WithMetrics(metrics))
	require.NoError(t, err)
	if load {
		_, err = engine.Reload(ctx)
		require.NoError(t, err)
	}

	srv, err := NewServer(engine, nil)
	require.NoError(t, err)
	srv.SetMetrics(metrics)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := srv.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })

	return &fixture{server: srv, engine: engine, session: cs}
}

func (f *fixture) call(t *testing.T, name string, args map[string]any) (*mcp.CallToolResult, error) {
	t.Helper()
	return f.session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return tc.Text
}

// failure returns the message of a failed call, whether the SDK reported it
// as a protocol error or as a tool error result.
func failure(t *testing.T, res *mcp.CallToolResult, err error) string {
	t.Helper()
	if err != nil {
		return err.Error()
	}
	require.NotNil(t, res)
	require.True(t, res.IsError, "expected the call to fail")
	return textOf(t, res)
}

func TestNewServer_RequiresEngine(t *testing.T) {
	_, err := NewServer(nil, nil)
	assert.Error(t, err)
}

func TestServer_ListTools(t *testing.T) {
	// Given: a connected client
	f := newFixture(t, true)

	// When: listing tools
	res, err := f.session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	// Then: every tool is registered
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"match_schema", "describe_column", "execute_sql", "index_status", "reload_index"}, names)
}

func TestMatchSchema_Keywords(t *testing.T) {
	// Given: a loaded engine
	f := newFixture(t, true)

	// When: matching keywords
	res, err := f.call(t, "match_schema", map[string]any{"keywords": []string{"Client"}})
	require.NoError(t, err)
	require.False(t, res.IsError, textOf(t, res))

	// Then: clients is the best table and the hint names it
	var out MatchSchemaOutput
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &out))
	assert.Equal(t, []string{"client"}, out.Keywords)
	assert.Equal(t, 0.6, out.Threshold)
	require.NotEmpty(t, out.Tables)
	assert.Equal(t, "clients", out.Tables[0].Table)
	assert.Contains(t, out.Hint, "Table: public.clients")
}

func TestMatchSchema_Question(t *testing.T) {
	// Given: a loaded engine
	f := newFixture(t, true)

	// When: asking a question instead of passing keywords
	res, err := f.call(t, "match_schema", map[string]any{"question": "Quel est le montant des commandes ?"})
	require.NoError(t, err)
	require.False(t, res.IsError, textOf(t, res))

	// Then: extracted keywords find the montant column
	var out MatchSchemaOutput
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &out))
	assert.Contains(t, out.Keywords, "montant")
	require.NotEmpty(t, out.Columns)
	assert.Equal(t, "montant", out.Columns[0].Column)
}

func TestMatchSchema_ExplicitThresholdAndLimit(t *testing.T) {
	f := newFixture(t, true)

	res, err := f.call(t, "match_schema", map[string]any{
		"keywords":  []string{"client"},
		"threshold": 0.0,
		"limit":     1,
	})
	require.NoError(t, err)

	var out MatchSchemaOutput
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &out))
	assert.Equal(t, 0.0, out.Threshold)
	assert.Len(t, out.Tables, 1)
	assert.Len(t, out.Columns, 1)
}

func TestMatchSchema_Failures(t *testing.T) {
	f := newFixture(t, true)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"nothing to match", map[string]any{}, "keywords or question is required"},
		{"blank keywords", map[string]any{"keywords": []string{" "}}, "keywords or question is required"},
		{"threshold above one", map[string]any{"keywords": []string{"client"}, "threshold": 1.5}, "outside [0,1]"},
		{"negative threshold", map[string]any{"keywords": []string{"client"}, "threshold": -0.5}, "outside [0,1]"},
		{"negative threshold with question", map[string]any{"question": "montant des commandes", "threshold": -0.5}, "outside [0,1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.call(t, "match_schema", tt.args)
			assert.Contains(t, failure(t, res, err), tt.want)
		})
	}
}

func TestMatchSchema_NotLoaded(t *testing.T) {
	// Given: an engine that was never reloaded
	f := newFixture(t, false)

	// When: matching
	res, err := f.call(t, "match_schema", map[string]any{"keywords": []string{"client"}})

	// Then: the call fails with the not-loaded message
	assert.Contains(t, failure(t, res, err), "index not loaded")
}

func TestDescribeColumn(t *testing.T) {
	f := newFixture(t, true)

	res, err := f.call(t, "describe_column", map[string]any{"schema": "public", "table": "clients", "column": "ville"})
	require.NoError(t, err)

	var out DescribeColumnOutput
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &out))
	assert.Equal(t, "public.clients.ville", out.Column)
	assert.Equal(t, "ville du client", out.Description)

	res, err = f.call(t, "describe_column", map[string]any{"schema": "public", "table": "clients", "column": "absent"})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &out))
	assert.Equal(t, store.NoDescription, out.Description)
}

func TestExecuteSQL_ReturnsRows(t *testing.T) {
	f := newFixture(t, true)

	res, err := f.call(t, "execute_sql", map[string]any{
		"query": `SELECT nom_attr FROM metadata_attributs WHERE "table" = 'clients' ORDER BY nom_attr`,
	})
	require.NoError(t, err)
	require.False(t, res.IsError, textOf(t, res))

	text := textOf(t, res)
	assert.Contains(t, text, "| nom_attr |")
	assert.Contains(t, text, "| nom |")
	assert.Contains(t, text, "| ville |")
	assert.Contains(t, text, "(2 rows)")
}

func TestExecuteSQL_ErrorIsToolText(t *testing.T) {
	// Given: a connected client
	f := newFixture(t, true)

	// When: running invalid SQL
	res, err := f.call(t, "execute_sql", map[string]any{"query": "SELECT * FROM nowhere"})

	// Then: the call succeeds at the protocol level and reports the error as text
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.True(t, strings.HasPrefix(textOf(t, res), "Erreur: "), textOf(t, res))
}

func TestIndexStatusAndReload(t *testing.T) {
	// Given: a loaded engine
	f := newFixture(t, true)

	// When: asking for status
	res, err := f.call(t, "index_status", map[string]any{})
	require.NoError(t, err)

	// Then: the index size is reported
	var out IndexStatusOutput
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &out))
	assert.True(t, out.Loaded)
	assert.Equal(t, uint64(1), out.Generation)
	assert.Equal(t, 2, out.Tables)
	assert.Equal(t, 3, out.Columns)
	assert.NotEmpty(t, out.BuiltAt)

	// When: reloading
	res, err = f.call(t, "reload_index", map[string]any{})
	require.NoError(t, err)

	// Then: the generation advances
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &out))
	assert.Equal(t, uint64(2), out.Generation)
}

func TestResources(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.call(t, "match_schema", map[string]any{"keywords": []string{"client"}})
	require.NoError(t, err)

	res, err := f.session.ReadResource(ctx, &mcp.ReadResourceParams{URI: CatalogURI})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Contains(t, res.Contents[0].Text, "## public.clients")
	assert.Contains(t, res.Contents[0].Text, "**ville** `text`: ville du client")

	res, err = f.session.ReadResource(ctx, &mcp.ReadResourceParams{URI: MatchMetricsURI})
	require.NoError(t, err)
	var metrics MatchMetricsOutput
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &metrics))
	assert.Equal(t, int64(1), metrics.TotalMatches)
	require.NotEmpty(t, metrics.TopKeywords)
	assert.Equal(t, "client", metrics.TopKeywords[0].Keyword)
}

func TestServe_UnknownTransport(t *testing.T) {
	f := newFixture(t, true)
	err := f.server.Serve(context.Background(), "grpc", "")
	assert.Error(t, err)
}
