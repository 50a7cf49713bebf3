package mcp

import (
	"github.com/Aman-CERP/schemamatch/internal/match"
)

// MatchSchemaInput is the input of match_schema. Keywords win over Question
// when both are given.
type MatchSchemaInput struct {
	Keywords  []string `json:"keywords,omitempty" jsonschema:"keywords to match against table and column names and descriptions"`
	Question  string   `json:"question,omitempty" jsonschema:"natural-language question; keywords are extracted from it when keywords is empty"`
	Threshold *float64 `json:"threshold,omitempty" jsonschema:"minimum similarity in [0,1] an entry must exceed, default 0.6"`
	Limit     int      `json:"limit,omitempty" jsonschema:"maximum tables and columns to return each, default all"`
}

// MatchSchemaOutput is the output of match_schema.
type MatchSchemaOutput struct {
	Keywords  []string       `json:"keywords" jsonschema:"the normalized keywords that were ranked"`
	Threshold float64        `json:"threshold" jsonschema:"the threshold that was applied"`
	Tables    []match.Result `json:"tables" jsonschema:"matching tables, best first"`
	Columns   []match.Result `json:"columns" jsonschema:"matching columns, best first"`
	Hint      string         `json:"hint" jsonschema:"the matches rendered as a prompt fragment for SQL generation"`
}

// DescribeColumnInput is the input of describe_column.
type DescribeColumnInput struct {
	Schema string `json:"schema" jsonschema:"schema name"`
	Table  string `json:"table" jsonschema:"table name"`
	Column string `json:"column" jsonschema:"column name"`
}

// DescribeColumnOutput is the output of describe_column.
type DescribeColumnOutput struct {
	Column      string `json:"column" jsonschema:"schema.table.column"`
	Description string `json:"description" jsonschema:"the catalog description, or 'Aucune description disponible'"`
}

// ExecuteSQLInput is the input of execute_sql.
type ExecuteSQLInput struct {
	Query string `json:"query" jsonschema:"the SQL statement to run on the catalog database"`
}

// IndexStatusInput is the input of index_status (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput is the output of index_status and reload_index.
type IndexStatusOutput struct {
	Loaded     bool    `json:"loaded"`
	Generation uint64  `json:"generation"`
	BuiltAt    string  `json:"built_at,omitempty" jsonschema:"RFC 3339 time of the last rebuild"`
	Tables     int     `json:"tables"`
	Columns    int     `json:"columns"`
	Keywords   int     `json:"keywords"`
	Skipped    int     `json:"skipped" jsonschema:"records skipped as invalid during the last rebuild"`
	Similarity string  `json:"similarity"`
	Threshold  float64 `json:"threshold"`
	Candidates string  `json:"candidates"`
	Workers    int     `json:"workers"`
	CacheHits  int64   `json:"cache_hits,omitempty"`
	CacheMiss  int64   `json:"cache_misses,omitempty"`
	Matches    int64   `json:"matches,omitempty" jsonschema:"matches served since start"`
}
