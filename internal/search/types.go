// Package search serves match queries against a live catalog index.
//
// The Engine owns the current index snapshot. Reload reads the catalog,
// builds a new index and publishes it in one atomic step; Match and Ask
// rank against whichever snapshot is current when they start.
package search

import (
	"context"
	"time"

	"github.com/Aman-CERP/schemamatch/internal/keywords"
	"github.com/Aman-CERP/schemamatch/internal/match"
	"github.com/Aman-CERP/schemamatch/internal/store"
	"github.com/Aman-CERP/schemamatch/internal/telemetry"
)

// Describer is implemented by catalog sources that look up one column
// without loading the whole catalog.
type Describer interface {
	ColumnDescription(ctx context.Context, schema, table, column string) (string, error)
}

// Executor is implemented by catalog sources that can run SQL.
type Executor interface {
	Execute(ctx context.Context, query string) (*store.Result, error)
}

// Answer is the outcome of Ask.
type Answer struct {
	Question string            `json:"question"`
	Analysis keywords.Analysis `json:"analysis"`
	Matches  *match.Matches    `json:"matches"`
	Hint     string            `json:"hint"`
}

// Stats describes the engine's current state.
type Stats struct {
	Loaded     bool      `json:"loaded"`
	Generation uint64    `json:"generation"`
	BuiltAt    time.Time `json:"built_at,omitzero"`
	Tables     int       `json:"tables"`
	Columns    int       `json:"columns"`
	Keywords   int       `json:"keywords"`
	Skipped    int       `json:"skipped"`

	Similarity string  `json:"similarity"`
	Threshold  float64 `json:"threshold"`
	Candidates string  `json:"candidates"`
	Workers    int     `json:"workers"`

	Cache     *match.CacheStats   `json:"cache,omitempty"`
	Telemetry *telemetry.Snapshot `json:"telemetry,omitempty"`
}
