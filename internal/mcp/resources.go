package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Resource URIs.
const (
	CatalogURI      = "schemamatch://catalog"
	MatchMetricsURI = "schemamatch://match_metrics"
)

func (s *Server) registerCatalogResource() {
	s.mcp.AddResource(&mcp.Resource{
		Name:        "catalog",
		URI:         CatalogURI,
		Description: "Every table and column of the loaded catalog, with types, constraints and descriptions",
		MIMEType:    "text/markdown",
	}, s.handleCatalogResource)
}

func (s *Server) handleCatalogResource(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	if !s.engine.Stats().Loaded {
		return nil, &MCPError{Code: ErrCodeIndexNotLoaded, Message: "index not loaded"}
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      CatalogURI,
			MIMEType: "text/markdown",
			Text:     FormatCatalog(s.engine.Records()),
		}},
	}, nil
}

// MatchMetricsOutput is the JSON document of the match_metrics resource.
type MatchMetricsOutput struct {
	TotalMatches        int64            `json:"total_matches"`
	ZeroResultPct       float64          `json:"zero_result_pct"`
	ExactRepeats        int64            `json:"exact_repeats"`
	KindCounts          map[string]int64 `json:"kind_counts"`
	TopKeywords         []KeywordCount   `json:"top_keywords"`
	ZeroResultQueries   []string         `json:"zero_result_queries"`
	LatencyDistribution map[string]int64 `json:"latency_distribution"`
}

// KeywordCount is a keyword and how often it was queried.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int64  `json:"count"`
}

func (s *Server) registerMetricsResource() {
	s.mcp.AddResource(&mcp.Resource{
		Name:        "match_metrics",
		URI:         MatchMetricsURI,
		Description: "Match telemetry: frequent keywords, queries that found nothing, latency",
		MIMEType:    "application/json",
	}, s.handleMetricsResource)
}

func (s *Server) handleMetricsResource(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	s.mu.RLock()
	metrics := s.metrics
	s.mu.RUnlock()
	if metrics == nil {
		return nil, NewResourceNotFoundError(MatchMetricsURI)
	}

	snap := metrics.Snapshot()
	out := MatchMetricsOutput{
		TotalMatches:        snap.TotalMatches,
		ZeroResultPct:       snap.ZeroResultPercentage(),
		ExactRepeats:        snap.ExactRepeatCount,
		KindCounts:          make(map[string]int64, len(snap.KindCounts)),
		TopKeywords:         make([]KeywordCount, 0, len(snap.TopKeywords)),
		ZeroResultQueries:   snap.ZeroResultQueries,
		LatencyDistribution: make(map[string]int64, len(snap.LatencyDistribution)),
	}
	for k, n := range snap.KindCounts {
		out.KindCounts[string(k)] = n
	}
	for _, tc := range snap.TopKeywords {
		out.TopKeywords = append(out.TopKeywords, KeywordCount{Keyword: tc.Term, Count: tc.Count})
	}
	for b, n := range snap.LatencyDistribution {
		out.LatencyDistribution[string(b)] = n
	}

	content, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      MatchMetricsURI,
			MIMEType: "application/json",
			Text:     string(content),
		}},
	}, nil
}
