// Package similarity provides normalized character-level string similarity
// functions used to compare query keywords with catalog keywords.
//
// Every Func returns a score in [0,1]. Identical strings score 1.0, and a
// comparison between an empty and a non-empty string scores 0.0.
package similarity

import (
	"fmt"
	"sort"

	smerrors "github.com/Aman-CERP/schemamatch/internal/errors"
)

// Func scores how similar two strings are, in [0,1].
type Func func(a, b string) float64

// Metric names accepted by Named.
const (
	MetricRatio       = "ratio"
	MetricFuzz        = "fuzz"
	MetricLevenshtein = "levenshtein"
)

// Default is the metric used when none is configured.
const Default = MetricRatio

var registry = map[string]Func{
	MetricRatio:       Ratio,
	MetricFuzz:        Fuzz,
	MetricLevenshtein: Levenshtein,
}

// Named returns the metric registered under name.
func Named(name string) (Func, error) {
	if name == "" {
		name = Default
	}
	fn, ok := registry[name]
	if !ok {
		return nil, smerrors.New(smerrors.ErrCodeUnknownMetric,
			fmt.Sprintf("unknown similarity metric %q", name), nil).
			WithSuggestion(fmt.Sprintf("Use one of: %v", Names()))
	}
	return fn, nil
}

// Names lists the registered metric names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
