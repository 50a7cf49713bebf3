// Package ui provides the interactive question loop of the ask command:
// a bubbletea model on a terminal and a line-oriented loop for pipes and CI.
package ui

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/Aman-CERP/schemamatch/internal/search"
)

// Asker answers natural-language questions against the loaded catalog.
// *search.Engine implements it.
type Asker interface {
	Ask(ctx context.Context, question string, threshold float64) (*search.Answer, error)
	Threshold() float64
}

// Config configures the question loop.
type Config struct {
	Input      io.Reader
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	// Threshold is passed to every Ask; nil means the engine default.
	Threshold *float64
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces the line-oriented loop.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithThreshold sets the threshold used for every question.
func WithThreshold(threshold float64) ConfigOption {
	return func(c *Config) {
		c.Threshold = &threshold
	}
}

// NewConfig creates a new Config reading from in and writing to out.
func NewConfig(in io.Reader, out io.Writer, opts ...ConfigOption) Config {
	cfg := Config{
		Input:  in,
		Output: out,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Run asks questions until the user enters q, input ends or ctx is canceled.
// It uses the terminal UI when both ends are terminals outside CI.
func Run(ctx context.Context, asker Asker, cfg Config) error {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || !isTerminal(cfg.Input) || DetectCI() {
		return RunPlain(ctx, asker, cfg)
	}
	return RunTUI(ctx, asker, cfg)
}

// IsQuit reports whether an input line ends the loop.
func IsQuit(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "q", "quit", "exit":
		return true
	}
	return false
}

func effectiveThreshold(asker Asker, threshold *float64) float64 {
	if threshold == nil {
		return asker.Threshold()
	}
	return *threshold
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	return isTerminal(w)
}

func isTerminal(v any) bool {
	if f, ok := v.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
