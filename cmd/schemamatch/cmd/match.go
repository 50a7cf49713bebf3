package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/schemamatch/internal/match"
	"github.com/Aman-CERP/schemamatch/internal/output"
)

// matchOptions holds CLI flags for match.
type matchOptions struct {
	threshold float64
	format    string
	limit     int
}

// matchOutput is the JSON document printed by match --format json.
type matchOutput struct {
	Keywords  []string       `json:"keywords"`
	Threshold float64        `json:"threshold"`
	Tables    []match.Result `json:"tables"`
	Columns   []match.Result `json:"columns"`
	Hint      string         `json:"hint"`
}

func newMatchCmd() *cobra.Command {
	var opts matchOptions

	cmd := &cobra.Command{
		Use:   "match <keyword>...",
		Short: "Rank catalog tables and columns against keywords",
		Long: `Score every table and column of the catalog against the given keywords.

An entry's score is the best similarity between any keyword and any of its
own keywords (its name plus the words of its descriptions). Only entries
scoring strictly above the threshold are listed, best first.`,
		Example: `  schemamatch match client ville
  schemamatch match montant --threshold 0.8 --limit 5
  schemamatch match commande --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(cmd.Context(), cmd, args, opts)
		},
	}

	cmd.Flags().Float64Var(&opts.threshold, "threshold", 0, "Minimum score in [0,1], exclusive (default: matcher.threshold)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum tables and columns to list (0: all)")

	return cmd
}

func runMatch(ctx context.Context, cmd *cobra.Command, keywords []string, opts matchOptions) error {
	format, err := output.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := openApp(ctx, cfg, appOptions{reload: true, telemetry: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	threshold := a.engine.Threshold()
	if cmd.Flags().Changed("threshold") {
		threshold = opts.threshold
	}
	m, err := a.engine.Match(ctx, keywords, threshold)
	if err != nil {
		return err
	}
	m = m.Top(opts.limit)
	slog.Info("match_complete",
		slog.Int("tables", len(m.Tables)),
		slog.Int("columns", len(m.Columns)))

	out := output.New(cmd.OutOrStdout())
	if format == output.FormatJSON {
		return out.JSON(matchOutput{
			Keywords:  match.NormalizeKeywords(keywords),
			Threshold: threshold,
			Tables:    m.Tables,
			Columns:   m.Columns,
			Hint:      match.Hint(m),
		})
	}

	out.Matches(m, threshold)
	if hint := match.Hint(m); hint != "" {
		out.Newline()
		_, _ = fmt.Fprint(cmd.OutOrStdout(), hint)
	}
	return nil
}
