package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/schemamatch/internal/output"
)

// indexOptions holds CLI flags for index.
type indexOptions struct {
	keywords bool
	format   string
}

// indexEntry is one table or column and its keywords in JSON output.
type indexEntry struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

// indexOutput is the JSON document printed by index --format json.
type indexOutput struct {
	Generation uint64       `json:"generation"`
	Tables     []indexEntry `json:"tables"`
	Columns    []indexEntry `json:"columns"`
	Skipped    int          `json:"skipped"`
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the keyword index and report its size",
		Long: `Read the catalog and build the table and column keyword indexes.

Records without a table or column name are skipped and counted. Use
--keywords to list every entry with its keywords.`,
		Example: `  schemamatch index
  schemamatch index --keywords
  schemamatch index --keywords --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.keywords, "keywords", false, "List each table and column with its keywords")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, opts indexOptions) error {
	format, err := output.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := openApp(ctx, cfg, appOptions{reload: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	snap := a.engine.Snapshot()
	out := output.New(cmd.OutOrStdout())

	if format == output.FormatJSON {
		doc := indexOutput{Generation: snap.Generation, Skipped: snap.Skipped, Tables: []indexEntry{}, Columns: []indexEntry{}}
		if opts.keywords {
			for _, t := range snap.Index.Tables() {
				doc.Tables = append(doc.Tables, indexEntry{Name: t.Key.String(), Keywords: t.Terms})
			}
			for _, c := range snap.Index.Columns() {
				doc.Columns = append(doc.Columns, indexEntry{Name: c.Key.String(), Keywords: c.Terms})
			}
		}
		return out.JSON(doc)
	}

	stats := snap.Index.Stats()
	out.Successf("Indexed %d tables and %d columns (%d distinct keywords)", stats.Tables, stats.Columns, stats.Keywords)
	if snap.Skipped > 0 {
		out.Warningf("%d records skipped (missing table or column name, see the log)", snap.Skipped)
	}
	if opts.keywords {
		out.Newline()
		for _, t := range snap.Index.Tables() {
			out.Keywords(t.Key.String(), t.Terms)
		}
		out.Newline()
		for _, c := range snap.Index.Columns() {
			out.Keywords(c.Key.String(), c.Terms)
		}
	}
	return nil
}
