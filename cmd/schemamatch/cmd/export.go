package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/schemamatch/internal/catalog"
	"github.com/Aman-CERP/schemamatch/internal/output"
)

func newExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the catalog to a snapshot file",
		Long: `Read every record of the configured catalog and write it to a snapshot
file: JSON when the name ends in .json, YAML otherwise.

The file is replaced atomically, so a 'serve --watch' reading it sees either
the old or the new catalog, never a partial one.`,
		Example: `  schemamatch export --out catalog.yaml
  SCHEMAMATCH_DSN=postgres://localhost/erp schemamatch export --out erp.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			src, _, err := openSource(ctx, cfg, slog.Default())
			if err != nil {
				return err
			}
			defer func() { _ = src.Close() }()

			records, err := src.Attributes(ctx)
			if err != nil {
				return err
			}
			if err := catalog.WriteFile(out, records); err != nil {
				return err
			}

			slog.Info("catalog_exported", slog.String("path", out), slog.Int("records", len(records)))
			output.New(cmd.OutOrStdout()).Successf("Exported %d records to %s", len(records), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Snapshot file to write")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}
