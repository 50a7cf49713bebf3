package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/schemamatch/internal/catalog"
	smerrors "github.com/Aman-CERP/schemamatch/internal/errors"
	"github.com/Aman-CERP/schemamatch/internal/output"
	"github.com/Aman-CERP/schemamatch/internal/store"
)

func newImportCmd() *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "import <snapshot>",
		Short: "Load a catalog snapshot into a SQLite database",
		Long: `Append the records of a YAML or JSON catalog snapshot to the metadata table
of a SQLite database, creating the table when needed.

The target is --db, or database.dsn when it names a SQLite database.`,
		Example: `  schemamatch import catalog.yaml --db sqlite://catalog.db
  SCHEMAMATCH_DSN=catalog.db schemamatch import catalog.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if dsn == "" {
				dsn = cfg.Database.DSN
			}
			kind, _, err := store.ParseDSN(dsn)
			if err != nil {
				return err
			}
			if kind != store.KindSQLite {
				return smerrors.ValidationError("import writes to SQLite databases only", nil).
					WithSuggestion("Pass --db sqlite://path/to/catalog.db")
			}

			records, err := catalog.NewFileSource(args[0]).Attributes(ctx)
			if err != nil {
				return err
			}

			s, err := store.Open(ctx, dsn, store.Options{
				MetadataTable:  cfg.Database.MetadataTable,
				ConnectTimeout: cfg.ConnectTimeout(),
			})
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			sqlite, ok := s.(*store.SQLiteStore)
			if !ok {
				return smerrors.InternalError("expected a SQLite store", nil)
			}
			if err := sqlite.Import(ctx, records); err != nil {
				return err
			}

			slog.Info("catalog_imported",
				slog.String("snapshot", args[0]),
				slog.String("database", sqlite.Path()),
				slog.Int("records", len(records)))
			output.New(cmd.OutOrStdout()).Successf("Imported %d records into %s", len(records), sqlite.Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&dsn, "db", "", "Target SQLite database (default: database.dsn)")

	return cmd
}
