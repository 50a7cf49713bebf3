package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/schemamatch/internal/output"
)

func newExecCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "exec <sql>",
		Short: "Run SQL on the catalog database",
		Long: `Run a SQL statement on the configured database and print the result.

Queries print their rows; other statements print the number of rows
affected. Requires database.dsn; a catalog file cannot run SQL.`,
		Example: `  schemamatch exec "SELECT nom, ville FROM public.clients LIMIT 10"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, appOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			res, err := a.engine.Execute(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := output.New(cmd.OutOrStdout())
			if f == output.FormatJSON {
				return out.JSON(res)
			}
			out.Result(res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	return cmd
}
