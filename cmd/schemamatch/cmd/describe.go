package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <schema> <table> <column>",
		Short: "Print the description of a column",
		Long: `Print the catalog description of one column, or "Aucune description disponible".

The column may also be given as a single schema.table.column argument.`,
		Example: `  schemamatch describe public clients ville
  schemamatch describe public.clients.ville`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && strings.Count(args[0], ".") == 2 {
				return nil
			}
			return cobra.ExactArgs(3)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				args = strings.SplitN(args[0], ".", 3)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, appOptions{reload: true})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			desc, err := a.engine.Describe(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), desc)
			return err
		},
	}
}
