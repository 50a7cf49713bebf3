// Package cmd provides the CLI commands for schemamatch.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	smerrors "github.com/Aman-CERP/schemamatch/internal/errors"
	"github.com/Aman-CERP/schemamatch/internal/logging"
	"github.com/Aman-CERP/schemamatch/pkg/version"
)

// annotationOwnLogging marks commands that configure logging themselves.
const annotationOwnLogging = "own-logging"

// Global flags
var (
	configPath     string
	debugMode      bool
	logLevel       string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the schemamatch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schemamatch",
		Short: "Fuzzy keyword matching over a relational schema catalog",
		Long: `schemamatch maps free-text keywords, or keywords extracted from a
question, onto the tables and columns of a database catalog using fuzzy
string similarity.

The catalog comes from a metadata table (PostgreSQL or SQLite, see
database.dsn) or from a YAML/JSON snapshot (catalog.file). Results are
available from the command line and to MCP clients through 'schemamatch serve'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("schemamatch version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default: user config, then .schemamatch.yaml)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Log debug output to stderr and "+logging.DefaultLogPath())
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newMatchCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newDescribeCmd())
	cmd.AddCommand(newExecCmd())
	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging sends CLI logs to the log file, and to stderr with --debug.
func startLogging(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[annotationOwnLogging] != "" {
		return nil
	}
	cfg := logging.DefaultConfig()
	cfg.Level = effectiveLogLevel("warn")
	cfg.WriteToStderr = debugMode

	cleanup, err := logging.SetupDefault(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.Debug("command_started", slog.String("command", cmd.CommandPath()))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// effectiveLogLevel resolves --log-level, then --debug, then fallback.
func effectiveLogLevel(fallback string) string {
	switch {
	case logLevel != "":
		return logLevel
	case debugMode:
		return "debug"
	default:
		return fallback
	}
}

// Execute runs the root command and prints any error.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		if _, ok := smerrors.As(err); ok {
			fmt.Fprint(os.Stderr, smerrors.FormatForCLI(err))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	return err
}
