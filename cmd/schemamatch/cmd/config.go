package cmd

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/schemamatch/configs"
	"github.com/Aman-CERP/schemamatch/internal/config"
	smerrors "github.com/Aman-CERP/schemamatch/internal/errors"
	"github.com/Aman-CERP/schemamatch/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage schemamatch configuration.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/schemamatch/config.yaml)
  3. Project config (.schemamatch.yaml)
  4. Environment variables (SCHEMAMATCH_*)

--config replaces steps 2 and 3 with a single file.`,
		Example: `  schemamatch config init
  schemamatch config show
  schemamatch config upgrade`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigUpgradeCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force, project bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file from the template",
		Long: `Write the commented configuration template to the user config file, or with
--project to .schemamatch.yaml in the current directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := config.GetUserConfigPath()
			if project {
				cwd, err := os.Getwd()
				if err != nil {
					return smerrors.IOError("resolve working directory", err)
				}
				path = filepath.Join(cwd, config.ProjectConfigName)
			}
			return runConfigInit(cmd, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.Flags().BoolVar(&project, "project", false, "Create .schemamatch.yaml in the current directory")

	return cmd
}

func runConfigInit(cmd *cobra.Command, path string, force bool) error {
	out := output.New(cmd.OutOrStdout())

	if _, err := os.Stat(path); err == nil && !force {
		out.Warning("Configuration already exists")
		out.Statusf("📁", "Location: %s", path)
		out.Newline()
		out.Status("💡", "Use 'schemamatch config upgrade' to add new options, or --force to overwrite")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return smerrors.IOError("create config directory", err)
	}
	if err := os.WriteFile(path, []byte(configs.ExampleConfig), 0644); err != nil {
		return smerrors.IOError("write config file", err)
	}

	out.Success("Created configuration")
	out.Statusf("📁", "Location: %s", path)
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", "  1. Set database.dsn or catalog.file")
	out.Status("", "  2. Run 'schemamatch index' to check the catalog loads")
	return nil
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  `Show the configuration after merging all sources, or only the defaults.`,
		Example: `  schemamatch config show
  schemamatch config show --json
  schemamatch config show --source defaults`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, defaults")

	return cmd
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool, source string) error {
	out := output.New(cmd.OutOrStdout())

	var cfg *config.Config
	switch source {
	case "merged":
		var err error
		if cfg, err = loadConfig(); err != nil {
			return err
		}
	case "defaults":
		cfg = config.NewConfig()
	default:
		return smerrors.ValidationError(fmt.Sprintf("invalid source: %s (use: merged, defaults)", source), nil)
	}

	shown := *cfg
	shown.Database.DSN = redactDSN(cfg.Database.DSN)

	if jsonOutput {
		return out.JSON(shown)
	}

	out.Statusf("📋", "Configuration source: %s", source)
	out.Newline()
	data, err := yaml.Marshal(shown)
	if err != nil {
		return smerrors.InternalError("marshal config", err)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), string(data))
	return err
}

// redactDSN hides the password of a URL-style DSN.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}

func newConfigUpgradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade",
		Short: "Add options introduced since the user config was written",
		Long: `Back up the user config, fill every option it lacks with its default,
and save it. Existing values are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			path := config.GetUserConfigPath()
			if !config.UserConfigExists() {
				out.Warning("No user configuration to upgrade")
				out.Status("💡", "Run 'schemamatch config init' to create one")
				return nil
			}

			added, err := config.Upgrade()
			if err != nil {
				return err
			}
			if len(added) == 0 {
				out.Success("Configuration is up to date")
				return nil
			}

			out.Success("Configuration upgraded")
			out.Statusf("📁", "Location: %s", path)
			out.Status("✨", "New options added with defaults:")
			for _, field := range added {
				out.Status("", "  - "+field)
			}
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}
