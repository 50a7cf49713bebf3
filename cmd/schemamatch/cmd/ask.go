package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/schemamatch/internal/output"
	"github.com/Aman-CERP/schemamatch/internal/ui"
)

// askOptions holds CLI flags for ask.
type askOptions struct {
	threshold float64
	format    string
	plain     bool
	noColor   bool
}

func newAskCmd() *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Find the tables and columns a question is about",
		Long: `Extract keywords from a natural-language question and match them against
the catalog.

With a question argument, prints one answer and exits. Without one, starts
an interactive loop: type a question and press enter, 'q' quits.`,
		Example: `  schemamatch ask "Quel est le montant total des commandes par client ?"
  schemamatch ask
  echo "clients à Paris" | schemamatch ask --plain`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), cmd, strings.TrimSpace(strings.Join(args, " ")), opts)
		},
	}

	cmd.Flags().Float64Var(&opts.threshold, "threshold", 0, "Minimum score in [0,1], exclusive (default: matcher.threshold)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format for a one-shot question: text, json")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Use the line-oriented loop even on a terminal")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colors")

	return cmd
}

func runAsk(ctx context.Context, cmd *cobra.Command, question string, opts askOptions) error {
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

	if question == "" {
		return ui.Run(ctx, a.engine, ui.NewConfig(cmd.InOrStdin(), cmd.OutOrStdout(),
			ui.WithThreshold(threshold),
			ui.WithForcePlain(opts.plain),
			ui.WithNoColor(opts.noColor)))
	}

	answer, err := a.engine.Ask(ctx, question, threshold)
	if err != nil {
		return err
	}
	out := output.New(cmd.OutOrStdout())
	if format == output.FormatJSON {
		return out.JSON(answer)
	}
	out.Answer(answer, threshold)
	return nil
}
