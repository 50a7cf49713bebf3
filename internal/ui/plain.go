package ui

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	smerrors "github.com/Aman-CERP/schemamatch/internal/errors"
	"github.com/Aman-CERP/schemamatch/internal/output"
)

// PlainPrompt is printed before every question in the line-oriented loop.
const PlainPrompt = "Question ('q' to quit): "

// RunPlain reads one question per line and prints each answer.
// A failed question is reported and the loop continues.
func RunPlain(ctx context.Context, asker Asker, cfg Config) error {
	w := output.New(cfg.Output)
	threshold := effectiveThreshold(asker, cfg.Threshold)
	scanner := bufio.NewScanner(cfg.Input)

	for {
		_, _ = fmt.Fprintf(cfg.Output, "\n%s", PlainPrompt)
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(cfg.Output)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		question := strings.TrimSpace(scanner.Text())
		if IsQuit(question) {
			return nil
		}
		if question == "" {
			continue
		}

		answer, err := asker.Ask(ctx, question, threshold)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.Error(strings.TrimSpace(smerrors.FormatForCLI(err)))
			continue
		}
		w.Newline()
		w.Answer(answer, threshold)
	}
}
