package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Aman-CERP/schemamatch/internal/match"
	"github.com/Aman-CERP/schemamatch/internal/search"
	"github.com/Aman-CERP/schemamatch/internal/store"
)

const (
	scoreBarWidth = 10
	maxTableRows  = 500
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("154"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

// Matches prints ranked tables and columns, best first.
func (w *Writer) Matches(m *match.Matches, threshold float64) {
	if m == nil || m.Empty() {
		w.Warningf("No table or column scored above %.2f", threshold)
		return
	}
	if len(m.Tables) > 0 {
		_, _ = fmt.Fprintf(w.out, "Tables (%d)\n", len(m.Tables))
		w.printResults(m.Tables, false)
	}
	if len(m.Columns) > 0 {
		if len(m.Tables) > 0 {
			w.Newline()
		}
		_, _ = fmt.Fprintf(w.out, "Columns (%d)\n", len(m.Columns))
		w.printResults(m.Columns, true)
	}
}

func (w *Writer) printResults(results []match.Result, columns bool) {
	headers := []string{"SCORE", "", "TABLE", "MATCHED"}
	if columns {
		headers = []string{"SCORE", "", "TABLE", "COLUMN", "MATCHED"}
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		table := r.Table
		if r.Schema != "" {
			table = r.Schema + "." + r.Table
		}
		matched := r.Query
		if r.Term != "" && r.Term != r.Query {
			matched = r.Query + " ~ " + r.Term
		}
		row := []string{fmt.Sprintf("%.2f", r.Score), renderScoreBar(r.Score, scoreBarWidth), table}
		if columns {
			row = append(row, r.Column)
		}
		rows = append(rows, append(row, matched))
	}
	w.table(headers, rows)
}

// Answer prints the keywords extracted from a question, the matches and the hint.
func (w *Writer) Answer(a *search.Answer, threshold float64) {
	_, _ = fmt.Fprintf(w.out, "Keywords: %s\n", strings.Join(a.Analysis.Keywords, ", "))
	if len(a.Analysis.Entities) > 0 {
		parts := make([]string, len(a.Analysis.Entities))
		for i, e := range a.Analysis.Entities {
			parts[i] = fmt.Sprintf("%s (%s)", e.Text, e.Type)
		}
		_, _ = fmt.Fprintf(w.out, "Entities: %s\n", strings.Join(parts, ", "))
	}
	w.Newline()
	w.Matches(a.Matches, threshold)
	if a.Hint != "" {
		w.Newline()
		_, _ = fmt.Fprintln(w.out, strings.TrimRight(a.Hint, "\n"))
	}
}

// Result prints rows returned by a query, or the message of a statement.
func (w *Writer) Result(res *store.Result) {
	if !res.IsQuery() {
		w.Successf("%s (%d rows affected)", res.Message, res.RowsAffected)
		return
	}
	rows := make([][]string, 0, min(len(res.Rows), maxTableRows))
	for i, r := range res.Rows {
		if i == maxTableRows {
			break
		}
		cells := make([]string, len(r))
		for j, v := range r {
			if v == nil {
				cells[j] = "NULL"
			} else {
				cells[j] = fmt.Sprint(v)
			}
		}
		rows = append(rows, cells)
	}
	if len(rows) > 0 {
		w.table(res.Columns, rows)
	}
	if extra := len(res.Rows) - len(rows); extra > 0 {
		_, _ = fmt.Fprintf(w.out, "... %d more rows\n", extra)
	}
	_, _ = fmt.Fprintf(w.out, "(%d rows)\n", len(res.Rows))
}

// Stats prints the index status.
func (w *Writer) Stats(s search.Stats) {
	if !s.Loaded {
		w.Warning("Index not loaded")
		return
	}
	rows := [][]string{
		{"generation", fmt.Sprint(s.Generation)},
		{"built at", s.BuiltAt.Format("2006-01-02 15:04:05")},
		{"tables", fmt.Sprint(s.Tables)},
		{"columns", fmt.Sprint(s.Columns)},
		{"keywords", fmt.Sprint(s.Keywords)},
		{"skipped records", fmt.Sprint(s.Skipped)},
		{"similarity", s.Similarity},
		{"threshold", fmt.Sprintf("%.2f", s.Threshold)},
		{"candidates", s.Candidates},
		{"workers", fmt.Sprint(s.Workers)},
	}
	if s.Cache != nil {
		rows = append(rows, []string{"cache", fmt.Sprintf("%d entries, %d hits, %d misses", s.Cache.Size, s.Cache.Hits, s.Cache.Misses)})
	}
	if s.Telemetry != nil {
		rows = append(rows, []string{"matches served", fmt.Sprint(s.Telemetry.TotalMatches)},
			[]string{"zero results", fmt.Sprintf("%.1f%%", s.Telemetry.ZeroResultPercentage())})
	}
	w.table([]string{"INDEX", ""}, rows)
}

// Keywords prints an index's keyword sets, one entry per line.
func (w *Writer) Keywords(name string, keywords []string) {
	_, _ = fmt.Fprintf(w.out, "%s: %s\n", name, strings.Join(keywords, " "))
}

func (w *Writer) table(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)
	if w.useColor {
		t = t.BorderStyle(borderStyle).StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	} else {
		t = t.StyleFunc(func(_, _ int) lipgloss.Style {
			return lipgloss.NewStyle().Padding(0, 1)
		})
	}
	_, _ = fmt.Fprintln(w.out, t.String())
}
