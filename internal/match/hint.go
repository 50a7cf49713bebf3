package match

import (
	"fmt"
	"strings"
)

// Hint renders matches as the plain-text context handed to a SQL-generating
// model: one line per table, then one line per column.
//
//	Table: public.clients (Score: 0.92)
//	Table: public.clients, Colonne: nom (Score: 0.92)
func Hint(m *Matches) string {
	if m.Empty() {
		return ""
	}

	var sb strings.Builder
	for _, t := range m.Tables {
		fmt.Fprintf(&sb, "Table: %s (Score: %.2f)\n", t.Name(), t.Score)
	}
	for _, c := range m.Columns {
		table := Result{Schema: c.Schema, Table: c.Table}.Name()
		fmt.Fprintf(&sb, "Table: %s, Colonne: %s (Score: %.2f)\n", table, c.Column, c.Score)
	}
	return sb.String()
}

// Top truncates both lists to at most n results. n <= 0 keeps everything.
func (m *Matches) Top(n int) *Matches {
	if m == nil || n <= 0 {
		return m
	}
	return &Matches{
		Tables:  m.Tables[:min(n, len(m.Tables))],
		Columns: m.Columns[:min(n, len(m.Columns))],
	}
}
