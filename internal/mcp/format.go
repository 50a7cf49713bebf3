package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/schemamatch/internal/catalog"
	"github.com/Aman-CERP/schemamatch/internal/store"
)

// maxResultRows caps the rows rendered into a tool result.
const maxResultRows = 200

// FormatResult renders a SQL result as a markdown table, or as the
// statement's message when it returned no rows.
func FormatResult(res *store.Result) string {
	if !res.IsQuery() {
		return fmt.Sprintf("%s (%d rows affected)", res.Message, res.RowsAffected)
	}
	if len(res.Rows) == 0 {
		return "(0 rows)"
	}

	var sb strings.Builder
	sb.WriteString("| " + strings.Join(escapeCells(res.Columns), " | ") + " |\n")
	sb.WriteString("|" + strings.Repeat(" --- |", len(res.Columns)) + "\n")

	for i, row := range res.Rows {
		if i == maxResultRows {
			fmt.Fprintf(&sb, "\n... %d more rows\n", len(res.Rows)-maxResultRows)
			break
		}
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = formatValue(v)
		}
		sb.WriteString("| " + strings.Join(escapeCells(cells), " | ") + " |\n")
	}
	fmt.Fprintf(&sb, "\n(%d rows)", len(res.Rows))
	return sb.String()
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprint(v)
}

func escapeCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		c = strings.ReplaceAll(c, "|", `\|`)
		out[i] = strings.ReplaceAll(c, "\n", " ")
	}
	return out
}

// FormatCatalog renders records as markdown, one section per table.
func FormatCatalog(records []catalog.AttributeRecord) string {
	if len(records) == 0 {
		return "The catalog is empty."
	}

	byTable := make(map[catalog.TableRef][]catalog.AttributeRecord)
	for _, r := range records {
		ref := catalog.TableRef{Schema: r.Schema, Table: r.Table}
		byTable[ref] = append(byTable[ref], r)
	}

	var sb strings.Builder
	for _, ref := range catalog.Tables(records) {
		name := ref.Table
		if ref.Schema != "" {
			name = ref.Schema + "." + ref.Table
		}
		fmt.Fprintf(&sb, "## %s\n\n", name)
		for _, r := range byTable[ref] {
			fmt.Fprintf(&sb, "- **%s**", r.Column)
			if r.Type != "" {
				fmt.Fprintf(&sb, " `%s`", r.Type)
			}
			if r.Constraint != "" {
				fmt.Fprintf(&sb, " [%s]", r.Constraint)
			}
			if r.Relation != "" {
				fmt.Fprintf(&sb, " -> %s", r.Relation)
			}
			if r.Description != "" {
				fmt.Fprintf(&sb, ": %s", r.Description)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
