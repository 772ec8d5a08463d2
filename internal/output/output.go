// Package output renders command results for the terminal as go-pretty
// tables, Markdown or indented JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// Table is the tabular view of a result. Footer is optional.
type Table struct {
	Title  string
	Header []string
	Rows   [][]string
	Footer string
}

// Write renders data as JSON, or tbl as a table or Markdown.
func Write(w io.Writer, format Format, data any, tbl *Table) error {
	if format == FormatJSON || tbl == nil {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	if tbl.Title != "" {
		t.SetTitle(tbl.Title)
	}
	t.AppendHeader(toRow(tbl.Header))
	for _, row := range tbl.Rows {
		t.AppendRow(toRow(row))
	}
	if tbl.Footer != "" {
		footer := make(table.Row, len(tbl.Header))
		if len(footer) == 0 {
			footer = table.Row{""}
		}
		footer[len(footer)-1] = tbl.Footer
		t.AppendFooter(footer)
	}

	var rendered string
	if format == FormatMarkdown {
		rendered = t.RenderMarkdown()
	} else {
		rendered = t.Render()
	}
	_, err := fmt.Fprintln(w, rendered)
	return err
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}
