package cli

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// Table renders tabular data using lipgloss.
// Created via Output.Table().
type Table struct {
	out     *Output
	meta    Meta
	headers []string
	rows    [][]string
}

// AddRow adds a row of values. Should match header count.
func (t *Table) AddRow(values ...string) *Table {
	t.rows = append(t.rows, values)
	return t
}

// WithPagination sets pagination cursor and hasMore flag.
func (t *Table) WithPagination(cursor string, hasMore bool) *Table {
	t.meta = t.meta.WithPagination(cursor, hasMore)
	return t
}

// Render outputs the table in the configured format.
func (t *Table) Render() error {
	return t.out.Render(t)
}

// Meta returns the table metadata.
func (t *Table) Meta() Meta {
	return t.meta
}

// RenderText writes a bordered table.
func (t *Table) RenderText(w io.Writer) error {
	tw := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(t.headers...).
		Rows(t.rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, err := io.WriteString(w, tw.String()+"\n")
	return err
}

// Data returns the rows as objects keyed by header.
func (t *Table) Data() any {
	result := make([]map[string]string, 0, len(t.rows))
	for _, row := range t.rows {
		obj := make(map[string]string)
		for i, h := range t.headers {
			if i < len(row) {
				obj[toKey(h)] = row[i]
			}
		}
		result = append(result, obj)
	}
	return result
}

// toKey converts a header to a structured-output key (lowercase, underscores).
func toKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, " ", "_"))
}
