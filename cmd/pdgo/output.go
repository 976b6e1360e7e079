package main

// ---------------------------------------------------------------------------
// output.go — format flag, table rendering, record output helpers
// ---------------------------------------------------------------------------

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pdgo-project/pdgo/internal/core"
)

// OutputFormat enumerates supported output formats.
type OutputFormat int

const (
	FormatTable OutputFormat = iota
	FormatPlain
	FormatJSON
	FormatYAML
	FormatCSV
)

// parseFormat converts an --output string to an OutputFormat.
func parseFormat(s string) OutputFormat {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plain":
		return FormatPlain
	case "json":
		return FormatJSON
	case "yaml":
		return FormatYAML
	case "csv":
		return FormatCSV
	default:
		return FormatTable
	}
}

// formatName returns the canonical name for a format.
func formatName(f OutputFormat) string {
	switch f {
	case FormatPlain:
		return "plain"
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	case FormatCSV:
		return "csv"
	default:
		return "table"
	}
}

// ---------------------------------------------------------------------------
// Record rendering
// ---------------------------------------------------------------------------

func anyStale(records []core.Record) bool {
	for _, r := range records {
		if r.Stale {
			return true
		}
	}
	return false
}

// renderRecords writes a record set in the chosen format. Stale records are
// always visibly flagged: structured formats carry the stale field, tabular
// formats mark rows and a warning goes to stderr.
func renderRecords(w io.Writer, records []core.Record, fields []string, format OutputFormat) {
	if anyStale(records) {
		warnf("remote unavailable — showing stale cached data (rows marked *)")
	}

	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			errorf("encoding records: %v", err)
		}
		fmt.Fprintln(w, string(data))

	case FormatYAML:
		data, err := yaml.Marshal(records)
		if err != nil {
			errorf("encoding records: %v", err)
		}
		fmt.Fprint(w, string(data))

	case FormatCSV:
		rows := make([][]string, 0, len(records))
		for _, r := range records {
			rows = append(rows, fieldRow(r, fields, ""))
		}
		writeCSV(w, fields, rows)

	case FormatPlain:
		for _, r := range records {
			fmt.Fprintln(w, strings.Join(fieldRow(r, fields, " *"), "\t"))
		}

	default:
		if len(records) == 0 {
			fmt.Fprintf(w, "%s nothing to show\n", dim("▸"))
			return
		}
		headers := make([]string, len(fields))
		for i, f := range fields {
			headers[i] = strings.ToUpper(f)
		}
		tbl := NewTable(w, headers...)
		for _, r := range records {
			tbl.AddRow(fieldRow(r, fields, " *")...)
		}
		tbl.Render()
	}
}

// fieldRow projects a record onto the requested field paths. staleMark is
// appended to the first column of stale rows ("" for formats that carry
// staleness structurally).
func fieldRow(r core.Record, fields []string, staleMark string) []string {
	row := make([]string, len(fields))
	for i, f := range fields {
		row[i] = r.Lookup(f).Text()
	}
	if r.Stale && staleMark != "" && len(row) > 0 {
		row[0] += staleMark
	}
	return row
}

// ---------------------------------------------------------------------------
// Table renderer — auto-sized columns with box-drawing borders
// ---------------------------------------------------------------------------

// Table renders aligned, bordered tables to a writer.
type Table struct {
	headers []string
	rows    [][]string
	w       io.Writer
}

// NewTable creates a table with the given column headers.
func NewTable(w io.Writer, headers ...string) *Table {
	return &Table{headers: headers, w: w}
}

// AddRow appends a row. Values are matched positionally to headers.
func (t *Table) AddRow(values ...string) {
	row := make([]string, len(t.headers))
	for i := range row {
		if i < len(values) {
			row[i] = values[i]
		}
	}
	t.rows = append(t.rows, row)
}

// Render writes the table with box-drawing borders.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	border := "┌"
	for i, w := range widths {
		border += strings.Repeat("─", w+2)
		if i < len(widths)-1 {
			border += "┬"
		}
	}
	border += "┐"

	mid := "├"
	for i, w := range widths {
		mid += strings.Repeat("─", w+2)
		if i < len(widths)-1 {
			mid += "┼"
		}
	}
	mid += "┤"

	bottom := "└"
	for i, w := range widths {
		bottom += strings.Repeat("─", w+2)
		if i < len(widths)-1 {
			bottom += "┴"
		}
	}
	bottom += "┘"

	printRow := func(cells []string) {
		fmt.Fprint(t.w, "│")
		for i, cell := range cells {
			fmt.Fprintf(t.w, " %-*s │", widths[i], cell)
		}
		fmt.Fprintln(t.w)
	}

	fmt.Fprintln(t.w, border)
	printRow(t.headers)
	fmt.Fprintln(t.w, mid)
	for _, row := range t.rows {
		printRow(row)
	}
	fmt.Fprintln(t.w, bottom)
}

// ---------------------------------------------------------------------------
// CSV writer helper
// ---------------------------------------------------------------------------

func writeCSV(w io.Writer, headers []string, rows [][]string) {
	cw := csv.NewWriter(w)
	cw.Write(headers)
	for _, row := range rows {
		cw.Write(row)
	}
	cw.Flush()
}

// ---------------------------------------------------------------------------
// clearScreen — watch-mode repaint (only when stdout is a terminal)
// ---------------------------------------------------------------------------

func clearScreen() {
	if isTTY(os.Stdout) {
		fmt.Print("\033[2J\033[H")
	}
}
