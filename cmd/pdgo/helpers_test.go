package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pdgo-project/pdgo/internal/core"
)

func TestParseFields_DefaultsWhenEmpty(t *testing.T) {
	defaults := []string{"id", "title"}
	if got := parseFields("", defaults); len(got) != 2 || got[0] != "id" {
		t.Errorf("empty flag should use defaults, got %v", got)
	}
	if got := parseFields("  ,  ,", defaults); len(got) != 2 {
		t.Errorf("blank-only flag should use defaults, got %v", got)
	}
}

func TestParseFields_SplitsAndTrims(t *testing.T) {
	got := parseFields(" id , service.summary ,status", nil)
	if len(got) != 3 || got[1] != "service.summary" {
		t.Errorf("unexpected fields %v", got)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList("PTEAM1, PTEAM2 ,,PTEAM3")
	if len(got) != 3 || got[2] != "PTEAM3" {
		t.Errorf("unexpected list %v", got)
	}
	if splitList("") != nil {
		t.Error("empty input should yield nil")
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]OutputFormat{
		"table": FormatTable,
		"JSON":  FormatJSON,
		"yaml":  FormatYAML,
		"csv":   FormatCSV,
		"plain": FormatPlain,
		"weird": FormatTable,
	}
	for in, want := range cases {
		if got := parseFormat(in); got != want {
			t.Errorf("parseFormat(%q) = %s, want %s", in, formatName(got), formatName(want))
		}
	}
}

func TestSuggest(t *testing.T) {
	if got := suggest("incident"); got != "inc" && got != "incidents" {
		t.Errorf("suggest(incident) = %q", got)
	}
	if got := suggest("confg"); got != "config" {
		t.Errorf("suggest(confg) = %q", got)
	}
	if got := suggest("zzzzzz"); got != "" {
		t.Errorf("suggest(zzzzzz) = %q, want no suggestion", got)
	}
}

func TestLooksLikeID(t *testing.T) {
	if !looksLikeID("PABC123") {
		t.Error("PABC123 should look like an ID")
	}
	if looksLikeID("jane doe") {
		t.Error("a name with a space should not look like an ID")
	}
	if looksLikeID("jane@example.com") {
		t.Error("an email should not look like an ID")
	}
	if looksLikeID("AB") {
		t.Error("too-short strings should not look like IDs")
	}
}

func TestMaskKey(t *testing.T) {
	if got := maskKey("u+abcdefgh1234"); got != "****1234" {
		t.Errorf("maskKey = %q", got)
	}
	if got := maskKey("abc"); got != "****" {
		t.Errorf("short keys should mask entirely, got %q", got)
	}
	if got := maskKey(""); got != "" {
		t.Errorf("empty key should stay empty, got %q", got)
	}
}

func TestComposeStatusFilter(t *testing.T) {
	got := composeStatusFilter("active,warning", "")
	if got != `status in ["active", "warning"]` {
		t.Errorf("unexpected clause %q", got)
	}

	combined := composeStatusFilter("active", `name ~ "api"`)
	if combined != `(status in ["active"]) and (name ~ "api")` {
		t.Errorf("unexpected combined clause %q", combined)
	}

	if composeStatusFilter("", `name ~ "api"`) != `name ~ "api"` {
		t.Error("no statuses should pass the filter through")
	}
}

func TestRenderRecords_JSONCarriesStale(t *testing.T) {
	var buf bytes.Buffer
	records := []core.Record{{
		ID:     "P1",
		Type:   core.ResourceIncident,
		Fields: map[string]any{"id": "P1", "title": "db down"},
		Stale:  true,
	}}
	renderRecords(&buf, records, []string{"id", "title"}, FormatJSON)
	if !strings.Contains(buf.String(), `"stale": true`) {
		t.Errorf("JSON output should carry the stale flag:\n%s", buf.String())
	}
}

func TestRenderRecords_PlainMarksStaleRows(t *testing.T) {
	var buf bytes.Buffer
	records := []core.Record{
		{ID: "P1", Type: core.ResourceIncident, Fields: map[string]any{"id": "P1"}, Stale: true},
		{ID: "P2", Type: core.ResourceIncident, Fields: map[string]any{"id": "P2"}},
	}
	renderRecords(&buf, records, []string{"id"}, FormatPlain)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "P1 *") {
		t.Errorf("stale row should be marked: %q", lines[0])
	}
	if strings.Contains(lines[1], "*") {
		t.Errorf("fresh row should not be marked: %q", lines[1])
	}
}

func TestRenderRecords_CSV(t *testing.T) {
	var buf bytes.Buffer
	records := []core.Record{
		{ID: "P1", Type: core.ResourceIncident, Fields: map[string]any{"id": "P1", "title": "a, b"}},
	}
	renderRecords(&buf, records, []string{"id", "title"}, FormatCSV)
	out := buf.String()
	if !strings.HasPrefix(out, "id,title\n") {
		t.Errorf("CSV should start with the header row:\n%s", out)
	}
	if !strings.Contains(out, `"a, b"`) {
		t.Errorf("CSV should quote values with commas:\n%s", out)
	}
}

func TestTable_Render(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, "ID", "STATUS")
	tbl.AddRow("P1", "triggered")
	tbl.AddRow("P2")
	tbl.Render()
	out := buf.String()
	if !strings.Contains(out, "P1") || !strings.Contains(out, "triggered") {
		t.Errorf("table should contain the row values:\n%s", out)
	}
	if !strings.Contains(out, "┌") || !strings.Contains(out, "└") {
		t.Errorf("table should draw borders:\n%s", out)
	}
}

func TestFieldRow_MissingFieldsRenderEmpty(t *testing.T) {
	r := core.Record{ID: "P1", Fields: map[string]any{"id": "P1"}}
	row := fieldRow(r, []string{"id", "nope.deep"}, "")
	if row[0] != "P1" || row[1] != "" {
		t.Errorf("unexpected row %v", row)
	}
}
