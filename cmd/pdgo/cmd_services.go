package main

// ---------------------------------------------------------------------------
// cmd_services.go — list services
// ---------------------------------------------------------------------------

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/pdgo-project/pdgo/internal/core"
	"github.com/pdgo-project/pdgo/internal/filter"
)

var serviceFields = []string{"id", "name", "status", "description"}

func cmdSvc(args []string) {
	if len(args) > 0 && (args[0] == "ls" || args[0] == "list") {
		args = args[1:]
	}

	fs := flag.NewFlagSet("svc-ls", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	profileFlag := fs.String("profile", "", "Named profile to use")
	var status, filterText, fieldsFlag, sortBy, output string
	var reverseSort, fresh, noCache bool
	fs.StringVar(&status, "s", "active,warning,critical", "Keep services with these statuses")
	fs.StringVar(&status, "status", "active,warning,critical", "Keep services with these statuses")
	fs.StringVar(&filterText, "F", "", "Client-side filter expression")
	fs.StringVar(&filterText, "filter", "", "Client-side filter expression")
	fs.StringVar(&fieldsFlag, "f", "", "Comma-separated field paths to show")
	fs.StringVar(&fieldsFlag, "fields", "", "Comma-separated field paths to show")
	fs.StringVar(&sortBy, "sort", "", "Sort by field path(s)")
	fs.BoolVar(&reverseSort, "reverse", false, "Reverse the sort")
	fs.StringVar(&output, "o", "table", "Output format: table, plain, json, yaml, csv")
	fs.StringVar(&output, "output", "table", "Output format: table, plain, json, yaml, csv")
	fs.BoolVar(&fresh, "fresh", false, "Bypass the cache for this query")
	fs.BoolVar(&noCache, "no-cache", false, "Disable the cache entirely")
	fs.Parse(args)

	// The status flag is sugar for a filter clause; it composes with -F.
	expr, err := filter.Compile(composeStatusFilter(status, filterText))
	if err != nil {
		fail(err)
	}

	app := buildApp(*configPath, *profileFlag, noCache)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	spec := core.QuerySpec{
		Type:      core.ResourceService,
		Params:    url.Values{},
		Filter:    filterText,
		WantFresh: fresh,
	}
	records, err := app.fetcher.Fetch(ctx, spec)
	if err != nil {
		fail(err)
	}

	matched := filter.Evaluate(records, expr)
	if sortBy != "" {
		filter.Sort(matched, splitList(sortBy), reverseSort)
	}
	renderRecords(os.Stdout, matched, parseFields(fieldsFlag, serviceFields), parseFormat(output))
}

// composeStatusFilter turns a status list into a filter clause and conjoins
// it with any user-supplied expression.
func composeStatusFilter(status, filterText string) string {
	statuses := splitList(status)
	if len(statuses) == 0 {
		return filterText
	}
	quoted := make([]string, len(statuses))
	for i, s := range statuses {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	clause := fmt.Sprintf("status in [%s]", strings.Join(quoted, ", "))
	if strings.TrimSpace(filterText) == "" {
		return clause
	}
	return fmt.Sprintf("(%s) and (%s)", clause, filterText)
}
