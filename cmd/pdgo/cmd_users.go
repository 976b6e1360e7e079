package main

// ---------------------------------------------------------------------------
// cmd_users.go — list and look up users
// ---------------------------------------------------------------------------

import (
	"context"
	"flag"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/pdgo-project/pdgo/internal/core"
	"github.com/pdgo-project/pdgo/internal/filter"
)

var userFields = []string{"id", "name", "email", "role"}

func cmdUser(args []string) {
	if len(args) > 0 && args[0] == "get" {
		cmdUserGet(args[1:])
		return
	}
	if len(args) > 0 && (args[0] == "ls" || args[0] == "list") {
		args = args[1:]
	}
	cmdUserList(args)
}

func cmdUserList(args []string) {
	fs := flag.NewFlagSet("user-ls", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	profileFlag := fs.String("profile", "", "Named profile to use")
	var filterText, fieldsFlag, sortBy, output string
	var reverseSort, fresh, noCache bool
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

	expr, err := filter.Compile(filterText)
	if err != nil {
		fail(err)
	}

	app := buildApp(*configPath, *profileFlag, noCache)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	spec := core.QuerySpec{
		Type:      core.ResourceUser,
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
	renderRecords(os.Stdout, matched, parseFields(fieldsFlag, userFields), parseFormat(output))
}

func cmdUserGet(args []string) {
	fs := flag.NewFlagSet("user-get", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	profileFlag := fs.String("profile", "", "Named profile to use")
	var fieldsFlag, output string
	var fresh bool
	fs.StringVar(&fieldsFlag, "f", "", "Comma-separated field paths to show")
	fs.StringVar(&fieldsFlag, "fields", "", "Comma-separated field paths to show")
	fs.StringVar(&output, "o", "table", "Output format")
	fs.StringVar(&output, "output", "table", "Output format")
	fs.BoolVar(&fresh, "fresh", false, "Bypass the cache")
	fs.Parse(args)

	remaining := fs.Args()
	if len(remaining) == 0 {
		errorf("user name or ID required — usage: pdgo user get <name-or-id>")
	}

	app := buildApp(*configPath, *profileFlag, false)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	query := strings.Join(remaining, " ")
	records := lookupUsers(ctx, app, query, fresh)
	if len(records) == 0 {
		fail(core.ErrNotFound)
	}
	renderRecords(os.Stdout, records, parseFields(fieldsFlag, userFields), parseFormat(output))
}

// lookupUsers resolves a user reference. An exact-looking ID is fetched
// directly; anything else goes through the API's search query.
func lookupUsers(ctx context.Context, app *app, query string, fresh bool) []core.Record {
	if looksLikeID(query) {
		rec, err := app.fetcher.FetchOne(ctx, core.ResourceUser, query, fresh)
		if err == nil {
			return []core.Record{rec}
		}
		// Fall through to a search: short names can look like IDs.
	}
	params := url.Values{}
	params.Set("query", query)
	records, err := app.fetcher.Fetch(ctx, core.QuerySpec{
		Type:      core.ResourceUser,
		Params:    params,
		WantFresh: fresh,
	})
	if err != nil {
		fail(err)
	}
	return records
}

// resolveUserID maps a user reference (ID, name, or email) to a user ID.
func resolveUserID(ctx context.Context, app *app, ref string) string {
	if looksLikeID(ref) {
		return ref
	}
	records := lookupUsers(ctx, app, ref, false)
	if len(records) == 0 {
		errorf("no user matches %q", ref)
	}
	if len(records) > 1 {
		warnf("%d users match %q, using %s (%s)", len(records), ref,
			records[0].ID, records[0].Lookup("name").Text())
	}
	return records[0].ID
}

// looksLikeID reports whether s has the shape of an API identifier:
// short, uppercase alphanumeric, no spaces.
func looksLikeID(s string) bool {
	if len(s) < 5 || len(s) > 14 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
