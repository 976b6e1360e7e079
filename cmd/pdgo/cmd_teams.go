package main

// ---------------------------------------------------------------------------
// cmd_teams.go — list teams
// ---------------------------------------------------------------------------

import (
	"context"
	"flag"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/pdgo-project/pdgo/internal/core"
	"github.com/pdgo-project/pdgo/internal/filter"
)

var teamFields = []string{"id", "name", "description"}

func cmdTeams(args []string) {
	mine := false
	if len(args) > 0 {
		switch args[0] {
		case "ls", "list":
			args = args[1:]
		case "mine":
			mine = true
			args = args[1:]
		}
	}

	fs := flag.NewFlagSet("teams", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	profileFlag := fs.String("profile", "", "Named profile to use")
	var filterText, fieldsFlag, output string
	var fresh, noCache bool
	fs.StringVar(&filterText, "F", "", "Client-side filter expression")
	fs.StringVar(&filterText, "filter", "", "Client-side filter expression")
	fs.StringVar(&fieldsFlag, "f", "", "Comma-separated field paths to show")
	fs.StringVar(&fieldsFlag, "fields", "", "Comma-separated field paths to show")
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

	var records []core.Record
	if mine {
		records = myTeams(ctx, app, fresh)
	} else {
		records, err = app.fetcher.Fetch(ctx, core.QuerySpec{
			Type:      core.ResourceTeam,
			Params:    url.Values{},
			Filter:    filterText,
			WantFresh: fresh,
		})
		if err != nil {
			fail(err)
		}
	}

	matched := filter.Evaluate(records, expr)
	renderRecords(os.Stdout, matched, parseFields(fieldsFlag, teamFields), parseFormat(output))
}

// myTeams pulls the team references off the current user.
func myTeams(ctx context.Context, app *app, fresh bool) []core.Record {
	me, err := app.fetcher.FetchOne(ctx, core.ResourceUser, "me", fresh)
	if err != nil {
		fail(err)
	}
	teams, ok := me.Fields["teams"].([]any)
	if !ok {
		return nil
	}
	now := time.Now()
	records := make([]core.Record, 0, len(teams))
	for _, t := range teams {
		m, ok := t.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		// Team references carry summary, not name.
		if _, hasName := m["name"]; !hasName {
			if summary, ok := m["summary"].(string); ok {
				m["name"] = summary
			}
		}
		records = append(records, core.Record{
			ID:        id,
			Type:      core.ResourceTeam,
			Fields:    m,
			FetchedAt: now,
			Stale:     me.Stale,
		})
	}
	return records
}
