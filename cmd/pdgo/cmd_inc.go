package main

// ---------------------------------------------------------------------------
// cmd_inc.go — list, watch, and act on incidents
// ---------------------------------------------------------------------------

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/pdgo-project/pdgo/internal/core"
	"github.com/pdgo-project/pdgo/internal/filter"
	"github.com/pdgo-project/pdgo/internal/notify"
	"github.com/pdgo-project/pdgo/internal/remote"
	"github.com/pdgo-project/pdgo/internal/rules"
)

var incidentFields = []string{"id", "title", "status", "urgency", "created_at", "service.summary"}

var alertFields = []string{"id", "status", "severity", "summary"}

func cmdInc(args []string) {
	if len(args) > 0 {
		switch args[0] {
		case "ls", "list":
			cmdIncList(args[1:])
			return
		case "get":
			cmdIncGet(args[1:])
			return
		case "ack", "acknowledge":
			cmdIncAction(args[1:], remote.ActionAcknowledge)
			return
		case "resolve":
			cmdIncAction(args[1:], remote.ActionResolve)
			return
		case "snooze":
			cmdIncSnooze(args[1:])
			return
		case "reassign":
			cmdIncReassign(args[1:])
			return
		}
	}
	cmdIncList(args)
}

func cmdIncList(args []string) {
	fs := flag.NewFlagSet("inc-ls", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	profileFlag := fs.String("profile", "", "Named profile to use")
	var everything, newOnly, high, low bool
	fs.BoolVar(&everything, "e", false, "List all incidents, not only mine")
	fs.BoolVar(&everything, "everything", false, "List all incidents, not only mine")
	fs.BoolVar(&newOnly, "n", false, "Only newly triggered incidents")
	fs.BoolVar(&newOnly, "new", false, "Only newly triggered incidents")
	fs.BoolVar(&high, "high", false, "Only high urgency incidents")
	fs.BoolVar(&low, "low", false, "Only low urgency incidents")
	var userFlag, teamsFlag, since, until string
	fs.StringVar(&userFlag, "u", "", "Only incidents assigned to this user ID")
	fs.StringVar(&userFlag, "user", "", "Only incidents assigned to this user ID")
	fs.StringVar(&teamsFlag, "T", "", "Comma-separated team IDs, or 'mine'")
	fs.StringVar(&teamsFlag, "teams", "", "Comma-separated team IDs, or 'mine'")
	fs.StringVar(&since, "since", "", "Start of the date range passed to the API")
	fs.StringVar(&until, "until", "", "End of the date range passed to the API")
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
	var watch bool
	intervalStr := fs.String("t", "30s", "Watch poll interval")
	fs.BoolVar(&watch, "w", false, "Continuously poll and reprint")
	fs.BoolVar(&watch, "watch", false, "Continuously poll and reprint")
	var applyRules bool
	rulesPath := fs.String("rules-path", "", "Directory of executable rules (default ~/.config/pdgo/rules)")
	fs.BoolVar(&applyRules, "rules", false, "Pipe results through executable rules")
	var showAlerts bool
	alertFieldsFlag := fs.String("alert-fields", "", "Comma-separated alert field paths to show")
	fs.BoolVar(&showAlerts, "alerts", false, "Fetch and show each incident's alerts")
	var doAck, doResolve, doSnooze bool
	fs.BoolVar(&doAck, "a", false, "Acknowledge every listed incident")
	fs.BoolVar(&doAck, "ack", false, "Acknowledge every listed incident")
	fs.BoolVar(&doResolve, "r", false, "Resolve every listed incident")
	fs.BoolVar(&doResolve, "resolve", false, "Resolve every listed incident")
	fs.BoolVar(&doSnooze, "s", false, "Snooze every listed incident for 4h")
	fs.BoolVar(&doSnooze, "snooze", false, "Snooze every listed incident for 4h")
	fs.Parse(args)

	// Compile before touching the network: a bad expression is a user error
	// and should fail fast.
	expr, err := filter.Compile(filterText)
	if err != nil {
		fail(err)
	}

	interval, err := time.ParseDuration(*intervalStr)
	if err != nil || interval <= 0 {
		errorf("invalid watch interval %q", *intervalStr)
	}

	app := buildApp(*configPath, *profileFlag, noCache)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	params := url.Values{}
	params.Add("statuses[]", "triggered")
	if !newOnly {
		params.Add("statuses[]", "acknowledged")
	}
	if high != low {
		if high {
			params.Add("urgencies[]", "high")
		} else {
			params.Add("urgencies[]", "low")
		}
	}
	if since != "" {
		params.Set("since", since)
	}
	if until != "" {
		params.Set("until", until)
	}

	userID := userFlag
	if userID == "" && !everything {
		userID = app.cfg.Defaults.UserID
	}
	if userID != "" {
		params.Add("user_ids[]", userID)
	}
	for _, team := range resolveTeams(ctx, app, teamsFlag) {
		params.Add("team_ids[]", team)
	}

	var runner *rules.Runner
	if applyRules {
		dir := *rulesPath
		if dir == "" {
			home, _ := os.UserHomeDir()
			dir = home + "/.config/pdgo/rules"
		}
		runner = rules.New(dir, 0, app.logger)
	}

	var pub *notify.Publisher
	if watch && app.cfg.Notifications.Enabled {
		pub, err = notify.Connect(app.cfg.Notifications, app.logger)
		if err != nil {
			warnf("notifications disabled: %v", err)
			pub = nil
		} else {
			defer pub.Close()
		}
	}

	fields := parseFields(fieldsFlag, incidentFields)
	format := parseFormat(output)
	seen := make(map[string]bool)

	for {
		spec := core.QuerySpec{
			Type:      core.ResourceIncident,
			Params:    params,
			Filter:    filterText,
			WantFresh: fresh || watch,
		}
		records, err := app.fetcher.Fetch(ctx, spec)
		if err != nil {
			fail(err)
		}

		if runner != nil {
			var results []rules.Result
			records, results = runner.Apply(ctx, core.ResourceIncident, records)
			for _, res := range results {
				switch {
				case res.Err != nil:
					warnf("rule error: %v", res.Err)
				case res.Output != "":
					fmt.Println(res.Output)
				}
			}
		}

		matched := filter.Evaluate(records, expr)
		if sortBy != "" {
			filter.Sort(matched, splitList(sortBy), reverseSort)
		}

		var alertSets [][]core.Record
		if showAlerts {
			alertSets = attachAlerts(ctx, app, matched, fresh || watch)
		}

		if watch {
			clearScreen()
		}
		renderRecords(os.Stdout, matched, fields, format)
		if showAlerts && (format == FormatTable || format == FormatPlain) {
			af := parseFields(*alertFieldsFlag, alertFields)
			for i, r := range matched {
				if len(alertSets[i]) == 0 {
					continue
				}
				fmt.Printf("%s alerts for %s\n", dim("▸"), r.ID)
				renderRecords(os.Stdout, alertSets[i], af, format)
			}
		}

		if doAck || doResolve || doSnooze {
			applyBulkActions(ctx, app, matched, doAck, doResolve, doSnooze, format)
		}

		if !watch {
			return
		}

		if pub != nil {
			var unseen []core.Record
			for _, r := range matched {
				if !seen[r.ID] {
					unseen = append(unseen, r)
				}
			}
			pub.Publish(core.ResourceIncident, unseen)
		}
		for _, r := range matched {
			seen[r.ID] = true
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// attachAlerts expands every listed incident with its alerts. The
// per-incident queries run through the fetcher's worker pool; the alerts
// also land under each incident's "alerts" field so structured formats
// carry them inline.
func attachAlerts(ctx context.Context, app *app, records []core.Record, fresh bool) [][]core.Record {
	specs := make([]core.QuerySpec, len(records))
	for i, r := range records {
		specs[i] = core.QuerySpec{
			Type:      core.AlertsOf(r.ID),
			Params:    url.Values{},
			WantFresh: fresh,
		}
	}
	results, err := app.fetcher.FetchMany(ctx, specs)
	if err != nil {
		fail(err)
	}
	for i := range records {
		items := make([]any, len(results[i]))
		for j, a := range results[i] {
			items[j] = a.Fields
		}
		records[i].Fields["alerts"] = items
	}
	return results
}

// applyBulkActions forwards the listed incident IDs to the remote API, one
// fire-and-confirm write each.
func applyBulkActions(ctx context.Context, app *app, records []core.Record, doAck, doResolve, doSnooze bool, format OutputFormat) {
	quiet := format == FormatJSON || format == FormatYAML
	for _, r := range records {
		if doAck {
			if err := app.client.PerformAction(ctx, core.ResourceIncident, r.ID, remote.ActionAcknowledge, nil); err != nil {
				warnf("acknowledging %s: %v", r.ID, err)
			} else if !quiet {
				fmt.Printf("Marked %s as %s\n", r.ID, yellow("ACK"))
			}
		}
		if doSnooze {
			if err := app.client.PerformAction(ctx, core.ResourceIncident, r.ID, remote.ActionSnooze, map[string]any{"duration": 14400}); err != nil {
				warnf("snoozing %s: %v", r.ID, err)
			} else if !quiet {
				fmt.Printf("Snoozing incident %s for 4h\n", r.ID)
			}
		}
		if doResolve {
			if err := app.client.PerformAction(ctx, core.ResourceIncident, r.ID, remote.ActionResolve, nil); err != nil {
				warnf("resolving %s: %v", r.ID, err)
			} else if !quiet {
				fmt.Printf("Marked %s as %s\n", r.ID, green("RESOLVED"))
			}
		}
	}
	// The acted-on entries are now out of date.
	app.fetcher.Invalidate(core.ResourceIncident)
	app.fetcher.Invalidate("queries")
}

// resolveTeams expands a --teams flag: "mine" pulls the team IDs off the
// current user, anything else is taken as a comma-separated ID list.
func resolveTeams(ctx context.Context, app *app, flagVal string) []string {
	switch strings.TrimSpace(flagVal) {
	case "":
		return app.cfg.Defaults.Teams
	case "mine":
		me, err := app.fetcher.FetchOne(ctx, core.ResourceUser, "me", false)
		if err != nil {
			fail(err)
		}
		var ids []string
		if teams, ok := me.Fields["teams"].([]any); ok {
			for _, t := range teams {
				if m, ok := t.(map[string]any); ok {
					if id, ok := m["id"].(string); ok {
						ids = append(ids, id)
					}
				}
			}
		}
		return ids
	default:
		return splitList(flagVal)
	}
}

func cmdIncGet(args []string) {
	fs := flag.NewFlagSet("inc-get", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	profileFlag := fs.String("profile", "", "Named profile to use")
	var output, fieldsFlag string
	var fresh bool
	fs.StringVar(&output, "o", "table", "Output format")
	fs.StringVar(&output, "output", "table", "Output format")
	fs.StringVar(&fieldsFlag, "f", "", "Comma-separated field paths to show")
	fs.StringVar(&fieldsFlag, "fields", "", "Comma-separated field paths to show")
	fs.BoolVar(&fresh, "fresh", false, "Bypass the cache")
	fs.Parse(args)

	remaining := fs.Args()
	if len(remaining) == 0 {
		errorf("incident ID required — usage: pdgo inc get <incident-id>")
	}

	app := buildApp(*configPath, *profileFlag, false)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rec, err := app.fetcher.FetchOne(ctx, core.ResourceIncident, remaining[0], fresh)
	if err != nil {
		fail(err)
	}

	format := parseFormat(output)
	if format != FormatTable {
		renderRecords(os.Stdout, []core.Record{rec}, parseFields(fieldsFlag, incidentFields), format)
		return
	}

	if rec.Stale {
		warnf("remote unavailable — showing stale cached data")
	}
	status := rec.Lookup("status").Text()
	statusColor := cyan
	switch status {
	case "triggered":
		statusColor = red
	case "acknowledged":
		statusColor = yellow
	case "resolved":
		statusColor = green
	}

	fmt.Printf("%s Incident Detail\n\n", bold("▸"))
	fmt.Printf("  %-16s %s\n", "ID:", rec.ID)
	fmt.Printf("  %-16s %s\n", "Title:", rec.Lookup("title").Text())
	fmt.Printf("  %-16s %s\n", "Status:", statusColor(status))
	fmt.Printf("  %-16s %s\n", "Urgency:", rec.Lookup("urgency").Text())
	fmt.Printf("  %-16s %s\n", "Service:", rec.Lookup("service.summary").Text())
	fmt.Printf("  %-16s %s\n", "Created:", rec.Lookup("created_at").Text())
	if link := rec.Lookup("html_url").Text(); link != "" {
		fmt.Printf("  %-16s %s\n", "URL:", link)
	}
	fmt.Println()
}

func cmdIncAction(args []string, action string) {
	fs := flag.NewFlagSet("inc-"+action, flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	profileFlag := fs.String("profile", "", "Named profile to use")
	idempotent := fs.Bool("idempotent", false, "Attach an idempotency key to the write")
	fs.Parse(args)

	remaining := fs.Args()
	if len(remaining) == 0 {
		errorf("incident ID required — usage: pdgo inc %s <incident-id>...", action)
	}

	app := buildApp(*configPath, *profileFlag, false)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var opts []remote.ActionOption
	if *idempotent {
		opts = append(opts, remote.WithIdempotencyKey())
	}

	for _, id := range remaining {
		if err := app.client.PerformAction(ctx, core.ResourceIncident, id, action, nil, opts...); err != nil {
			fail(err)
		}
		switch action {
		case remote.ActionAcknowledge:
			fmt.Printf("%s %s acknowledged\n", yellow("✔"), id)
		case remote.ActionResolve:
			fmt.Printf("%s %s resolved\n", green("✔"), id)
		}
	}
	app.fetcher.Invalidate(core.ResourceIncident)
	app.fetcher.Invalidate("queries")
}

func cmdIncSnooze(args []string) {
	fs := flag.NewFlagSet("inc-snooze", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	profileFlag := fs.String("profile", "", "Named profile to use")
	duration := fs.Int("d", 14400, "Snooze duration in seconds")
	fs.Parse(args)

	remaining := fs.Args()
	if len(remaining) == 0 {
		errorf("incident ID required — usage: pdgo inc snooze [-d seconds] <incident-id>...")
	}

	app := buildApp(*configPath, *profileFlag, false)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	for _, id := range remaining {
		if err := app.client.PerformAction(ctx, core.ResourceIncident, id, remote.ActionSnooze, map[string]any{"duration": *duration}); err != nil {
			fail(err)
		}
		fmt.Printf("Snoozing incident %s for %s\n", id, (time.Duration(*duration) * time.Second).String())
	}
	app.fetcher.Invalidate(core.ResourceIncident)
	app.fetcher.Invalidate("queries")
}

func cmdIncReassign(args []string) {
	fs := flag.NewFlagSet("inc-reassign", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	profileFlag := fs.String("profile", "", "Named profile to use")
	var user string
	fs.StringVar(&user, "u", "", "User name, email, or ID to assign to")
	fs.StringVar(&user, "user", "", "User name, email, or ID to assign to")
	fs.Parse(args)

	remaining := fs.Args()
	if user == "" {
		errorf("-u user required — usage: pdgo inc reassign -u <user> <incident-id>...")
	}
	if len(remaining) == 0 {
		errorf("incident ID required — usage: pdgo inc reassign -u <user> <incident-id>...")
	}

	app := buildApp(*configPath, *profileFlag, false)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	userID := resolveUserID(ctx, app, user)

	for _, id := range remaining {
		err := app.client.PerformAction(ctx, core.ResourceIncident, id, remote.ActionReassign,
			map[string]any{"user_id": userID})
		if err != nil {
			fail(err)
		}
		fmt.Printf("%s %s reassigned to %s\n", green("✔"), id, userID)
	}
	app.fetcher.Invalidate(core.ResourceIncident)
	app.fetcher.Invalidate("queries")
}
