package main

// ---------------------------------------------------------------------------
// usage.go — version banner, top-level usage, per-command help
// ---------------------------------------------------------------------------

import (
	"fmt"
	"io"
	"os"
)

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "pdgo %s (commit %s, built %s)\n", version, commit, buildDate)
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `%s — PagerDuty from the terminal

Usage:
  pdgo <command> [subcommand] [flags]

Commands:
  inc       List and act on incidents (ls, get, ack, resolve, snooze, reassign)
  svc       List services
  user      List and look up users (ls, get)
  teams     List teams (ls, mine)
  cache     Inspect or clear the local cache (ls, clear)
  config    Manage configuration (init, show)
  version   Print version and exit
  help      Show help for a command

Environment:
  PDGO_CONFIG    Config file path (default ~/.config/pdgo/config.yaml)
  PDGO_API_KEY   API key, used when the config has none
  PDGO_EMAIL     From address for write operations
  PDGO_PROFILE   Named profile (scopes the cache directory)

Run 'pdgo help <command>' for command flags.
`, bold("pdgo"))
}

func cmdHelp(cmd string) {
	switch cmd {
	case "inc", "incidents":
		fmt.Print(`Usage: pdgo inc [ls] [flags]
       pdgo inc get <incident-id> [flags]
       pdgo inc ack|resolve <incident-id>... [flags]
       pdgo inc snooze [-d seconds] <incident-id>... [flags]
       pdgo inc reassign -u <user> <incident-id>... [flags]

List flags:
  -e, --everything     All incidents, not only those assigned to me
  -u, --user ID        Only incidents assigned to this user ID
  -n, --new            Only newly triggered incidents (drop acknowledged)
      --high / --low   Only high / low urgency
  -T, --teams IDs      Comma-separated team IDs ("mine" for my teams)
      --since/--until  Date range passed to the API (RFC3339 or YYYY-MM-DD)
  -F, --filter EXPR    Client-side filter, e.g. 'status == "triggered" and urgency == "high"'
  -f, --fields LIST    Comma-separated field paths to show
      --sort KEYS      Sort by field path(s); --reverse flips the order
      --fresh          Bypass the cache for this query
  -w, --watch          Poll and reprint; -t sets the interval (default 30s)
      --rules          Pipe results through executables in --rules-path
      --alerts         Fetch and show each incident's alerts
      --alert-fields   Comma-separated alert field paths to show
  -a, --ack            Acknowledge every listed incident
  -r, --resolve        Resolve every listed incident
  -s, --snooze         Snooze every listed incident for 4h
  -o, --output FORMAT  table, plain, json, yaml, csv
`)
	case "svc", "services":
		fmt.Print(`Usage: pdgo svc [ls] [flags]

Flags:
  -s, --status LIST    Keep services with these statuses (default active,warning,critical)
  -F, --filter EXPR    Client-side filter expression
  -f, --fields LIST    Comma-separated field paths to show
      --sort KEYS      Sort by field path(s); --reverse flips the order
      --fresh          Bypass the cache
  -o, --output FORMAT  table, plain, json, yaml, csv
`)
	case "user", "users":
		fmt.Print(`Usage: pdgo user ls [flags]
       pdgo user get <name-or-id> [flags]

Flags:
  -F, --filter EXPR    Client-side filter expression
  -f, --fields LIST    Comma-separated field paths to show
      --fresh          Bypass the cache
  -o, --output FORMAT  table, plain, json, yaml, csv
`)
	case "teams":
		fmt.Print(`Usage: pdgo teams [ls|mine] [flags]

Flags:
  -f, --fields LIST    Comma-separated field paths to show
      --fresh          Bypass the cache
  -o, --output FORMAT  table, plain, json, yaml, csv
`)
	case "cache":
		fmt.Print(`Usage: pdgo cache ls [prefix]
       pdgo cache clear [resource-type]

'cache ls' prints cached keys; 'cache clear' drops everything, or only the
entries for one resource type (incidents, services, users, teams, …).
`)
	case "config":
		fmt.Print(`Usage: pdgo config init [-c path]
       pdgo config show [-c path]

'config init' writes a default config file; 'config show' prints the
effective configuration with the API key masked.
`)
	default:
		printUsage(os.Stdout)
	}
}
