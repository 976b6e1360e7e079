package main

// ---------------------------------------------------------------------------
// helpers.go — TTY detection, color, error helpers, shared app wiring
// ---------------------------------------------------------------------------

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdgo-project/pdgo/internal/cache"
	"github.com/pdgo-project/pdgo/internal/core"
	"github.com/pdgo-project/pdgo/internal/fetch"
	"github.com/pdgo-project/pdgo/internal/remote"
)

// ---------------------------------------------------------------------------
// TTY / color helpers
// ---------------------------------------------------------------------------

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func colorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTTY(os.Stderr)
}

func ansi(code, s string) string {
	if !colorEnabled() {
		return s
	}
	return code + s + "\033[0m"
}

func red(s string) string    { return ansi("\033[91m", s) }
func yellow(s string) string { return ansi("\033[93m", s) }
func green(s string) string  { return ansi("\033[32m", s) }
func cyan(s string) string   { return ansi("\033[36m", s) }
func dim(s string) string    { return ansi("\033[90m", s) }
func bold(s string) string   { return ansi("\033[1m", s) }

// ---------------------------------------------------------------------------
// Error / warn helpers (always to stderr)
// ---------------------------------------------------------------------------

func errorf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, red("error: ")+format+"\n", args...)
	os.Exit(1)
}

func warnf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, yellow("warn: ")+format+"\n", args...)
}

// fail prints a core error and exits with its mapped exit code:
// 2 auth, 3 remote unavailable, 4 malformed filter, 5 not found, 1 other.
func fail(err error) {
	fmt.Fprintf(os.Stderr, red("error: ")+"%v\n", err)
	os.Exit(core.ExitCode(err))
}

// ---------------------------------------------------------------------------
// Env-based configuration
//
// Environment variables:
//   PDGO_CONFIG  — default config file path
//   PDGO_API_KEY — API key when the config carries none
//   PDGO_EMAIL   — From address for write operations
//   PDGO_PROFILE — named profile (scopes the cache directory)
// ---------------------------------------------------------------------------

// envConfig returns the config path, preferring flag > env > default.
func envConfig(flagVal string) string {
	if flagVal != "" {
		return flagVal
	}
	return core.DefaultConfigPath()
}

// envProfile returns the profile, preferring flag > env > "default".
func envProfile(flagVal string) string {
	if flagVal != "" {
		return flagVal
	}
	if e := os.Getenv("PDGO_PROFILE"); e != "" {
		return e
	}
	return "default"
}

// ---------------------------------------------------------------------------
// Shared app wiring — config, logger, remote client, cache, fetcher
// ---------------------------------------------------------------------------

type app struct {
	cfg     *core.Config
	logger  zerolog.Logger
	client  *remote.Client
	store   *cache.Store
	fetcher *fetch.Fetcher
}

// buildApp assembles the core components every remote-facing command needs.
func buildApp(configPath, profile string, noCache bool) *app {
	cfg, err := core.LoadConfig(envConfig(configPath))
	if err != nil {
		errorf("%v", err)
	}
	if cfg.API.Key == "" {
		errorf("no API key — set api.key in %s or export PDGO_API_KEY", envConfig(configPath))
	}

	logger := core.NewLogger(cfg.Logging)
	client := remote.New(remote.FromAPIConfig(cfg.API), logger)

	var store *cache.Store
	if cfg.Cache.Enabled && !noCache {
		store, err = cache.Open(cfg.CacheDir(envProfile(profile)), logger)
		if err != nil {
			// A broken cache dir degrades to uncached operation.
			warnf("cache disabled: %v", err)
			store = nil
		}
	}

	fetcher := fetch.New(client, store, fetch.Config{
		ListTTL:     core.Duration(cfg.Cache.ListTTL, 0),
		ResourceTTL: core.Duration(cfg.Cache.ResourceTTL, 0),
	}, logger)

	return &app{cfg: cfg, logger: logger, client: client, store: store, fetcher: fetcher}
}

// ---------------------------------------------------------------------------
// Field list parsing
// ---------------------------------------------------------------------------

// parseFields splits a --fields flag, falling back to the per-resource
// defaults when empty.
func parseFields(flagVal string, defaults []string) []string {
	if strings.TrimSpace(flagVal) == "" {
		return defaults
	}
	parts := strings.Split(flagVal, ",")
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		if f := strings.TrimSpace(p); f != "" {
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		return defaults
	}
	return fields
}

func splitList(flagVal string) []string {
	var out []string
	for _, p := range strings.Split(flagVal, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Suggest — typo correction for unknown commands
// ---------------------------------------------------------------------------

func suggest(input string) string {
	cmds := []string{"inc", "incidents", "svc", "services", "user", "users",
		"teams", "cache", "config", "version", "help"}
	input = strings.ToLower(input)
	for _, c := range cmds {
		if strings.HasPrefix(c, input) || strings.HasPrefix(input, c) {
			return c
		}
	}
	for _, c := range cmds {
		if len(c) == len(input) {
			diff := 0
			for i := range c {
				if c[i] != input[i] {
					diff++
				}
			}
			if diff <= 1 {
				return c
			}
		}
	}
	return ""
}
