package main

// ---------------------------------------------------------------------------
// cmd_cache.go — inspect and clear the local cache
// ---------------------------------------------------------------------------

import (
	"flag"
	"fmt"
	"os"

	"github.com/pdgo-project/pdgo/internal/cache"
	"github.com/pdgo-project/pdgo/internal/core"
)

func cmdCache(args []string) {
	sub := "ls"
	if len(args) > 0 {
		sub = args[0]
		args = args[1:]
	}

	fs := flag.NewFlagSet("cache", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	profileFlag := fs.String("profile", "", "Named profile to use")
	fs.Parse(args)

	cfg, err := core.LoadConfig(envConfig(*configPath))
	if err != nil {
		errorf("%v", err)
	}
	logger := core.NewLogger(cfg.Logging)
	store, err := cache.Open(cfg.CacheDir(envProfile(*profileFlag)), logger)
	if err != nil {
		errorf("opening cache: %v", err)
	}

	switch sub {
	case "ls", "list":
		prefix := ""
		if rest := fs.Args(); len(rest) > 0 {
			prefix = rest[0]
		}
		keys := store.Enumerate(prefix)
		if len(keys) == 0 {
			fmt.Printf("%s cache is empty\n", dim("▸"))
			return
		}
		for _, k := range keys {
			fmt.Println(k)
		}

	case "clear":
		prefix := ""
		if rest := fs.Args(); len(rest) > 0 {
			prefix = rest[0]
		}
		if err := store.Invalidate(prefix); err != nil {
			errorf("clearing cache: %v", err)
		}
		if prefix == "" {
			fmt.Printf("%s cache cleared\n", green("✔"))
		} else {
			fmt.Printf("%s cleared %q entries\n", green("✔"), prefix)
		}

	default:
		fmt.Fprintf(os.Stderr, red("error: ")+"unknown cache subcommand %q\n\n", sub)
		cmdHelp("cache")
		os.Exit(1)
	}
}
