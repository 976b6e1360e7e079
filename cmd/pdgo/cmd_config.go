package main

// ---------------------------------------------------------------------------
// cmd_config.go — init and show configuration
// ---------------------------------------------------------------------------

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pdgo-project/pdgo/internal/core"
)

func cmdConfig(args []string) {
	sub := "show"
	if len(args) > 0 {
		sub = args[0]
		args = args[1:]
	}

	fs := flag.NewFlagSet("config", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	fs.StringVar(configPath, "c", "", "Config file path")
	fs.Parse(args)

	path := envConfig(*configPath)

	switch sub {
	case "init":
		if _, err := os.Stat(path); err == nil {
			errorf("config already exists at %s", path)
		}
		if err := core.SaveConfig(core.DefaultConfig(), path); err != nil {
			errorf("writing config: %v", err)
		}
		fmt.Printf("%s wrote %s\n", green("✔"), path)
		fmt.Println("Set api.key (or export PDGO_API_KEY) before running remote commands.")

	case "show":
		cfg, err := core.LoadConfig(path)
		if err != nil {
			errorf("%v", err)
		}
		shown := *cfg
		shown.API.Key = maskKey(cfg.API.Key)
		data, err := yaml.Marshal(&shown)
		if err != nil {
			errorf("encoding config: %v", err)
		}
		fmt.Printf("%s %s\n\n", dim("# config:"), path)
		fmt.Print(string(data))

	default:
		fmt.Fprintf(os.Stderr, red("error: ")+"unknown config subcommand %q\n\n", sub)
		cmdHelp("config")
		os.Exit(1)
	}
}

// maskKey hides all but the last four characters of an API key.
func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
