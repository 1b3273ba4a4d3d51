package configs

import (
	"flag"
	"os"

	"github.com/hilthontt/actionlog/internal/infrastructure/env"
)

// DetermineConfigPath resolves the config file from the --config flag, the
// ACTIONLOG_CONFIG env var and a list of well-known locations. An empty result
// means the service runs on defaults and environment overrides only.
func DetermineConfigPath() string {
	var configPath string

	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	if configPath == "" {
		configPath = env.GetString("ACTIONLOG_CONFIG", "")
	}

	if configPath == "" {
		configPath = firstExisting(
			"./config.yaml",
			"./config.yml",
			"./tmp/config.yaml",
			"../../config.yaml", // keep for local dev
			"/etc/actionlog/config.yaml",
			"/app/config.yaml",
		)
	}

	return configPath
}

func firstExisting(candidates ...string) string {
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
