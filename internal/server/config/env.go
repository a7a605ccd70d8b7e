package config

import "github.com/caarlos0/env/v6"

// parseEnv overlays variables that are present in the environment. Unset
// variables leave the current value untouched.
func parseEnv(config *Config) error {
	return env.Parse(config)
}
