// Package config loads the gz configuration for the command line.
//
// The shared configuration types live in internal/config; this package
// layers the config file, environment variables and command-line flags
// over their defaults.
package config

import (
	intconfig "github.com/leapstack-labs/gz/internal/config"
)

// Config is an alias for the shared configuration.
type Config = intconfig.Config

// EnvPrefix prefixes environment variables. A double underscore separates
// nesting levels: GZ_MEMORY__DIR sets memory.dir.
const EnvPrefix = "GZ_"

// flagKeys maps flag names to config keys where they differ from the
// flag name with dashes turned into underscores.
var flagKeys = map[string]string{
	"memory-dir":     "memory.dir",
	"memory-backend": "memory.backend",
	"opt-level":      "optimize.level",
	"sync-dir":       "sync.dir",
	"max-passes":     "rewrite.max_passes",
	"timeout":        "interp.timeout",
	"max-steps":      "interp.max_steps",
}
