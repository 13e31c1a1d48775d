package config

import (
	"time"

	"github.com/leapstack-labs/gz/internal/generate"
	"github.com/leapstack-labs/gz/internal/learning"
	"github.com/leapstack-labs/gz/internal/memory"
	"github.com/leapstack-labs/gz/internal/memsync"
	"github.com/leapstack-labs/gz/internal/rewrite"
	"github.com/leapstack-labs/gz/pkg/interp"
)

// Default configuration values.
const (
	DefaultMemoryDir = ".gz"
	DefaultAILevel   = 3
	DefaultOptLevel  = rewrite.LevelDefault
	DefaultSyncWait  = 3 * time.Second
)

// Output formats.
const (
	OutputAuto     = "auto" // TTY=text, non-TTY=markdown
	OutputText     = "text"
	OutputMarkdown = "markdown"
)

// Defaults returns the default configuration as a flat key map, the form
// the layered loader starts from.
func Defaults() map[string]any {
	rate := memory.DefaultRateParams()
	return map[string]any{
		"verbose":                  false,
		"output":                   OutputAuto,
		"ai_level":                 DefaultAILevel,
		"memory.dir":               DefaultMemoryDir,
		"memory.backend":           memory.BackendJSON,
		"memory.lock_timeout":      memory.DefaultLockTimeout.String(),
		"memory.max_log_entries":   memory.DefaultMaxLogEntries,
		"memory.flush_every":       learning.DefaultFlushEvery,
		"memory.flush_interval":    learning.DefaultFlushInterval.String(),
		"memory.rate.base_rate":    rate.BaseRate,
		"memory.rate.acceleration": rate.Acceleration,
		"memory.rate.horizon":      rate.Horizon,
		"memory.rate.max_rate":     rate.MaxRate,
		"rewrite.max_passes":       rewrite.DefaultMaxPasses,
		"optimize.level":           DefaultOptLevel,
		"generate.min_score":       generate.DefaultMinScore,
		"sync.dir":                 "",
		"sync.threshold":           memsync.DefaultThreshold,
		"sync.wait":                DefaultSyncWait.String(),
		"interp.max_call_depth":    interp.DefaultMaxCallDepth,
		"interp.max_steps":         interp.DefaultMaxSteps,
		"interp.timeout":           interp.DefaultTimeout.String(),
	}
}
