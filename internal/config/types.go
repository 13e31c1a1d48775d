// Package config provides the configuration types shared by the gz command
// and its packages, together with their defaults and validation.
package config

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/gz/internal/memory"
	"github.com/leapstack-labs/gz/pkg/interp"
)

// Config is the complete gz configuration.
type Config struct {
	Verbose bool `koanf:"verbose"`
	// Output is auto, text or markdown.
	Output string `koanf:"output"`
	// AILevel gates the rewrite subsystem: 0 off, 1 correction only,
	// 2 adds optimization and learning, 3 adds remote sync.
	AILevel  int            `koanf:"ai_level"`
	Memory   MemoryConfig   `koanf:"memory"`
	Rewrite  RewriteConfig  `koanf:"rewrite"`
	Optimize OptimizeConfig `koanf:"optimize"`
	Generate GenerateConfig `koanf:"generate"`
	Sync     SyncConfig     `koanf:"sync"`
	Interp   InterpConfig   `koanf:"interp"`

	// ProjectRoot is the directory relative paths resolve against.
	ProjectRoot string `koanf:"-"`
}

// MemoryConfig configures the collective memory.
type MemoryConfig struct {
	Dir           string            `koanf:"dir"`
	Backend       string            `koanf:"backend"`
	LockTimeout   time.Duration     `koanf:"lock_timeout"`
	MaxLogEntries int               `koanf:"max_log_entries"`
	FlushEvery    int               `koanf:"flush_every"`
	FlushInterval time.Duration     `koanf:"flush_interval"`
	Rate          memory.RateParams `koanf:"rate"`
}

// RewriteConfig configures the correction pass.
type RewriteConfig struct {
	MaxPasses int `koanf:"max_passes"`
}

// OptimizeConfig configures the optimization pass.
type OptimizeConfig struct {
	Level int `koanf:"level"`
}

// GenerateConfig configures template generation.
type GenerateConfig struct {
	MinScore int `koanf:"min_score"`
}

// SyncConfig configures remote snapshot sync. An empty Dir disables it.
type SyncConfig struct {
	Dir       string        `koanf:"dir"`
	Threshold int64         `koanf:"threshold"`
	Wait      time.Duration `koanf:"wait"`
}

// InterpConfig holds the evaluator limits.
type InterpConfig struct {
	MaxCallDepth int           `koanf:"max_call_depth"`
	MaxSteps     int64         `koanf:"max_steps"`
	Timeout      time.Duration `koanf:"timeout"`
}

// MemoryOptions converts the memory settings to store options.
func (c *Config) MemoryOptions() memory.Options {
	return memory.Options{
		Dir:           c.Memory.Dir,
		Backend:       c.Memory.Backend,
		LockTimeout:   c.Memory.LockTimeout,
		MaxLogEntries: c.Memory.MaxLogEntries,
		Rate:          c.Memory.Rate,
	}
}

// InterpOptions converts the evaluator limits to interpreter options.
func (c *Config) InterpOptions() interp.Options {
	return interp.Options{
		MaxCallDepth: c.Interp.MaxCallDepth,
		MaxSteps:     c.Interp.MaxSteps,
		Timeout:      c.Interp.Timeout,
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.AILevel < 0 || c.AILevel > 3 {
		return fmt.Errorf("ai_level must be between 0 and 3, got %d", c.AILevel)
	}
	if c.Optimize.Level < 0 || c.Optimize.Level > 3 {
		return fmt.Errorf("optimize.level must be between 0 and 3, got %d", c.Optimize.Level)
	}
	switch c.Memory.Backend {
	case memory.BackendJSON, memory.BackendSQLite:
	default:
		return fmt.Errorf("memory.backend must be %q or %q, got %q", memory.BackendJSON, memory.BackendSQLite, c.Memory.Backend)
	}
	switch c.Output {
	case OutputAuto, OutputText, OutputMarkdown:
	default:
		return fmt.Errorf("output must be auto, text or markdown, got %q", c.Output)
	}
	if c.Rewrite.MaxPasses < 1 {
		return fmt.Errorf("rewrite.max_passes must be positive, got %d", c.Rewrite.MaxPasses)
	}
	r := c.Memory.Rate
	if r.BaseRate <= 0 || r.MaxRate <= 0 || r.MaxRate > 1 || r.Acceleration < 1 || r.Horizon < 1 {
		return fmt.Errorf("memory.rate is out of range: %+v", r)
	}
	return nil
}
