// Package memory implements the collective memory: the durable, mergeable
// store of correction rules, optimization rules, code templates, syntax
// pattern observations and the learning log.
//
// All mutation goes through a Store. Every mutation is applied in memory and
// also kept as a pending operation; Flush takes the snapshot lock, re-reads
// the durable snapshot, replays the pending operations onto it and writes
// the result, so concurrent processes never lose each other's updates.
package memory

import (
	"strings"
	"time"
)

// Kind is the variant tag of a Record.
type Kind string

// Record kinds.
const (
	KindCorrection   Kind = "correction_rule"
	KindOptimization Kind = "optimization_rule"
	KindTemplate     Kind = "code_template"
	KindObservation  Kind = "syntax_pattern"
)

// Valid reports whether k is a known record kind.
func (k Kind) Valid() bool {
	switch k {
	case KindCorrection, KindOptimization, KindTemplate, KindObservation:
		return true
	}
	return false
}

// Record is one entry of the collective memory. Which fields are meaningful
// depends on Kind:
//
//	correction_rule    Pattern, Replacement, Explanation, Name
//	optimization_rule  Name, Pattern, Replacement, Explanation, Level
//	code_template      Name, Code, Description
//	syntax_pattern     Category, Value, Source
type Record struct {
	Kind        Kind      `json:"kind" yaml:"kind"`
	Name        string    `json:"name,omitempty" yaml:"name,omitempty"`
	Pattern     string    `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Replacement string    `json:"replacement,omitempty" yaml:"replacement,omitempty"`
	Explanation string    `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	Level       int       `json:"level,omitempty" yaml:"level,omitempty"`
	Code        string    `json:"code,omitempty" yaml:"code,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string    `json:"category,omitempty" yaml:"category,omitempty"`
	Value       string    `json:"value,omitempty" yaml:"value,omitempty"`
	Source      string    `json:"source,omitempty" yaml:"source,omitempty"`
	Frequency   int64     `json:"frequency" yaml:"frequency"`
	Confidence  float64   `json:"confidence" yaml:"confidence"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
	Seq         int64     `json:"seq" yaml:"-"`
}

// Signature is the identity of a record. Records with equal signatures are
// the same record.
type Signature string

const sigSep = "\x1f"

// Signature returns the identity key of r: (kind, pattern, replacement) for
// rules, (kind, name) for templates and (kind, category, value) for
// observations.
func (r *Record) Signature() Signature {
	var parts []string
	switch r.Kind {
	case KindCorrection, KindOptimization:
		parts = []string{string(r.Kind), r.Pattern, r.Replacement}
	case KindTemplate:
		parts = []string{string(r.Kind), r.Name}
	default:
		parts = []string{string(r.Kind), r.Category, r.Value}
	}
	return Signature(strings.Join(parts, sigSep))
}

// Label is a short human-readable name for r.
func (r *Record) Label() string {
	switch {
	case r.Name != "":
		return r.Name
	case r.Kind == KindObservation:
		return r.Category + ":" + r.Value
	default:
		return r.Pattern
	}
}

// LogKind is the kind of a learning log entry.
type LogKind string

// Log entry kinds.
const (
	LogCodeSample        LogKind = "code_sample"
	LogSyntaxPattern     LogKind = "syntax_pattern"
	LogOptimizationRule  LogKind = "optimization_rule"
	LogOptimizationEvent LogKind = "optimization_event"
	LogCorrectionEvent   LogKind = "correction_event"
)

// LogEntry is an append-only record of something the system learned.
type LogEntry struct {
	Timestamp time.Time         `json:"timestamp"`
	Kind      LogKind           `json:"kind"`
	Payload   map[string]string `json:"payload"`
}

// Stats summarizes the store for diagnostics.
type Stats struct {
	InstanceID     string
	Backend        string
	Path           string
	Persistent     bool
	Corrections    int
	Optimizations  int
	Templates      int
	Observations   int
	LogEntries     int
	Pending        int
	TotalLearnings int64
	UpdatesPushed  int64
	Dirty          int64
	SavedAt        time.Time
	Warning        string
}
