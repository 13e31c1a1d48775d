package memory

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dlclark/regexp2"
	"gopkg.in/yaml.v3"
)

// Pack is a YAML rule pack:
//
//	correction_rules:
//	  - name: semicolons
//	    pattern: ';[ \t]*$'
//	    replacement: ''
//	    explanation: No semicolons
//	optimization_rules:
//	  - name: double
//	    pattern: ...
//	    replacement: ...
//	    level: 2
//	templates:
//	  - name: greet
//	    description: Greet someone
//	    code: |
//	      simula main
//	          sulat "hi"
type Pack struct {
	CorrectionRules   []Record `yaml:"correction_rules"`
	OptimizationRules []Record `yaml:"optimization_rules"`
	Templates         []Record `yaml:"templates"`
}

// ReadPack decodes a rule pack and validates every record in it.
func ReadPack(r io.Reader) ([]Record, error) {
	var pack Pack
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&pack); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse rule pack: %w", err)
	}

	var out []Record
	add := func(kind Kind, records []Record) error {
		for i, rec := range records {
			rec.Kind = kind
			if err := validateRecord(&rec); err != nil {
				return fmt.Errorf("%s %d: %w", kind, i+1, err)
			}
			out = append(out, rec)
		}
		return nil
	}
	if err := add(KindCorrection, pack.CorrectionRules); err != nil {
		return nil, err
	}
	if err := add(KindOptimization, pack.OptimizationRules); err != nil {
		return nil, err
	}
	if err := add(KindTemplate, pack.Templates); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadPackFile reads a rule pack from path.
func ReadPackFile(path string) ([]Record, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is a user-supplied pack
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ReadPack(f)
}

func validateRecord(r *Record) error {
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range", r.Confidence)
	}
	if r.Frequency < 0 {
		return fmt.Errorf("negative frequency")
	}
	switch r.Kind {
	case KindCorrection, KindOptimization:
		if r.Pattern == "" {
			return fmt.Errorf("missing pattern")
		}
		if _, err := CompilePattern(r.Pattern); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", r.Pattern, err)
		}
		if r.Level < 0 || r.Level > 3 {
			return fmt.Errorf("level %d out of range", r.Level)
		}
	case KindTemplate:
		if r.Name == "" || r.Code == "" {
			return fmt.Errorf("templates need a name and code")
		}
	}
	return nil
}

// PatternTimeout bounds a single regular expression evaluation.
const PatternTimeout = 250 * time.Millisecond

// CompilePattern compiles a rule pattern the way the rewrite engine runs
// it: multiline, with backreferences and a match timeout.
func CompilePattern(pattern string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(pattern, regexp2.Multiline)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = PatternTimeout
	return re, nil
}
