// Package config holds the options of an analysis run. Options come from an
// optional YAML file, then CLI flag overrides, and are validated before any
// artifact is scanned.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"runtime"

	"gopkg.in/yaml.v3"
)

// GroupBy selects the identity granularity of graph nodes
type GroupBy string

const (
	GroupByClass       GroupBy = "class"
	GroupByPackage     GroupBy = "package"
	GroupByCustomLabel GroupBy = "custom-label"
)

// TieBreak decides between same-kind markers matching one element
type TieBreak string

const (
	TieBreakSpecificity TieBreak = "specificity"
	TieBreakFirst       TieBreak = "first"
	TieBreakMerge       TieBreak = "merge"
)

// Strategy is a destination-name resolution strategy
type Strategy string

const (
	StrategyLiteral       Strategy = "literal"
	StrategyPlaceholder   Strategy = "placeholder"
	StrategyConstantField Strategy = "constant-field"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Error reports one invalid option
type Error struct {
	Option string
	Value  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s=%q: %s", e.Option, e.Value, e.Reason)
}

func (e *Error) Unwrap() error { return ErrInvalid }

// LabelRule maps class names matching Match onto Label. Label may reference
// capture groups ($1, ${name}).
type LabelRule struct {
	Match string `yaml:"match" json:"match"`
	Label string `yaml:"label" json:"label"`
}

// Config is the validated option set of one run
type Config struct {
	GroupBy                       GroupBy           `yaml:"group-by"`
	IncludeUnresolvedPlaceholders bool              `yaml:"include-unresolved-placeholders"`
	Labels                        []LabelRule       `yaml:"labels"`
	DestinationStrategies         []Strategy        `yaml:"destination-strategies"`
	Properties                    map[string]string `yaml:"properties"`
	TieBreak                      TieBreak          `yaml:"tie-break"`
	Exclude                       []string          `yaml:"exclude"`
	Workers                       int               `yaml:"workers"`
}

// Default returns the options used when no file or flag overrides them
func Default() *Config {
	return &Config{
		GroupBy:                       GroupByClass,
		IncludeUnresolvedPlaceholders: true,
		DestinationStrategies:         []Strategy{StrategyLiteral, StrategyPlaceholder, StrategyConstantField},
		TieBreak:                      TieBreakSpecificity,
	}
}

// LoadFile reads a YAML config file on top of the defaults
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return cfg, nil
}

// Validate checks every option. It must be called before the config is used
// and leaves the config untouched.
func (c *Config) Validate() error {
	switch c.GroupBy {
	case GroupByClass, GroupByPackage, GroupByCustomLabel:
	default:
		return &Error{Option: "group-by", Value: string(c.GroupBy), Reason: "must be class, package or custom-label"}
	}

	switch c.TieBreak {
	case TieBreakSpecificity, TieBreakFirst, TieBreakMerge:
	default:
		return &Error{Option: "tie-break", Value: string(c.TieBreak), Reason: "must be specificity, first or merge"}
	}

	for _, s := range c.DestinationStrategies {
		switch s {
		case StrategyLiteral, StrategyPlaceholder, StrategyConstantField:
		default:
			return &Error{Option: "destination-strategies", Value: string(s), Reason: "unknown strategy"}
		}
	}

	if c.GroupBy == GroupByCustomLabel && len(c.Labels) == 0 {
		return &Error{Option: "labels", Value: "", Reason: "group-by custom-label needs at least one label rule"}
	}
	for _, l := range c.Labels {
		if l.Label == "" {
			return &Error{Option: "labels", Value: l.Match, Reason: "label is empty"}
		}
		if _, err := regexp.Compile(l.Match); err != nil {
			return &Error{Option: "labels", Value: l.Match, Reason: err.Error()}
		}
	}

	if c.Workers < 0 {
		return &Error{Option: "workers", Value: fmt.Sprint(c.Workers), Reason: "must not be negative"}
	}
	return nil
}

// WorkerCount returns the size of the analysis pool
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// Enabled reports whether a destination strategy is configured
func (c *Config) Enabled(s Strategy) bool {
	for _, e := range c.DestinationStrategies {
		if e == s {
			return true
		}
	}
	return false
}

// Labeler maps class names onto custom labels. It is immutable and safe for
// concurrent use.
type Labeler struct {
	rules []compiledLabel
}

type compiledLabel struct {
	re    *regexp.Regexp
	label string
}

// Labeler compiles the label rules as they are now. Patterns that do not
// compile are skipped; Validate reports them.
func (c *Config) Labeler() *Labeler {
	l := &Labeler{rules: make([]compiledLabel, 0, len(c.Labels))}
	for _, r := range c.Labels {
		re, err := regexp.Compile(r.Match)
		if err != nil {
			continue
		}
		l.rules = append(l.rules, compiledLabel{re: re, label: r.Label})
	}
	return l
}

// Label returns the custom label of a class name from the first matching rule
func (l *Labeler) Label(className string) (string, bool) {
	for _, r := range l.rules {
		m := r.re.FindStringSubmatchIndex(className)
		if m == nil {
			continue
		}
		return string(r.re.ExpandString(nil, r.label, className, m)), true
	}
	return "", false
}
