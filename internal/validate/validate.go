// Package validate checks response bodies against configured expectations.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMismatch is wrapped by every rejection.
var ErrMismatch = errors.New("body mismatch")

// Rule lists expectations for a body. Empty fields are not checked; an all
// empty Rule accepts every body.
type Rule struct {
	Equals   string `mapstructure:"equals" json:"equals,omitempty" yaml:"equals,omitempty"`
	Contains string `mapstructure:"contains" json:"contains,omitempty" yaml:"contains,omitempty"`
	Regex    string `mapstructure:"regex" json:"regex,omitempty" yaml:"regex,omitempty"`
	// JSONPath is a gjson path such as "$.user.id" or "user.id".
	JSONPath string `mapstructure:"json_path" json:"json_path,omitempty" yaml:"json_path,omitempty"`
	// JSONValue is compared with the value at JSONPath. When empty the path
	// only has to exist.
	JSONValue string `mapstructure:"json_value" json:"json_value,omitempty" yaml:"json_value,omitempty"`
}

// IsZero reports whether r has no expectations.
func (r Rule) IsZero() bool {
	return r == Rule{}
}

// Validator is a compiled Rule. It is safe for concurrent use.
type Validator struct {
	rule  Rule
	regex *regexp.Regexp
}

// Compile checks the rule once so Validate never fails on bad patterns.
func Compile(r Rule) (*Validator, error) {
	v := &Validator{rule: r}
	if r.Regex != "" {
		re, err := regexp.Compile(r.Regex)
		if err != nil {
			return nil, fmt.Errorf("invalid regex %q: %w", r.Regex, err)
		}
		v.regex = re
	}
	if r.JSONValue != "" && r.JSONPath == "" {
		return nil, errors.New("json_value requires json_path")
	}
	return v, nil
}

// Validate returns nil when body meets every expectation.
func (v *Validator) Validate(body string) error {
	if v == nil {
		return nil
	}
	r := v.rule
	if r.Equals != "" && body != r.Equals {
		return fmt.Errorf("%w: want %q, got %q", ErrMismatch, r.Equals, clip(body))
	}
	if r.Contains != "" && !strings.Contains(body, r.Contains) {
		return fmt.Errorf("%w: %q not found in %q", ErrMismatch, r.Contains, clip(body))
	}
	if v.regex != nil {
		if _, ok := findRegex(v.regex, body); !ok {
			return fmt.Errorf("%w: no match for /%s/", ErrMismatch, r.Regex)
		}
	}
	if r.JSONPath != "" {
		got, ok := findJSONPath(body, r.JSONPath)
		if !ok {
			return fmt.Errorf("%w: json path %s not found", ErrMismatch, r.JSONPath)
		}
		if r.JSONValue != "" && got != r.JSONValue {
			return fmt.Errorf("%w: json path %s = %q, want %q", ErrMismatch, r.JSONPath, got, r.JSONValue)
		}
	}
	return nil
}

func clip(s string) string {
	const max = 64
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
