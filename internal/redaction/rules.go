package redaction

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var errRuleMissingName = errors.New("redaction rule missing name")

// Rule is a named PII pattern.
type Rule struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
}

// Rules extends the built-in redaction sets. It is loaded from a YAML file:
//
//	sensitive_keys: [ssn, birthdate]
//	sensitive_headers: [x-org-secret]
//	patterns:
//	  - name: account-number
//	    pattern: 'ACC-[0-9]{8}'
type Rules struct {
	SensitiveKeys    []string `yaml:"sensitive_keys"`
	SensitiveHeaders []string `yaml:"sensitive_headers"`
	Patterns         []Rule   `yaml:"patterns"`
}

// LoadRules reads a rules file. Patterns that fail to compile are not an
// error here; the engine skips them and reports them via Skipped.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from trusted config
	if err != nil {
		return nil, fmt.Errorf("reading redaction rules %s: %w", path, err)
	}

	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parsing redaction rules %s: %w", path, err)
	}

	for i, rule := range rules.Patterns {
		if rule.Name == "" {
			return nil, fmt.Errorf("pattern %d in %s: %w", i, path, errRuleMissingName)
		}
	}

	return &rules, nil
}
