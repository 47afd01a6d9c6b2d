// Package rules loads tool policy rule files and keeps them hot-reloaded.
package rules

import (
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/lowryder/toolgate/pkg/inspection"
)

// RuleSchema is the JSON Schema for rule file validation.
const RuleSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version"],
  "properties": {
    "version": {
      "type": "integer",
      "minimum": 1,
      "description": "Rule file format version"
    },
    "allow": {
      "type": "array",
      "items": {"type": "string", "minLength": 1},
      "description": "Tools allowed to run; * matches every tool"
    },
    "deny": {
      "type": "array",
      "items": {"type": "string", "minLength": 1},
      "description": "Tools blocked outright; overrides allow"
    },
    "require_approval": {
      "type": "array",
      "items": {"type": "string", "minLength": 1},
      "description": "Tools that always pause for human approval"
    }
  },
  "additionalProperties": false
}`

// RuleSet is the parsed content of a rule file.
type RuleSet struct {
	Version         int      `json:"version" yaml:"version"`
	Allow           []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	Deny            []string `json:"deny,omitempty" yaml:"deny,omitempty"`
	RequireApproval []string `json:"require_approval,omitempty" yaml:"require_approval,omitempty"`
}

// Policy converts the rule set into the policy inspector's rule form.
func (r RuleSet) Policy() inspection.PolicyRules {
	return inspection.PolicyRules{
		Allow:           append([]string(nil), r.Allow...),
		Deny:            append([]string(nil), r.Deny...),
		RequireApproval: append([]string(nil), r.RequireApproval...),
	}
}

// Load reads and validates a rule file. JSON and YAML are accepted; the
// document is schema-validated before use so a malformed file never becomes
// the active policy.
func Load(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("failed to read rule file: %w", err)
	}
	return Parse(data)
}

// Parse validates and decodes rule file contents.
func Parse(data []byte) (RuleSet, error) {
	// YAML is a superset of JSON, so one decode path handles both formats.
	var document map[string]interface{}
	if err := yaml.Unmarshal(data, &document); err != nil {
		return RuleSet{}, fmt.Errorf("failed to parse rule file: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(RuleSchema),
		gojsonschema.NewGoLoader(document),
	)
	if err != nil {
		return RuleSet{}, fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		violations := make([]string, 0, len(result.Errors()))
		for _, violation := range result.Errors() {
			violations = append(violations, violation.String())
		}
		return RuleSet{}, fmt.Errorf("invalid rule file: %s", strings.Join(violations, "; "))
	}

	var rules RuleSet
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return RuleSet{}, fmt.Errorf("failed to decode rule file: %w", err)
	}
	return rules, nil
}
