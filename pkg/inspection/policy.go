package inspection

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// PolicyInspectorName is the registry name of the policy inspector.
const PolicyInspectorName = "policy"

// PolicyRules defines which tools an agent may call. The wildcard "*" matches
// every tool. Deny rules override allow rules.
type PolicyRules struct {
	Allow           []string `json:"allow"`
	Deny            []string `json:"deny"`
	RequireApproval []string `json:"require_approval"`
}

func matchRule(rules []string, toolName string) bool {
	for _, rule := range rules {
		if rule == toolName || rule == "*" {
			return true
		}
	}
	return false
}

// PolicyInspector evaluates tool names against allow/deny/approval rules.
// The active rule set can be swapped at runtime, e.g. from a watched rule file.
type PolicyInspector struct {
	mu    sync.RWMutex
	rules PolicyRules
}

// NewPolicyInspector creates a policy inspector with the given rules.
func NewPolicyInspector(rules PolicyRules) *PolicyInspector {
	return &PolicyInspector{rules: rules}
}

// SetRules atomically replaces the active rule set.
func (p *PolicyInspector) SetRules(rules PolicyRules) {
	p.mu.Lock()
	p.rules = rules
	p.mu.Unlock()

	log.Debug().
		Int("allow", len(rules.Allow)).
		Int("deny", len(rules.Deny)).
		Int("require_approval", len(rules.RequireApproval)).
		Msg("Policy rules replaced")
}

// Rules returns a copy of the active rule set.
func (p *PolicyInspector) Rules() PolicyRules {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return PolicyRules{
		Allow:           append([]string(nil), p.rules.Allow...),
		Deny:            append([]string(nil), p.rules.Deny...),
		RequireApproval: append([]string(nil), p.rules.RequireApproval...),
	}
}

// Name implements Inspector.
func (p *PolicyInspector) Name() string {
	return PolicyInspectorName
}

// Inspect implements Inspector. Per request:
//   - ModeOff allows everything.
//   - A deny rule match denies, regardless of mode.
//   - A require_approval rule match pauses for approval.
//   - ModeRelaxed allows anything not denied.
//   - ModeStrict allows listed tools and pauses for approval on unlisted ones.
func (p *PolicyInspector) Inspect(ctx context.Context, requests []ToolRequest, messages []Message, mode Mode) ([]InspectionResult, error) {
	rules := p.Rules()

	results := make([]InspectionResult, 0, len(requests))
	for _, request := range requests {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results = append(results, p.evaluate(request, rules, mode))
	}
	return results, nil
}

func (p *PolicyInspector) evaluate(request ToolRequest, rules PolicyRules, mode Mode) InspectionResult {
	if mode == ModeOff {
		return AllowResult(request.ID, p.Name(), "policy enforcement is off", 1.0)
	}

	if matchRule(rules.Deny, request.Name) {
		log.Warn().
			Str("tool", request.Name).
			Str("tool_request_id", request.ID).
			Msg("Tool call blocked by deny rule")
		return DenyResult(request.ID, p.Name(),
			fmt.Sprintf("tool %q is in the deny list", request.Name), 1.0)
	}

	if matchRule(rules.RequireApproval, request.Name) {
		return RequireApprovalResult(request.ID, p.Name(),
			fmt.Sprintf("tool %q requires explicit approval", request.Name),
			"listed as approval-required by policy", 1.0)
	}

	if mode == ModeRelaxed {
		return AllowResult(request.ID, p.Name(), "not denied by policy", 1.0)
	}

	if matchRule(rules.Allow, request.Name) {
		return AllowResult(request.ID, p.Name(), "tool is in the allow list", 1.0)
	}

	return RequireApprovalResult(request.ID, p.Name(),
		fmt.Sprintf("tool %q is not in the allow list", request.Name),
		"", 0.8)
}
