// Package permission defines the decision vocabulary bridging automated tool
// governance with interactive human confirmation, plus the approval broker and
// standing-policy store built on it.
package permission

import "fmt"

// PrincipalType is the granularity a standing permission decision is scoped
// to: an entire extension (tool provider) or one named tool within it.
type PrincipalType string

const (
	PrincipalExtension PrincipalType = "extension"
	PrincipalTool      PrincipalType = "tool"
)

// Permission is a five-way decision returned by a decision-maker. "Once"
// decisions apply to the single pending call only; "Always" decisions are
// durably remembered against the principal for future decisions.
type Permission string

const (
	AlwaysAllow Permission = "always_allow"
	AllowOnce   Permission = "allow_once"
	Cancel      Permission = "cancel"
	DenyOnce    Permission = "deny_once"
	AlwaysDeny  Permission = "always_deny"
)

// Allowed reports whether the decision permits the pending call.
func (p Permission) Allowed() bool {
	return p == AlwaysAllow || p == AllowOnce
}

// Durable reports whether the decision should be persisted as a standing
// policy for the principal. Cancel and the "once" decisions are never
// persisted.
func (p Permission) Durable() bool {
	return p == AlwaysAllow || p == AlwaysDeny
}

// Valid reports whether p is one of the five known decisions.
func (p Permission) Valid() bool {
	switch p {
	case AlwaysAllow, AllowOnce, Cancel, DenyOnce, AlwaysDeny:
		return true
	}
	return false
}

// Parse converts a raw string into a Permission.
func Parse(raw string) (Permission, error) {
	permission := Permission(raw)
	if !permission.Valid() {
		return "", fmt.Errorf("unknown permission %q", raw)
	}
	return permission, nil
}

// Confirmation is a decision-maker's answer to one approval prompt.
type Confirmation struct {
	PrincipalType PrincipalType `json:"principal_type"`
	Permission    Permission    `json:"permission"`
}
