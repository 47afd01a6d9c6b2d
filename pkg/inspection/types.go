package inspection

// Mode controls how strict the governance pipeline should be for a batch.
// Each inspector interprets the mode independently.
type Mode string

const (
	// ModeStrict requires tools to be explicitly allowed; unknown tools need approval.
	ModeStrict Mode = "strict"
	// ModeRelaxed only enforces deny rules; everything else runs.
	ModeRelaxed Mode = "relaxed"
	// ModeOff disables policy enforcement.
	ModeOff Mode = "off"
)

// ToolRequest is a single proposed tool invocation pending execution.
// Two requests are identical iff name and arguments are deeply equal.
type ToolRequest struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// Message is one entry of the conversation context supplied to inspectors.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Action is an inspector's decision for a tool request.
type Action string

const (
	ActionAllow           Action = "allow"
	ActionDeny            Action = "deny"
	ActionRequireApproval Action = "require_approval"
)

// InspectionResult is one inspector's verdict on one tool request.
// It is immutable once produced.
type InspectionResult struct {
	ToolRequestID string  `json:"tool_request_id"`
	Action        Action  `json:"action"`
	Note          string  `json:"note,omitempty"`
	Reason        string  `json:"reason"`
	Confidence    float64 `json:"confidence"`
	InspectorName string  `json:"inspector_name"`
	FindingID     string  `json:"finding_id,omitempty"`
}

// Allowed reports whether the verdict permits execution without further input.
func (r InspectionResult) Allowed() bool {
	return r.Action == ActionAllow
}

// AllowResult builds an allow verdict.
func AllowResult(requestID, inspector, reason string, confidence float64) InspectionResult {
	return InspectionResult{
		ToolRequestID: requestID,
		Action:        ActionAllow,
		Reason:        reason,
		Confidence:    confidence,
		InspectorName: inspector,
	}
}

// DenyResult builds a deny verdict.
func DenyResult(requestID, inspector, reason string, confidence float64) InspectionResult {
	return InspectionResult{
		ToolRequestID: requestID,
		Action:        ActionDeny,
		Reason:        reason,
		Confidence:    confidence,
		InspectorName: inspector,
	}
}

// RequireApprovalResult builds a verdict that pauses execution for a human
// decision. The note, when non-empty, is shown to the decision-maker.
func RequireApprovalResult(requestID, inspector, reason, note string, confidence float64) InspectionResult {
	return InspectionResult{
		ToolRequestID: requestID,
		Action:        ActionRequireApproval,
		Note:          note,
		Reason:        reason,
		Confidence:    confidence,
		InspectorName: inspector,
	}
}
