package inspection

import "context"

// Inspector is the pluggable unit of tool-call policy. Given the pending
// requests of one batch and their conversation context, it emits a verdict per
// request or fails as a whole.
//
// Inspectors must not mutate the supplied requests or messages. Stateless
// inspectors must be safe for concurrent use; stateful inspectors are
// responsible for their own internal serialization.
type Inspector interface {
	// Name returns a stable, unique identifier used for attribution and lookup.
	Name() string

	// Inspect evaluates the batch and returns one result per finding, in order.
	Inspect(ctx context.Context, requests []ToolRequest, messages []Message, mode Mode) ([]InspectionResult, error)
}
