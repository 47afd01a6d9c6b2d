package inspection

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// DefaultMaxRepetitions is the consecutive-repeat limit used when no threshold
// is configured. Embedders tune it per deployment via NewRepetitionInspector
// or SetMaxRepetitions.
const DefaultMaxRepetitions = 5

// RepetitionInspectorName is the registry name of the repetition inspector.
const RepetitionInspectorName = "repetition"

// RepetitionTracker detects a model stuck issuing the same tool call over and
// over. It observes calls in strict chronological order and keeps one
// signature/counter pair for the lifetime of the instance. Instances are
// scoped to a single agent session and never shared across sessions.
type RepetitionTracker struct {
	mu            sync.Mutex
	max           int
	lastSignature string
	hasSignature  bool
	consecutive   int
}

// NewRepetitionTracker creates a tracker. A non-positive max selects
// DefaultMaxRepetitions.
func NewRepetitionTracker(max int) *RepetitionTracker {
	if max <= 0 {
		max = DefaultMaxRepetitions
	}
	return &RepetitionTracker{max: max}
}

// CheckToolCall records one attempted call and reports whether it is allowed.
// An identical signature increments the consecutive counter; a different
// signature resets it to 1 and is always allowed. The counter keeps climbing
// past the threshold, so the deny persists for every further identical call
// until the signature changes.
func (t *RepetitionTracker) CheckToolCall(name string, args map[string]interface{}) bool {
	signature := Signature(name, args)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.hasSignature && signature == t.lastSignature {
		t.consecutive++
	} else {
		t.lastSignature = signature
		t.hasSignature = true
		t.consecutive = 1
	}
	return t.consecutive <= t.max
}

// ConsecutiveCount returns how many times the current signature has been seen
// in a row.
func (t *RepetitionTracker) ConsecutiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.consecutive
}

// MaxRepetitions returns the configured threshold.
func (t *RepetitionTracker) MaxRepetitions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.max
}

// SetMaxRepetitions retunes the threshold at runtime. A non-positive value
// restores DefaultMaxRepetitions. The signature and counter are untouched.
func (t *RepetitionTracker) SetMaxRepetitions(max int) {
	if max <= 0 {
		max = DefaultMaxRepetitions
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.max = max
}

// RepetitionInspector wires a RepetitionTracker into the Inspector capability.
// One Inspect call feeds each pending request through the tracker in batch
// order, sharing the signature/counter state across Inspect invocations.
// Repetition abuse is cut off in every governance mode.
type RepetitionInspector struct {
	tracker *RepetitionTracker
}

// NewRepetitionInspector creates a repetition inspector. A non-positive
// maxRepetitions selects DefaultMaxRepetitions.
func NewRepetitionInspector(maxRepetitions int) *RepetitionInspector {
	return &RepetitionInspector{tracker: NewRepetitionTracker(maxRepetitions)}
}

// Name implements Inspector.
func (i *RepetitionInspector) Name() string {
	return RepetitionInspectorName
}

// Inspect implements Inspector.
func (i *RepetitionInspector) Inspect(ctx context.Context, requests []ToolRequest, messages []Message, mode Mode) ([]InspectionResult, error) {
	results := make([]InspectionResult, 0, len(requests))
	for _, request := range requests {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if i.tracker.CheckToolCall(request.Name, request.Arguments) {
			results = append(results, AllowResult(request.ID, i.Name(), "call is not a runaway repeat", 1.0))
			continue
		}

		result := DenyResult(
			request.ID,
			i.Name(),
			fmt.Sprintf("tool %q called %d consecutive times with identical arguments (max %d)",
				request.Name, i.tracker.ConsecutiveCount(), i.tracker.MaxRepetitions()),
			1.0,
		)
		result.FindingID = uuid.NewString()
		results = append(results, result)
	}
	return results, nil
}

// SetMaxRepetitions retunes the threshold at runtime, typically after looking
// the inspector up by name on its manager.
func (i *RepetitionInspector) SetMaxRepetitions(max int) {
	i.tracker.SetMaxRepetitions(max)
}

// Tracker exposes the underlying tracker for embedders that drive the
// low-level primitive directly.
func (i *RepetitionInspector) Tracker() *RepetitionTracker {
	return i.tracker
}
