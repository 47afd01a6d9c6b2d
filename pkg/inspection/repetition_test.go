package inspection

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepetitionTracker_ThresholdLaw(t *testing.T) {
	const max = 3
	tracker := NewRepetitionTracker(max)
	args := map[string]interface{}{"path": "/tmp/out.txt"}

	for i := 1; i <= max; i++ {
		assert.True(t, tracker.CheckToolCall("write_file", args), "call %d should be allowed", i)
	}
	assert.False(t, tracker.CheckToolCall("write_file", args))
	assert.False(t, tracker.CheckToolCall("write_file", args))
	assert.Equal(t, max+2, tracker.ConsecutiveCount())

	// A different signature resets the counter and is allowed.
	assert.True(t, tracker.CheckToolCall("read_file", args))
	assert.Equal(t, 1, tracker.ConsecutiveCount())
}

func TestRepetitionTracker_FetchUserScenario(t *testing.T) {
	tracker := NewRepetitionTracker(2)

	first := map[string]interface{}{"id": 123}
	assert.True(t, tracker.CheckToolCall("fetch_user", first))
	assert.True(t, tracker.CheckToolCall("fetch_user", first))
	assert.False(t, tracker.CheckToolCall("fetch_user", first))

	second := map[string]interface{}{"id": 456}
	assert.True(t, tracker.CheckToolCall("fetch_user", second))
	assert.True(t, tracker.CheckToolCall("fetch_user", second))
	assert.False(t, tracker.CheckToolCall("fetch_user", second))
}

func TestRepetitionTracker_ArgumentChangeResets(t *testing.T) {
	tracker := NewRepetitionTracker(1)

	assert.True(t, tracker.CheckToolCall("exec", map[string]interface{}{"command": "ls"}))
	assert.False(t, tracker.CheckToolCall("exec", map[string]interface{}{"command": "ls"}))
	// Same tool, different arguments: new signature.
	assert.True(t, tracker.CheckToolCall("exec", map[string]interface{}{"command": "pwd"}))
	// Same arguments, different tool: new signature.
	assert.True(t, tracker.CheckToolCall("shell", map[string]interface{}{"command": "pwd"}))
}

func TestRepetitionTracker_CanonicalSignature(t *testing.T) {
	tracker := NewRepetitionTracker(1)

	// Two encodings of the same payload: key order and whitespace differ.
	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(`{"b": {"y": 2, "x": 1}, "a": "v"}`), &first))
	var second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(`{ "a":"v","b":{"x":1,"y":2} }`), &second))

	assert.Equal(t, Signature("tool", first), Signature("tool", second))
	assert.True(t, tracker.CheckToolCall("tool", first))
	assert.False(t, tracker.CheckToolCall("tool", second), "semantically equal payloads must count as repeats")
}

func TestRepetitionTracker_EmptyArguments(t *testing.T) {
	tracker := NewRepetitionTracker(2)

	assert.True(t, tracker.CheckToolCall("list_files", nil))
	assert.True(t, tracker.CheckToolCall("list_files", map[string]interface{}{}))
	// nil and empty map are the same signature, so this is the third repeat.
	assert.False(t, tracker.CheckToolCall("list_files", nil))
}

func TestRepetitionTracker_DefaultThreshold(t *testing.T) {
	tracker := NewRepetitionTracker(0)
	assert.Equal(t, DefaultMaxRepetitions, tracker.MaxRepetitions())

	tracker.SetMaxRepetitions(-1)
	assert.Equal(t, DefaultMaxRepetitions, tracker.MaxRepetitions())

	tracker.SetMaxRepetitions(10)
	assert.Equal(t, 10, tracker.MaxRepetitions())
}

func TestRepetitionInspector_Inspect(t *testing.T) {
	inspector := NewRepetitionInspector(2)
	args := map[string]interface{}{"id": 123}
	batch := []ToolRequest{
		{ID: "c-1", Name: "fetch_user", Arguments: args},
		{ID: "c-2", Name: "fetch_user", Arguments: args},
		{ID: "c-3", Name: "fetch_user", Arguments: args},
	}

	results, err := inspector.Inspect(context.Background(), batch, nil, ModeStrict)

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, ActionAllow, results[0].Action)
	assert.Equal(t, ActionAllow, results[1].Action)
	assert.Equal(t, ActionDeny, results[2].Action)
	assert.Equal(t, RepetitionInspectorName, results[2].InspectorName)
	assert.NotEmpty(t, results[2].FindingID)
	assert.Equal(t, "c-3", results[2].ToolRequestID)
}

func TestRepetitionInspector_StateSpansBatches(t *testing.T) {
	inspector := NewRepetitionInspector(2)
	args := map[string]interface{}{"id": 123}

	first, err := inspector.Inspect(context.Background(), []ToolRequest{
		{ID: "a", Name: "fetch_user", Arguments: args},
		{ID: "b", Name: "fetch_user", Arguments: args},
	}, nil, ModeStrict)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, ActionAllow, first[0].Action)
	assert.Equal(t, ActionAllow, first[1].Action)

	// The counter is not reset between Inspect invocations.
	second, err := inspector.Inspect(context.Background(), []ToolRequest{
		{ID: "c", Name: "fetch_user", Arguments: args},
	}, nil, ModeStrict)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, ActionDeny, second[0].Action)
}

func TestRepetitionInspector_CancelledContext(t *testing.T) {
	inspector := NewRepetitionInspector(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := inspector.Inspect(ctx, testBatch(), nil, ModeStrict)

	assert.Error(t, err)
}

func TestSignature_Stability(t *testing.T) {
	tests := []struct {
		name string
		tool string
		args map[string]interface{}
		want string
	}{
		{name: "nil args", tool: "ls", args: nil, want: "ls\x00{}"},
		{name: "empty args", tool: "ls", args: map[string]interface{}{}, want: "ls\x00{}"},
		{name: "scalar args", tool: "get", args: map[string]interface{}{"id": float64(7)}, want: "get\x00{\"id\":7}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Signature(tt.tool, tt.args))
		})
	}
}

func TestSignature_SortsNestedKeys(t *testing.T) {
	args := map[string]interface{}{
		"z": map[string]interface{}{"b": 1, "a": 2},
		"a": []interface{}{"x", "y"},
	}
	want := fmt.Sprintf("run\x00%s", `{"a":["x","y"],"z":{"a":2,"b":1}}`)
	assert.Equal(t, want, Signature("run", args))
}
