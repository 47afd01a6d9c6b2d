package inspection

import (
	"encoding/json"
	"fmt"
)

// Signature returns the repetition signature of a tool call: the tool name
// paired with a canonical encoding of its arguments. encoding/json emits map
// keys in sorted order at every nesting level, so semantically equal payloads
// that differ in key order or original whitespace produce the same signature.
// Empty or nil arguments are valid and compare equal to each other.
func Signature(name string, args map[string]interface{}) string {
	if len(args) == 0 {
		return name + "\x00{}"
	}
	payload, err := json.Marshal(args)
	if err != nil {
		// Arguments decoded from model output are always marshalable; fall
		// back to fmt for exotic embedder-supplied values.
		payload = []byte(fmt.Sprintf("%v", args))
	}
	return name + "\x00" + string(payload)
}
