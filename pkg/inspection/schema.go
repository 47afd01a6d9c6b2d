package inspection

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

// SchemaInspectorName is the registry name of the schema inspector.
const SchemaInspectorName = "schema"

// SchemaInspector validates tool argument payloads against registered JSON
// schemas. Tools without a registered schema pass unchecked.
type SchemaInspector struct {
	mu      sync.RWMutex
	schemas map[string]*gojsonschema.Schema
}

// NewSchemaInspector creates a schema inspector with no registered schemas.
func NewSchemaInspector() *SchemaInspector {
	return &SchemaInspector{schemas: make(map[string]*gojsonschema.Schema)}
}

// RegisterSchema compiles and registers the JSON schema for a tool's
// arguments, replacing any previous schema for that tool.
func (s *SchemaInspector) RegisterSchema(toolName, schemaJSON string) error {
	toolName = strings.TrimSpace(toolName)
	if toolName == "" {
		return fmt.Errorf("tool name is required")
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return fmt.Errorf("failed to compile schema for tool %q: %w", toolName, err)
	}

	s.mu.Lock()
	s.schemas[toolName] = schema
	s.mu.Unlock()
	return nil
}

// Name implements Inspector.
func (s *SchemaInspector) Name() string {
	return SchemaInspectorName
}

// Inspect implements Inspector. Malformed arguments are a correctness problem
// independent of governance mode, so validation runs in every mode.
func (s *SchemaInspector) Inspect(ctx context.Context, requests []ToolRequest, messages []Message, mode Mode) ([]InspectionResult, error) {
	results := make([]InspectionResult, 0, len(requests))
	for _, request := range requests {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results = append(results, s.validate(request))
	}
	return results, nil
}

func (s *SchemaInspector) validate(request ToolRequest) InspectionResult {
	s.mu.RLock()
	schema, ok := s.schemas[request.Name]
	s.mu.RUnlock()

	if !ok {
		return AllowResult(request.ID, s.Name(), "no schema registered for tool", 0.5)
	}

	args := request.Arguments
	if args == nil {
		args = map[string]interface{}{}
	}

	outcome, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return DenyResult(request.ID, s.Name(),
			fmt.Sprintf("argument validation error: %v", err), 1.0)
	}

	if outcome.Valid() {
		return AllowResult(request.ID, s.Name(), "arguments match the tool schema", 1.0)
	}

	violations := make([]string, 0, len(outcome.Errors()))
	for _, violation := range outcome.Errors() {
		violations = append(violations, violation.String())
	}

	result := DenyResult(request.ID, s.Name(),
		fmt.Sprintf("arguments do not match the tool schema: %s", strings.Join(violations, "; ")), 1.0)
	result.FindingID = uuid.NewString()
	return result
}
