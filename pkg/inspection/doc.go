// Package inspection governs tool calls proposed by an agent before they execute.
//
// Invariants:
// - Inspector names are unique within a manager.
// - A failing inspector never aborts the batch; it contributes zero results.
// - Results reference only tool request IDs present in the inspected batch.
//
// Usage:
//
//	manager := inspection.NewManager(inspection.ManagerConfig{Logger: logger})
//	_ = manager.Register(inspection.NewRepetitionInspector(5))
//	results := manager.InspectTools(ctx, requests, messages, inspection.ModeStrict)
package inspection
