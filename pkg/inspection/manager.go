package inspection

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Logger zerolog.Logger
}

// Manager owns an ordered registry of inspectors and drives them over batches
// of pending tool requests. Registration order is the canonical iteration and
// reporting order.
type Manager struct {
	logger zerolog.Logger

	mu         sync.RWMutex
	inspectors []Inspector
	byName     map[string]Inspector
}

// NewManager creates an inspection manager with no registered inspectors.
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		logger: cfg.Logger.With().Str("component", "inspection").Logger(),
		byName: make(map[string]Inspector),
	}
}

// Register appends an inspector to the registry. Names must be unique;
// registration order is preserved and observable through InspectorNames.
func (m *Manager) Register(inspector Inspector) error {
	if inspector == nil {
		return fmt.Errorf("inspector is required")
	}
	name := strings.TrimSpace(inspector.Name())
	if name == "" {
		return fmt.Errorf("inspector name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byName[name]; exists {
		return fmt.Errorf("inspector %q is already registered", name)
	}
	m.inspectors = append(m.inspectors, inspector)
	m.byName[name] = inspector
	return nil
}

// InspectorNames returns every registered inspector's name in registration
// order, regardless of whether that inspector succeeded on the last batch.
func (m *Manager) InspectorNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.inspectors))
	for _, inspector := range m.inspectors {
		names = append(names, inspector.Name())
	}
	return names
}

// Inspector returns the registered inspector with the given name. Callers that
// need a concrete type (for example to retune a threshold at runtime) can type
// assert the returned value.
func (m *Manager) Inspector(name string) (Inspector, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inspector, ok := m.byName[name]
	return inspector, ok
}

// InspectTools runs every registered inspector over the batch and returns the
// concatenation of their results in registration order. It never fails as a
// whole: an inspector whose invocation errors is logged and contributes zero
// results for this batch, leaving the other inspectors unaffected. No
// deduplication or conflict resolution is performed; see Reconcile.
func (m *Manager) InspectTools(ctx context.Context, requests []ToolRequest, messages []Message, mode Mode) []InspectionResult {
	m.mu.RLock()
	inspectors := append([]Inspector(nil), m.inspectors...)
	m.mu.RUnlock()

	results := make([]InspectionResult, 0, len(requests)*len(inspectors))
	for _, inspector := range inspectors {
		verdicts, err := inspector.Inspect(ctx, requests, messages, mode)
		if err != nil {
			m.logger.Error().
				Err(err).
				Str("inspector", inspector.Name()).
				Int("batch_size", len(requests)).
				Msg("Inspector failed, skipping its results for this batch")
			continue
		}
		results = append(results, verdicts...)
	}
	return results
}
