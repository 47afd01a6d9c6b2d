package permission

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPrompt() Prompt {
	return Prompt{
		ToolRequestID: "req-1",
		ToolName:      "exec",
		Principal:     "exec",
		PrincipalType: PrincipalTool,
		Reason:        "tool requires explicit approval",
	}
}

func TestBroker_Confirm_Approved(t *testing.T) {
	broker := NewBroker(BrokerConfig{
		Handler: &MockHandler{Confirmation: Confirmation{PrincipalType: PrincipalTool, Permission: AllowOnce}},
	})

	confirmation, err := broker.Confirm(context.Background(), testPrompt())

	require.NoError(t, err)
	assert.Equal(t, AllowOnce, confirmation.Permission)
	assert.True(t, confirmation.Permission.Allowed())
}

func TestBroker_Confirm_Denied(t *testing.T) {
	broker := NewBroker(BrokerConfig{
		Handler: &MockHandler{Confirmation: Confirmation{PrincipalType: PrincipalTool, Permission: DenyOnce}},
	})

	confirmation, err := broker.Confirm(context.Background(), testPrompt())

	require.NoError(t, err)
	assert.False(t, confirmation.Permission.Allowed())
}

func TestBroker_Confirm_Cancel(t *testing.T) {
	broker := NewBroker(BrokerConfig{
		Handler: &MockHandler{Confirmation: Confirmation{PrincipalType: PrincipalTool, Permission: Cancel}},
	})

	confirmation, err := broker.Confirm(context.Background(), testPrompt())

	require.NoError(t, err)
	assert.Equal(t, Cancel, confirmation.Permission)
}

func TestBroker_Confirm_Timeout(t *testing.T) {
	broker := NewBroker(BrokerConfig{
		Handler:        &MockHandler{Delay: 2 * time.Second},
		DefaultTimeout: 50 * time.Millisecond,
	})

	_, err := broker.Confirm(context.Background(), testPrompt())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestBroker_Confirm_HandlerError(t *testing.T) {
	broker := NewBroker(BrokerConfig{
		Handler: &MockHandler{Error: errors.New("terminal went away")},
	})

	_, err := broker.Confirm(context.Background(), testPrompt())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "approval prompt failed")
}

func TestBroker_Confirm_NoHandler(t *testing.T) {
	broker := NewBroker(BrokerConfig{})

	_, err := broker.Confirm(context.Background(), testPrompt())

	assert.Error(t, err)
}

func TestBroker_Confirm_InvalidHandlerAnswer(t *testing.T) {
	broker := NewBroker(BrokerConfig{
		Handler: &MockHandler{Confirmation: Confirmation{Permission: Permission("maybe")}},
	})

	_, err := broker.Confirm(context.Background(), testPrompt())

	assert.Error(t, err)
}

func TestBroker_Confirm_RecordsDurableDecision(t *testing.T) {
	store := newTestStore(t)
	calls := 0
	handler := &countingHandler{
		confirmation: Confirmation{PrincipalType: PrincipalTool, Permission: AlwaysAllow},
		calls:        &calls,
	}
	broker := NewBroker(BrokerConfig{Handler: handler, Store: store})

	first, err := broker.Confirm(context.Background(), testPrompt())
	require.NoError(t, err)
	assert.Equal(t, AlwaysAllow, first.Permission)
	assert.Equal(t, 1, calls)

	// The standing policy short-circuits the handler on the next call.
	second, err := broker.Confirm(context.Background(), testPrompt())
	require.NoError(t, err)
	assert.Equal(t, AlwaysAllow, second.Permission)
	assert.Equal(t, 1, calls)
}

func TestBroker_Confirm_OnceDecisionNotStanding(t *testing.T) {
	store := newTestStore(t)
	broker := NewBroker(BrokerConfig{
		Handler: &MockHandler{Confirmation: Confirmation{PrincipalType: PrincipalTool, Permission: AllowOnce}},
		Store:   store,
	})

	_, err := broker.Confirm(context.Background(), testPrompt())
	require.NoError(t, err)

	_, found, err := store.Lookup(PrincipalTool, "exec")
	require.NoError(t, err)
	assert.False(t, found, "once decisions must not become standing policy")
}

type countingHandler struct {
	confirmation Confirmation
	calls        *int
}

func (h *countingHandler) HandlePrompt(ctx context.Context, prompt Prompt) (Confirmation, error) {
	*h.calls++
	return h.confirmation, nil
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(StoreConfig{
		DBPath: filepath.Join(t.TempDir(), "permissions.db"),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}
