package permission

import (
	"context"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
)

// Prompt carries everything a decision-maker needs to rule on one pending
// tool call that an inspector flagged for approval.
type Prompt struct {
	RequestID     string        `json:"request_id"`
	ToolRequestID string        `json:"tool_request_id"`
	ToolName      string        `json:"tool_name"`
	Principal     string        `json:"principal"`
	PrincipalType PrincipalType `json:"principal_type"`
	Reason        string        `json:"reason"`
	Note          string        `json:"note,omitempty"`
	Timeout       time.Duration `json:"timeout,omitempty"`
}

// Handler presents a prompt to a decision-maker (a human, or a policy
// delegate) and returns their confirmation.
type Handler interface {
	HandlePrompt(ctx context.Context, prompt Prompt) (Confirmation, error)
}

// Broker turns require-approval verdicts into prompts, applies standing
// policies before asking, and records durable decisions after.
type Broker struct {
	handler        Handler
	store          *Store
	defaultTimeout time.Duration
}

// BrokerConfig configures a Broker. Store is optional; without one, standing
// policies are neither consulted nor recorded.
type BrokerConfig struct {
	Handler        Handler
	Store          *Store
	DefaultTimeout time.Duration
}

// NewBroker creates an approval broker.
func NewBroker(cfg BrokerConfig) *Broker {
	timeout := cfg.DefaultTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Broker{
		handler:        cfg.Handler,
		store:          cfg.Store,
		defaultTimeout: timeout,
	}
}

// Confirm resolves one approval prompt. A standing policy for the prompt's
// principal short-circuits the handler entirely; otherwise the handler is
// asked with a timeout and any durable answer is recorded for future calls.
func (b *Broker) Confirm(ctx context.Context, prompt Prompt) (Confirmation, error) {
	if b.handler == nil {
		return Confirmation{}, fmt.Errorf("no approval handler configured")
	}

	if b.store != nil {
		standing, ok, err := b.store.Lookup(prompt.PrincipalType, prompt.Principal)
		if err != nil {
			log.Error().
				Err(err).
				Str("principal", prompt.Principal).
				Msg("Standing policy lookup failed, falling through to prompt")
		} else if ok {
			log.Debug().
				Str("principal", prompt.Principal).
				Str("permission", string(standing)).
				Msg("Standing policy applied")
			return Confirmation{PrincipalType: prompt.PrincipalType, Permission: standing}, nil
		}
	}

	if prompt.RequestID == "" {
		id, _ := gonanoid.New()
		prompt.RequestID = id
	}
	timeout := prompt.Timeout
	if timeout <= 0 {
		timeout = b.defaultTimeout
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log.Info().
		Str("request_id", prompt.RequestID).
		Str("tool", prompt.ToolName).
		Str("principal", prompt.Principal).
		Str("reason", prompt.Reason).
		Msg("Requesting approval")

	confirmationChan := make(chan Confirmation, 1)
	errorChan := make(chan error, 1)

	go func() {
		confirmation, err := b.handler.HandlePrompt(timeoutCtx, prompt)
		if err != nil {
			errorChan <- err
		} else {
			confirmationChan <- confirmation
		}
	}()

	select {
	case confirmation := <-confirmationChan:
		return b.accept(prompt, confirmation)

	case err := <-errorChan:
		log.Error().
			Err(err).
			Str("request_id", prompt.RequestID).
			Msg("Approval prompt failed")
		return Confirmation{}, fmt.Errorf("approval prompt failed: %w", err)

	case <-timeoutCtx.Done():
		log.Warn().
			Str("request_id", prompt.RequestID).
			Dur("timeout", timeout).
			Msg("Approval prompt timed out")
		return Confirmation{}, fmt.Errorf("approval prompt timed out after %v", timeout)
	}
}

func (b *Broker) accept(prompt Prompt, confirmation Confirmation) (Confirmation, error) {
	if !confirmation.Permission.Valid() {
		return Confirmation{}, fmt.Errorf("handler returned unknown permission %q", confirmation.Permission)
	}
	if confirmation.PrincipalType == "" {
		confirmation.PrincipalType = prompt.PrincipalType
	}

	if confirmation.Permission.Allowed() {
		log.Info().
			Str("request_id", prompt.RequestID).
			Str("permission", string(confirmation.Permission)).
			Msg("Approval granted")
	} else {
		log.Warn().
			Str("request_id", prompt.RequestID).
			Str("permission", string(confirmation.Permission)).
			Msg("Approval denied")
	}

	if b.store != nil && confirmation.Permission != Cancel {
		if err := b.store.Record(confirmation, prompt.Principal); err != nil {
			log.Error().
				Err(err).
				Str("principal", prompt.Principal).
				Msg("Failed to record permission decision")
		}
	}

	return confirmation, nil
}

// SetDefaultTimeout sets the default timeout for approval prompts.
func (b *Broker) SetDefaultTimeout(timeout time.Duration) {
	b.defaultTimeout = timeout
}

// MockHandler is a canned handler for tests.
type MockHandler struct {
	Confirmation Confirmation
	Delay        time.Duration
	Error        error
}

// HandlePrompt implements Handler.
func (m *MockHandler) HandlePrompt(ctx context.Context, prompt Prompt) (Confirmation, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return Confirmation{}, ctx.Err()
		}
	}
	if m.Error != nil {
		return Confirmation{}, m.Error
	}
	return m.Confirmation, nil
}
