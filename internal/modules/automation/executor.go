package automation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helmfi/helm/internal/domain"
)

// Result is a handler's outcome. A skipped result is a successful no-op:
// the gate (condition, risk check, threshold) was not met.
type Result struct {
	Success bool                   `json:"success"`
	Skipped bool                   `json:"skipped,omitempty"`
	Reason  string                 `json:"reason,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

func succeeded(data map[string]interface{}) *Result {
	return &Result{Success: true, Data: data}
}

func skipped(reason string) *Result {
	return &Result{Success: true, Skipped: true, Reason: reason}
}

// Handler executes one automation type.
type Handler interface {
	Type() Type
	Execute(ctx context.Context, a *Automation) (*Result, error)
}

// Executor dispatches automations to type-specific handlers.
type Executor struct {
	handlers map[Type]Handler
	log      zerolog.Logger
}

// NewExecutor creates an executor over the given handlers.
func NewExecutor(log zerolog.Logger, handlers ...Handler) *Executor {
	byType := make(map[Type]Handler, len(handlers))
	for _, h := range handlers {
		byType[h.Type()] = h
	}
	return &Executor{
		handlers: byType,
		log:      log.With().Str("component", "executor").Logger(),
	}
}

// Execute runs one automation through its handler. A missing handler is
// an internal execution error so the retry machinery treats it like any
// other failure.
func (e *Executor) Execute(ctx context.Context, a *Automation) (*Result, error) {
	handler, ok := e.handlers[a.Type]
	if !ok {
		return nil, domain.NewExecutionError(domain.ErrKindInternal,
			fmt.Sprintf("no handler registered for type %q", a.Type))
	}

	result, err := handler.Execute(ctx, a)
	if err != nil {
		e.log.Warn().
			Str("automation_id", a.ID).
			Str("type", string(a.Type)).
			Err(err).
			Msg("Automation execution failed")
		return nil, err
	}

	e.log.Debug().
		Str("automation_id", a.ID).
		Str("type", string(a.Type)).
		Bool("skipped", result.Skipped).
		Msg("Automation executed")
	return result, nil
}
