package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/helmfi/helm/internal/domain"
)

// StopLossHandler exits part of a strategy position once its loss since
// the baseline reaches the configured maximum.
type StopLossHandler struct {
	ledger domain.Ledger
}

// NewStopLossHandler creates the stop-loss handler.
func NewStopLossHandler(ledger domain.Ledger) *StopLossHandler {
	return &StopLossHandler{ledger: ledger}
}

func (h *StopLossHandler) Type() Type { return TypeStopLoss }

func (h *StopLossHandler) Execute(ctx context.Context, a *Automation) (*Result, error) {
	params, ok := a.Params.(StopLossParams)
	if !ok {
		return nil, domain.NewExecutionError(domain.ErrKindInternal, "params do not match automation type")
	}

	current, err := strategyPositionValue(ctx, h.ledger, a.UserID, params.StrategyID)
	if err != nil {
		return nil, err
	}

	loss := (params.BaselineValue - current) / params.BaselineValue
	if loss < params.MaxLoss {
		return skipped(fmt.Sprintf("loss %.2f%% below stop %.2f%%",
			loss*100, params.MaxLoss*100)), nil
	}

	sellAmount := current * params.SellPercentage
	if err := h.ledger.DebitStrategy(ctx, a.UserID, params.StrategyID, sellAmount); err != nil {
		return nil, domain.WrapExecutionError(domain.ErrKindLedgerUnavailable, "position exit failed", err)
	}

	tx := domain.Transaction{
		UserID:     a.UserID,
		Kind:       domain.TxTrade,
		Amount:     sellAmount,
		StrategyID: params.StrategyID,
		Timestamp:  time.Now(),
		Meta:       map[string]string{"automation_id": a.ID, "reason": "stop_loss"},
	}
	if err := h.ledger.AddTransaction(ctx, tx); err != nil {
		return nil, domain.WrapExecutionError(domain.ErrKindLedgerUnavailable, "transaction record failed", err)
	}

	return succeeded(map[string]interface{}{
		"sold":         sellAmount,
		"current_loss": loss,
	}), nil
}
