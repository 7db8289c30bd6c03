package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/helmfi/helm/internal/domain"
)

// DepositHandler executes scheduled deposits, moving available funds
// either into a strategy or into the user's available balance.
type DepositHandler struct {
	ledger domain.Ledger
}

// NewDepositHandler creates the scheduled-deposit handler.
func NewDepositHandler(ledger domain.Ledger) *DepositHandler {
	return &DepositHandler{ledger: ledger}
}

func (h *DepositHandler) Type() Type { return TypeScheduledDeposit }

func (h *DepositHandler) Execute(ctx context.Context, a *Automation) (*Result, error) {
	params, ok := a.Params.(DepositParams)
	if !ok {
		return nil, domain.NewExecutionError(domain.ErrKindInternal, "params do not match automation type")
	}

	balance, err := h.ledger.GetBalance(ctx, a.UserID)
	if err != nil {
		return nil, domain.WrapExecutionError(domain.ErrKindLedgerUnavailable, "balance lookup failed", err)
	}
	if balance.Available < params.Amount {
		return nil, domain.NewExecutionError(domain.ErrKindInsufficientFunds,
			fmt.Sprintf("available %.2f < deposit %.2f", balance.Available, params.Amount))
	}

	if params.StrategyID != "" {
		err = h.ledger.CreditStrategy(ctx, a.UserID, params.StrategyID, params.Amount,
			map[string]string{"automation_id": a.ID})
	} else {
		err = h.ledger.CreditAvailable(ctx, a.UserID, params.Amount, "scheduled deposit")
	}
	if err != nil {
		return nil, domain.WrapExecutionError(domain.ErrKindLedgerUnavailable, "deposit failed", err)
	}

	tx := domain.Transaction{
		UserID:     a.UserID,
		Kind:       domain.TxDeposit,
		Amount:     params.Amount,
		StrategyID: params.StrategyID,
		Timestamp:  time.Now(),
		Meta:       map[string]string{"automation_id": a.ID},
	}
	if err := h.ledger.AddTransaction(ctx, tx); err != nil {
		return nil, domain.WrapExecutionError(domain.ErrKindLedgerUnavailable, "transaction record failed", err)
	}

	return succeeded(map[string]interface{}{
		"amount":      params.Amount,
		"strategy_id": params.StrategyID,
	}), nil
}
