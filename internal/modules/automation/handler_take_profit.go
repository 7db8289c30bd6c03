package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/helmfi/helm/internal/domain"
)

// TakeProfitHandler sells part of a strategy position once its return
// since the baseline reaches the target.
type TakeProfitHandler struct {
	ledger domain.Ledger
}

// NewTakeProfitHandler creates the take-profit handler.
func NewTakeProfitHandler(ledger domain.Ledger) *TakeProfitHandler {
	return &TakeProfitHandler{ledger: ledger}
}

func (h *TakeProfitHandler) Type() Type { return TypeTakeProfit }

func (h *TakeProfitHandler) Execute(ctx context.Context, a *Automation) (*Result, error) {
	params, ok := a.Params.(TakeProfitParams)
	if !ok {
		return nil, domain.NewExecutionError(domain.ErrKindInternal, "params do not match automation type")
	}

	current, err := strategyPositionValue(ctx, h.ledger, a.UserID, params.StrategyID)
	if err != nil {
		return nil, err
	}

	currentReturn := (current - params.BaselineValue) / params.BaselineValue
	if currentReturn < params.TargetReturn {
		return skipped(fmt.Sprintf("return %.2f%% below target %.2f%%",
			currentReturn*100, params.TargetReturn*100)), nil
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
		Meta:       map[string]string{"automation_id": a.ID, "reason": "take_profit"},
	}
	if err := h.ledger.AddTransaction(ctx, tx); err != nil {
		return nil, domain.WrapExecutionError(domain.ErrKindLedgerUnavailable, "transaction record failed", err)
	}

	return succeeded(map[string]interface{}{
		"sold":           sellAmount,
		"current_return": currentReturn,
	}), nil
}

// strategyPositionValue resolves the current value of a user's position
// in a strategy by matching the strategy's protocol and asset against the
// portfolio snapshot.
func strategyPositionValue(ctx context.Context, ledger domain.Ledger, userID, strategyID string) (float64, error) {
	strategies, err := ledger.GetActiveStrategies(ctx, userID)
	if err != nil {
		return 0, domain.WrapExecutionError(domain.ErrKindLedgerUnavailable, "strategy lookup failed", err)
	}

	var strategy *domain.Strategy
	for i := range strategies {
		if strategies[i].ID == strategyID {
			strategy = &strategies[i]
			break
		}
	}
	if strategy == nil {
		return 0, domain.NewExecutionError(domain.ErrKindUnknownStrategy,
			fmt.Sprintf("strategy %q not active for user", strategyID))
	}

	portfolio, err := ledger.GetPortfolio(ctx, userID)
	if err != nil {
		return 0, domain.WrapExecutionError(domain.ErrKindLedgerUnavailable, "portfolio lookup failed", err)
	}

	var value float64
	for _, pos := range portfolio.Positions {
		if pos.Protocol == strategy.Protocol && pos.Asset == strategy.Asset {
			value += pos.Value
		}
	}
	return value, nil
}
