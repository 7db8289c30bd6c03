package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/helmfi/helm/internal/domain"
	"github.com/helmfi/helm/internal/modules/risk"
)

// StrategyExecutionHandler enters a strategy position on a schedule,
// gated by the configured conditions and an optional risk check.
type StrategyExecutionHandler struct {
	ledger   domain.Ledger
	assessor *risk.Assessor
}

// NewStrategyExecutionHandler creates the strategy-execution handler.
func NewStrategyExecutionHandler(ledger domain.Ledger, assessor *risk.Assessor) *StrategyExecutionHandler {
	return &StrategyExecutionHandler{ledger: ledger, assessor: assessor}
}

func (h *StrategyExecutionHandler) Type() Type { return TypeStrategyExecution }

func (h *StrategyExecutionHandler) Execute(ctx context.Context, a *Automation) (*Result, error) {
	params, ok := a.Params.(StrategyExecutionParams)
	if !ok {
		return nil, domain.NewExecutionError(domain.ErrKindInternal, "params do not match automation type")
	}

	if reason, ok := h.conditionsMet(ctx, a.UserID, params); !ok {
		return skipped(reason), nil
	}

	if params.RequireRiskCheck {
		portfolio, err := h.ledger.GetPortfolio(ctx, a.UserID)
		if err != nil {
			return nil, domain.WrapExecutionError(domain.ErrKindLedgerUnavailable, "portfolio lookup failed", err)
		}
		assessment, err := h.assessor.AssessPortfolioRisk(ctx, portfolio, params.Tolerance)
		if err != nil {
			return nil, domain.WrapExecutionError(domain.ErrKindInternal, "risk assessment failed", err)
		}
		if !assessment.IsWithinTolerance {
			return skipped(fmt.Sprintf("portfolio risk %.1f exceeds %s tolerance",
				assessment.OverallRiskScore, params.Tolerance)), nil
		}
	}

	balance, err := h.ledger.GetBalance(ctx, a.UserID)
	if err != nil {
		return nil, domain.WrapExecutionError(domain.ErrKindLedgerUnavailable, "balance lookup failed", err)
	}
	if balance.Available < params.Amount {
		return nil, domain.NewExecutionError(domain.ErrKindInsufficientFunds,
			fmt.Sprintf("available %.2f < entry %.2f", balance.Available, params.Amount))
	}

	err = h.ledger.CreditStrategy(ctx, a.UserID, params.StrategyID, params.Amount,
		map[string]string{"automation_id": a.ID})
	if err != nil {
		return nil, domain.WrapExecutionError(domain.ErrKindLedgerUnavailable, "strategy credit failed", err)
	}

	tx := domain.Transaction{
		UserID:     a.UserID,
		Kind:       domain.TxTrade,
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

// conditionsMet evaluates the opaque entry conditions. Conditions that
// cannot be verified (strategy not yet active) do not block the entry.
func (h *StrategyExecutionHandler) conditionsMet(ctx context.Context, userID string, params StrategyExecutionParams) (string, bool) {
	if params.Conditions.MinAPY <= 0 {
		return "", true
	}

	strategies, err := h.ledger.GetActiveStrategies(ctx, userID)
	if err != nil {
		return "", true
	}
	for _, s := range strategies {
		if s.ID == params.StrategyID && s.APY < params.Conditions.MinAPY {
			return fmt.Sprintf("strategy APY %.2f%% below minimum %.2f%%",
				s.APY*100, params.Conditions.MinAPY*100), false
		}
	}
	return "", true
}
