package automation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/helmfi/helm/internal/domain"
	"github.com/helmfi/helm/internal/modules/rebalancing"
)

// RebalancingHandler runs the advisor and executes its recommended
// actions. Action-level failures are collected, not fatal; remaining
// actions still run.
type RebalancingHandler struct {
	ledger  domain.Ledger
	advisor *rebalancing.Advisor
}

// NewRebalancingHandler creates the rebalancing handler.
func NewRebalancingHandler(ledger domain.Ledger, advisor *rebalancing.Advisor) *RebalancingHandler {
	return &RebalancingHandler{ledger: ledger, advisor: advisor}
}

func (h *RebalancingHandler) Type() Type { return TypeRebalancing }

func (h *RebalancingHandler) Execute(ctx context.Context, a *Automation) (*Result, error) {
	params, ok := a.Params.(RebalancingParams)
	if !ok {
		return nil, domain.NewExecutionError(domain.ErrKindInternal, "params do not match automation type")
	}

	portfolio, err := h.ledger.GetPortfolio(ctx, a.UserID)
	if err != nil {
		return nil, domain.WrapExecutionError(domain.ErrKindLedgerUnavailable, "portfolio lookup failed", err)
	}

	rec, err := h.advisor.GenerateRebalanceRecommendation(ctx, portfolio, params.Tolerance, params.TargetAllocations)
	if err != nil {
		return nil, domain.WrapExecutionError(domain.ErrKindInternal, "recommendation failed", err)
	}
	if !rec.NeedsRebalancing {
		return skipped(rec.Reason), nil
	}

	var executed, failed int
	var actionResults []map[string]interface{}
	for _, action := range rec.Actions {
		tx := domain.Transaction{
			UserID:    a.UserID,
			Kind:      domain.TxTrade,
			Amount:    math.Abs(action.ValueDifference),
			Asset:     action.Asset,
			Timestamp: time.Now(),
			Meta: map[string]string{
				"automation_id": a.ID,
				"direction":     action.Direction,
				"reason":        "rebalance",
			},
		}
		if err := h.ledger.AddTransaction(ctx, tx); err != nil {
			failed++
			actionResults = append(actionResults, map[string]interface{}{
				"asset": action.Asset, "ok": false, "error": err.Error(),
			})
			continue
		}
		executed++
		actionResults = append(actionResults, map[string]interface{}{
			"asset": action.Asset, "ok": true, "direction": action.Direction,
		})
	}

	if executed == 0 && failed > 0 {
		return nil, domain.NewExecutionError(domain.ErrKindLedgerUnavailable,
			fmt.Sprintf("all %d rebalance actions failed", failed))
	}

	return succeeded(map[string]interface{}{
		"actions_executed": executed,
		"actions_failed":   failed,
		"actions":          actionResults,
	}), nil
}
