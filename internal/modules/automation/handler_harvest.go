package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/helmfi/helm/internal/domain"
)

// YieldHarvestHandler claims accrued rewards across strategies. Harvests
// under the configured minimum are skipped, not failed.
type YieldHarvestHandler struct {
	ledger domain.Ledger
}

// NewYieldHarvestHandler creates the yield-harvest handler.
func NewYieldHarvestHandler(ledger domain.Ledger) *YieldHarvestHandler {
	return &YieldHarvestHandler{ledger: ledger}
}

func (h *YieldHarvestHandler) Type() Type { return TypeYieldHarvest }

func (h *YieldHarvestHandler) Execute(ctx context.Context, a *Automation) (*Result, error) {
	params, ok := a.Params.(HarvestParams)
	if !ok {
		return nil, domain.NewExecutionError(domain.ErrKindInternal, "params do not match automation type")
	}

	ids := params.StrategyIDs
	if len(ids) == 0 {
		strategies, err := h.ledger.GetActiveStrategies(ctx, a.UserID)
		if err != nil {
			return nil, domain.WrapExecutionError(domain.ErrKindLedgerUnavailable, "strategy lookup failed", err)
		}
		for _, s := range strategies {
			ids = append(ids, s.ID)
		}
	}
	if len(ids) == 0 {
		return skipped("no active strategies to harvest"), nil
	}

	var total float64
	var harvested, belowMinimum, failed int
	for _, id := range ids {
		amount, err := h.ledger.Harvest(ctx, a.UserID, id)
		if err != nil {
			failed++
			continue
		}
		if amount < params.MinHarvestAmount {
			belowMinimum++
			continue
		}

		tx := domain.Transaction{
			UserID:     a.UserID,
			Kind:       domain.TxHarvest,
			Amount:     amount,
			StrategyID: id,
			Timestamp:  time.Now(),
			Meta:       map[string]string{"automation_id": a.ID},
		}
		if err := h.ledger.AddTransaction(ctx, tx); err != nil {
			failed++
			continue
		}
		total += amount
		harvested++
	}

	if harvested == 0 && failed > 0 && belowMinimum == 0 {
		return nil, domain.NewExecutionError(domain.ErrKindLedgerUnavailable,
			fmt.Sprintf("all %d harvests failed", failed))
	}
	if harvested == 0 {
		return skipped("no harvests above minimum amount"), nil
	}

	return succeeded(map[string]interface{}{
		"total_harvested": total,
		"harvested":       harvested,
		"below_minimum":   belowMinimum,
		"failed":          failed,
	}), nil
}
