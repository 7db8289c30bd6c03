package automation

import (
	"encoding/json"
	"fmt"

	"github.com/helmfi/helm/internal/domain"
)

// Params is the type-specific payload of an automation. The concrete
// type always matches the automation's Type.
type Params interface {
	Kind() Type
	Validate() error
}

// DepositParams configures a scheduled deposit. An empty StrategyID
// credits the available balance instead of a strategy.
type DepositParams struct {
	Amount     float64 `json:"amount"`
	StrategyID string  `json:"strategy_id,omitempty"`
}

func (DepositParams) Kind() Type { return TypeScheduledDeposit }

func (p DepositParams) Validate() error {
	if p.Amount <= 0 {
		return &domain.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	return nil
}

// Conditions gate a strategy execution. Zero values impose no constraint.
type Conditions struct {
	MinAPY       float64 `json:"min_apy,omitempty"`
	MaxRiskScore float64 `json:"max_risk_score,omitempty"`
}

// StrategyExecutionParams configures a recurring strategy entry.
type StrategyExecutionParams struct {
	StrategyID       string               `json:"strategy_id"`
	Amount           float64              `json:"amount"`
	Conditions       Conditions           `json:"conditions,omitempty"`
	RequireRiskCheck bool                 `json:"require_risk_check,omitempty"`
	Tolerance        domain.RiskTolerance `json:"tolerance,omitempty"`
}

func (StrategyExecutionParams) Kind() Type { return TypeStrategyExecution }

func (p StrategyExecutionParams) Validate() error {
	if p.StrategyID == "" {
		return &domain.ValidationError{Field: "strategy_id", Reason: "is required"}
	}
	if p.Amount <= 0 {
		return &domain.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if p.RequireRiskCheck && p.Tolerance == "" {
		return &domain.ValidationError{Field: "tolerance", Reason: "is required when risk check is enabled"}
	}
	return nil
}

// RebalancingParams configures automated rebalancing. TargetAllocations
// is optional; when empty the tolerance profile drives the targets.
type RebalancingParams struct {
	Tolerance         domain.RiskTolerance `json:"tolerance"`
	TargetAllocations map[string]float64   `json:"target_allocations,omitempty"`
}

func (RebalancingParams) Kind() Type { return TypeRebalancing }

func (p RebalancingParams) Validate() error {
	if p.Tolerance == "" {
		return &domain.ValidationError{Field: "tolerance", Reason: "is required"}
	}
	var total float64
	for asset, w := range p.TargetAllocations {
		if w < 0 || w > 1 {
			return &domain.ValidationError{Field: "target_allocations", Reason: fmt.Sprintf("weight for %s must be in [0,1]", asset)}
		}
		total += w
	}
	if total > 1+1e-9 {
		return &domain.ValidationError{Field: "target_allocations", Reason: "weights must not exceed 1"}
	}
	return nil
}

// TakeProfitParams sells part of a strategy position once its return
// since BaselineValue reaches TargetReturn.
type TakeProfitParams struct {
	StrategyID     string  `json:"strategy_id"`
	BaselineValue  float64 `json:"baseline_value"`
	TargetReturn   float64 `json:"target_return"`   // decimal, e.g. 0.2 = +20%
	SellPercentage float64 `json:"sell_percentage"` // fraction of position
}

func (TakeProfitParams) Kind() Type { return TypeTakeProfit }

func (p TakeProfitParams) Validate() error {
	if p.StrategyID == "" {
		return &domain.ValidationError{Field: "strategy_id", Reason: "is required"}
	}
	if p.BaselineValue <= 0 {
		return &domain.ValidationError{Field: "baseline_value", Reason: "must be positive"}
	}
	if p.TargetReturn <= 0 {
		return &domain.ValidationError{Field: "target_return", Reason: "must be positive"}
	}
	if p.SellPercentage <= 0 || p.SellPercentage > 1 {
		return &domain.ValidationError{Field: "sell_percentage", Reason: "must be in (0,1]"}
	}
	return nil
}

// StopLossParams exits part of a strategy position once its loss since
// BaselineValue reaches MaxLoss.
type StopLossParams struct {
	StrategyID     string  `json:"strategy_id"`
	BaselineValue  float64 `json:"baseline_value"`
	MaxLoss        float64 `json:"max_loss"` // decimal, e.g. 0.15 = -15%
	SellPercentage float64 `json:"sell_percentage"`
}

func (StopLossParams) Kind() Type { return TypeStopLoss }

func (p StopLossParams) Validate() error {
	if p.StrategyID == "" {
		return &domain.ValidationError{Field: "strategy_id", Reason: "is required"}
	}
	if p.BaselineValue <= 0 {
		return &domain.ValidationError{Field: "baseline_value", Reason: "must be positive"}
	}
	if p.MaxLoss <= 0 {
		return &domain.ValidationError{Field: "max_loss", Reason: "must be positive"}
	}
	if p.SellPercentage <= 0 || p.SellPercentage > 1 {
		return &domain.ValidationError{Field: "sell_percentage", Reason: "must be in (0,1]"}
	}
	return nil
}

// HarvestParams configures yield harvesting across strategies. An empty
// StrategyIDs harvests every active strategy.
type HarvestParams struct {
	StrategyIDs      []string `json:"strategy_ids,omitempty"`
	MinHarvestAmount float64  `json:"min_harvest_amount,omitempty"`
}

func (HarvestParams) Kind() Type { return TypeYieldHarvest }

func (p HarvestParams) Validate() error {
	if p.MinHarvestAmount < 0 {
		return &domain.ValidationError{Field: "min_harvest_amount", Reason: "must not be negative"}
	}
	return nil
}

// UnmarshalParams decodes a params payload for the given automation
// type.
func UnmarshalParams(t Type, data []byte) (Params, error) {
	if len(data) == 0 {
		return nil, &domain.ValidationError{Field: "params", Reason: "are required"}
	}

	var p Params
	switch t {
	case TypeScheduledDeposit:
		p = &DepositParams{}
	case TypeStrategyExecution:
		p = &StrategyExecutionParams{}
	case TypeRebalancing:
		p = &RebalancingParams{}
	case TypeTakeProfit:
		p = &TakeProfitParams{}
	case TypeStopLoss:
		p = &StopLossParams{}
	case TypeYieldHarvest:
		p = &HarvestParams{}
	default:
		return nil, &domain.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown automation type %q", t)}
	}

	if err := json.Unmarshal(data, p); err != nil {
		return nil, &domain.ValidationError{Field: "params", Reason: "malformed: " + err.Error()}
	}
	return deref(p), nil
}

// deref returns the value form so stored and in-memory params compare
// equal.
func deref(p Params) Params {
	switch v := p.(type) {
	case *DepositParams:
		return *v
	case *StrategyExecutionParams:
		return *v
	case *RebalancingParams:
		return *v
	case *TakeProfitParams:
		return *v
	case *StopLossParams:
		return *v
	case *HarvestParams:
		return *v
	default:
		return p
	}
}

// UnmarshalJSON decodes an automation, resolving the params payload
// against the declared type.
func (a *Automation) UnmarshalJSON(data []byte) error {
	type alias Automation
	aux := struct {
		*alias
		Params json.RawMessage `json:"params"`
	}{alias: (*alias)(a)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if len(aux.Params) > 0 {
		params, err := UnmarshalParams(a.Type, aux.Params)
		if err != nil {
			return err
		}
		a.Params = params
	}
	return nil
}
