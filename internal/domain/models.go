// Package domain provides core domain models and types.
package domain

import "time"

// RiskTolerance is a named risk appetite. Each tolerance maps to a static
// risk profile (thresholds, preferred assets) in the risk module.
type RiskTolerance string

const (
	ToleranceConservative   RiskTolerance = "conservative"
	ToleranceModerate       RiskTolerance = "moderate"
	ToleranceBalanced       RiskTolerance = "balanced"
	ToleranceAggressive     RiskTolerance = "aggressive"
	ToleranceVeryAggressive RiskTolerance = "very_aggressive"
)

// KnownTolerances lists all valid risk tolerances.
func KnownTolerances() []RiskTolerance {
	return []RiskTolerance{
		ToleranceConservative,
		ToleranceModerate,
		ToleranceBalanced,
		ToleranceAggressive,
		ToleranceVeryAggressive,
	}
}

// RiskLevel buckets a composite risk score for display and gating.
type RiskLevel string

const (
	RiskVeryLow  RiskLevel = "very_low"
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very_high"
)

// Position represents a single portfolio position: an asset held either
// directly (empty Protocol) or deployed into a yield protocol.
type Position struct {
	Asset    string  `json:"asset"`
	Protocol string  `json:"protocol,omitempty"`
	Value    float64 `json:"value"`
}

// Portfolio is a read-only snapshot supplied by the Ledger. This subsystem
// never mutates it; all financial state changes go through the Ledger.
type Portfolio struct {
	UserID     string     `json:"user_id"`
	TotalValue float64    `json:"total_value"`
	Positions  []Position `json:"positions"`
	AsOf       time.Time  `json:"as_of"`
}

// Weight returns the fraction of total value held in the given asset.
func (p Portfolio) Weight(asset string) float64 {
	if p.TotalValue <= 0 {
		return 0
	}
	var v float64
	for _, pos := range p.Positions {
		if pos.Asset == asset {
			v += pos.Value
		}
	}
	return v / p.TotalValue
}

// AssetValues aggregates position values per asset.
func (p Portfolio) AssetValues() map[string]float64 {
	out := make(map[string]float64, len(p.Positions))
	for _, pos := range p.Positions {
		out[pos.Asset] += pos.Value
	}
	return out
}

// Balance is a user's ledger balance.
type Balance struct {
	UserID    string  `json:"user_id"`
	Available float64 `json:"available"`
	Total     float64 `json:"total"`
}

// TransactionKind classifies ledger transactions.
type TransactionKind string

const (
	TxDeposit    TransactionKind = "deposit"
	TxWithdrawal TransactionKind = "withdrawal"
	TxTrade      TransactionKind = "trade"
	TxHarvest    TransactionKind = "harvest"
	TxFee        TransactionKind = "fee"
)

// Transaction is a ledger entry. Deposits and withdrawals move value
// between the user's external world and the portfolio; trades and harvests
// move value inside it.
type Transaction struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	Kind       TransactionKind   `json:"kind"`
	Amount     float64           `json:"amount"`
	Asset      string            `json:"asset,omitempty"`
	StrategyID string            `json:"strategy_id,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Meta       map[string]string `json:"meta,omitempty"`
}

// Strategy is a yield-bearing strategy a user can deploy funds into.
type Strategy struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Protocol string  `json:"protocol"`
	Asset    string  `json:"asset"`
	APY      float64 `json:"apy"`
	Active   bool    `json:"active"`
}

// ProtocolHealth describes the current state of a yield protocol as
// reported by the protocol directory. RiskScore is 0-100; higher is
// riskier. An unhealthy protocol overrides its nominal score.
type ProtocolHealth struct {
	ProtocolID string  `json:"protocol_id"`
	Healthy    bool    `json:"healthy"`
	RiskScore  float64 `json:"risk_score"`
}
