// Package rebalancing turns risk assessments into concrete rebalance
// recommendations with per-action cost and benefit estimates.
package rebalancing

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/helmfi/helm/internal/domain"
	"github.com/helmfi/helm/internal/modules/risk"
)

// RebalanceThreshold is the weight deviation that triggers rebalancing.
const RebalanceThreshold = 0.05

// minActionValue is the smallest trade worth emitting. Moves under this
// cost more in execution than they recover in drift.
const minActionValue = 100.0

// Action directions and priorities.
const (
	DirectionIncrease = "increase"
	DirectionDecrease = "decrease"

	PriorityHigh   = "high"
	PriorityMedium = "medium"
)

// Action is one suggested trade.
type Action struct {
	Asset           string  `json:"asset"`
	Direction       string  `json:"direction"`
	CurrentWeight   float64 `json:"current_weight"`
	TargetWeight    float64 `json:"target_weight"`
	ValueDifference float64 `json:"value_difference"`
	Priority        string  `json:"priority"`
}

// CostBenefit estimates whether the rebalance pays for itself.
// PaybackMonths is nil when the benefit is zero or negative.
type CostBenefit struct {
	EstimatedCost    float64  `json:"estimated_cost"`
	EstimatedBenefit float64  `json:"estimated_benefit"`
	NetBenefit       float64  `json:"net_benefit"`
	PaybackMonths    *float64 `json:"payback_months,omitempty"`
}

// Recommendation is the advisor's full output for one portfolio.
type Recommendation struct {
	NeedsRebalancing  bool               `json:"needs_rebalancing"`
	Reason            string             `json:"reason"`
	RiskAssessment    *risk.Assessment   `json:"risk_assessment"`
	TargetAllocations map[string]float64 `json:"target_allocations,omitempty"`
	Actions           []Action           `json:"actions,omitempty"`
	CostBenefit       *CostBenefit       `json:"cost_benefit,omitempty"`
	GeneratedAt       time.Time          `json:"generated_at"`
}

// Advisor generates rebalance recommendations.
type Advisor struct {
	assessor *risk.Assessor
	log      zerolog.Logger
}

// NewAdvisor creates a rebalance advisor.
func NewAdvisor(assessor *risk.Assessor, log zerolog.Logger) *Advisor {
	return &Advisor{
		assessor: assessor,
		log:      log.With().Str("component", "rebalancing").Logger(),
	}
}

// GenerateRebalanceRecommendation decides whether a portfolio needs
// rebalancing and, if so, which trades to make. targetAllocations is
// optional; when empty, targets come from the tolerance profile's
// preferred assets.
func (a *Advisor) GenerateRebalanceRecommendation(ctx context.Context, portfolio domain.Portfolio, tolerance domain.RiskTolerance, targetAllocations map[string]float64) (*Recommendation, error) {
	profile, err := risk.ProfileFor(tolerance)
	if err != nil {
		return nil, err
	}

	assessment, err := a.assessor.AssessPortfolioRisk(ctx, portfolio, tolerance)
	if err != nil {
		return nil, err
	}

	needs, reason := a.needsRebalancing(portfolio, assessment, targetAllocations)
	rec := &Recommendation{
		NeedsRebalancing: needs,
		Reason:           reason,
		RiskAssessment:   assessment,
		GeneratedAt:      time.Now(),
	}
	if !needs {
		return rec, nil
	}

	targets := targetAllocations
	if len(targets) == 0 {
		targets = OptimalAllocation(profile)
	}
	rec.TargetAllocations = targets
	rec.Actions = a.buildActions(portfolio, targets)
	rec.CostBenefit = costBenefit(rec.Actions)

	a.log.Debug().
		Str("user_id", portfolio.UserID).
		Int("actions", len(rec.Actions)).
		Float64("net_benefit", rec.CostBenefit.NetBenefit).
		Msg("Generated rebalance recommendation")

	return rec, nil
}

func (a *Advisor) needsRebalancing(portfolio domain.Portfolio, assessment *risk.Assessment, targets map[string]float64) (bool, string) {
	if !assessment.IsWithinTolerance {
		return true, "portfolio risk exceeds tolerance"
	}
	for asset, target := range targets {
		if math.Abs(portfolio.Weight(asset)-target) > RebalanceThreshold {
			return true, "allocation drift exceeds threshold"
		}
	}
	return false, "portfolio within tolerance and allocation targets"
}

// OptimalAllocation greedily spreads weight across the profile's
// preferred assets. Each pass splits the remaining weight evenly across
// assets that still have headroom under the single-asset cap; whatever
// cannot be placed stays unallocated (cash).
func OptimalAllocation(profile risk.Profile) map[string]float64 {
	targets := make(map[string]float64, len(profile.PreferredAssets))
	remaining := 1.0

	for remaining > 1e-9 {
		open := 0
		for _, asset := range profile.PreferredAssets {
			if targets[asset] < profile.MaxSingleAssetWeight-1e-9 {
				open++
			}
		}
		if open == 0 {
			break
		}

		share := remaining / float64(open)
		for _, asset := range profile.PreferredAssets {
			headroom := profile.MaxSingleAssetWeight - targets[asset]
			if headroom <= 1e-9 {
				continue
			}
			take := math.Min(share, headroom)
			targets[asset] += take
			remaining -= take
		}
	}

	return targets
}

func (a *Advisor) buildActions(portfolio domain.Portfolio, targets map[string]float64) []Action {
	// Assets held but absent from the targets are rebalanced out.
	all := make(map[string]float64, len(targets))
	for asset, w := range targets {
		all[asset] = w
	}
	for asset := range portfolio.AssetValues() {
		if _, ok := all[asset]; !ok {
			all[asset] = 0
		}
	}

	actions := make([]Action, 0, len(all))
	for asset, target := range all {
		current := portfolio.Weight(asset)
		diff := target - current
		valueDiff := diff * portfolio.TotalValue
		if math.Abs(valueDiff) <= minActionValue {
			continue
		}

		direction := DirectionIncrease
		if valueDiff < 0 {
			direction = DirectionDecrease
		}
		priority := PriorityMedium
		if math.Abs(diff) > 2*RebalanceThreshold {
			priority = PriorityHigh
		}

		actions = append(actions, Action{
			Asset:           asset,
			Direction:       direction,
			CurrentWeight:   current,
			TargetWeight:    target,
			ValueDifference: valueDiff,
			Priority:        priority,
		})
	}

	sort.Slice(actions, func(i, j int) bool {
		return math.Abs(actions[i].ValueDifference) > math.Abs(actions[j].ValueDifference)
	})
	return actions
}

// costBenefit estimates execution cost per action (log-scaled with trade
// size) against a 1%-of-moved-value drift benefit. Moved value counts
// only the increase side: every buy is funded by a matching sell, so
// summing both directions would double-count each move. Cost is charged
// per action since both sides incur execution fees.
func costBenefit(actions []Action) *CostBenefit {
	var cost, moved float64
	for _, action := range actions {
		size := math.Abs(action.ValueDifference)
		cost += 1.0 + 2.5*math.Log1p(size/1000)
		if action.Direction == DirectionIncrease {
			moved += size
		}
	}

	benefit := 0.01 * moved
	cb := &CostBenefit{
		EstimatedCost:    cost,
		EstimatedBenefit: benefit,
		NetBenefit:       benefit - cost,
	}
	if benefit > 0 {
		payback := cost / (benefit / 12)
		cb.PaybackMonths = &payback
	}
	return cb
}
