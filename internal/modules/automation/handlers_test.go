package automation

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmfi/helm/internal/domain"
	"github.com/helmfi/helm/internal/modules/rebalancing"
	"github.com/helmfi/helm/internal/modules/risk"
)

func testAutomation(t Type, params Params) *Automation {
	return &Automation{ID: "auto-1", UserID: "u1", Type: t, Status: StatusActive, Params: params}
}

func TestDepositHandlerCreditsAvailable(t *testing.T) {
	ledger := newFakeLedger()
	ledger.available = 1000
	h := NewDepositHandler(ledger)

	result, err := h.Execute(context.Background(), testAutomation(TypeScheduledDeposit, DepositParams{Amount: 500}))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.Skipped)
	require.Len(t, ledger.transactions, 1)
	assert.Equal(t, domain.TxDeposit, ledger.transactions[0].Kind)
}

func TestDepositHandlerTargetsStrategy(t *testing.T) {
	ledger := newFakeLedger()
	ledger.available = 1000
	h := NewDepositHandler(ledger)

	_, err := h.Execute(context.Background(), testAutomation(TypeScheduledDeposit, DepositParams{Amount: 500, StrategyID: "aave-usdc"}))
	require.NoError(t, err)
	assert.Equal(t, 500.0, ledger.strategyCredits["aave-usdc"])
}

func TestDepositHandlerInsufficientFunds(t *testing.T) {
	ledger := newFakeLedger()
	ledger.available = 100
	h := NewDepositHandler(ledger)

	_, err := h.Execute(context.Background(), testAutomation(TypeScheduledDeposit, DepositParams{Amount: 500}))
	require.Error(t, err)
	assert.Equal(t, domain.ErrKindInsufficientFunds, domain.ExecutionKind(err))
	assert.Empty(t, ledger.transactions)
}

func TestStrategyHandlerRiskGateSkips(t *testing.T) {
	ledger := newFakeLedger()
	ledger.available = 10000
	// All-in on a volatile asset fails a conservative risk check.
	ledger.portfolio = domain.Portfolio{
		UserID: "u1", TotalValue: 50000,
		Positions: []domain.Position{{Asset: "ETH", Value: 50000}},
	}
	assessor := risk.NewAssessor(testMarket{}, healthyDirectory{}, nil, zerolog.Nop())
	h := NewStrategyExecutionHandler(ledger, assessor)

	params := StrategyExecutionParams{
		StrategyID: "aave-usdc", Amount: 1000,
		RequireRiskCheck: true, Tolerance: domain.ToleranceConservative,
	}
	result, err := h.Execute(context.Background(), testAutomation(TypeStrategyExecution, params))
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Empty(t, ledger.strategyCredits)
}

func TestStrategyHandlerExecutesWithinTolerance(t *testing.T) {
	ledger := newFakeLedger()
	ledger.available = 10000
	ledger.portfolio = domain.Portfolio{
		UserID: "u1", TotalValue: 50000,
		Positions: []domain.Position{{Asset: "USDC", Value: 50000}},
	}
	assessor := risk.NewAssessor(testMarket{}, healthyDirectory{}, nil, zerolog.Nop())
	h := NewStrategyExecutionHandler(ledger, assessor)

	params := StrategyExecutionParams{
		StrategyID: "aave-usdc", Amount: 1000,
		RequireRiskCheck: true, Tolerance: domain.ToleranceConservative,
	}
	result, err := h.Execute(context.Background(), testAutomation(TypeStrategyExecution, params))
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 1000.0, ledger.strategyCredits["aave-usdc"])
}

func TestStrategyHandlerAPYConditionSkips(t *testing.T) {
	ledger := newFakeLedger()
	ledger.available = 10000
	ledger.strategies = []domain.Strategy{
		{ID: "aave-usdc", Protocol: "aave-v3", Asset: "USDC", APY: 0.03, Active: true},
	}
	assessor := risk.NewAssessor(testMarket{}, healthyDirectory{}, nil, zerolog.Nop())
	h := NewStrategyExecutionHandler(ledger, assessor)

	params := StrategyExecutionParams{
		StrategyID: "aave-usdc", Amount: 1000,
		Conditions: Conditions{MinAPY: 0.05},
	}
	result, err := h.Execute(context.Background(), testAutomation(TypeStrategyExecution, params))
	require.NoError(t, err)
	assert.True(t, result.Skipped)
}

func TestRebalancingHandlerSkipsWhenBalanced(t *testing.T) {
	ledger := newFakeLedger()
	ledger.portfolio = domain.Portfolio{
		UserID: "u1", TotalValue: 10000,
		Positions: []domain.Position{{Asset: "USDC", Value: 10000}},
	}
	assessor := risk.NewAssessor(testMarket{}, healthyDirectory{}, nil, zerolog.Nop())
	advisor := rebalancing.NewAdvisor(assessor, zerolog.Nop())
	h := NewRebalancingHandler(ledger, advisor)

	result, err := h.Execute(context.Background(),
		testAutomation(TypeRebalancing, RebalancingParams{Tolerance: domain.ToleranceBalanced}))
	require.NoError(t, err)
	assert.True(t, result.Skipped)
}

func TestRebalancingHandlerExecutesActions(t *testing.T) {
	ledger := newFakeLedger()
	ledger.portfolio = domain.Portfolio{
		UserID: "u1", TotalValue: 50000,
		Positions: []domain.Position{{Asset: "ETH", Value: 50000}},
	}
	assessor := risk.NewAssessor(testMarket{}, healthyDirectory{}, nil, zerolog.Nop())
	advisor := rebalancing.NewAdvisor(assessor, zerolog.Nop())
	h := NewRebalancingHandler(ledger, advisor)

	result, err := h.Execute(context.Background(),
		testAutomation(TypeRebalancing, RebalancingParams{Tolerance: domain.ToleranceConservative}))
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.NotEmpty(t, ledger.transactions)
	assert.Equal(t, 0, result.Data["actions_failed"])
}

func TestTakeProfitHandlerBelowTargetSkips(t *testing.T) {
	ledger := newFakeLedger()
	ledger.strategies = []domain.Strategy{{ID: "s1", Protocol: "aave-v3", Asset: "ETH", Active: true}}
	ledger.portfolio = domain.Portfolio{
		UserID: "u1", TotalValue: 10500,
		Positions: []domain.Position{{Asset: "ETH", Protocol: "aave-v3", Value: 10500}},
	}
	h := NewTakeProfitHandler(ledger)

	params := TakeProfitParams{StrategyID: "s1", BaselineValue: 10000, TargetReturn: 0.20, SellPercentage: 0.5}
	result, err := h.Execute(context.Background(), testAutomation(TypeTakeProfit, params))
	require.NoError(t, err)
	assert.True(t, result.Skipped)
}

func TestTakeProfitHandlerSellsAtTarget(t *testing.T) {
	ledger := newFakeLedger()
	ledger.strategies = []domain.Strategy{{ID: "s1", Protocol: "aave-v3", Asset: "ETH", Active: true}}
	ledger.portfolio = domain.Portfolio{
		UserID: "u1", TotalValue: 13000,
		Positions: []domain.Position{{Asset: "ETH", Protocol: "aave-v3", Value: 13000}},
	}
	h := NewTakeProfitHandler(ledger)

	params := TakeProfitParams{StrategyID: "s1", BaselineValue: 10000, TargetReturn: 0.20, SellPercentage: 0.5}
	result, err := h.Execute(context.Background(), testAutomation(TypeTakeProfit, params))
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 6500.0, ledger.strategyDebits["s1"])
}

func TestTakeProfitHandlerUnknownStrategy(t *testing.T) {
	ledger := newFakeLedger()
	h := NewTakeProfitHandler(ledger)

	params := TakeProfitParams{StrategyID: "nope", BaselineValue: 10000, TargetReturn: 0.20, SellPercentage: 0.5}
	_, err := h.Execute(context.Background(), testAutomation(TypeTakeProfit, params))
	require.Error(t, err)
	assert.Equal(t, domain.ErrKindUnknownStrategy, domain.ExecutionKind(err))
}

func TestStopLossHandlerSellsOnLoss(t *testing.T) {
	ledger := newFakeLedger()
	ledger.strategies = []domain.Strategy{{ID: "s1", Protocol: "aave-v3", Asset: "ETH", Active: true}}
	ledger.portfolio = domain.Portfolio{
		UserID: "u1", TotalValue: 8000,
		Positions: []domain.Position{{Asset: "ETH", Protocol: "aave-v3", Value: 8000}},
	}
	h := NewStopLossHandler(ledger)

	params := StopLossParams{StrategyID: "s1", BaselineValue: 10000, MaxLoss: 0.15, SellPercentage: 1.0}
	result, err := h.Execute(context.Background(), testAutomation(TypeStopLoss, params))
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 8000.0, ledger.strategyDebits["s1"])
}

func TestStopLossHandlerHoldsAboveStop(t *testing.T) {
	ledger := newFakeLedger()
	ledger.strategies = []domain.Strategy{{ID: "s1", Protocol: "aave-v3", Asset: "ETH", Active: true}}
	ledger.portfolio = domain.Portfolio{
		UserID: "u1", TotalValue: 9500,
		Positions: []domain.Position{{Asset: "ETH", Protocol: "aave-v3", Value: 9500}},
	}
	h := NewStopLossHandler(ledger)

	params := StopLossParams{StrategyID: "s1", BaselineValue: 10000, MaxLoss: 0.15, SellPercentage: 1.0}
	result, err := h.Execute(context.Background(), testAutomation(TypeStopLoss, params))
	require.NoError(t, err)
	assert.True(t, result.Skipped)
}

func TestHarvestHandlerAggregates(t *testing.T) {
	ledger := newFakeLedger()
	ledger.harvests["s1"] = 50
	ledger.harvests["s2"] = 5
	ledger.harvests["s3"] = 120
	h := NewYieldHarvestHandler(ledger)

	params := HarvestParams{StrategyIDs: []string{"s1", "s2", "s3"}, MinHarvestAmount: 10}
	result, err := h.Execute(context.Background(), testAutomation(TypeYieldHarvest, params))
	require.NoError(t, err)

	assert.Equal(t, 170.0, result.Data["total_harvested"])
	assert.Equal(t, 2, result.Data["harvested"])
	assert.Equal(t, 1, result.Data["below_minimum"])
	// One harvest transaction per strategy above the minimum.
	assert.Len(t, ledger.transactions, 2)
}

func TestHarvestHandlerDefaultsToActiveStrategies(t *testing.T) {
	ledger := newFakeLedger()
	ledger.strategies = []domain.Strategy{{ID: "s1", Active: true}}
	ledger.harvests["s1"] = 40
	h := NewYieldHarvestHandler(ledger)

	result, err := h.Execute(context.Background(), testAutomation(TypeYieldHarvest, HarvestParams{}))
	require.NoError(t, err)
	assert.Equal(t, 40.0, result.Data["total_harvested"])
}

func TestHarvestHandlerNoStrategiesSkips(t *testing.T) {
	ledger := newFakeLedger()
	h := NewYieldHarvestHandler(ledger)

	result, err := h.Execute(context.Background(), testAutomation(TypeYieldHarvest, HarvestParams{}))
	require.NoError(t, err)
	assert.True(t, result.Skipped)
}
