package automation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmfi/helm/internal/domain"
)

func TestParamsValidation(t *testing.T) {
	cases := []struct {
		name   string
		params Params
		valid  bool
	}{
		{"deposit ok", DepositParams{Amount: 100}, true},
		{"deposit zero amount", DepositParams{}, false},
		{"strategy ok", StrategyExecutionParams{StrategyID: "s1", Amount: 50}, true},
		{"strategy missing id", StrategyExecutionParams{Amount: 50}, false},
		{"strategy risk check without tolerance", StrategyExecutionParams{StrategyID: "s1", Amount: 50, RequireRiskCheck: true}, false},
		{"rebalancing ok", RebalancingParams{Tolerance: domain.ToleranceBalanced}, true},
		{"rebalancing bad weight", RebalancingParams{Tolerance: domain.ToleranceBalanced, TargetAllocations: map[string]float64{"BTC": 1.5}}, false},
		{"rebalancing weights over one", RebalancingParams{Tolerance: domain.ToleranceBalanced, TargetAllocations: map[string]float64{"BTC": 0.7, "ETH": 0.7}}, false},
		{"take profit ok", TakeProfitParams{StrategyID: "s1", BaselineValue: 1000, TargetReturn: 0.2, SellPercentage: 0.5}, true},
		{"take profit bad sell pct", TakeProfitParams{StrategyID: "s1", BaselineValue: 1000, TargetReturn: 0.2, SellPercentage: 1.5}, false},
		{"stop loss ok", StopLossParams{StrategyID: "s1", BaselineValue: 1000, MaxLoss: 0.1, SellPercentage: 1}, true},
		{"stop loss zero baseline", StopLossParams{StrategyID: "s1", MaxLoss: 0.1, SellPercentage: 1}, false},
		{"harvest ok", HarvestParams{MinHarvestAmount: 10}, true},
		{"harvest negative minimum", HarvestParams{MinHarvestAmount: -1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.params.Validate()
			if tc.valid {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, domain.IsValidationError(err))
			}
		})
	}
}

func TestUnmarshalParamsByType(t *testing.T) {
	got, err := UnmarshalParams(TypeScheduledDeposit, []byte(`{"amount": 250, "strategy_id": "s1"}`))
	require.NoError(t, err)
	assert.Equal(t, DepositParams{Amount: 250, StrategyID: "s1"}, got)

	_, err = UnmarshalParams(Type("teleport"), []byte(`{}`))
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))

	_, err = UnmarshalParams(TypeScheduledDeposit, nil)
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))
}

func TestAutomationJSONResolvesParams(t *testing.T) {
	in := `{
		"id": "a1",
		"user_id": "u1",
		"type": "yield_harvest",
		"status": "active",
		"params": {"strategy_ids": ["s1", "s2"], "min_harvest_amount": 25}
	}`

	var a Automation
	require.NoError(t, json.Unmarshal([]byte(in), &a))
	assert.Equal(t, HarvestParams{StrategyIDs: []string{"s1", "s2"}, MinHarvestAmount: 25}, a.Params)

	out, err := json.Marshal(&a)
	require.NoError(t, err)

	var again Automation
	require.NoError(t, json.Unmarshal(out, &again))
	assert.Equal(t, a.Params, again.Params)
}
