// Package stress simulates adverse market scenarios against portfolio
// snapshots. Scenarios are static catalogs of multiplicative impact
// factors; the tester applies them position by position.
package stress

// Scenario defines one stress scenario. Impact factors multiply position
// value (0.55 means the position loses 45%). Assets and protocols absent
// from the maps fall back to DefaultImpact for assets and no impact for
// positions held outside a protocol.
type Scenario struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Description       string             `json:"description"`
	AssetImpacts      map[string]float64 `json:"asset_impacts"`
	ProtocolImpacts   map[string]float64 `json:"protocol_impacts"`
	DefaultImpact     float64            `json:"default_impact"`
	MaxAcceptableLoss float64            `json:"max_acceptable_loss"` // percent
	Remediation       string             `json:"remediation"`
}

var scenarioCatalog = map[string]Scenario{
	"market_crash": {
		ID:          "market_crash",
		Name:        "Market Crash",
		Description: "Broad crypto sell-off on the scale of May 2021 or November 2022",
		AssetImpacts: map[string]float64{
			"BTC": 0.55, "ETH": 0.50, "SOL": 0.40, "AVAX": 0.40,
			"LINK": 0.45, "UNI": 0.40, "AAVE": 0.45,
			"USDC": 0.98, "USDT": 0.96, "DAI": 0.97,
		},
		ProtocolImpacts: map[string]float64{
			"aave-v3": 0.95, "compound-v3": 0.95, "lido": 0.90,
			"curve": 0.92, "yearn": 0.88,
		},
		DefaultImpact:     0.65,
		MaxAcceptableLoss: 35,
		Remediation:       "Increase stablecoin allocation to cushion broad market drawdowns",
	},
	"high_volatility": {
		ID:          "high_volatility",
		Name:        "High Volatility",
		Description: "Sustained elevated volatility with 20-30% swings and deleveraging",
		AssetImpacts: map[string]float64{
			"BTC": 0.80, "ETH": 0.78, "SOL": 0.70, "AVAX": 0.70,
			"LINK": 0.75, "UNI": 0.72, "AAVE": 0.74,
			"USDC": 1.0, "USDT": 0.99, "DAI": 0.99,
		},
		ProtocolImpacts: map[string]float64{
			"aave-v3": 0.98, "compound-v3": 0.98, "lido": 0.95,
			"curve": 0.96, "yearn": 0.93,
		},
		DefaultImpact:     0.85,
		MaxAcceptableLoss: 20,
		Remediation:       "Reduce exposure to high-beta assets and leveraged yield positions",
	},
	"liquidity_crisis": {
		ID:          "liquidity_crisis",
		Name:        "Liquidity Crisis",
		Description: "DeFi liquidity crunch with thin books, exit queues and stablecoin stress",
		AssetImpacts: map[string]float64{
			"BTC": 0.90, "ETH": 0.88, "SOL": 0.75, "AVAX": 0.72,
			"LINK": 0.78, "UNI": 0.70, "AAVE": 0.72,
			"USDC": 0.95, "USDT": 0.90, "DAI": 0.93,
		},
		ProtocolImpacts: map[string]float64{
			"aave-v3": 0.90, "compound-v3": 0.90, "lido": 0.80,
			"curve": 0.75, "yearn": 0.70,
		},
		DefaultImpact:     0.75,
		MaxAcceptableLoss: 25,
		Remediation:       "Favor deeply liquid assets and protocols with instant withdrawal paths",
	},
}

// KnownScenarios lists the scenario IDs in a stable order.
func KnownScenarios() []string {
	return []string{"market_crash", "high_volatility", "liquidity_crisis"}
}

func (s Scenario) assetImpact(asset string) float64 {
	if v, ok := s.AssetImpacts[asset]; ok {
		return v
	}
	return s.DefaultImpact
}

func (s Scenario) protocolImpact(protocol string) float64 {
	if protocol == "" {
		return 1.0
	}
	if v, ok := s.ProtocolImpacts[protocol]; ok {
		return v
	}
	return s.DefaultImpact
}
