// Package market supplies asset statistics, benchmark tables and price
// data to the risk and performance modules. Statistics are static,
// slowly-changing reference data; live prices arrive through the price
// cache and realized volatility is derived from the history database when
// enough rows exist.
package market

import (
	"sort"
	"strings"
)

// AssetStats holds the static reference statistics for one asset.
// Volatility is annualized, in percent (75 = 75%). LiquidityScore is 0-1
// where 1 is perfectly liquid.
type AssetStats struct {
	Volatility     float64
	LiquidityScore float64
	Stablecoin     bool
}

// defaultAssetStats is the reference table for assets this engine knows
// about. Unknown assets fall back to unknownAssetStats.
var defaultAssetStats = map[string]AssetStats{
	"USDC":  {Volatility: 0.5, LiquidityScore: 0.99, Stablecoin: true},
	"USDT":  {Volatility: 0.8, LiquidityScore: 0.98, Stablecoin: true},
	"DAI":   {Volatility: 0.7, LiquidityScore: 0.97, Stablecoin: true},
	"BTC":   {Volatility: 75, LiquidityScore: 0.95},
	"ETH":   {Volatility: 85, LiquidityScore: 0.94},
	"SOL":   {Volatility: 110, LiquidityScore: 0.85},
	"AVAX":  {Volatility: 115, LiquidityScore: 0.80},
	"MATIC": {Volatility: 105, LiquidityScore: 0.78},
	"LINK":  {Volatility: 95, LiquidityScore: 0.82},
	"UNI":   {Volatility: 100, LiquidityScore: 0.75},
	"AAVE":  {Volatility: 98, LiquidityScore: 0.74},
}

// unknownAssetStats is the conservative fallback for assets not in the
// reference table.
var unknownAssetStats = AssetStats{Volatility: 90, LiquidityScore: 0.6}

// pairCorrelations holds pairwise return correlations between known
// assets, keyed by sorted asset pair.
var pairCorrelations = map[[2]string]float64{
	{"BTC", "ETH"}:   0.85,
	{"BTC", "SOL"}:   0.80,
	{"ETH", "SOL"}:   0.82,
	{"BTC", "LINK"}:  0.72,
	{"ETH", "LINK"}:  0.78,
	{"ETH", "UNI"}:   0.76,
	{"ETH", "AAVE"}:  0.74,
	{"DAI", "USDC"}:  0.90,
	{"USDC", "USDT"}: 0.90,
	{"DAI", "USDT"}:  0.88,
}

// TrackedAssets lists the assets in the reference table, sorted. The live
// price feed subscribes to these.
func TrackedAssets() []string {
	assets := make([]string, 0, len(defaultAssetStats))
	for asset := range defaultAssetStats {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	return assets
}

const (
	// correlationStableCrypto is the assumed correlation between a
	// stablecoin and a volatile asset.
	correlationStableCrypto = 0.10
	// correlationCryptoDefault is the fallback for unlisted volatile pairs.
	correlationCryptoDefault = 0.70
	// correlationStableDefault is the fallback for unlisted stable pairs.
	correlationStableDefault = 0.90
)

func normalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}

func lookupStats(asset string) AssetStats {
	if s, ok := defaultAssetStats[normalizeAsset(asset)]; ok {
		return s
	}
	return unknownAssetStats
}

func lookupCorrelation(a, b string) float64 {
	a, b = normalizeAsset(a), normalizeAsset(b)
	if a == b {
		return 1
	}
	key := [2]string{a, b}
	if a > b {
		key = [2]string{b, a}
	}
	if c, ok := pairCorrelations[key]; ok {
		return c
	}

	sa, sb := lookupStats(a), lookupStats(b)
	switch {
	case sa.Stablecoin && sb.Stablecoin:
		return correlationStableDefault
	case sa.Stablecoin != sb.Stablecoin:
		return correlationStableCrypto
	default:
		return correlationCryptoDefault
	}
}
