// Package risk scores portfolio risk against declared risk tolerances.
// Scores combine five weighted factors into a 0-100 composite; results
// are cached for a bounded TTL since they feed scheduler gating, not
// trading decisions.
package risk

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/helmfi/helm/internal/domain"
)

// Factor weights for the composite score.
const (
	weightConcentration = 0.30
	weightVolatility    = 0.25
	weightLiquidity     = 0.15
	weightProtocol      = 0.20
	weightCorrelation   = 0.10
)

// Per-position protocol sub-scores.
const (
	directHoldingScore     = 15 // asset held outside any protocol
	unknownProtocolScore   = 50 // directory lookup failed
	unhealthyProtocolScore = 90 // floor for protocols flagged unhealthy
)

// MarketData is the slice of market statistics the assessor needs.
type MarketData interface {
	Volatility(asset string) float64
	LiquidityScore(asset string) float64
	IsStablecoin(asset string) bool
	Correlation(a, b string) float64
}

// FactorBreakdown holds the five sub-scores, each 0-100.
type FactorBreakdown struct {
	Concentration float64 `json:"concentration"`
	Volatility    float64 `json:"volatility"`
	Liquidity     float64 `json:"liquidity"`
	Protocol      float64 `json:"protocol"`
	Correlation   float64 `json:"correlation"`
}

// Assessment is the result of scoring one portfolio against one
// tolerance.
type Assessment struct {
	OverallRiskScore  float64          `json:"overall_risk_score"`
	RiskLevel         domain.RiskLevel `json:"risk_level"`
	Factors           FactorBreakdown  `json:"factors"`
	IsWithinTolerance bool             `json:"is_within_tolerance"`
	Recommendations   []string         `json:"recommendations,omitempty"`
	AssessedAt        time.Time        `json:"assessed_at"`
}

// Assessor computes portfolio risk assessments.
type Assessor struct {
	market    MarketData
	protocols domain.ProtocolDirectory
	cache     *Cache // nil disables caching
	log       zerolog.Logger
}

// NewAssessor creates a risk assessor. cache may be nil.
func NewAssessor(market MarketData, protocols domain.ProtocolDirectory, cache *Cache, log zerolog.Logger) *Assessor {
	return &Assessor{
		market:    market,
		protocols: protocols,
		cache:     cache,
		log:       log.With().Str("component", "risk").Logger(),
	}
}

// AssessPortfolioRisk scores a portfolio against a tolerance. Unknown
// tolerances yield a ConfigurationError.
func (a *Assessor) AssessPortfolioRisk(ctx context.Context, portfolio domain.Portfolio, tolerance domain.RiskTolerance) (*Assessment, error) {
	threshold, err := ToleranceScore(tolerance)
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		if cached, ok := a.cache.Get(portfolio, tolerance); ok {
			return cached, nil
		}
	}

	assessment := a.assess(ctx, portfolio, threshold, tolerance)

	if a.cache != nil {
		a.cache.Put(portfolio, tolerance, assessment)
	}

	a.log.Debug().
		Str("user_id", portfolio.UserID).
		Str("tolerance", string(tolerance)).
		Float64("score", assessment.OverallRiskScore).
		Str("level", string(assessment.RiskLevel)).
		Msg("Assessed portfolio risk")

	return assessment, nil
}

func (a *Assessor) assess(ctx context.Context, portfolio domain.Portfolio, threshold float64, tolerance domain.RiskTolerance) *Assessment {
	if len(portfolio.Positions) == 0 || portfolio.TotalValue <= 0 {
		return &Assessment{
			RiskLevel:         domain.RiskVeryLow,
			IsWithinTolerance: true,
			AssessedAt:        time.Now(),
		}
	}

	factors := FactorBreakdown{
		Concentration: a.concentrationRisk(portfolio),
		Volatility:    a.volatilityRisk(portfolio),
		Liquidity:     a.liquidityRisk(portfolio),
		Protocol:      a.protocolRisk(ctx, portfolio),
		Correlation:   a.correlationRisk(portfolio),
	}

	score := clampScore(factors.Concentration*weightConcentration +
		factors.Volatility*weightVolatility +
		factors.Liquidity*weightLiquidity +
		factors.Protocol*weightProtocol +
		factors.Correlation*weightCorrelation)

	within := score <= threshold
	return &Assessment{
		OverallRiskScore:  score,
		RiskLevel:         levelFor(score),
		Factors:           factors,
		IsWithinTolerance: within,
		Recommendations:   a.recommendations(factors, within, tolerance, portfolio),
		AssessedAt:        time.Now(),
	}
}

// concentrationRisk grows quadratically with the largest single-asset and
// single-protocol weights. Stablecoin positions are excluded from the
// asset term; parking everything in USDC is not a concentration problem.
func (a *Assessor) concentrationRisk(p domain.Portfolio) float64 {
	var maxAssetWeight float64
	for asset, value := range p.AssetValues() {
		if a.market.IsStablecoin(asset) {
			continue
		}
		if w := value / p.TotalValue; w > maxAssetWeight {
			maxAssetWeight = w
		}
	}

	protocolValues := make(map[string]float64)
	for _, pos := range p.Positions {
		if pos.Protocol != "" {
			protocolValues[pos.Protocol] += pos.Value
		}
	}
	var maxProtocolWeight float64
	for _, value := range protocolValues {
		if w := value / p.TotalValue; w > maxProtocolWeight {
			maxProtocolWeight = w
		}
	}

	assetRisk := (2 * maxAssetWeight) * (2 * maxAssetWeight) * 25
	protocolRisk := (1.5 * maxProtocolWeight) * (1.5 * maxProtocolWeight) * 25
	return clampScore(max64(assetRisk, protocolRisk))
}

func (a *Assessor) volatilityRisk(p domain.Portfolio) float64 {
	var weighted float64
	for _, pos := range p.Positions {
		weighted += (pos.Value / p.TotalValue) * a.market.Volatility(pos.Asset)
	}
	return clampScore(weighted * 2)
}

func (a *Assessor) liquidityRisk(p domain.Portfolio) float64 {
	var weighted float64
	for _, pos := range p.Positions {
		weighted += (pos.Value / p.TotalValue) * (1 - a.market.LiquidityScore(pos.Asset)) * 100
	}
	return clampScore(weighted)
}

func (a *Assessor) protocolRisk(ctx context.Context, p domain.Portfolio) float64 {
	var weighted float64
	for _, pos := range p.Positions {
		score := float64(directHoldingScore)
		if pos.Protocol != "" {
			health, err := a.protocols.GetProtocolHealth(ctx, pos.Protocol)
			switch {
			case err != nil:
				a.log.Warn().Str("protocol", pos.Protocol).Err(err).Msg("Protocol health lookup failed")
				score = unknownProtocolScore
			case !health.Healthy:
				score = max64(health.RiskScore, unhealthyProtocolScore)
			default:
				score = health.RiskScore
			}
		}
		weighted += (pos.Value / p.TotalValue) * score
	}
	return clampScore(weighted)
}

// correlationRisk averages pairwise correlations across distinct assets.
// A single-asset portfolio has nothing to diversify against and scores
// the maximum.
func (a *Assessor) correlationRisk(p domain.Portfolio) float64 {
	assets := make([]string, 0, len(p.Positions))
	seen := make(map[string]bool)
	for _, pos := range p.Positions {
		if !seen[pos.Asset] {
			seen[pos.Asset] = true
			assets = append(assets, pos.Asset)
		}
	}
	if len(assets) <= 1 {
		return 100
	}

	var sum float64
	var pairs int
	for i := 0; i < len(assets); i++ {
		for j := i + 1; j < len(assets); j++ {
			sum += a.market.Correlation(assets[i], assets[j])
			pairs++
		}
	}
	return clampScore(sum / float64(pairs) * 100)
}

func (a *Assessor) recommendations(f FactorBreakdown, within bool, tolerance domain.RiskTolerance, p domain.Portfolio) []string {
	var recs []string
	if f.Concentration > 50 {
		recs = append(recs, "Reduce your largest position to lower concentration risk")
	}
	if f.Volatility > 60 {
		recs = append(recs, "Shift part of the portfolio into stablecoins to reduce volatility")
	}
	if f.Liquidity > 40 {
		recs = append(recs, "Favor more liquid assets to reduce exit risk")
	}
	if f.Protocol > 60 {
		recs = append(recs, "Move funds out of high-risk protocols")
	}
	if f.Correlation > 80 && len(p.AssetValues()) > 1 {
		recs = append(recs, "Diversify into assets with lower correlation to your current holdings")
	}
	if !within {
		recs = append(recs, "Portfolio risk exceeds your "+string(tolerance)+" tolerance; consider rebalancing")
	}
	return recs
}

func levelFor(score float64) domain.RiskLevel {
	switch {
	case score <= 20:
		return domain.RiskVeryLow
	case score <= 35:
		return domain.RiskLow
	case score <= 50:
		return domain.RiskModerate
	case score <= 70:
		return domain.RiskHigh
	default:
		return domain.RiskVeryHigh
	}
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
