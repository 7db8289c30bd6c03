package risk

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmfi/helm/internal/domain"
	"github.com/helmfi/helm/internal/modules/calculations"
)

// fakeMarket mirrors the static reference tables with a handful of
// assets.
type fakeMarket struct{}

func (fakeMarket) Volatility(asset string) float64 {
	switch asset {
	case "USDC":
		return 0.5
	case "BTC":
		return 75
	case "ETH":
		return 85
	default:
		return 90
	}
}

func (fakeMarket) LiquidityScore(asset string) float64 {
	switch asset {
	case "USDC":
		return 0.99
	case "BTC":
		return 0.95
	case "ETH":
		return 0.94
	default:
		return 0.6
	}
}

func (fakeMarket) IsStablecoin(asset string) bool {
	return asset == "USDC"
}

func (fakeMarket) Correlation(a, b string) float64 {
	if a == b {
		return 1
	}
	return 0.85
}

type fakeDirectory struct {
	health map[string]domain.ProtocolHealth
	err    error
}

func (d *fakeDirectory) GetProtocolHealth(_ context.Context, id string) (domain.ProtocolHealth, error) {
	if d.err != nil {
		return domain.ProtocolHealth{}, d.err
	}
	h, ok := d.health[id]
	if !ok {
		return domain.ProtocolHealth{}, errors.New("unknown protocol")
	}
	return h, nil
}

func newAssessor(t *testing.T, dir *fakeDirectory) *Assessor {
	t.Helper()
	if dir == nil {
		dir = &fakeDirectory{}
	}
	return NewAssessor(fakeMarket{}, dir, nil, zerolog.Nop())
}

func portfolioOf(positions ...domain.Position) domain.Portfolio {
	var total float64
	for _, p := range positions {
		total += p.Value
	}
	return domain.Portfolio{UserID: "u1", TotalValue: total, Positions: positions, AsOf: time.Now()}
}

func TestAssessEmptyPortfolio(t *testing.T) {
	a := newAssessor(t, nil)

	got, err := a.AssessPortfolioRisk(context.Background(), domain.Portfolio{UserID: "u1"}, domain.ToleranceConservative)
	require.NoError(t, err)

	assert.Equal(t, 0.0, got.OverallRiskScore)
	assert.Equal(t, FactorBreakdown{}, got.Factors)
	assert.Equal(t, domain.RiskVeryLow, got.RiskLevel)
	assert.True(t, got.IsWithinTolerance)
}

func TestAssessUnknownTolerance(t *testing.T) {
	a := newAssessor(t, nil)

	_, err := a.AssessPortfolioRisk(context.Background(), portfolioOf(domain.Position{Asset: "BTC", Value: 1000}), domain.RiskTolerance("yolo"))
	require.Error(t, err)
	assert.True(t, domain.IsConfigurationError(err))
}

func TestAssessAllStablecoinConservative(t *testing.T) {
	a := newAssessor(t, nil)
	p := portfolioOf(domain.Position{Asset: "USDC", Value: 10000})

	got, err := a.AssessPortfolioRisk(context.Background(), p, domain.ToleranceConservative)
	require.NoError(t, err)

	assert.LessOrEqual(t, got.OverallRiskScore, 20.0)
	assert.Equal(t, domain.RiskVeryLow, got.RiskLevel)
	assert.True(t, got.IsWithinTolerance)
	assert.Equal(t, 0.0, got.Factors.Concentration)
}

func TestAssessAllBitcoin(t *testing.T) {
	a := newAssessor(t, nil)
	p := portfolioOf(domain.Position{Asset: "BTC", Value: 50000})

	got, err := a.AssessPortfolioRisk(context.Background(), p, domain.ToleranceConservative)
	require.NoError(t, err)
	assert.Greater(t, got.OverallRiskScore, 50.0)
	assert.False(t, got.IsWithinTolerance)

	// The same portfolio sits inside an aggressive tolerance.
	got, err = a.AssessPortfolioRisk(context.Background(), p, domain.ToleranceAggressive)
	require.NoError(t, err)
	assert.LessOrEqual(t, got.OverallRiskScore, 70.0)
	assert.True(t, got.IsWithinTolerance)
}

func TestConcentrationMonotonicInLargestWeight(t *testing.T) {
	a := newAssessor(t, nil)

	prev := -1.0
	for _, btcShare := range []float64{0.2, 0.4, 0.6, 0.8, 1.0} {
		p := portfolioOf(
			domain.Position{Asset: "BTC", Value: btcShare * 1000},
			domain.Position{Asset: "USDC", Value: (1 - btcShare) * 1000},
		)
		risk := a.concentrationRisk(p)
		assert.GreaterOrEqual(t, risk, prev, "share %.1f", btcShare)
		prev = risk
	}
}

func TestProtocolRiskUnhealthyForcesHighScore(t *testing.T) {
	dir := &fakeDirectory{health: map[string]domain.ProtocolHealth{
		"shaky": {ProtocolID: "shaky", Healthy: false, RiskScore: 20},
	}}
	a := newAssessor(t, dir)
	p := portfolioOf(domain.Position{Asset: "ETH", Protocol: "shaky", Value: 1000})

	risk := a.protocolRisk(context.Background(), p)
	assert.GreaterOrEqual(t, risk, 90.0)
}

func TestProtocolRiskLookupFailureIsConservative(t *testing.T) {
	a := newAssessor(t, &fakeDirectory{err: errors.New("directory down")})
	p := portfolioOf(domain.Position{Asset: "ETH", Protocol: "aave-v3", Value: 1000})

	risk := a.protocolRisk(context.Background(), p)
	assert.Equal(t, float64(unknownProtocolScore), risk)
}

func TestCorrelationSingleAssetIsMax(t *testing.T) {
	a := newAssessor(t, nil)
	assert.Equal(t, 100.0, a.correlationRisk(portfolioOf(domain.Position{Asset: "BTC", Value: 100})))

	multi := portfolioOf(
		domain.Position{Asset: "BTC", Value: 100},
		domain.Position{Asset: "ETH", Value: 100},
	)
	assert.Equal(t, 85.0, a.correlationRisk(multi))
}

func TestAssessmentCache(t *testing.T) {
	db, err := sql.Open("sqlite", t.TempDir()+"/cache.db")
	require.NoError(t, err)
	defer db.Close()

	store, err := calculations.NewCache(db, zerolog.Nop())
	require.NoError(t, err)
	cache := NewCache(store)

	dir := &fakeDirectory{}
	a := NewAssessor(fakeMarket{}, dir, cache, zerolog.Nop())
	p := portfolioOf(domain.Position{Asset: "BTC", Value: 50000})

	first, err := a.AssessPortfolioRisk(context.Background(), p, domain.ToleranceBalanced)
	require.NoError(t, err)

	// Second call is served from cache; breaking the directory must not
	// matter since nothing is recomputed.
	dir.err = errors.New("directory down")
	second, err := a.AssessPortfolioRisk(context.Background(), p, domain.ToleranceBalanced)
	require.NoError(t, err)
	assert.Equal(t, first.OverallRiskScore, second.OverallRiskScore)

	// A different portfolio hash misses the cache.
	other := portfolioOf(domain.Position{Asset: "BTC", Value: 60000})
	_, ok := cache.Get(other, domain.ToleranceBalanced)
	assert.False(t, ok)
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, domain.RiskVeryLow, levelFor(20))
	assert.Equal(t, domain.RiskLow, levelFor(35))
	assert.Equal(t, domain.RiskModerate, levelFor(50))
	assert.Equal(t, domain.RiskHigh, levelFor(70))
	assert.Equal(t, domain.RiskVeryHigh, levelFor(70.1))
}
