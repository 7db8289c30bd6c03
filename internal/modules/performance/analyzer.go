// Package performance computes return and risk metrics from transaction
// history and generates forward projections. Volatility inputs are
// estimates against a static benchmark table; there is no per-user
// return series to measure directly.
package performance

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/helmfi/helm/internal/domain"
	"github.com/helmfi/helm/internal/modules/market"
	"github.com/helmfi/helm/pkg/formulas"
)

// Portfolio volatility is approximated from the DeFi benchmark, damped
// because harvested yield smooths returns relative to the raw index.
const portfolioVolDamping = 0.85

// Downside deviation approximation for the Sortino ratio.
const downsideFraction = 0.7

// Assumed correlation with the equity benchmark for tracking error.
const equityCorrelation = 0.3

// BenchmarkComparison is one row of the outperformance table.
type BenchmarkComparison struct {
	Benchmark      market.Benchmark `json:"benchmark"`
	Outperformance float64          `json:"outperformance"` // annual decimal
}

// Metrics is the full performance report for one portfolio.
type Metrics struct {
	TotalDeposited   float64 `json:"total_deposited"`
	TotalWithdrawn   float64 `json:"total_withdrawn"`
	NetDeposited     float64 `json:"net_deposited"`
	CurrentValue     float64 `json:"current_value"`
	UnrealizedGain   float64 `json:"unrealized_gain"`
	SimpleReturnPct  float64 `json:"simple_return_pct"`
	TimeWeightedPct  float64 `json:"time_weighted_pct"`
	AnnualizedReturn float64 `json:"annualized_return"` // decimal

	VolatilityEstimate  float64  `json:"volatility_estimate"` // annual decimal
	MaxDrawdownEstimate float64  `json:"max_drawdown_estimate"`
	ValueAtRisk95       float64  `json:"value_at_risk_95"` // monthly, in currency
	SharpeRatio         *float64 `json:"sharpe_ratio,omitempty"`
	SortinoRatio        *float64 `json:"sortino_ratio,omitempty"`
	InformationRatio    *float64 `json:"information_ratio,omitempty"`

	BenchmarkComparisons []BenchmarkComparison `json:"benchmark_comparisons"`
	ComputedAt           time.Time             `json:"computed_at"`
}

// Analyzer computes performance metrics.
type Analyzer struct {
	market *market.Service
	log    zerolog.Logger
}

// NewAnalyzer creates a performance analyzer.
func NewAnalyzer(m *market.Service, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		market: m,
		log:    log.With().Str("component", "performance").Logger(),
	}
}

// CalculatePerformanceMetrics derives the metrics report from transaction
// history and the current portfolio value. timeframe limits how far back
// transactions count; zero means all history.
func (a *Analyzer) CalculatePerformanceMetrics(transactions []domain.Transaction, currentValue float64, timeframe time.Duration) *Metrics {
	now := time.Now()
	flows := flowsIn(transactions, now, timeframe)

	m := &Metrics{
		CurrentValue: currentValue,
		ComputedAt:   now,
	}

	for _, f := range flows {
		if f.amount > 0 {
			m.TotalDeposited += f.amount
		} else {
			m.TotalWithdrawn += -f.amount
		}
	}
	m.NetDeposited = m.TotalDeposited - m.TotalWithdrawn
	m.UnrealizedGain = currentValue - m.NetDeposited
	if m.NetDeposited > 0 {
		m.SimpleReturnPct = m.UnrealizedGain / m.NetDeposited * 100
	}

	twr := timeWeightedReturn(flows, m.UnrealizedGain, now)
	m.TimeWeightedPct = twr * 100

	var years float64
	if len(flows) > 0 {
		years = now.Sub(flows[0].at).Hours() / (24 * 365.25)
	}
	m.AnnualizedReturn = formulas.AnnualizedReturn(twr, years)

	a.attachRiskMetrics(m)
	a.attachBenchmarkComparisons(m)
	return m
}

func (a *Analyzer) attachRiskMetrics(m *Metrics) {
	defi, _ := a.market.Benchmark("defi")
	vol := defi.Volatility * portfolioVolDamping

	m.VolatilityEstimate = vol
	m.MaxDrawdownEstimate = vol * 0.5
	// Parametric monthly VaR at 95% confidence.
	m.ValueAtRisk95 = m.CurrentValue * vol * 1.65 / sqrt12

	m.SharpeRatio = formulas.SharpeRatio(m.AnnualizedReturn, market.RiskFreeRate, vol)
	m.SortinoRatio = formulas.SortinoRatio(m.AnnualizedReturn, market.RiskFreeRate, vol*downsideFraction)

	if sp, ok := a.market.Benchmark("sp500"); ok {
		te := formulas.TrackingError(vol, sp.Volatility, equityCorrelation)
		m.InformationRatio = formulas.InformationRatio(m.AnnualizedReturn, sp.Return, te)
	}
}

func (a *Analyzer) attachBenchmarkComparisons(m *Metrics) {
	for _, b := range a.market.Benchmarks() {
		m.BenchmarkComparisons = append(m.BenchmarkComparisons, BenchmarkComparison{
			Benchmark:      b,
			Outperformance: m.AnnualizedReturn - b.Return,
		})
	}
	sort.Slice(m.BenchmarkComparisons, func(i, j int) bool {
		return m.BenchmarkComparisons[i].Outperformance > m.BenchmarkComparisons[j].Outperformance
	})
}

const sqrt12 = 3.4641016151377544

// flow is one external cash movement: positive for deposits, negative
// for withdrawals.
type flow struct {
	amount float64
	at     time.Time
}

func flowsIn(transactions []domain.Transaction, now time.Time, timeframe time.Duration) []flow {
	var cutoff time.Time
	if timeframe > 0 {
		cutoff = now.Add(-timeframe)
	}

	var flows []flow
	for _, tx := range transactions {
		if !cutoff.IsZero() && tx.Timestamp.Before(cutoff) {
			continue
		}
		switch tx.Kind {
		case domain.TxDeposit:
			flows = append(flows, flow{amount: tx.Amount, at: tx.Timestamp})
		case domain.TxWithdrawal:
			flows = append(flows, flow{amount: -tx.Amount, at: tx.Timestamp})
		}
	}
	sort.Slice(flows, func(i, j int) bool { return flows[i].at.Before(flows[j].at) })
	return flows
}

// timeWeightedReturn compounds per-segment returns between cash-flow
// boundaries. The total gain is apportioned to segments by exposure
// (invested base times duration), which removes the distortion deposits
// cause in the simple return.
func timeWeightedReturn(flows []flow, totalGain float64, now time.Time) float64 {
	if len(flows) == 0 {
		return 0
	}

	type segment struct {
		base     float64
		duration float64 // hours
	}
	var segments []segment
	var base float64
	var totalExposure float64

	for i, f := range flows {
		base += f.amount
		end := now
		if i+1 < len(flows) {
			end = flows[i+1].at
		}
		d := end.Sub(f.at).Hours()
		if base <= 0 || d <= 0 {
			continue
		}
		segments = append(segments, segment{base: base, duration: d})
		totalExposure += base * d
	}
	if totalExposure <= 0 {
		return 0
	}

	twr := 1.0
	for _, s := range segments {
		segGain := totalGain * (s.base * s.duration / totalExposure)
		twr *= 1 + segGain/s.base
	}
	return twr - 1
}
