package formulas

import (
	"math"
)

// SharpeRatio calculates the annualized Sharpe ratio.
//
// Sharpe Ratio Formula:
//
//	Sharpe = (Portfolio Return - Risk-free Rate) / Standard Deviation of Returns
//
// All inputs are annual decimals (0.02 = 2%). Returns nil when volatility
// is zero (ratio undefined).
func SharpeRatio(annualReturn, riskFreeRate, annualVolatility float64) *float64 {
	if annualVolatility == 0 {
		return nil
	}
	sharpe := (annualReturn - riskFreeRate) / annualVolatility
	return &sharpe
}

// SortinoRatio calculates the Sortino ratio, the downside-deviation variant
// of Sharpe. Only volatility below the minimum acceptable return counts as
// risk. Returns nil when downside deviation is zero.
func SortinoRatio(annualReturn, riskFreeRate, downsideDeviation float64) *float64 {
	if downsideDeviation == 0 {
		return nil
	}
	sortino := (annualReturn - riskFreeRate) / downsideDeviation
	return &sortino
}

// InformationRatio calculates the information ratio against a benchmark.
//
//	IR = (Portfolio Return - Benchmark Return) / Tracking Error
//
// Returns nil when tracking error is zero.
func InformationRatio(annualReturn, benchmarkReturn, trackingError float64) *float64 {
	if trackingError == 0 {
		return nil
	}
	ir := (annualReturn - benchmarkReturn) / trackingError
	return &ir
}

// TrackingError estimates the tracking error between a portfolio and a
// benchmark from their volatilities and correlation.
//
//	TE = sqrt(σp² + σb² − 2·ρ·σp·σb)
func TrackingError(portfolioVol, benchmarkVol, correlation float64) float64 {
	te := portfolioVol*portfolioVol + benchmarkVol*benchmarkVol - 2*correlation*portfolioVol*benchmarkVol
	if te <= 0 {
		return 0
	}
	return math.Sqrt(te)
}

// AnnualizedReturn converts a cumulative return over a period of `years`
// into a compound annual rate: (1+r)^(1/years) − 1.
func AnnualizedReturn(cumulativeReturn, years float64) float64 {
	if years <= 0 {
		return cumulativeReturn
	}
	base := 1 + cumulativeReturn
	if base <= 0 {
		return -1
	}
	return math.Pow(base, 1/years) - 1
}
