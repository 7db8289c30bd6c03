package market

import (
	"github.com/rs/zerolog"
)

// Service exposes asset statistics, correlations and benchmark data. It
// prefers realized volatility from the history database when enough rows
// exist and falls back to the static reference table otherwise.
type Service struct {
	prices  *PriceCache
	history *HistoryDB // optional
	log     zerolog.Logger
}

// volatilityLookbackDays is how far back realized volatility looks.
const volatilityLookbackDays = 90

// NewService creates a market data service. history may be nil, in which
// case volatility always comes from the reference table.
func NewService(prices *PriceCache, history *HistoryDB, log zerolog.Logger) *Service {
	return &Service{
		prices:  prices,
		history: history,
		log:     log.With().Str("component", "market").Logger(),
	}
}

// Prices returns the live price cache.
func (s *Service) Prices() *PriceCache {
	return s.prices
}

// Volatility returns the annualized volatility of an asset, in percent.
func (s *Service) Volatility(asset string) float64 {
	if s.history != nil {
		if vol, ok := s.history.RealizedVolatility(asset, volatilityLookbackDays); ok {
			return vol
		}
	}
	return lookupStats(asset).Volatility
}

// LiquidityScore returns the 0-1 liquidity score of an asset.
func (s *Service) LiquidityScore(asset string) float64 {
	return lookupStats(asset).LiquidityScore
}

// IsStablecoin reports whether an asset is a stablecoin.
func (s *Service) IsStablecoin(asset string) bool {
	return lookupStats(asset).Stablecoin
}

// Correlation returns the assumed return correlation between two assets.
func (s *Service) Correlation(a, b string) float64 {
	return lookupCorrelation(a, b)
}
