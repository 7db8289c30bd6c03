package risk

import (
	"github.com/helmfi/helm/internal/domain"
)

// Profile is the static configuration attached to one risk tolerance.
// MaxVolatility is an annual percentage, MaxDrawdown and weights are
// fractions.
type Profile struct {
	Tolerance            domain.RiskTolerance
	MaxVolatility        float64
	MaxDrawdown          float64
	MaxSingleAssetWeight float64
	PreferredAssets      []string
	TargetAPY            float64
}

// profiles maps each tolerance to its configuration. Preferred assets are
// ordered by allocation priority.
var profiles = map[domain.RiskTolerance]Profile{
	domain.ToleranceConservative: {
		Tolerance:            domain.ToleranceConservative,
		MaxVolatility:        15,
		MaxDrawdown:          0.10,
		MaxSingleAssetWeight: 0.30,
		PreferredAssets:      []string{"USDC", "DAI", "USDT"},
		TargetAPY:            0.05,
	},
	domain.ToleranceModerate: {
		Tolerance:            domain.ToleranceModerate,
		MaxVolatility:        30,
		MaxDrawdown:          0.20,
		MaxSingleAssetWeight: 0.40,
		PreferredAssets:      []string{"USDC", "DAI", "ETH", "BTC"},
		TargetAPY:            0.08,
	},
	domain.ToleranceBalanced: {
		Tolerance:            domain.ToleranceBalanced,
		MaxVolatility:        50,
		MaxDrawdown:          0.30,
		MaxSingleAssetWeight: 0.50,
		PreferredAssets:      []string{"USDC", "ETH", "BTC", "SOL"},
		TargetAPY:            0.12,
	},
	domain.ToleranceAggressive: {
		Tolerance:            domain.ToleranceAggressive,
		MaxVolatility:        80,
		MaxDrawdown:          0.45,
		MaxSingleAssetWeight: 0.60,
		PreferredAssets:      []string{"ETH", "BTC", "SOL", "LINK"},
		TargetAPY:            0.18,
	},
	domain.ToleranceVeryAggressive: {
		Tolerance:            domain.ToleranceVeryAggressive,
		MaxVolatility:        120,
		MaxDrawdown:          0.60,
		MaxSingleAssetWeight: 0.80,
		PreferredAssets:      []string{"ETH", "SOL", "AVAX", "UNI"},
		TargetAPY:            0.25,
	},
}

// toleranceScores maps each tolerance to the maximum overall risk score
// it accepts.
var toleranceScores = map[domain.RiskTolerance]float64{
	domain.ToleranceConservative:   20,
	domain.ToleranceModerate:       35,
	domain.ToleranceBalanced:       50,
	domain.ToleranceAggressive:     70,
	domain.ToleranceVeryAggressive: 90,
}

// ProfileFor returns the configuration for a tolerance. Unknown
// tolerances yield a ConfigurationError.
func ProfileFor(tolerance domain.RiskTolerance) (Profile, error) {
	p, ok := profiles[tolerance]
	if !ok {
		return Profile{}, &domain.ConfigurationError{What: "risk tolerance", Value: string(tolerance)}
	}
	return p, nil
}

// ToleranceScore returns the acceptance threshold for a tolerance.
func ToleranceScore(tolerance domain.RiskTolerance) (float64, error) {
	s, ok := toleranceScores[tolerance]
	if !ok {
		return 0, &domain.ConfigurationError{What: "risk tolerance", Value: string(tolerance)}
	}
	return s, nil
}
