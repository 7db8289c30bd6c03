package market

// RiskFreeRate is the annual risk-free rate used in ratio calculations,
// as a decimal.
const RiskFreeRate = 0.042

// Benchmark describes a reference asset class used for performance
// comparison. Return and Volatility are annual decimals.
type Benchmark struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Return     float64 `json:"return"`
	Volatility float64 `json:"volatility"`
}

// benchmarkTable is the static benchmark catalog. Long-run figures; the
// engine treats these as slowly-changing reference data.
var benchmarkTable = []Benchmark{
	{ID: "sp500", Name: "S&P 500", Return: 0.102, Volatility: 0.155},
	{ID: "bonds", Name: "US Treasury Bonds", Return: 0.045, Volatility: 0.055},
	{ID: "reits", Name: "REITs", Return: 0.083, Volatility: 0.190},
	{ID: "defi", Name: "DeFi Index", Return: 0.150, Volatility: 0.650},
	{ID: "btc", Name: "Bitcoin", Return: 0.450, Volatility: 0.750},
	{ID: "savings", Name: "High-Yield Savings", Return: 0.042, Volatility: 0.002},
}

// Benchmarks returns the full benchmark catalog.
func (s *Service) Benchmarks() []Benchmark {
	out := make([]Benchmark, len(benchmarkTable))
	copy(out, benchmarkTable)
	return out
}

// Benchmark returns a benchmark by ID.
func (s *Service) Benchmark(id string) (Benchmark, bool) {
	for _, b := range benchmarkTable {
		if b.ID == id {
			return b, true
		}
	}
	return Benchmark{}, false
}
