package stress

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/helmfi/helm/internal/domain"
)

// Severity buckets for a scenario's total loss.
const (
	SeverityMinimal      = "minimal"
	SeverityModerate     = "moderate"
	SeveritySignificant  = "significant"
	SeveritySevere       = "severe"
	SeverityCatastrophic = "catastrophic"
)

// Result is the outcome of running one scenario against one portfolio.
// TotalLossPercent and MaxDrawdown are percentages.
type Result struct {
	ScenarioID       string    `json:"scenario_id"`
	ScenarioName     string    `json:"scenario_name"`
	OriginalValue    float64   `json:"original_value"`
	SimulatedValue   float64   `json:"simulated_value"`
	TotalLossPercent float64   `json:"total_loss_percent"`
	MaxDrawdown      float64   `json:"max_drawdown"`
	Passed           bool      `json:"passed"`
	Severity         string    `json:"severity"`
	RunAt            time.Time `json:"run_at"`
}

// Summary aggregates all scenarios into one stress score.
type Summary struct {
	Results      []Result `json:"results"`
	OverallScore float64  `json:"overall_score"`
	Remediations []string `json:"remediations,omitempty"`
}

// Tester runs stress scenarios.
type Tester struct {
	log zerolog.Logger
}

// NewTester creates a stress tester.
func NewTester(log zerolog.Logger) *Tester {
	return &Tester{log: log.With().Str("component", "stress").Logger()}
}

// Scenarios returns the scenario catalog in a stable order.
func (t *Tester) Scenarios() []Scenario {
	out := make([]Scenario, 0, len(scenarioCatalog))
	for _, id := range KnownScenarios() {
		out = append(out, scenarioCatalog[id])
	}
	return out
}

// RunStressScenario simulates one scenario against a portfolio. Unknown
// scenario IDs yield a ConfigurationError.
func (t *Tester) RunStressScenario(portfolio domain.Portfolio, scenarioID string) (*Result, error) {
	scenario, ok := scenarioCatalog[scenarioID]
	if !ok {
		return nil, &domain.ConfigurationError{What: "stress scenario", Value: scenarioID}
	}

	result := &Result{
		ScenarioID:    scenario.ID,
		ScenarioName:  scenario.Name,
		OriginalValue: portfolio.TotalValue,
		RunAt:         time.Now(),
	}

	var simulated, maxDrawdown float64
	for _, pos := range portfolio.Positions {
		newValue := pos.Value * scenario.assetImpact(pos.Asset) * scenario.protocolImpact(pos.Protocol)
		simulated += newValue
		if pos.Value > 0 {
			if loss := (pos.Value - newValue) / pos.Value * 100; loss > maxDrawdown {
				maxDrawdown = loss
			}
		}
	}

	result.SimulatedValue = simulated
	result.MaxDrawdown = maxDrawdown
	if portfolio.TotalValue > 0 {
		result.TotalLossPercent = (portfolio.TotalValue - simulated) / portfolio.TotalValue * 100
	}
	result.Passed = result.TotalLossPercent <= scenario.MaxAcceptableLoss
	result.Severity = severityFor(result.TotalLossPercent)

	t.log.Debug().
		Str("scenario", scenarioID).
		Str("user_id", portfolio.UserID).
		Float64("loss_pct", result.TotalLossPercent).
		Bool("passed", result.Passed).
		Msg("Ran stress scenario")

	return result, nil
}

// RunAllScenarios runs the full catalog and aggregates an overall score:
// pass rate scaled to 100 minus the average loss. Higher is better.
func (t *Tester) RunAllScenarios(portfolio domain.Portfolio) (*Summary, error) {
	summary := &Summary{}

	var passed int
	var totalLoss float64
	for _, id := range KnownScenarios() {
		result, err := t.RunStressScenario(portfolio, id)
		if err != nil {
			return nil, err
		}
		summary.Results = append(summary.Results, *result)
		totalLoss += result.TotalLossPercent
		if result.Passed {
			passed++
		} else {
			summary.Remediations = append(summary.Remediations, scenarioCatalog[id].Remediation)
		}
	}

	n := float64(len(summary.Results))
	passRate := float64(passed) / n
	summary.OverallScore = passRate*100 - totalLoss/n
	return summary, nil
}

func severityFor(lossPercent float64) string {
	switch {
	case lossPercent <= 5:
		return SeverityMinimal
	case lossPercent <= 15:
		return SeverityModerate
	case lossPercent <= 30:
		return SeveritySignificant
	case lossPercent <= 50:
		return SeveritySevere
	default:
		return SeverityCatastrophic
	}
}
