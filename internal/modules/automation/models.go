// Package automation implements the scheduling and execution of recurring
// portfolio operations: deposits, strategy entries, rebalancing,
// take-profit, stop-loss and yield harvesting. Each automation is a small
// state machine driven by the scheduler's tick loop.
package automation

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies what an automation does when executed.
type Type string

const (
	TypeScheduledDeposit  Type = "scheduled_deposit"
	TypeStrategyExecution Type = "strategy_execution"
	TypeRebalancing       Type = "rebalancing"
	TypeTakeProfit        Type = "take_profit"
	TypeStopLoss          Type = "stop_loss"
	TypeYieldHarvest      Type = "yield_harvest"
)

// KnownTypes lists all valid automation types.
func KnownTypes() []Type {
	return []Type{
		TypeScheduledDeposit,
		TypeStrategyExecution,
		TypeRebalancing,
		TypeTakeProfit,
		TypeStopLoss,
		TypeYieldHarvest,
	}
}

// Status is the lifecycle state of an automation.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Frequency is how often a recurring automation runs. One-shot types may
// leave it empty.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiweekly  Frequency = "biweekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
)

// KnownFrequencies lists all valid frequencies.
func KnownFrequencies() []Frequency {
	return []Frequency{
		FrequencyDaily,
		FrequencyWeekly,
		FrequencyBiweekly,
		FrequencyMonthly,
		FrequencyQuarterly,
	}
}

func validFrequency(f Frequency) bool {
	for _, known := range KnownFrequencies() {
		if f == known {
			return true
		}
	}
	return false
}

func validType(t Type) bool {
	for _, known := range KnownTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Failure records the most recent execution failure for inspection.
type Failure struct {
	At      time.Time `json:"at"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
}

// Automation is one scheduled unit of work. Mutated only by the scheduler
// during tick processing or by explicit Pause/Resume/Cancel calls.
type Automation struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Type          Type       `json:"type"`
	Status        Status     `json:"status"`
	Frequency     Frequency  `json:"frequency,omitempty"`
	Params        Params     `json:"params"`
	StartDate     time.Time  `json:"start_date"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	LastExecuted  *time.Time `json:"last_executed,omitempty"`
	NextExecution *time.Time `json:"next_execution,omitempty"`

	ExecutionCount int      `json:"execution_count"`
	FailureCount   int      `json:"failure_count"`
	LastFailure    *Failure `json:"last_failure,omitempty"`
}

// newID returns a fresh automation identifier.
func newID() string {
	return uuid.New().String()
}
