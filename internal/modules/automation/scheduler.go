package automation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/helmfi/helm/internal/domain"
)

// Retry policy for failed executions.
const (
	RetryLimit     = 3
	RetryBaseDelay = 5 * time.Second
)

// CreateSpec is the input to CreateAutomation.
type CreateSpec struct {
	UserID    string     `json:"user_id"`
	Type      Type       `json:"type"`
	Frequency Frequency  `json:"frequency,omitempty"`
	Params    Params     `json:"-"`
	StartDate time.Time  `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// Scheduler owns the automation lifecycle. All mutation happens either at
// creation, through explicit Pause/Resume/Cancel calls, or on the tick
// path; ticks never overlap.
type Scheduler struct {
	store    Store
	executor *Executor
	log      zerolog.Logger

	ticking atomic.Bool
	now     func() time.Time
}

// NewScheduler creates the automation scheduler.
func NewScheduler(store Store, executor *Executor, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		executor: executor,
		log:      log.With().Str("component", "scheduler").Logger(),
		now:      time.Now,
	}
}

// CreateAutomation validates a spec and schedules it. Bad specs are
// rejected synchronously with a ValidationError and never enter the
// schedule.
func (s *Scheduler) CreateAutomation(ctx context.Context, spec CreateSpec) (*Automation, error) {
	if spec.UserID == "" {
		return nil, &domain.ValidationError{Field: "user_id", Reason: "is required"}
	}
	if !validType(spec.Type) {
		return nil, &domain.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown automation type %q", spec.Type)}
	}
	if spec.Frequency != "" && !validFrequency(spec.Frequency) {
		return nil, &domain.ValidationError{Field: "frequency", Reason: fmt.Sprintf("unknown frequency %q", spec.Frequency)}
	}
	if spec.Params == nil {
		return nil, &domain.ValidationError{Field: "params", Reason: "are required"}
	}
	if spec.Params.Kind() != spec.Type {
		return nil, &domain.ValidationError{Field: "params", Reason: "do not match automation type"}
	}
	if err := spec.Params.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	next := firstExecutionFor(now, spec)
	if spec.EndDate != nil && next.After(*spec.EndDate) {
		return nil, &domain.ValidationError{Field: "end_date", Reason: "is before the first execution"}
	}

	a := &Automation{
		ID:            newID(),
		UserID:        spec.UserID,
		Type:          spec.Type,
		Status:        StatusActive,
		Frequency:     spec.Frequency,
		Params:        spec.Params,
		StartDate:     spec.StartDate,
		EndDate:       spec.EndDate,
		CreatedAt:     now,
		NextExecution: &next,
	}
	if a.StartDate.IsZero() {
		a.StartDate = now
	}

	if err := s.store.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to store automation: %w", err)
	}

	s.log.Info().
		Str("automation_id", a.ID).
		Str("user_id", a.UserID).
		Str("type", string(a.Type)).
		Time("next_execution", next).
		Msg("Automation created")
	return a, nil
}

func firstExecutionFor(now time.Time, spec CreateSpec) time.Time {
	if spec.Frequency == "" {
		// One-shot: due at the start date, or immediately.
		if spec.StartDate.After(now) {
			return spec.StartDate
		}
		return now
	}
	return FirstExecution(now, spec.StartDate, spec.Frequency)
}

// Get returns one automation.
func (s *Scheduler) Get(ctx context.Context, id string) (*Automation, error) {
	return s.store.Get(ctx, id)
}

// ListByUser returns a user's automations in creation order.
func (s *Scheduler) ListByUser(ctx context.Context, userID string) ([]*Automation, error) {
	return s.store.ListByUser(ctx, userID)
}

// ListExecutions returns an automation's audit trail, newest first.
func (s *Scheduler) ListExecutions(ctx context.Context, id string, limit int) ([]ExecutionRecord, error) {
	return s.store.ListExecutions(ctx, id, limit)
}

// Pause suspends an active automation. Takes effect on the next tick; an
// execution already in flight is not interrupted.
func (s *Scheduler) Pause(ctx context.Context, id string) (*Automation, error) {
	return s.transition(ctx, id, func(a *Automation) error {
		switch a.Status {
		case StatusActive:
			a.Status = StatusPaused
			return nil
		case StatusPaused:
			return nil // idempotent
		default:
			return &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("cannot pause a %s automation", a.Status)}
		}
	})
}

// Resume reactivates a paused or failed automation and clears the
// failure counter. A next execution still in the future is kept
// untouched, so pause followed by an immediate resume leaves the
// schedule exactly as it was; a run missed while paused is stepped
// forward from its original anchor so the cadence day survives.
func (s *Scheduler) Resume(ctx context.Context, id string) (*Automation, error) {
	return s.transition(ctx, id, func(a *Automation) error {
		switch a.Status {
		case StatusPaused, StatusFailed:
			a.Status = StatusActive
			a.FailureCount = 0
			now := s.now()
			if a.NextExecution != nil && a.NextExecution.After(now) {
				return nil
			}
			next := now
			if a.Frequency != "" {
				if a.NextExecution != nil {
					next = *a.NextExecution
					for !next.After(now) {
						next = NextAfter(next, a.Frequency)
					}
				} else {
					next = NextAfter(now, a.Frequency)
				}
			}
			a.NextExecution = &next
			return nil
		case StatusActive:
			return nil // idempotent
		default:
			return &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("cannot resume a %s automation", a.Status)}
		}
	})
}

// Cancel terminates an automation. The record is retained for audit.
func (s *Scheduler) Cancel(ctx context.Context, id string) (*Automation, error) {
	return s.transition(ctx, id, func(a *Automation) error {
		switch a.Status {
		case StatusActive, StatusPaused:
			a.Status = StatusCancelled
			a.NextExecution = nil
			return nil
		case StatusCancelled:
			return nil // idempotent
		default:
			return &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("cannot cancel a %s automation", a.Status)}
		}
	})
}

// Delete removes an automation and its audit trail.
func (s *Scheduler) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

func (s *Scheduler) transition(ctx context.Context, id string, mutate func(*Automation) error) (*Automation, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(a); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Tick processes all due automations sequentially. Overlapping ticks are
// dropped, not queued; automations due during a busy tick run on the
// next one. Handler failures are isolated per item and never propagate.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (int, error) {
	if !s.ticking.CompareAndSwap(false, true) {
		s.log.Debug().Msg("Tick already in flight, dropping")
		return 0, nil
	}
	defer s.ticking.Store(false)

	due, err := s.store.ListDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list due automations: %w", err)
	}

	for _, a := range due {
		s.process(ctx, a, now)
	}
	return len(due), nil
}

func (s *Scheduler) process(ctx context.Context, a *Automation, now time.Time) {
	result, err := s.executor.Execute(ctx, a)

	rec := ExecutionRecord{AutomationID: a.ID, At: now}
	if err != nil {
		rec.Error = err.Error()
		s.handleFailure(a, now, err)
	} else {
		rec.Success = true
		rec.Skipped = result.Skipped
		rec.Reason = result.Reason
		s.handleSuccess(a, now, result)
	}

	if storeErr := s.store.RecordExecution(ctx, rec); storeErr != nil {
		s.log.Error().Str("automation_id", a.ID).Err(storeErr).Msg("Failed to record execution")
	}

	// The handler ran against a snapshot from ListDue. A Pause or Cancel
	// committed while it was running must not be clobbered by the
	// write-back, so re-read the record and preserve an external
	// transition before writing the scheduling and failure fields.
	current, getErr := s.store.Get(ctx, a.ID)
	switch {
	case errors.Is(getErr, ErrNotFound):
		return // deleted while executing
	case getErr != nil:
		s.log.Error().Str("automation_id", a.ID).Err(getErr).Msg("Failed to reload automation after execution")
		return
	}
	switch current.Status {
	case StatusCancelled:
		a.Status = StatusCancelled
		a.NextExecution = nil
	case StatusPaused:
		if a.Status != StatusCompleted {
			a.Status = StatusPaused
		}
	}

	if storeErr := s.store.Update(ctx, a); storeErr != nil {
		s.log.Error().Str("automation_id", a.ID).Err(storeErr).Msg("Failed to update automation")
	}
}

func (s *Scheduler) handleFailure(a *Automation, now time.Time, err error) {
	a.FailureCount++
	a.LastFailure = &Failure{
		At:      now,
		Kind:    string(domain.ExecutionKind(err)),
		Message: err.Error(),
	}

	if a.FailureCount >= RetryLimit {
		a.Status = StatusFailed
		s.log.Warn().
			Str("automation_id", a.ID).
			Int("failures", a.FailureCount).
			Msg("Automation failed permanently, awaiting explicit resume")
		return
	}

	retry := now.Add(RetryBaseDelay * (1 << (a.FailureCount - 1)))
	a.NextExecution = &retry
	s.log.Info().
		Str("automation_id", a.ID).
		Int("failures", a.FailureCount).
		Time("retry_at", retry).
		Msg("Automation execution failed, retrying with backoff")
}

func (s *Scheduler) handleSuccess(a *Automation, now time.Time, result *Result) {
	a.LastExecuted = &now
	if !result.Skipped {
		a.ExecutionCount++
		a.FailureCount = 0
		a.LastFailure = nil
	}

	if a.Frequency == "" {
		a.Status = StatusCompleted
		a.NextExecution = nil
		return
	}

	next := NextAfter(now, a.Frequency)
	if a.EndDate != nil && next.After(*a.EndDate) {
		a.Status = StatusCompleted
		a.NextExecution = nil
		return
	}
	a.NextExecution = &next
}
