package automation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when an automation ID does not exist.
var ErrNotFound = errors.New("automation not found")

// ExecutionRecord is one row of the execution audit trail.
type ExecutionRecord struct {
	AutomationID string    `json:"automation_id"`
	At           time.Time `json:"at"`
	Success      bool      `json:"success"`
	Skipped      bool      `json:"skipped"`
	Reason       string    `json:"reason,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Store persists automations and their execution audit trail.
type Store interface {
	Create(ctx context.Context, a *Automation) error
	Get(ctx context.Context, id string) (*Automation, error)
	Update(ctx context.Context, a *Automation) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]*Automation, error)

	// ListDue returns Active automations with NextExecution <= now,
	// ordered by NextExecution ascending, ties broken by creation order.
	ListDue(ctx context.Context, now time.Time) ([]*Automation, error)

	RecordExecution(ctx context.Context, rec ExecutionRecord) error
	ListExecutions(ctx context.Context, automationID string, limit int) ([]ExecutionRecord, error)
}

// MemoryStore is an in-memory Store for tests and single-process use.
type MemoryStore struct {
	mu         sync.RWMutex
	items      map[string]*Automation
	executions []ExecutionRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*Automation)}
}

func (s *MemoryStore) Create(_ context.Context, a *Automation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.items[a.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Automation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) Update(_ context.Context, a *Automation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[a.ID]; !ok {
		return ErrNotFound
	}
	cp := *a
	s.items[a.ID] = &cp
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]*Automation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Automation
	for _, a := range s.items {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ListDue(_ context.Context, now time.Time) ([]*Automation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []*Automation
	for _, a := range s.items {
		if a.Status != StatusActive || a.NextExecution == nil {
			continue
		}
		if !a.NextExecution.After(now) {
			cp := *a
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].NextExecution.Equal(*due[j].NextExecution) {
			return due[i].CreatedAt.Before(due[j].CreatedAt)
		}
		return due[i].NextExecution.Before(*due[j].NextExecution)
	})
	return due, nil
}

func (s *MemoryStore) RecordExecution(_ context.Context, rec ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions = append(s.executions, rec)
	return nil
}

func (s *MemoryStore) ListExecutions(_ context.Context, automationID string, limit int) ([]ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ExecutionRecord
	for i := len(s.executions) - 1; i >= 0; i-- {
		if s.executions[i].AutomationID == automationID {
			out = append(out, s.executions[i])
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}
