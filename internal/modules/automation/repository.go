package automation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SQLiteStore persists automations in the engine database. Timestamps are
// stored as Unix milliseconds in UTC so ordering works in SQL.
type SQLiteStore struct {
	db *sql.DB
}

const automationSchema = `
CREATE TABLE IF NOT EXISTS automations (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	frequency TEXT NOT NULL DEFAULT '',
	params TEXT NOT NULL,
	start_date INTEGER NOT NULL,
	end_date INTEGER,
	created_at INTEGER NOT NULL,
	last_executed INTEGER,
	next_execution INTEGER,
	execution_count INTEGER NOT NULL DEFAULT 0,
	failure_count INTEGER NOT NULL DEFAULT 0,
	last_failure TEXT
);
CREATE INDEX IF NOT EXISTS idx_automations_user ON automations(user_id);
CREATE INDEX IF NOT EXISTS idx_automations_due ON automations(status, next_execution);

CREATE TABLE IF NOT EXISTS automation_executions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	automation_id TEXT NOT NULL,
	executed_at INTEGER NOT NULL,
	success INTEGER NOT NULL,
	skipped INTEGER NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_executions_automation ON automation_executions(automation_id, executed_at);
`

// NewSQLiteStore creates the store, initializing its schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(automationSchema); err != nil {
		return nil, fmt.Errorf("failed to initialize automation schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, a *Automation) error {
	params, failure, err := encodeBlobs(a)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO automations (
			id, user_id, type, status, frequency, params,
			start_date, end_date, created_at, last_executed, next_execution,
			execution_count, failure_count, last_failure
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, string(a.Type), string(a.Status), string(a.Frequency), params,
		a.StartDate.UnixMilli(), millisOrNil(a.EndDate), a.CreatedAt.UnixMilli(),
		millisOrNil(a.LastExecuted), millisOrNil(a.NextExecution),
		a.ExecutionCount, a.FailureCount, failure,
	)
	if err != nil {
		return fmt.Errorf("failed to insert automation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Automation, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" FROM automations WHERE id = ?", id)
	return scanAutomation(row)
}

func (s *SQLiteStore) Update(ctx context.Context, a *Automation) error {
	params, failure, err := encodeBlobs(a)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE automations SET
			status = ?, frequency = ?, params = ?,
			start_date = ?, end_date = ?, last_executed = ?, next_execution = ?,
			execution_count = ?, failure_count = ?, last_failure = ?
		WHERE id = ?`,
		string(a.Status), string(a.Frequency), params,
		a.StartDate.UnixMilli(), millisOrNil(a.EndDate),
		millisOrNil(a.LastExecuted), millisOrNil(a.NextExecution),
		a.ExecutionCount, a.FailureCount, failure, a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update automation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM automations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete automation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	_, err = s.db.ExecContext(ctx, "DELETE FROM automation_executions WHERE automation_id = ?", id)
	return err
}

func (s *SQLiteStore) ListByUser(ctx context.Context, userID string) ([]*Automation, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+" FROM automations WHERE user_id = ? ORDER BY created_at ASC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list automations: %w", err)
	}
	defer rows.Close()
	return scanAutomations(rows)
}

func (s *SQLiteStore) ListDue(ctx context.Context, now time.Time) ([]*Automation, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` FROM automations
		 WHERE status = ? AND next_execution IS NOT NULL AND next_execution <= ?
		 ORDER BY next_execution ASC, created_at ASC`,
		string(StatusActive), now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to list due automations: %w", err)
	}
	defer rows.Close()
	return scanAutomations(rows)
}

func (s *SQLiteStore) RecordExecution(ctx context.Context, rec ExecutionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO automation_executions (automation_id, executed_at, success, skipped, reason, error)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.AutomationID, rec.At.UnixMilli(), rec.Success, rec.Skipped, rec.Reason, rec.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListExecutions(ctx context.Context, automationID string, limit int) ([]ExecutionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT automation_id, executed_at, success, skipped, reason, error
		FROM automation_executions WHERE automation_id = ?
		ORDER BY executed_at DESC, id DESC LIMIT ?`,
		automationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var out []ExecutionRecord
	for rows.Next() {
		var rec ExecutionRecord
		var at int64
		if err := rows.Scan(&rec.AutomationID, &at, &rec.Success, &rec.Skipped, &rec.Reason, &rec.Error); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		rec.At = time.UnixMilli(at).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

const selectColumns = `SELECT id, user_id, type, status, frequency, params,
	start_date, end_date, created_at, last_executed, next_execution,
	execution_count, failure_count, last_failure`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAutomation(row rowScanner) (*Automation, error) {
	var a Automation
	var typ, status, frequency, params string
	var failure sql.NullString
	var startDate, createdAt int64
	var endDate, lastExecuted, nextExecution sql.NullInt64

	err := row.Scan(&a.ID, &a.UserID, &typ, &status, &frequency, &params,
		&startDate, &endDate, &createdAt, &lastExecuted, &nextExecution,
		&a.ExecutionCount, &a.FailureCount, &failure)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan automation: %w", err)
	}

	a.Type = Type(typ)
	a.Status = Status(status)
	a.Frequency = Frequency(frequency)
	a.StartDate = time.UnixMilli(startDate).UTC()
	a.CreatedAt = time.UnixMilli(createdAt).UTC()
	a.EndDate = timeOrNil(endDate)
	a.LastExecuted = timeOrNil(lastExecuted)
	a.NextExecution = timeOrNil(nextExecution)

	a.Params, err = UnmarshalParams(a.Type, []byte(params))
	if err != nil {
		return nil, fmt.Errorf("failed to decode stored params: %w", err)
	}
	if failure.Valid && failure.String != "" {
		var f Failure
		if err := json.Unmarshal([]byte(failure.String), &f); err != nil {
			return nil, fmt.Errorf("failed to decode stored failure: %w", err)
		}
		a.LastFailure = &f
	}
	return &a, nil
}

func scanAutomations(rows *sql.Rows) ([]*Automation, error) {
	var out []*Automation
	for rows.Next() {
		a, err := scanAutomation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func encodeBlobs(a *Automation) (params string, failure interface{}, err error) {
	data, err := json.Marshal(a.Params)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode params: %w", err)
	}
	params = string(data)

	if a.LastFailure != nil {
		data, err := json.Marshal(a.LastFailure)
		if err != nil {
			return "", nil, fmt.Errorf("failed to encode failure: %w", err)
		}
		failure = string(data)
	}
	return params, failure, nil
}

func millisOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func timeOrNil(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}
