package automation

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite", t.TempDir()+"/engine.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLiteStore(db)
	require.NoError(t, err)
	return store
}

func storedAutomation(id string, created time.Time, next time.Time) *Automation {
	return &Automation{
		ID:            id,
		UserID:        "u1",
		Type:          TypeScheduledDeposit,
		Status:        StatusActive,
		Frequency:     FrequencyDaily,
		Params:        DepositParams{Amount: 250, StrategyID: "aave-usdc"},
		StartDate:     created,
		CreatedAt:     created,
		NextExecution: &next,
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	created := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	next := created.AddDate(0, 0, 1)
	a := storedAutomation("a1", created, next)
	end := created.AddDate(1, 0, 0)
	a.EndDate = &end
	a.LastFailure = &Failure{At: created, Kind: "insufficient_funds", Message: "broke"}

	require.NoError(t, store.Create(ctx, a))

	got, err := store.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, a.UserID, got.UserID)
	assert.Equal(t, a.Type, got.Type)
	assert.Equal(t, DepositParams{Amount: 250, StrategyID: "aave-usdc"}, got.Params)
	assert.Equal(t, next, *got.NextExecution)
	assert.Equal(t, end, *got.EndDate)
	require.NotNil(t, got.LastFailure)
	assert.Equal(t, "insufficient_funds", got.LastFailure.Kind)
}

func TestSQLiteStoreGetMissing(t *testing.T) {
	store := newSQLiteStore(t)

	_, err := store.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStoreUpdate(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	created := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	a := storedAutomation("a1", created, created.AddDate(0, 0, 1))
	require.NoError(t, store.Create(ctx, a))

	a.Status = StatusPaused
	a.ExecutionCount = 4
	a.NextExecution = nil
	require.NoError(t, store.Update(ctx, a))

	got, err := store.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, got.Status)
	assert.Equal(t, 4, got.ExecutionCount)
	assert.Nil(t, got.NextExecution)

	assert.ErrorIs(t, store.Update(ctx, storedAutomation("ghost", created, created)), ErrNotFound)
}

func TestSQLiteStoreListDueOrdering(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	late := storedAutomation("late", base, base.Add(2*time.Hour))
	early := storedAutomation("early", base.Add(time.Minute), base.Add(time.Hour))
	tieOld := storedAutomation("tie-old", base, base.Add(time.Hour))
	paused := storedAutomation("paused", base, base.Add(time.Hour))
	paused.Status = StatusPaused
	future := storedAutomation("future", base, base.Add(48*time.Hour))

	for _, a := range []*Automation{late, early, tieOld, paused, future} {
		require.NoError(t, store.Create(ctx, a))
	}

	due, err := store.ListDue(ctx, base.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 3)

	// Ordered by next execution, ties broken by creation order.
	assert.Equal(t, "tie-old", due[0].ID)
	assert.Equal(t, "early", due[1].ID)
	assert.Equal(t, "late", due[2].ID)
}

func TestSQLiteStoreDeleteCascadesExecutions(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	created := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	a := storedAutomation("a1", created, created.AddDate(0, 0, 1))
	require.NoError(t, store.Create(ctx, a))
	require.NoError(t, store.RecordExecution(ctx, ExecutionRecord{AutomationID: "a1", At: created, Success: true}))

	require.NoError(t, store.Delete(ctx, "a1"))

	_, err := store.Get(ctx, "a1")
	assert.ErrorIs(t, err, ErrNotFound)

	recs, err := store.ListExecutions(ctx, "a1", 10)
	require.NoError(t, err)
	assert.Empty(t, recs)

	assert.ErrorIs(t, store.Delete(ctx, "a1"), ErrNotFound)
}

func TestSQLiteStoreExecutionsNewestFirst(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.RecordExecution(ctx, ExecutionRecord{
			AutomationID: "a1",
			At:           base.Add(time.Duration(i) * time.Hour),
			Success:      true,
			Reason:       "",
		}))
	}

	recs, err := store.ListExecutions(ctx, "a1", 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.True(t, recs[0].At.After(recs[1].At))
}
