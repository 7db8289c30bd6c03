package market

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"

	"github.com/helmfi/helm/pkg/formulas"
)

// HistoryDB provides access to historical daily price data. It keeps its
// own connection on the cgo driver; the rest of the engine uses the pure
// Go driver through internal/database.
type HistoryDB struct {
	db  *sql.DB
	log zerolog.Logger
}

const historySchema = `
CREATE TABLE IF NOT EXISTS daily_prices (
	asset TEXT NOT NULL,
	date TEXT NOT NULL,
	close REAL NOT NULL,
	PRIMARY KEY (asset, date)
);
CREATE INDEX IF NOT EXISTS idx_daily_prices_asset ON daily_prices(asset, date);
`

// NewHistoryDB opens (or creates) the history database at path.
func NewHistoryDB(path string, log zerolog.Logger) (*HistoryDB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	return &HistoryDB{
		db:  db,
		log: log.With().Str("component", "history_db").Logger(),
	}, nil
}

// Close closes the history database.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// RecordDailyClose upserts a daily closing price for an asset.
func (h *HistoryDB) RecordDailyClose(asset string, date time.Time, close float64) error {
	_, err := h.db.Exec(
		`INSERT INTO daily_prices (asset, date, close) VALUES (?, ?, ?)
		 ON CONFLICT(asset, date) DO UPDATE SET close = excluded.close`,
		normalizeAsset(asset), date.Format("2006-01-02"), close,
	)
	if err != nil {
		return fmt.Errorf("failed to record daily close: %w", err)
	}
	return nil
}

// DailyCloses returns up to limit closing prices for an asset, oldest
// first.
func (h *HistoryDB) DailyCloses(asset string, limit int) ([]float64, error) {
	rows, err := h.db.Query(
		`SELECT close FROM (
			SELECT date, close FROM daily_prices WHERE asset = ? ORDER BY date DESC LIMIT ?
		 ) ORDER BY date ASC`,
		normalizeAsset(asset), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily closes: %w", err)
	}
	defer rows.Close()

	var closes []float64
	for rows.Next() {
		var c float64
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan daily close: %w", err)
		}
		closes = append(closes, c)
	}
	return closes, rows.Err()
}

// minHistoryPoints is the smallest price series worth deriving realized
// volatility from.
const minHistoryPoints = 30

// RealizedVolatility computes annualized volatility (in percent) from
// stored daily closes. Returns ok=false when there is not enough history.
func (h *HistoryDB) RealizedVolatility(asset string, lookbackDays int) (float64, bool) {
	closes, err := h.DailyCloses(asset, lookbackDays)
	if err != nil {
		h.log.Warn().Str("asset", asset).Err(err).Msg("Failed to load price history")
		return 0, false
	}
	if len(closes) < minHistoryPoints {
		return 0, false
	}

	returns := formulas.CalculateReturns(closes)
	return formulas.AnnualizedVolatility(returns) * 100, true
}
