package reliability

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helmfi/helm/internal/database"
)

// MaintenanceJob keeps the SQLite files healthy: integrity checks, WAL
// checkpoints and space reclamation on cache-profile databases. Runs off
// hours; VACUUM takes the file lock.
type MaintenanceJob struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewMaintenanceJob creates the database maintenance job.
func NewMaintenanceJob(databases map[string]*database.DB, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		databases: databases,
		log:       log.With().Str("job", "db_maintenance").Logger(),
	}
}

// Name returns the job name for the scheduler.
func (j *MaintenanceJob) Name() string {
	return "db_maintenance"
}

// Run executes one maintenance pass over all databases.
func (j *MaintenanceJob) Run() error {
	j.log.Info().Msg("Starting database maintenance")
	startTime := time.Now()

	for name, db := range j.databases {
		if err := j.checkIntegrity(name, db); err != nil {
			return fmt.Errorf("integrity check failed for %s: %w", name, err)
		}

		if err := db.Checkpoint(); err != nil {
			j.log.Warn().Err(err).Str("database", name).Msg("WAL checkpoint failed")
		}

		// Store-profile databases reclaim space incrementally via
		// auto_vacuum; only cache databases need a full VACUUM.
		if db.Profile() == database.ProfileCache {
			if err := j.vacuum(name, db); err != nil {
				j.log.Error().Err(err).Str("database", name).Msg("VACUUM failed")
			}
		}
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Database maintenance completed")
	return nil
}

func (j *MaintenanceJob) checkIntegrity(name string, db *database.DB) error {
	var result string
	if err := db.Conn().QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check reported: %s", result)
	}

	j.log.Debug().Str("database", name).Msg("Integrity check passed")
	return nil
}

func (j *MaintenanceJob) vacuum(name string, db *database.DB) error {
	var pageCount, pageSize int
	_ = db.Conn().QueryRow("PRAGMA page_count").Scan(&pageCount)
	_ = db.Conn().QueryRow("PRAGMA page_size").Scan(&pageSize)
	sizeBefore := int64(pageCount) * int64(pageSize)

	if _, err := db.Conn().Exec("VACUUM"); err != nil {
		return err
	}

	_ = db.Conn().QueryRow("PRAGMA page_count").Scan(&pageCount)
	sizeAfter := int64(pageCount) * int64(pageSize)

	j.log.Info().
		Str("database", name).
		Int64("size_before_bytes", sizeBefore).
		Int64("size_after_bytes", sizeAfter).
		Msg("VACUUM completed")
	return nil
}
