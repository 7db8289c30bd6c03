package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/helmfi/helm/internal/modules/automation"
	"github.com/helmfi/helm/internal/modules/calculations"
	"github.com/helmfi/helm/internal/reliability"
)

// tickTimeout bounds one automation tick. A tick that cannot finish in
// this window is cut off; remaining automations run on the next tick.
const tickTimeout = 5 * time.Minute

// TickJob drives the automation scheduler's tick loop.
type TickJob struct {
	scheduler *automation.Scheduler
	log       zerolog.Logger
}

// NewTickJob creates the automation tick job.
func NewTickJob(scheduler *automation.Scheduler, log zerolog.Logger) *TickJob {
	return &TickJob{scheduler: scheduler, log: log.With().Str("job", "automation_tick").Logger()}
}

func (j *TickJob) Name() string { return "automation_tick" }

func (j *TickJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	processed, err := j.scheduler.Tick(ctx, time.Now())
	if err != nil {
		return err
	}
	if processed > 0 {
		j.log.Info().Int("processed", processed).Msg("Processed due automations")
	}
	return nil
}

// CacheCleanupJob sweeps expired entries from the calculations cache.
type CacheCleanupJob struct {
	cache *calculations.Cache
}

// NewCacheCleanupJob creates the cache cleanup job.
func NewCacheCleanupJob(cache *calculations.Cache) *CacheCleanupJob {
	return &CacheCleanupJob{cache: cache}
}

func (j *CacheCleanupJob) Name() string { return "cache_cleanup" }

func (j *CacheCleanupJob) Run() error {
	_, err := j.cache.Cleanup()
	return err
}

// BackupJob snapshots the engine databases to object storage.
type BackupJob struct {
	backups *reliability.BackupService
}

// NewBackupJob creates the backup job.
func NewBackupJob(backups *reliability.BackupService) *BackupJob {
	return &BackupJob{backups: backups}
}

func (j *BackupJob) Name() string { return "store_backup" }

func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	return j.backups.Backup(ctx)
}
