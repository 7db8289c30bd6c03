package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/helmfi/helm/internal/database"
)

const (
	archivePrefix    = "helm-backup-"
	archiveTimestamp = "2006-01-02-150405"

	// minBackupsToKeep backups survive rotation regardless of the
	// configured retention.
	minBackupsToKeep = 3
)

// ObjectStore is the slice of object storage the backup service needs.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader) error
	List(ctx context.Context, prefix string) ([]types.Object, error)
	Delete(ctx context.Context, key string) error
}

// BackupService snapshots the engine's SQLite databases into a tar.gz
// archive and uploads it to object storage, rotating old archives.
type BackupService struct {
	store     ObjectStore
	databases map[string]*database.DB
	dataDir   string
	keep      int
	log       zerolog.Logger
}

// BackupMetadata describes one backup archive.
type BackupMetadata struct {
	Timestamp time.Time          `json:"timestamp"`
	Databases []DatabaseMetadata `json:"databases"`
}

// DatabaseMetadata describes a single database inside a backup.
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo summarizes an archive stored remotely.
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
}

// NewBackupService creates a backup service over the given databases.
// keep is the number of archives retained after rotation; zero keeps all.
func NewBackupService(
	store ObjectStore,
	databases map[string]*database.DB,
	dataDir string,
	keep int,
	log zerolog.Logger,
) *BackupService {
	return &BackupService{
		store:     store,
		databases: databases,
		dataDir:   dataDir,
		keep:      keep,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// Backup creates, verifies and uploads one backup archive, then rotates
// old archives.
func (s *BackupService) Backup(ctx context.Context) error {
	s.log.Info().Msg("Starting backup")
	startTime := time.Now()

	stagingDir, err := os.MkdirTemp(s.dataDir, "backup-staging-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	metadata := BackupMetadata{
		Timestamp: time.Now().UTC(),
		Databases: make([]DatabaseMetadata, 0, len(s.databases)),
	}

	names := make([]string, 0, len(s.databases))
	for name := range s.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		snapshotPath := filepath.Join(stagingDir, name+".db")
		if err := s.snapshotDatabase(name, snapshotPath); err != nil {
			return fmt.Errorf("failed to snapshot %s: %w", name, err)
		}
		if err := verifySnapshot(snapshotPath); err != nil {
			return fmt.Errorf("snapshot of %s failed verification: %w", name, err)
		}

		info, err := os.Stat(snapshotPath)
		if err != nil {
			return fmt.Errorf("failed to stat %s snapshot: %w", name, err)
		}
		checksum, err := fileChecksum(snapshotPath)
		if err != nil {
			return fmt.Errorf("failed to checksum %s snapshot: %w", name, err)
		}

		metadata.Databases = append(metadata.Databases, DatabaseMetadata{
			Name:      name,
			Filename:  name + ".db",
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
	}

	metadataPath := filepath.Join(stagingDir, "metadata.json")
	if err := writeMetadata(metadataPath, metadata); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	archiveName := archivePrefix + time.Now().Format(archiveTimestamp) + ".tar.gz"
	archivePath := filepath.Join(stagingDir, archiveName)
	members := append([]string{"metadata.json"}, dbFilenames(metadata.Databases)...)
	if err := createArchive(archivePath, stagingDir, members); err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer archiveFile.Close()

	if err := s.store.Upload(ctx, archiveName, archiveFile); err != nil {
		return fmt.Errorf("failed to upload archive: %w", err)
	}

	if err := s.rotate(ctx); err != nil {
		// The new backup is safe; rotation can retry next run.
		s.log.Error().Err(err).Msg("Failed to rotate old backups")
	}

	archiveInfo, _ := os.Stat(archivePath)
	var sizeBytes int64
	if archiveInfo != nil {
		sizeBytes = archiveInfo.Size()
	}
	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("archive", archiveName).
		Int64("size_bytes", sizeBytes).
		Msg("Backup completed successfully")

	return nil
}

// ListBackups returns the archives stored remotely, newest first.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, archivePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}
		filename := *obj.Key
		timestamp, ok := parseArchiveTimestamp(filename)
		if !ok {
			continue
		}

		var sizeBytes int64
		if obj.Size != nil {
			sizeBytes = *obj.Size
		}
		backups = append(backups, BackupInfo{
			Filename:  filename,
			Timestamp: timestamp,
			SizeBytes: sizeBytes,
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// rotate deletes archives beyond the retention count, always keeping at
// least minBackupsToKeep.
func (s *BackupService) rotate(ctx context.Context) error {
	if s.keep <= 0 {
		return nil
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}

	keep := s.keep
	if keep < minBackupsToKeep {
		keep = minBackupsToKeep
	}
	if len(backups) <= keep {
		return nil
	}

	deleted := 0
	for _, backup := range backups[keep:] {
		if err := s.store.Delete(ctx, backup.Filename); err != nil {
			s.log.Error().Err(err).Str("filename", backup.Filename).Msg("Failed to delete old backup")
			continue
		}
		s.log.Info().Str("filename", backup.Filename).Msg("Deleted old backup")
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(backups)-deleted).
		Msg("Backup rotation completed")
	return nil
}

// snapshotDatabase copies one database atomically using VACUUM INTO. The
// WAL is checkpointed first so the snapshot holds all committed data.
func (s *BackupService) snapshotDatabase(name, snapshotPath string) error {
	db, ok := s.databases[name]
	if !ok {
		return fmt.Errorf("database %s not found", name)
	}

	if err := db.Checkpoint(); err != nil {
		s.log.Warn().Err(err).Str("database", name).Msg("Checkpoint before backup failed")
	}

	if _, err := db.Conn().Exec(fmt.Sprintf("VACUUM INTO '%s'", snapshotPath)); err != nil {
		return fmt.Errorf("VACUUM INTO failed: %w", err)
	}
	return nil
}

func verifySnapshot(path string) error {
	snapshot, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer snapshot.Close()

	var result string
	if err := snapshot.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

func fileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

func writeMetadata(path string, metadata BackupMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

func dbFilenames(databases []DatabaseMetadata) []string {
	filenames := make([]string, 0, len(databases))
	for _, db := range databases {
		filenames = append(filenames, db.Filename)
	}
	return filenames
}

func parseArchiveTimestamp(filename string) (time.Time, bool) {
	if !strings.HasPrefix(filename, archivePrefix) || !strings.HasSuffix(filename, ".tar.gz") {
		return time.Time{}, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(filename, archivePrefix), ".tar.gz")
	timestamp, err := time.Parse(archiveTimestamp, raw)
	if err != nil {
		return time.Time{}, false
	}
	return timestamp, true
}

func createArchive(archivePath, sourceDir string, filenames []string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer archiveFile.Close()

	gzipWriter := gzip.NewWriter(archiveFile)
	defer gzipWriter.Close()

	tarWriter := tar.NewWriter(gzipWriter)
	defer tarWriter.Close()

	for _, filename := range filenames {
		if err := addFileToArchive(tarWriter, filepath.Join(sourceDir, filename), filename); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", filename, err)
		}
	}
	return nil
}

func addFileToArchive(tarWriter *tar.Writer, filePath, nameInArchive string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tarWriter, file)
	return err
}
