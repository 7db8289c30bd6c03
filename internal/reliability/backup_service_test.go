package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmfi/helm/internal/database"
)

// fakeStore is an in-memory ObjectStore.
type fakeStore struct {
	objects map[string][]byte
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Upload(_ context.Context, key string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeStore) List(_ context.Context, prefix string) ([]types.Object, error) {
	var objects []types.Object
	for key, data := range f.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		objects = append(objects, types.Object{
			Key:  aws.String(key),
			Size: aws.Int64(int64(len(data))),
		})
	}
	return objects, nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func testDatabases(t *testing.T) (map[string]*database.DB, string) {
	t.Helper()
	dir := t.TempDir()

	engine, err := database.New(database.Config{
		Path:    filepath.Join(dir, "engine.db"),
		Profile: database.ProfileStore,
		Name:    "engine",
	})
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	cache, err := database.New(database.Config{
		Path:    filepath.Join(dir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	_, err = engine.Conn().Exec(`CREATE TABLE records (id INTEGER PRIMARY KEY, note TEXT)`)
	require.NoError(t, err)
	_, err = engine.Conn().Exec(`INSERT INTO records (note) VALUES ('kept')`)
	require.NoError(t, err)

	return map[string]*database.DB{"engine": engine, "cache": cache}, dir
}

func TestBackupUploadsArchive(t *testing.T) {
	databases, dataDir := testDatabases(t)
	store := newFakeStore()
	svc := NewBackupService(store, databases, dataDir, 7, zerolog.Nop())

	require.NoError(t, svc.Backup(context.Background()))

	require.Len(t, store.objects, 1)
	var archiveName string
	for key := range store.objects {
		archiveName = key
	}
	assert.True(t, strings.HasPrefix(archiveName, archivePrefix))
	assert.True(t, strings.HasSuffix(archiveName, ".tar.gz"))

	members := readArchive(t, store.objects[archiveName])
	assert.Contains(t, members, "metadata.json")
	assert.Contains(t, members, "engine.db")
	assert.Contains(t, members, "cache.db")

	var metadata BackupMetadata
	require.NoError(t, json.Unmarshal(members["metadata.json"], &metadata))
	require.Len(t, metadata.Databases, 2)
	for _, db := range metadata.Databases {
		assert.True(t, strings.HasPrefix(db.Checksum, "sha256:"))
		assert.Greater(t, db.SizeBytes, int64(0))
		assert.Equal(t, db.SizeBytes, int64(len(members[db.Filename])))
	}
}

func TestBackupRotatesOldArchives(t *testing.T) {
	databases, dataDir := testDatabases(t)
	store := newFakeStore()

	// Seed five older archives a day apart.
	base := time.Now().AddDate(0, 0, -10)
	for i := 0; i < 5; i++ {
		key := archivePrefix + base.AddDate(0, 0, i).Format(archiveTimestamp) + ".tar.gz"
		store.objects[key] = []byte("old")
	}

	svc := NewBackupService(store, databases, dataDir, 3, zerolog.Nop())
	require.NoError(t, svc.Backup(context.Background()))

	// 6 archives after upload, 3 retained.
	assert.Len(t, store.objects, 3)
	assert.Len(t, store.deleted, 3)

	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 3)
	for i := 1; i < len(backups); i++ {
		assert.True(t, backups[i-1].Timestamp.After(backups[i].Timestamp))
	}
}

func TestBackupKeepZeroDisablesRotation(t *testing.T) {
	databases, dataDir := testDatabases(t)
	store := newFakeStore()
	for i := 0; i < 5; i++ {
		key := archivePrefix + time.Now().AddDate(0, 0, -i-1).Format(archiveTimestamp) + ".tar.gz"
		store.objects[key] = []byte("old")
	}

	svc := NewBackupService(store, databases, dataDir, 0, zerolog.Nop())
	require.NoError(t, svc.Backup(context.Background()))

	assert.Len(t, store.objects, 6)
	assert.Empty(t, store.deleted)
}

func TestListBackupsIgnoresForeignObjects(t *testing.T) {
	databases, dataDir := testDatabases(t)
	store := newFakeStore()
	store.objects["helm-backup-2026-01-05-120000.tar.gz"] = []byte("a")
	store.objects["helm-backup-not-a-timestamp.tar.gz"] = []byte("b")
	store.objects["unrelated.txt"] = []byte("c")

	svc := NewBackupService(store, databases, dataDir, 7, zerolog.Nop())
	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, "helm-backup-2026-01-05-120000.tar.gz", backups[0].Filename)
}

func TestMaintenanceJobRuns(t *testing.T) {
	databases, _ := testDatabases(t)
	job := NewMaintenanceJob(databases, zerolog.Nop())

	assert.Equal(t, "db_maintenance", job.Name())
	require.NoError(t, job.Run())
}

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()

	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer gz.Close()

	members := make(map[string][]byte)
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		members[header.Name] = content
	}
	return members
}
