package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitwatch/gitwatch/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Migrate(ctx)
	assert.NoError(t, err)
}

func TestRepoCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := &models.Repo{
		Name:         "myrepo",
		Path:         "/tmp/src/myrepo",
		Enabled:      true,
		SyncInterval: 2 * time.Minute,
	}
	err := s.CreateRepo(ctx, r)
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.False(t, r.CreatedAt.IsZero())

	got, err := s.GetRepo(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "myrepo", got.Name)
	assert.Equal(t, "/tmp/src/myrepo", got.Path)
	assert.True(t, got.Enabled)
	assert.Equal(t, 2*time.Minute, got.SyncInterval)
	assert.Equal(t, models.SyncStatusIdle, got.LastSyncStatus)
	assert.Nil(t, got.LastSyncAt)

	got, err = s.GetRepoByName(ctx, "myrepo")
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)

	got.Name = "renamed"
	err = s.UpdateRepo(ctx, got)
	require.NoError(t, err)
	got, err = s.GetRepo(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)

	err = s.DeleteRepo(ctx, r.ID)
	require.NoError(t, err)
	_, err = s.GetRepo(ctx, r.ID)
	assert.ErrorContains(t, err, "not found")
}

func TestCreateRepo_DuplicatePath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRepo(ctx, &models.Repo{Name: "a", Path: "/tmp/dup", Enabled: true}))
	err := s.CreateRepo(ctx, &models.Repo{Name: "b", Path: "/tmp/dup", Enabled: true})
	assert.Error(t, err)
}

func TestListEnabledRepos_FiltersDisabled(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRepo(ctx, &models.Repo{Name: "on", Path: "/tmp/on", Enabled: true}))
	require.NoError(t, s.CreateRepo(ctx, &models.Repo{Name: "off", Path: "/tmp/off", Enabled: false}))

	all, err := s.ListRepos(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	enabled, err := s.ListEnabledRepos(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "on", enabled[0].Name)
}

func TestSetRepoEnabled(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := &models.Repo{Name: "toggle", Path: "/tmp/toggle", Enabled: true}
	require.NoError(t, s.CreateRepo(ctx, r))

	require.NoError(t, s.SetRepoEnabled(ctx, r.ID, false))
	got, err := s.GetRepo(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)

	err = s.SetRepoEnabled(ctx, "nonexistent", true)
	assert.ErrorContains(t, err, "not found")
}

func TestUpdateRepoInterval(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := &models.Repo{Name: "iv", Path: "/tmp/iv", Enabled: true}
	require.NoError(t, s.CreateRepo(ctx, r))

	require.NoError(t, s.UpdateRepoInterval(ctx, r.ID, 90*time.Second))
	got, err := s.GetRepo(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, got.SyncInterval)

	// Zero resets to the global default
	require.NoError(t, s.UpdateRepoInterval(ctx, r.ID, 0))
	got, err = s.GetRepo(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), got.SyncInterval)
}

func TestMarkSyncRunning(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := &models.Repo{Name: "run", Path: "/tmp/run", Enabled: true}
	require.NoError(t, s.CreateRepo(ctx, r))

	require.NoError(t, s.MarkSyncRunning(ctx, r.ID))
	got, err := s.GetRepo(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusRunning, got.LastSyncStatus)
}

func TestRecordCycleResult_Success(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := &models.Repo{Name: "rec", Path: "/tmp/rec", Enabled: true}
	require.NoError(t, s.CreateRepo(ctx, r))

	started := time.Now().UTC().Truncate(time.Second)
	res := &models.CycleResult{
		RepoID:        r.ID,
		RepoName:      r.Name,
		StartedAt:     started,
		Success:       true,
		RemoteChanges: true,
		CommitsBehind: 3,
	}
	require.NoError(t, s.RecordCycleResult(ctx, res))

	got, err := s.GetRepo(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusSuccess, got.LastSyncStatus)
	require.NotNil(t, got.LastSyncAt)
	assert.True(t, got.RemoteChanges)
	assert.Equal(t, 3, got.RemoteCommitCount)
	assert.Empty(t, got.LastSyncError)
}

func TestRecordCycleResult_ClearsStaleCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := &models.Repo{Name: "stale", Path: "/tmp/stale", Enabled: true}
	require.NoError(t, s.CreateRepo(ctx, r))

	// First cycle: 5 behind
	require.NoError(t, s.RecordCycleResult(ctx, &models.CycleResult{
		RepoID: r.ID, StartedAt: time.Now().UTC(), Success: true,
		RemoteChanges: true, CommitsBehind: 5,
	}))

	// Second cycle: caught up. Flag and count must clear together.
	require.NoError(t, s.RecordCycleResult(ctx, &models.CycleResult{
		RepoID: r.ID, StartedAt: time.Now().UTC(), Success: true,
	}))

	got, err := s.GetRepo(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, got.RemoteChanges)
	assert.Equal(t, 0, got.RemoteCommitCount)
}

func TestRecordCycleResult_ErrorSetsAndSuccessClears(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := &models.Repo{Name: "err", Path: "/tmp/err", Enabled: true}
	require.NoError(t, s.CreateRepo(ctx, r))

	require.NoError(t, s.RecordCycleResult(ctx, &models.CycleResult{
		RepoID: r.ID, StartedAt: time.Now().UTC(), Success: false,
		Error: "network error: could not resolve host",
	}))

	got, err := s.GetRepo(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusError, got.LastSyncStatus)
	assert.Equal(t, "network error: could not resolve host", got.LastSyncError)

	require.NoError(t, s.RecordCycleResult(ctx, &models.CycleResult{
		RepoID: r.ID, StartedAt: time.Now().UTC(), Success: true,
	}))

	got, err = s.GetRepo(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusSuccess, got.LastSyncStatus)
	assert.Empty(t, got.LastSyncError)
}

func TestRecordCycleResult_UnknownRepo(t *testing.T) {
	s := newTestStore(t)

	err := s.RecordCycleResult(context.Background(), &models.CycleResult{
		RepoID: "nope", StartedAt: time.Now().UTC(), Success: true,
	})
	assert.ErrorContains(t, err, "not found")
}
