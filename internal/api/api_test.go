package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitwatch/gitwatch/internal/detect"
	"github.com/gitwatch/gitwatch/internal/models"
	"github.com/gitwatch/gitwatch/internal/notify"
	"github.com/gitwatch/gitwatch/internal/scheduler"
)

// fakeStore is an in-memory registry for handler tests.
type fakeStore struct {
	repos map[string]*models.Repo
	order []string
}

func newFakeStore(repos ...*models.Repo) *fakeStore {
	fs := &fakeStore{repos: make(map[string]*models.Repo)}
	for _, r := range repos {
		fs.repos[r.ID] = r
		fs.order = append(fs.order, r.ID)
	}
	return fs
}

func (fs *fakeStore) Migrate(ctx context.Context) error { return nil }
func (fs *fakeStore) Close() error                      { return nil }

func (fs *fakeStore) CreateRepo(ctx context.Context, r *models.Repo) error { return nil }

func (fs *fakeStore) GetRepo(ctx context.Context, id string) (*models.Repo, error) {
	if r, ok := fs.repos[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, fmt.Errorf("repo not found: %s", id)
}

func (fs *fakeStore) GetRepoByName(ctx context.Context, name string) (*models.Repo, error) {
	return nil, fmt.Errorf("repo not found: %s", name)
}

func (fs *fakeStore) ListRepos(ctx context.Context) ([]*models.Repo, error) {
	out := make([]*models.Repo, 0, len(fs.order))
	for _, id := range fs.order {
		cp := *fs.repos[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (fs *fakeStore) ListEnabledRepos(ctx context.Context) ([]*models.Repo, error) {
	var out []*models.Repo
	for _, id := range fs.order {
		if fs.repos[id].Enabled {
			cp := *fs.repos[id]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (fs *fakeStore) UpdateRepo(ctx context.Context, r *models.Repo) error { return nil }
func (fs *fakeStore) SetRepoEnabled(ctx context.Context, id string, enabled bool) error {
	return nil
}
func (fs *fakeStore) UpdateRepoInterval(ctx context.Context, id string, interval time.Duration) error {
	return nil
}
func (fs *fakeStore) DeleteRepo(ctx context.Context, id string) error       { return nil }
func (fs *fakeStore) MarkSyncRunning(ctx context.Context, id string) error  { return nil }
func (fs *fakeStore) RecordCycleResult(ctx context.Context, res *models.CycleResult) error {
	return nil
}

// fakeChecker reports every repo as one commit behind.
type fakeChecker struct{}

func (fakeChecker) Fetch(ctx context.Context, repoPath string) error { return nil }

func (fakeChecker) CheckRemoteChanges(ctx context.Context, repoPath string) (*detect.ChangeReport, error) {
	return &detect.ChangeReport{
		HasChanges: true, Branch: "main", TrackingRef: "origin/main", Behind: 1,
	}, nil
}

func newTestServer(t *testing.T, repos ...*models.Repo) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	st := newFakeStore(repos...)
	handler := notify.New(st, nil, notify.Settings{})
	sched := scheduler.New(st, fakeChecker{}, handler, time.Minute, logger)
	srv := httptest.NewServer(NewServer(st, sched, logger).Router())
	t.Cleanup(srv.Close)
	return srv
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestListRepos(t *testing.T) {
	srv := newTestServer(t,
		&models.Repo{ID: "r1", Name: "alpha", Path: "/repos/alpha", Enabled: true, SyncInterval: 5 * time.Minute},
		&models.Repo{ID: "r2", Name: "beta", Path: "/repos/beta"},
	)

	resp, err := http.Get(srv.URL + "/api/v1/repos")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var views []repoView
	decodeBody(t, resp, &views)
	require.Len(t, views, 2)
	assert.Equal(t, "alpha", views[0].Name)
	assert.Equal(t, int64(300), views[0].SyncIntervalSecs)
	assert.True(t, views[0].Enabled)
	assert.Equal(t, "beta", views[1].Name)
	assert.False(t, views[1].Enabled)
}

func TestGetRepo(t *testing.T) {
	srv := newTestServer(t,
		&models.Repo{ID: "r1", Name: "alpha", Path: "/repos/alpha", Enabled: true, RemoteChanges: true, RemoteCommitCount: 4},
	)

	resp, err := http.Get(srv.URL + "/api/v1/repos/r1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var view repoView
	decodeBody(t, resp, &view)
	assert.Equal(t, "alpha", view.Name)
	assert.True(t, view.RemoteChanges)
	assert.Equal(t, 4, view.RemoteCommitCount)
}

func TestGetRepo_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/repos/ghost")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSyncRepo(t *testing.T) {
	srv := newTestServer(t,
		&models.Repo{ID: "r1", Name: "alpha", Path: "/repos/alpha", Enabled: true},
	)

	resp, err := http.Post(srv.URL+"/api/v1/repos/r1/sync", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var res models.CycleResult
	decodeBody(t, resp, &res)
	assert.True(t, res.Success)
	assert.True(t, res.RemoteChanges)
	assert.Equal(t, 1, res.CommitsBehind)
	assert.Equal(t, "alpha", res.RepoName)
}

func TestSyncRepo_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/repos/ghost/sync", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSyncAll(t *testing.T) {
	srv := newTestServer(t,
		&models.Repo{ID: "r1", Name: "alpha", Path: "/repos/alpha", Enabled: true},
		&models.Repo{ID: "r2", Name: "beta", Path: "/repos/beta", Enabled: true},
		&models.Repo{ID: "r3", Name: "gamma", Path: "/repos/gamma"}, // disabled
	)

	resp, err := http.Post(srv.URL+"/api/v1/sync", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var results []models.CycleResult
	decodeBody(t, resp, &results)
	require.Len(t, results, 2, "disabled repos are not synced")
	assert.Equal(t, "alpha", results[0].RepoName)
	assert.Equal(t, "beta", results[1].RepoName)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/repos", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
