package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gitwatch/gitwatch/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool so
	// the watcher's timer callbacks and the CLI never hit "database is locked".
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const repoColumns = `id, name, path, enabled, sync_interval_secs, last_sync_status, last_sync_at, last_sync_error, remote_changes, remote_commit_count, created_at, updated_at`

func scanRepo(row interface{ Scan(...any) error }) (*models.Repo, error) {
	r := &models.Repo{}
	var intervalSecs int64
	var lastSyncAt sql.NullTime
	err := row.Scan(&r.ID, &r.Name, &r.Path, &r.Enabled, &intervalSecs,
		&r.LastSyncStatus, &lastSyncAt, &r.LastSyncError,
		&r.RemoteChanges, &r.RemoteCommitCount, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.SyncInterval = time.Duration(intervalSecs) * time.Second
	if lastSyncAt.Valid {
		t := lastSyncAt.Time
		r.LastSyncAt = &t
	}
	return r, nil
}

func (s *SQLiteStore) CreateRepo(ctx context.Context, r *models.Repo) error {
	if r.ID == "" {
		r.ID = newULID()
	}
	if r.LastSyncStatus == "" {
		r.LastSyncStatus = models.SyncStatusIdle
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO repos (id, name, path, enabled, sync_interval_secs, last_sync_status, last_sync_at, last_sync_error, remote_changes, remote_commit_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Path, boolToInt(r.Enabled), int64(r.SyncInterval/time.Second),
		r.LastSyncStatus, r.LastSyncAt, r.LastSyncError,
		boolToInt(r.RemoteChanges), r.RemoteCommitCount, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create repo: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetRepo(ctx context.Context, id string) (*models.Repo, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+repoColumns+` FROM repos WHERE id = ?`, id)
	r, err := scanRepo(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("repo not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get repo: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) GetRepoByName(ctx context.Context, name string) (*models.Repo, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+repoColumns+` FROM repos WHERE name = ?`, name)
	r, err := scanRepo(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("repo not found: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("get repo by name: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) ListRepos(ctx context.Context) ([]*models.Repo, error) {
	return s.listRepos(ctx, `SELECT `+repoColumns+` FROM repos ORDER BY name`)
}

func (s *SQLiteStore) ListEnabledRepos(ctx context.Context) ([]*models.Repo, error) {
	return s.listRepos(ctx, `SELECT `+repoColumns+` FROM repos WHERE enabled = 1 ORDER BY name`)
}

func (s *SQLiteStore) listRepos(ctx context.Context, query string) ([]*models.Repo, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list repos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var repos []*models.Repo
	for rows.Next() {
		r, err := scanRepo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan repo: %w", err)
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

func (s *SQLiteStore) UpdateRepo(ctx context.Context, r *models.Repo) error {
	r.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE repos SET name=?, path=?, enabled=?, sync_interval_secs=?, updated_at=? WHERE id=?`,
		r.Name, r.Path, boolToInt(r.Enabled), int64(r.SyncInterval/time.Second), r.UpdatedAt, r.ID,
	)
	if err != nil {
		return fmt.Errorf("update repo: %w", err)
	}
	return requireRow(result, r.ID)
}

func (s *SQLiteStore) SetRepoEnabled(ctx context.Context, id string, enabled bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE repos SET enabled=?, updated_at=? WHERE id=?`,
		boolToInt(enabled), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set repo enabled: %w", err)
	}
	return requireRow(result, id)
}

func (s *SQLiteStore) UpdateRepoInterval(ctx context.Context, id string, interval time.Duration) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE repos SET sync_interval_secs=?, updated_at=? WHERE id=?`,
		int64(interval/time.Second), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update repo interval: %w", err)
	}
	return requireRow(result, id)
}

func (s *SQLiteStore) DeleteRepo(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM repos WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete repo: %w", err)
	}
	return requireRow(result, id)
}

func (s *SQLiteStore) MarkSyncRunning(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE repos SET last_sync_status=?, updated_at=? WHERE id=?`,
		models.SyncStatusRunning, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark sync running: %w", err)
	}
	return requireRow(result, id)
}

func (s *SQLiteStore) RecordCycleResult(ctx context.Context, res *models.CycleResult) error {
	status := models.SyncStatusSuccess
	if !res.Success {
		status = models.SyncStatusError
	}

	// The flag and count travel together: a cycle with no remote changes
	// clears both so a stale count can never outlive its flag.
	changes := res.RemoteChanges
	count := res.CommitsBehind
	if !changes {
		count = 0
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE repos SET last_sync_status=?, last_sync_at=?, last_sync_error=?, remote_changes=?, remote_commit_count=?, updated_at=?
		WHERE id=?`,
		status, res.StartedAt.UTC(), res.Error, boolToInt(changes), count, time.Now().UTC(), res.RepoID,
	)
	if err != nil {
		return fmt.Errorf("record cycle result: %w", err)
	}
	return requireRow(result, res.RepoID)
}

func requireRow(result sql.Result, id string) error {
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("repo not found: %s", id)
	}
	return nil
}
