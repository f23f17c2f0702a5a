package store

import (
	"context"
	"time"

	"github.com/gitwatch/gitwatch/internal/models"
)

// Store defines the repository registry consumed by the sync engine.
// Getters return fresh snapshots; the engine never mutates a Repo in place.
type Store interface {
	Migrate(ctx context.Context) error
	Close() error

	CreateRepo(ctx context.Context, r *models.Repo) error
	GetRepo(ctx context.Context, id string) (*models.Repo, error)
	GetRepoByName(ctx context.Context, name string) (*models.Repo, error)
	ListRepos(ctx context.Context) ([]*models.Repo, error)
	ListEnabledRepos(ctx context.Context) ([]*models.Repo, error)
	UpdateRepo(ctx context.Context, r *models.Repo) error
	SetRepoEnabled(ctx context.Context, id string, enabled bool) error
	UpdateRepoInterval(ctx context.Context, id string, interval time.Duration) error
	DeleteRepo(ctx context.Context, id string) error

	// MarkSyncRunning flips the repo's status to running at cycle start.
	MarkSyncRunning(ctx context.Context, id string) error

	// RecordCycleResult persists a cycle's outcome as a single update:
	// status, timestamp, error text, and the remote-change flag/count
	// (cleared together when the cycle found nothing behind).
	RecordCycleResult(ctx context.Context, res *models.CycleResult) error
}
