package models

import "time"

// SyncStatus represents the state of a repository's last sync cycle.
type SyncStatus string

const (
	SyncStatusIdle    SyncStatus = "idle"
	SyncStatusRunning SyncStatus = "running"
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusError   SyncStatus = "error"
)

// Repo represents a tracked git repository.
type Repo struct {
	ID      string
	Name    string
	Path    string
	Enabled bool

	// SyncInterval overrides the global default when non-zero.
	SyncInterval time.Duration

	LastSyncStatus SyncStatus
	LastSyncAt     *time.Time
	LastSyncError  string

	// RemoteChanges and RemoteCommitCount are set and cleared together:
	// a cycle that finds nothing behind clears both.
	RemoteChanges     bool
	RemoteCommitCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Interval returns the repo's sync interval, falling back to def when unset.
func (r *Repo) Interval(def time.Duration) time.Duration {
	if r.SyncInterval > 0 {
		return r.SyncInterval
	}
	return def
}
