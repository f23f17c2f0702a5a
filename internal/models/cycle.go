package models

import "time"

// BranchDetail holds the branch comparison from a successful cycle.
type BranchDetail struct {
	Branch      string `json:"branch"`
	TrackingRef string `json:"tracking_ref"`
	Ahead       int    `json:"ahead"`
	Behind      int    `json:"behind"`
}

// CycleResult is the outcome of one sync cycle for one repository.
// It is produced by the scheduler, recorded once, and never cached.
type CycleResult struct {
	RepoID        string        `json:"repo_id"`
	RepoName      string        `json:"repo_name"`
	StartedAt     time.Time     `json:"started_at"`
	Success       bool          `json:"success"`
	Error         string        `json:"error,omitempty"`
	RemoteChanges bool          `json:"remote_changes"`
	CommitsBehind int           `json:"commits_behind"`
	Detail        *BranchDetail `json:"detail,omitempty"`
}
