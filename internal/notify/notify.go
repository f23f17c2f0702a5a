// Package notify makes cycle outcomes durable and decides whether they are
// worth interrupting the user for.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gitwatch/gitwatch/internal/models"
	"github.com/gitwatch/gitwatch/internal/store"
)

// AlertKind distinguishes the two user-facing alert classes. Each kind has
// its own cooldown bucket per repository.
type AlertKind string

const (
	AlertChanges AlertKind = "changes"
	AlertError   AlertKind = "error"
)

// Sink receives user-facing alerts.
type Sink interface {
	Notify(kind AlertKind, title, message string)
}

// Settings are the global notification toggles and cooldown.
type Settings struct {
	OnChanges bool
	OnErrors  bool
	Cooldown  time.Duration
}

// DefaultCooldown applies when Settings.Cooldown is zero.
const DefaultCooldown = 60 * time.Second

type suppressKey struct {
	kind AlertKind
	repo string
}

// Notifier persists cycle results against the registry and emits
// cooldown-suppressed alerts to its sink.
type Notifier struct {
	store    store.Store
	sink     Sink
	settings Settings

	mu        sync.Mutex
	lastShown map[suppressKey]time.Time

	now func() time.Time // test seam
}

// New creates a Notifier. sink may be nil, which silences all alerts.
func New(st store.Store, sink Sink, settings Settings) *Notifier {
	if settings.Cooldown <= 0 {
		settings.Cooldown = DefaultCooldown
	}
	return &Notifier{
		store:     st,
		sink:      sink,
		settings:  settings,
		lastShown: make(map[suppressKey]time.Time),
		now:       time.Now,
	}
}

// HandleCycleResult records the result and emits at most one alert for it.
// This is the single consumption point for a CycleResult.
func (n *Notifier) HandleCycleResult(ctx context.Context, res *models.CycleResult) error {
	if err := n.RecordCycleResult(ctx, res); err != nil {
		return err
	}
	if !res.Success {
		n.MaybeNotifyError(res.RepoName, res.Error)
		return nil
	}
	if res.RemoteChanges {
		n.MaybeNotifyChanges(res.RepoName, res.CommitsBehind)
	}
	return nil
}

// RecordCycleResult persists the cycle outcome as one registry update.
func (n *Notifier) RecordCycleResult(ctx context.Context, res *models.CycleResult) error {
	if err := n.store.RecordCycleResult(ctx, res); err != nil {
		return fmt.Errorf("record cycle result: %w", err)
	}
	return nil
}

// MaybeNotifyChanges alerts that a repository has new remote commits, unless
// change alerts are off or one fired for this repo within the cooldown.
func (n *Notifier) MaybeNotifyChanges(repoName string, commitsBehind int) {
	if n.sink == nil || !n.settings.OnChanges {
		return
	}
	if !n.markShown(AlertChanges, repoName) {
		return
	}
	n.sink.Notify(AlertChanges, repoName, fmt.Sprintf("%s on remote", CommitPhrase(commitsBehind)))
}

// MaybeNotifyError alerts that a repository failed to sync, under the same
// suppression discipline in an independent cooldown bucket. Auth and network
// failures recur across cycles during an outage; the cooldown keeps them from
// firing every interval.
func (n *Notifier) MaybeNotifyError(repoName, message string) {
	if n.sink == nil || !n.settings.OnErrors {
		return
	}
	if !n.markShown(AlertError, repoName) {
		return
	}
	n.sink.Notify(AlertError, repoName, fmt.Sprintf("sync failed: %s", message))
}

// markShown reports whether an alert for (kind, repo) may fire now, and if so
// records the timestamp. Entries older than twice the cooldown are purged on
// the way through, bounding the map without a sweep task.
func (n *Notifier) markShown(kind AlertKind, repo string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	key := suppressKey{kind: kind, repo: repo}

	if last, ok := n.lastShown[key]; ok && now.Sub(last) < n.settings.Cooldown {
		return false
	}

	for k, t := range n.lastShown {
		if now.Sub(t) > 2*n.settings.Cooldown {
			delete(n.lastShown, k)
		}
	}

	n.lastShown[key] = now
	return true
}

// CommitPhrase renders a commit count with correct pluralization.
func CommitPhrase(n int) string {
	if n == 1 {
		return "1 new commit"
	}
	return fmt.Sprintf("%d new commits", n)
}
