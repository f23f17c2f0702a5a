// Package scheduler owns the timing and concurrency discipline for all
// tracked repositories: one timer per enabled repo, at most one in-flight
// cycle per repo, and sequential manual batch runs.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gitwatch/gitwatch/internal/detect"
	"github.com/gitwatch/gitwatch/internal/models"
	"github.com/gitwatch/gitwatch/internal/store"
)

// ChangeChecker is the slice of detect.Checker the scheduler needs.
type ChangeChecker interface {
	Fetch(ctx context.Context, repoPath string) error
	CheckRemoteChanges(ctx context.Context, repoPath string) (*detect.ChangeReport, error)
}

// ResultHandler consumes each cycle's result exactly once.
type ResultHandler interface {
	HandleCycleResult(ctx context.Context, res *models.CycleResult) error
}

// DefaultInterval applies to repos without a per-repo interval.
const DefaultInterval = 5 * time.Minute

type scheduledRepo struct {
	interval  time.Duration
	timer     *time.Timer
	cancelled bool
}

type inflightCycle struct {
	done chan struct{}
	res  *models.CycleResult
	err  error
}

// Scheduler drives sync cycles for every enabled repository.
// All state is owned by the instance; two Schedulers never interfere.
type Scheduler struct {
	store           store.Store
	checker         ChangeChecker
	handler         ResultHandler
	defaultInterval time.Duration
	logger          *slog.Logger

	mu       sync.Mutex
	timers   map[string]*scheduledRepo
	inflight map[string]*inflightCycle
}

// New creates a Scheduler. defaultInterval <= 0 falls back to DefaultInterval.
func New(st store.Store, checker ChangeChecker, handler ResultHandler, defaultInterval time.Duration, logger *slog.Logger) *Scheduler {
	if defaultInterval <= 0 {
		defaultInterval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:           st,
		checker:         checker,
		handler:         handler,
		defaultInterval: defaultInterval,
		logger:          logger,
		timers:          make(map[string]*scheduledRepo),
		inflight:        make(map[string]*inflightCycle),
	}
}

// StartAll installs one recurring timer per enabled repository at its
// configured interval. Calling it again replaces timers instead of stacking.
func (s *Scheduler) StartAll(ctx context.Context) error {
	repos, err := s.store.ListEnabledRepos(ctx)
	if err != nil {
		return err
	}
	for _, r := range repos {
		s.Schedule(r.ID, r.Interval(s.defaultInterval))
	}
	s.logger.Info("scheduler started", "repos", len(repos))
	return nil
}

// StopAll cancels every installed timer. In-flight cycles are left to finish
// and self-clean; they are never cancelled here.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sr := range s.timers {
		sr.cancelled = true
		sr.timer.Stop()
		delete(s.timers, id)
	}
	s.logger.Info("scheduler stopped")
}

// Schedule installs (or replaces) the timer for one repository. The repo
// keeps exactly one active timer, at the interval given last.
func (s *Scheduler) Schedule(id string, interval time.Duration) {
	if interval <= 0 {
		interval = s.defaultInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.timers[id]; ok {
		old.cancelled = true
		old.timer.Stop()
	}

	sr := &scheduledRepo{interval: interval}
	sr.timer = time.AfterFunc(interval, func() { s.tick(id, sr) })
	s.timers[id] = sr
}

// Unschedule removes the repository from rotation. A cycle already running
// completes normally; only the future firing is cancelled.
func (s *Scheduler) Unschedule(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sr, ok := s.timers[id]; ok {
		sr.cancelled = true
		sr.timer.Stop()
		delete(s.timers, id)
	}
}

// tick runs one timed cycle and re-arms afterwards, so a slow cycle delays
// the next firing rather than skipping or stacking it.
func (s *Scheduler) tick(id string, sr *scheduledRepo) {
	if _, err := s.RunNow(context.Background(), id); err != nil {
		// Registry miss: the repo vanished between firings. Drop it.
		s.logger.Warn("timed cycle failed, unscheduling", "repo", id, "error", err)
		s.Unschedule(id)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sr.cancelled || s.timers[id] != sr {
		return
	}
	sr.timer = time.AfterFunc(sr.interval, func() { s.tick(id, sr) })
}

// RunNow executes one cycle for the repository, or joins the cycle already
// in flight and returns its outcome — two callers never overlap fetches for
// the same repo. A registry lookup miss is the one hard error; every
// operational failure comes back inside the CycleResult.
func (s *Scheduler) RunNow(ctx context.Context, id string) (*models.CycleResult, error) {
	s.mu.Lock()
	if fl, ok := s.inflight[id]; ok {
		s.mu.Unlock()
		<-fl.done
		return fl.res, fl.err
	}
	fl := &inflightCycle{done: make(chan struct{})}
	s.inflight[id] = fl
	s.mu.Unlock()

	fl.res, fl.err = s.runCycle(ctx, id)
	close(fl.done)

	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()

	return fl.res, fl.err
}

// RunAllNow executes a cycle for every enabled repository sequentially, in
// registry order, so one saturated remote cannot fan out subprocesses. A
// failing repo is converted to a failed result; the batch always finishes.
func (s *Scheduler) RunAllNow(ctx context.Context) ([]*models.CycleResult, error) {
	repos, err := s.store.ListEnabledRepos(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*models.CycleResult, 0, len(repos))
	for _, r := range repos {
		res, err := s.RunNow(ctx, r.ID)
		if err != nil {
			res = &models.CycleResult{
				RepoID:    r.ID,
				RepoName:  r.Name,
				StartedAt: time.Now().UTC(),
				Success:   false,
				Error:     err.Error(),
			}
		}
		results = append(results, res)
	}
	return results, nil
}

// runCycle is the cycle itself: fetch, then check remote changes, then hand
// the composed result off. A fetch failure short-circuits change detection
// so we never compare against stale remote-tracking data.
func (s *Scheduler) runCycle(ctx context.Context, id string) (*models.CycleResult, error) {
	repo, err := s.store.GetRepo(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.store.MarkSyncRunning(ctx, repo.ID); err != nil {
		s.logger.Warn("mark running failed", "repo", repo.Name, "error", err)
	}

	res := &models.CycleResult{
		RepoID:    repo.ID,
		RepoName:  repo.Name,
		StartedAt: time.Now().UTC(),
	}

	if err := s.checker.Fetch(ctx, repo.Path); err != nil {
		res.Error = err.Error()
	} else if report, err := s.checker.CheckRemoteChanges(ctx, repo.Path); err != nil {
		res.Error = err.Error()
	} else {
		res.Success = true
		res.RemoteChanges = report.HasChanges
		res.CommitsBehind = report.Behind
		if report.Branch != "" {
			res.Detail = &models.BranchDetail{
				Branch:      report.Branch,
				TrackingRef: report.TrackingRef,
				Ahead:       report.Ahead,
				Behind:      report.Behind,
			}
		}
	}

	if err := s.handler.HandleCycleResult(ctx, res); err != nil {
		s.logger.Warn("handle cycle result failed", "repo", repo.Name, "error", err)
	}

	return res, nil
}
