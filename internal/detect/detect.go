// Package detect answers "does the remote have commits the local branch
// lacks?" for a repository whose remote-tracking refs were just fetched.
package detect

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gitwatch/gitwatch/internal/gitexec"
)

// ChangeReport is the outcome of a remote-change check. A repository in a
// detached state or without an upstream yields HasChanges=false with the
// corresponding name left empty; neither is an error.
type ChangeReport struct {
	HasChanges  bool
	Branch      string
	TrackingRef string
	Ahead       int
	Behind      int
}

// Checker performs branch/upstream resolution and ahead-behind counting.
type Checker struct {
	runner  *gitexec.Runner
	timeout time.Duration
}

// NewChecker returns a Checker using runner with a per-command timeout.
func NewChecker(runner *gitexec.Runner, timeout time.Duration) *Checker {
	return &Checker{runner: runner, timeout: timeout}
}

// Fetch refreshes all remotes, pruning deleted refs and pulling tags.
func (c *Checker) Fetch(ctx context.Context, repoPath string) error {
	_, err := c.runner.Run(ctx, repoPath, c.timeout, "fetch", "--all", "--prune", "--tags")
	return err
}

// CurrentBranch returns the checked-out branch name, or "" when HEAD is
// detached. Detached is a valid, reportable state, not an error.
func (c *Checker) CurrentBranch(ctx context.Context, repoPath string) (string, error) {
	res, err := c.runner.Run(ctx, repoPath, c.timeout, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	branch := strings.TrimSpace(res.Stdout)
	if branch == "HEAD" {
		return "", nil
	}
	return branch, nil
}

// TrackingRef returns the upstream ref of branch (e.g. "origin/main"), or ""
// when the branch has no configured upstream.
func (c *Checker) TrackingRef(ctx context.Context, repoPath, branch string) (string, error) {
	res, err := c.runner.Run(ctx, repoPath, c.timeout,
		"rev-parse", "--abbrev-ref", "--symbolic-full-name", branch+"@{upstream}")
	if err != nil {
		var gerr *gitexec.Error
		if errors.As(err, &gerr) && isNoUpstream(gerr.Stderr) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

func isNoUpstream(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "no upstream configured") ||
		strings.Contains(s, "does not point to a branch") ||
		strings.Contains(s, "no such branch")
}

// CompareCounts returns how many commits local has that remote lacks (ahead)
// and vice versa (behind). The two are counted independently so divergence
// and rewritten history come out right.
func (c *Checker) CompareCounts(ctx context.Context, repoPath, local, remote string) (ahead, behind int, err error) {
	ahead, err = c.countRange(ctx, repoPath, remote+".."+local)
	if err != nil {
		return 0, 0, err
	}
	behind, err = c.countRange(ctx, repoPath, local+".."+remote)
	if err != nil {
		return 0, 0, err
	}
	return ahead, behind, nil
}

func (c *Checker) countRange(ctx context.Context, repoPath, rangeSpec string) (int, error) {
	res, err := c.runner.Run(ctx, repoPath, c.timeout, "rev-list", "--count", rangeSpec)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(res.Stdout))
	if err != nil {
		return 0, fmt.Errorf("parse rev-list count %q: %w", res.Stdout, err)
	}
	return n, nil
}

// CheckRemoteChanges resolves the current branch and its upstream and
// compares them. Repositories that are detached or have no upstream are
// silently skipped: the report says no changes, no tracking.
func (c *Checker) CheckRemoteChanges(ctx context.Context, repoPath string) (*ChangeReport, error) {
	branch, err := c.CurrentBranch(ctx, repoPath)
	if err != nil {
		return nil, err
	}
	if branch == "" {
		return &ChangeReport{}, nil
	}

	tracking, err := c.TrackingRef(ctx, repoPath, branch)
	if err != nil {
		return nil, err
	}
	if tracking == "" {
		return &ChangeReport{Branch: branch}, nil
	}

	ahead, behind, err := c.CompareCounts(ctx, repoPath, branch, tracking)
	if err != nil {
		return nil, err
	}

	return &ChangeReport{
		HasChanges:  behind > 0,
		Branch:      branch,
		TrackingRef: tracking,
		Ahead:       ahead,
		Behind:      behind,
	}, nil
}
