// Package gitexec runs git as a subprocess with a sanitized argument set and
// maps its heterogeneous failures onto a small, stable taxonomy.
package gitexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// allowedSubcommands is the closed set of git subcommands the engine may run.
// Everything here is read-only with respect to the working tree.
var allowedSubcommands = map[string]bool{
	"fetch":        true,
	"rev-parse":    true,
	"rev-list":     true,
	"remote":       true,
	"branch":       true,
	"for-each-ref": true,
	"status":       true,
	"log":          true,
}

const metachars = ";|&`$()<>\n"

// Result holds the captured output of a successful git invocation.
type Result struct {
	Stdout string
	Stderr string
}

// Runner executes git subprocesses.
//
// ExtraPaths is the search-path augmentation policy; it is called on every
// invocation so configuration changes apply without a restart. It may be nil.
type Runner struct {
	ExtraPaths func() []string

	logger *slog.Logger
}

// NewRunner returns a Runner logging diagnostics to the given logger
// (slog.Default() when nil).
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger}
}

// Run executes `git <args...>` in dir with the given timeout and returns the
// captured output on exit code 0, or a classified *Error.
//
// Validation is a hard fail independent of the subprocess: the first token
// must be on the subcommand allow-list and no argument may contain shell
// metacharacters, regardless of how the arguments were assembled upstream.
func (r *Runner) Run(ctx context.Context, dir string, timeout time.Duration, args ...string) (*Result, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("gitexec: empty command")
	}
	if !allowedSubcommands[args[0]] {
		return nil, fmt.Errorf("gitexec: subcommand not allowed: %s", args[0])
	}
	for _, a := range args {
		if containsMetachars(a) {
			return nil, fmt.Errorf("gitexec: argument contains shell metacharacters: %q", a)
		}
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, "git", args...)
	cmd.Dir = dir
	cmd.Env = childEnv(r.extraPaths(), r.logger)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Don't wait forever on output pipes held open by orphaned grandchildren
	// after the timeout kill.
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	err := cmd.Run()
	dur := time.Since(start)

	// The command and directory are safe to log; stderr may carry remote
	// URLs but never credentials, which git masks or prompts for.
	r.logger.Debug("git invocation",
		"args", strings.Join(args, " "),
		"dir", dir,
		"duration", dur,
		"ok", err == nil,
	)

	if err == nil {
		return &Result{Stdout: stdout.String(), Stderr: stderr.String()}, nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return nil, &Error{Kind: FailureTimeout, Args: args, Stderr: stderr.String()}
	}
	return nil, &Error{Kind: classify(stderr.String()), Args: args, Stderr: stderr.String()}
}

func (r *Runner) extraPaths() []string {
	if r.ExtraPaths == nil {
		return nil
	}
	return r.ExtraPaths()
}

// childEnv returns the parent environment with PATH replaced by the
// augmented search path.
func childEnv(extra []string, logger *slog.Logger) []string {
	path := effectivePath(extra, logger)
	env := os.Environ()
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			continue
		}
		out = append(out, kv)
	}
	return append(out, "PATH="+path)
}

func containsMetachars(s string) bool {
	return strings.ContainsAny(s, metachars)
}
