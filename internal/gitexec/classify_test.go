package gitexec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   FailureKind
	}{
		{"auth failed", "fatal: Authentication failed for 'https://github.com/x/y.git/'", FailureAuth},
		{"username prompt", "fatal: could not read Username for 'https://github.com': terminal prompts disabled", FailureAuth},
		{"ssh publickey", "git@github.com: Permission denied (publickey).", FailureAuth},
		{"dns", "fatal: unable to access 'https://github.com/x/y.git/': Could not resolve host: github.com", FailureNetwork},
		{"connection refused", "ssh: connect to host github.com port 22: Connection refused", FailureNetwork},
		{"unreachable", "fatal: unable to connect: Network is unreachable", FailureNetwork},
		{"not a repo", "fatal: not a git repository (or any of the parent directories): .git", FailureRepoConfig},
		{"no such remote", "error: No such remote 'origin'", FailureRepoConfig},
		{"repo gone", "remote: Repository not found.", FailureRepoConfig},
		{"garbage", "something completely unexpected", FailureUnknown},
		{"empty", "", FailureUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.stderr))
		})
	}
}

func TestClassify_AuthWinsOverNetworkText(t *testing.T) {
	// Git wraps HTTP auth refusals in "unable to access" transport text;
	// the credential phrase must take priority.
	stderr := "fatal: unable to access 'https://github.com/x/y.git/': The requested URL returned error: 403\nfatal: Authentication failed"
	assert.Equal(t, FailureAuth, classify(stderr))
}

func TestError_Messages(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			"timeout",
			&Error{Kind: FailureTimeout, Args: []string{"fetch", "--all"}},
			"git fetch: timed out",
		},
		{
			"auth",
			&Error{Kind: FailureAuth, Args: []string{"fetch"}, Stderr: "fatal: Authentication failed\n"},
			"authentication failed: fatal: Authentication failed",
		},
		{
			"network",
			&Error{Kind: FailureNetwork, Args: []string{"fetch"}, Stderr: "Could not resolve host: github.com"},
			"network error: Could not resolve host: github.com",
		},
		{
			"unknown preserves raw message",
			&Error{Kind: FailureUnknown, Args: []string{"fetch"}, Stderr: "weird failure"},
			"weird failure",
		},
		{
			"unknown with empty stderr",
			&Error{Kind: FailureUnknown, Args: []string{"fetch"}},
			"git fetch: unknown error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}
