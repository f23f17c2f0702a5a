package gitexec

import "strings"

// FailureKind is the flat taxonomy every git subprocess failure maps onto.
// Nothing outside this package inspects raw git stderr.
type FailureKind string

const (
	FailureTimeout    FailureKind = "timeout"
	FailureAuth       FailureKind = "auth"
	FailureNetwork    FailureKind = "network"
	FailureRepoConfig FailureKind = "repo_config"
	FailureUnknown    FailureKind = "unknown"
)

// Error is a classified git subprocess failure.
type Error struct {
	Kind   FailureKind
	Args   []string
	Stderr string
}

func (e *Error) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	switch e.Kind {
	case FailureTimeout:
		return "git " + firstArg(e.Args) + ": timed out"
	case FailureAuth:
		return "authentication failed: " + msg
	case FailureNetwork:
		return "network error: " + msg
	case FailureRepoConfig:
		return "repository configuration error: " + msg
	default:
		if msg == "" {
			return "git " + firstArg(e.Args) + ": unknown error"
		}
		return msg
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// Substring heuristics over git's stderr. Git has no stable machine-readable
// error channel, so this is intentionally the only place that sniffs text.
var (
	authPhrases = []string{
		"authentication failed",
		"could not read username",
		"could not read password",
		"permission denied",
		"publickey",
		"invalid credentials",
		"terminal prompts disabled",
		"http basic: access denied",
	}
	networkPhrases = []string{
		"could not resolve host",
		"unable to access",
		"connection refused",
		"connection timed out",
		"connection reset",
		"network is unreachable",
		"no route to host",
		"operation timed out",
	}
	repoConfigPhrases = []string{
		"not a git repository",
		"does not appear to be a git repository",
		"no such remote",
		"no remote repository specified",
		"repository not found",
		"unknown revision",
	}
)

// classify maps a failed invocation's stderr to a FailureKind. Timeout is
// decided by the caller from the context, so it never reaches this function.
// Priority: auth before network before repo-config, because git frequently
// wraps an auth refusal in "unable to access" transport text.
func classify(stderr string) FailureKind {
	s := strings.ToLower(stderr)
	for _, p := range authPhrases {
		if strings.Contains(s, p) {
			return FailureAuth
		}
	}
	for _, p := range networkPhrases {
		if strings.Contains(s, p) {
			return FailureNetwork
		}
	}
	for _, p := range repoConfigPhrases {
		if strings.Contains(s, p) {
			return FailureRepoConfig
		}
	}
	return FailureUnknown
}
