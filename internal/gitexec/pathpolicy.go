package gitexec

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// SanitizePaths validates search-path policy entries: each must expand to an
// absolute, metacharacter-free path. Violating entries are dropped with a
// debug log, never passed to the subprocess. Duplicates keep first occurrence.
func SanitizePaths(entries []string, logger *slog.Logger) []string {
	var out []string
	seen := make(map[string]bool)
	for _, raw := range entries {
		p := expandHome(strings.TrimSpace(raw))
		if p == "" {
			continue
		}
		if containsMetachars(p) {
			logger.Debug("dropping search path with shell metacharacters", "entry", raw)
			continue
		}
		if !filepath.IsAbs(p) {
			logger.Debug("dropping non-absolute search path", "entry", raw)
			continue
		}
		p = filepath.Clean(p)
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// effectivePath prepends sanitized policy entries to the inherited PATH.
// The result is handed only to the spawned process; the caller's own
// environment is never mutated.
func effectivePath(extra []string, logger *slog.Logger) string {
	base := os.Getenv("PATH")
	clean := SanitizePaths(extra, logger)
	if len(clean) == 0 {
		return base
	}
	parts := append(clean, base)
	return strings.Join(parts, string(os.PathListSeparator))
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}
