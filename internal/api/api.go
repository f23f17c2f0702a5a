// Package api exposes the watcher's registry and sync controls over HTTP so
// the host application (or curl) can inspect and poke the engine while the
// watch loop runs.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gitwatch/gitwatch/internal/models"
	"github.com/gitwatch/gitwatch/internal/scheduler"
	"github.com/gitwatch/gitwatch/internal/store"
)

// Server provides the REST API handlers.
type Server struct {
	store  store.Store
	sched  *scheduler.Scheduler
	logger *slog.Logger
}

// NewServer creates a new API server over the registry and scheduler.
func NewServer(st store.Store, sched *scheduler.Scheduler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: st, sched: sched, logger: logger}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/healthz", s.healthz)
	mux.HandleFunc("GET /api/v1/repos", s.listRepos)
	mux.HandleFunc("GET /api/v1/repos/{id}", s.getRepo)
	mux.HandleFunc("POST /api/v1/repos/{id}/sync", s.syncRepo)
	mux.HandleFunc("POST /api/v1/sync", s.syncAll)

	return s.logMiddleware(mux)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// repoView is the wire shape for a registry record.
type repoView struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Path              string     `json:"path"`
	Enabled           bool       `json:"enabled"`
	SyncIntervalSecs  int64      `json:"sync_interval_secs"`
	LastSyncStatus    string     `json:"last_sync_status"`
	LastSyncAt        *time.Time `json:"last_sync_at,omitempty"`
	LastSyncError     string     `json:"last_sync_error,omitempty"`
	RemoteChanges     bool       `json:"remote_changes"`
	RemoteCommitCount int        `json:"remote_commit_count"`
}

func toView(r *models.Repo) repoView {
	return repoView{
		ID:                r.ID,
		Name:              r.Name,
		Path:              r.Path,
		Enabled:           r.Enabled,
		SyncIntervalSecs:  int64(r.SyncInterval / time.Second),
		LastSyncStatus:    string(r.LastSyncStatus),
		LastSyncAt:        r.LastSyncAt,
		LastSyncError:     r.LastSyncError,
		RemoteChanges:     r.RemoteChanges,
		RemoteCommitCount: r.RemoteCommitCount,
	}
}

func (s *Server) listRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := s.store.ListRepos(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]repoView, len(repos))
	for i, repo := range repos {
		views[i] = toView(repo)
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) getRepo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	repo, err := s.store.GetRepo(r.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toView(repo))
}

func (s *Server) syncRepo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res, err := s.sched.RunNow(r.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) syncAll(w http.ResponseWriter, r *http.Request) {
	results, err := s.sched.RunAllNow(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, results)
}
