// Package mcpserver exposes the registry and sync engine as MCP tools so
// coding agents can check and refresh remote state for tracked repos.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gitwatch/gitwatch/internal/models"
	"github.com/gitwatch/gitwatch/internal/notify"
	"github.com/gitwatch/gitwatch/internal/scheduler"
	"github.com/gitwatch/gitwatch/internal/store"
)

// Server wraps the registry and scheduler and exposes them as MCP tools.
type Server struct {
	store store.Store
	sched *scheduler.Scheduler
}

// NewServer creates the MCP server wrapper.
func NewServer(st store.Store, sched *scheduler.Scheduler) *Server {
	return &Server{store: st, sched: sched}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("gitwatch", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listReposTool())
	srv.AddTool(s.repoStatusTool())
	srv.AddTool(s.syncRepoTool())
	srv.AddTool(s.syncAllTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

type repoOut struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Path          string `json:"path"`
	Enabled       bool   `json:"enabled"`
	Status        string `json:"status"`
	LastSyncAt    string `json:"last_sync_at,omitempty"`
	LastError     string `json:"last_error,omitempty"`
	RemoteChanges bool   `json:"remote_changes"`
	CommitsBehind int    `json:"commits_behind"`
}

func toRepoOut(r *models.Repo) repoOut {
	out := repoOut{
		ID:            r.ID,
		Name:          r.Name,
		Path:          r.Path,
		Enabled:       r.Enabled,
		Status:        string(r.LastSyncStatus),
		LastError:     r.LastSyncError,
		RemoteChanges: r.RemoteChanges,
		CommitsBehind: r.RemoteCommitCount,
	}
	if r.LastSyncAt != nil {
		out.LastSyncAt = r.LastSyncAt.Format(time.RFC3339)
	}
	return out
}

// gitwatch_list_repos
func (s *Server) listReposTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("gitwatch_list_repos",
		mcp.WithDescription("List all tracked repositories with their last sync status and remote-change state."),
	)
	return tool, s.handleListRepos
}

func (s *Server) handleListRepos(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repos, err := s.store.ListRepos(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list repos: %v", err)), nil
	}
	out := make([]repoOut, len(repos))
	for i, r := range repos {
		out[i] = toRepoOut(r)
	}
	return jsonResult(out)
}

// gitwatch_repo_status
func (s *Server) repoStatusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("gitwatch_repo_status",
		mcp.WithDescription("Show the sync status of one tracked repository by name."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Repository display name")),
	)
	return tool, s.handleRepoStatus
}

func (s *Server) handleRepoStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := request.GetString("name", "")
	repo, err := s.store.GetRepoByName(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get repo: %v", err)), nil
	}
	return jsonResult(toRepoOut(repo))
}

// gitwatch_sync_repo
func (s *Server) syncRepoTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("gitwatch_sync_repo",
		mcp.WithDescription("Run a sync cycle for one repository now and return the result. Joins an in-flight cycle instead of starting a second one."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Repository display name")),
	)
	return tool, s.handleSyncRepo
}

func (s *Server) handleSyncRepo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := request.GetString("name", "")
	repo, err := s.store.GetRepoByName(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get repo: %v", err)), nil
	}
	res, err := s.sched.RunNow(ctx, repo.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("sync failed: %v", err)), nil
	}
	return jsonResult(res)
}

// gitwatch_sync_all
func (s *Server) syncAllTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("gitwatch_sync_all",
		mcp.WithDescription("Run a sync cycle for every enabled repository sequentially and return all results."),
	)
	return tool, s.handleSyncAll
}

func (s *Server) handleSyncAll(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	results, err := s.sched.RunAllNow(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("sync all failed: %v", err)), nil
	}

	type summary struct {
		Repo    string `json:"repo"`
		Success bool   `json:"success"`
		Error   string `json:"error,omitempty"`
		Behind  string `json:"behind,omitempty"`
	}
	out := make([]summary, len(results))
	for i, res := range results {
		out[i] = summary{Repo: res.RepoName, Success: res.Success, Error: res.Error}
		if res.RemoteChanges {
			out[i].Behind = notify.CommitPhrase(res.CommitsBehind)
		}
	}
	return jsonResult(out)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
