package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gitwatch/gitwatch/internal/models"
	"github.com/gitwatch/gitwatch/internal/output"
)

// manifestRepo is the YAML shape for one tracked repository.
type manifestRepo struct {
	Name     string `yaml:"name"`
	Path     string `yaml:"path"`
	Enabled  *bool  `yaml:"enabled,omitempty"`
	Interval string `yaml:"interval,omitempty"`
}

type manifest struct {
	Repos []manifestRepo `yaml:"repos"`
}

var repoImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import repositories from a YAML manifest",
	Long: `Import tracked repositories from a YAML manifest:

  repos:
    - name: myrepo
      path: /home/me/src/myrepo
      interval: 2m
    - path: /home/me/src/other
      enabled: false

Repositories already tracked (same path) are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return repoImportRun(args[0])
	},
}

var repoExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export tracked repositories as a YAML manifest to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		return repoExportRun()
	},
}

func init() {
	repoCmd.AddCommand(repoImportCmd)
	repoCmd.AddCommand(repoExportCmd)
}

func repoImportRun(file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Repos) == 0 {
		return fmt.Errorf("manifest has no repos: %s", file)
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	existing, err := s.ListRepos(ctx)
	if err != nil {
		return err
	}
	byPath := make(map[string]bool, len(existing))
	for _, r := range existing {
		byPath[r.Path] = true
	}

	added, skipped := 0, 0
	for _, mr := range m.Repos {
		if mr.Path == "" {
			ui.Warning("Skipping entry with no path (name: %q)", mr.Name)
			skipped++
			continue
		}
		if byPath[mr.Path] {
			ui.VerboseLog("Already tracked: %s", mr.Path)
			skipped++
			continue
		}
		if err := checkGitDir(mr.Path); err != nil {
			ui.Warning("Skipping %s: %v", mr.Path, err)
			skipped++
			continue
		}

		var interval time.Duration
		if mr.Interval != "" {
			interval, err = time.ParseDuration(mr.Interval)
			if err != nil {
				ui.Warning("Skipping %s: invalid interval %q", mr.Path, mr.Interval)
				skipped++
				continue
			}
		}

		name := mr.Name
		if name == "" {
			name = defaultRepoName(mr.Path)
		}
		enabled := true
		if mr.Enabled != nil {
			enabled = *mr.Enabled
		}

		r := &models.Repo{
			Name:         name,
			Path:         mr.Path,
			Enabled:      enabled,
			SyncInterval: interval,
		}
		if err := s.CreateRepo(ctx, r); err != nil {
			ui.Warning("Skipping %s: %v", mr.Path, err)
			skipped++
			continue
		}
		ui.Success("Added %s (%s)", output.Cyan(name), mr.Path)
		added++
	}

	ui.Info("Imported %d repo(s), skipped %d", added, skipped)
	return nil
}

func repoExportRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	repos, err := s.ListRepos(context.Background())
	if err != nil {
		return err
	}

	m := manifest{Repos: make([]manifestRepo, len(repos))}
	for i, r := range repos {
		mr := manifestRepo{Name: r.Name, Path: r.Path}
		if !r.Enabled {
			f := false
			mr.Enabled = &f
		}
		if r.SyncInterval > 0 {
			mr.Interval = r.SyncInterval.String()
		}
		m.Repos[i] = mr
	}

	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	fmt.Fprint(ui.Out, string(data))
	return nil
}

func defaultRepoName(path string) string {
	return filepath.Base(filepath.Clean(path))
}
