package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gitwatch/gitwatch/internal/models"
	"github.com/gitwatch/gitwatch/internal/output"
)

var (
	repoName     string
	repoInterval time.Duration
	repoDisabled bool
)

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage tracked repositories",
	Long:  "Add, remove, list, and configure the repositories gitwatch keeps in sync.",
}

var repoAddCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Add a repository to tracking",
	Long:  "Add a local git repository to gitwatch tracking. Use '.' for the current directory.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return repoAddRun(args[0])
	},
}

var repoRemoveCmd = &cobra.Command{
	Use:     "remove <name-or-id>",
	Aliases: []string{"rm"},
	Short:   "Remove a repository from tracking",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return repoRemoveRun(args[0])
	},
}

var repoListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tracked repositories",
	RunE: func(cmd *cobra.Command, args []string) error {
		return repoListRun()
	},
}

var repoShowCmd = &cobra.Command{
	Use:   "show <name-or-id>",
	Short: "Show detailed repository information",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return repoShowRun(args[0])
	},
}

var repoEnableCmd = &cobra.Command{
	Use:   "enable <name-or-id>",
	Short: "Enable background sync for a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return repoSetEnabledRun(args[0], true)
	},
}

var repoDisableCmd = &cobra.Command{
	Use:   "disable <name-or-id>",
	Short: "Disable background sync for a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return repoSetEnabledRun(args[0], false)
	},
}

var repoSetIntervalCmd = &cobra.Command{
	Use:   "set-interval <name-or-id> <interval>",
	Short: "Set a repository's sync interval (e.g. 2m, 1h; 0 = global default)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return repoSetIntervalRun(args[0], args[1])
	},
}

func init() {
	repoAddCmd.Flags().StringVar(&repoName, "name", "", "Override repository name (default: directory name)")
	repoAddCmd.Flags().DurationVar(&repoInterval, "interval", 0, "Per-repo sync interval (default: global)")
	repoAddCmd.Flags().BoolVar(&repoDisabled, "disabled", false, "Add without enabling background sync")

	repoCmd.AddCommand(repoAddCmd)
	repoCmd.AddCommand(repoRemoveCmd)
	repoCmd.AddCommand(repoListCmd)
	repoCmd.AddCommand(repoShowCmd)
	repoCmd.AddCommand(repoEnableCmd)
	repoCmd.AddCommand(repoDisableCmd)
	repoCmd.AddCommand(repoSetIntervalCmd)
	rootCmd.AddCommand(repoCmd)
}

func repoAddRun(rawPath string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	if err := checkGitDir(absPath); err != nil {
		return err
	}

	name := repoName
	if name == "" {
		name = filepath.Base(absPath)
	}

	r := &models.Repo{
		Name:         name,
		Path:         absPath,
		Enabled:      !repoDisabled,
		SyncInterval: repoInterval,
	}

	if err := s.CreateRepo(context.Background(), r); err != nil {
		return err
	}

	ui.Success("Added repository %s (%s)", output.Cyan(name), absPath)
	return nil
}

// checkGitDir verifies the path looks like a git repository work tree.
func checkGitDir(path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("not a directory: %s", path)
	}
	if _, err := os.Stat(filepath.Join(path, ".git")); err != nil {
		return fmt.Errorf("not a git repository: %s", path)
	}
	return nil
}

func repoRemoveRun(ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	r, err := resolveRepo(ctx, s, ref)
	if err != nil {
		return err
	}
	if err := s.DeleteRepo(ctx, r.ID); err != nil {
		return err
	}

	ui.Success("Removed repository %s", output.Cyan(r.Name))
	return nil
}

func repoListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	repos, err := s.ListRepos(context.Background())
	if err != nil {
		return err
	}
	if len(repos) == 0 {
		ui.Info("No repositories tracked. Add one with: gitwatch repo add <path>")
		return nil
	}

	def := viper.GetDuration("sync.default_interval")
	table := ui.Table([]string{"NAME", "STATUS", "BEHIND", "INTERVAL", "ENABLED", "LAST SYNC", "PATH"})
	for _, r := range repos {
		behind := "-"
		if r.RemoteChanges {
			behind = fmt.Sprintf("%d", r.RemoteCommitCount)
		}
		enabled := "yes"
		if !r.Enabled {
			enabled = "no"
		}
		lastSync := "never"
		if r.LastSyncAt != nil {
			lastSync = r.LastSyncAt.Local().Format("2006-01-02 15:04:05")
		}
		_ = table.Append([]string{
			r.Name,
			output.SyncStatusColor(r.LastSyncStatus),
			behind,
			formatInterval(r, def),
			enabled,
			lastSync,
			r.Path,
		})
	}
	_ = table.Render()
	return nil
}

func repoShowRun(ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	r, err := resolveRepo(context.Background(), s, ref)
	if err != nil {
		return err
	}

	def := viper.GetDuration("sync.default_interval")
	fmt.Fprintf(ui.Out, "%s\n", output.Cyan(r.Name))
	fmt.Fprintf(ui.Out, "  ID:          %s\n", r.ID)
	fmt.Fprintf(ui.Out, "  Path:        %s\n", r.Path)
	fmt.Fprintf(ui.Out, "  Enabled:     %v\n", r.Enabled)
	fmt.Fprintf(ui.Out, "  Interval:    %s\n", formatInterval(r, def))
	fmt.Fprintf(ui.Out, "  Status:      %s\n", output.SyncStatusColor(r.LastSyncStatus))
	if r.LastSyncAt != nil {
		fmt.Fprintf(ui.Out, "  Last sync:   %s\n", r.LastSyncAt.Local().Format(time.RFC1123))
	}
	if r.LastSyncError != "" {
		fmt.Fprintf(ui.Out, "  Last error:  %s\n", output.Red(r.LastSyncError))
	}
	if r.RemoteChanges {
		fmt.Fprintf(ui.Out, "  Remote:      %s\n", output.Yellow(fmt.Sprintf("%d commit(s) behind", r.RemoteCommitCount)))
	} else {
		fmt.Fprintf(ui.Out, "  Remote:      up to date\n")
	}
	return nil
}

func repoSetEnabledRun(ref string, enabled bool) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	r, err := resolveRepo(ctx, s, ref)
	if err != nil {
		return err
	}
	if err := s.SetRepoEnabled(ctx, r.ID, enabled); err != nil {
		return err
	}

	verb := "Enabled"
	if !enabled {
		verb = "Disabled"
	}
	ui.Success("%s background sync for %s", verb, output.Cyan(r.Name))
	return nil
}

func repoSetIntervalRun(ref, raw string) error {
	interval, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid interval %q: %w", raw, err)
	}
	if interval < 0 {
		return fmt.Errorf("interval must not be negative")
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	r, err := resolveRepo(ctx, s, ref)
	if err != nil {
		return err
	}
	if err := s.UpdateRepoInterval(ctx, r.ID, interval); err != nil {
		return err
	}

	if interval == 0 {
		ui.Success("Reset %s to the global sync interval", output.Cyan(r.Name))
	} else {
		ui.Success("Set %s sync interval to %s", output.Cyan(r.Name), interval)
	}
	return nil
}
