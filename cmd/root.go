package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gitwatch/gitwatch/internal/detect"
	"github.com/gitwatch/gitwatch/internal/gitexec"
	"github.com/gitwatch/gitwatch/internal/models"
	"github.com/gitwatch/gitwatch/internal/notify"
	"github.com/gitwatch/gitwatch/internal/output"
	"github.com/gitwatch/gitwatch/internal/scheduler"
	"github.com/gitwatch/gitwatch/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "gitwatch",
	Short: "gitwatch - background remote-sync for your git repositories",
	Long: `gitwatch tracks locally-cloned git repositories and keeps their
remote-tracking state current by fetching each repo on its own interval.
It alerts you when a tracked branch falls behind its upstream.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/gitwatch/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "gitwatch")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("GITWATCH")
	viper.AutomaticEnv()

	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "gitwatch")

	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "gitwatch.db"))
	viper.SetDefault("sync.default_interval", "5m")
	viper.SetDefault("sync.fetch_timeout", "30s")
	viper.SetDefault("notify.enabled", true)
	viper.SetDefault("notify.on_changes", true)
	viper.SetDefault("notify.on_errors", true)
	viper.SetDefault("notify.cooldown", "60s")
	viper.SetDefault("git.extra_paths", []string{})
	viper.SetDefault("watch.listen", "")
	viper.SetDefault("watch.log_file", "")
	viper.SetDefault("watch.pid_file", filepath.Join(defaultConfigDir, "gitwatch.pid"))

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// newEngine wires the runner, checker, notifier, and scheduler from the
// effective configuration. The extra-paths policy is re-read from viper on
// every git invocation so config changes apply without a restart.
func newEngine(s store.Store, sink notify.Sink, logger *slog.Logger) *scheduler.Scheduler {
	runner := gitexec.NewRunner(logger)
	runner.ExtraPaths = func() []string { return viper.GetStringSlice("git.extra_paths") }

	checker := detect.NewChecker(runner, viper.GetDuration("sync.fetch_timeout"))

	enabled := viper.GetBool("notify.enabled")
	notifier := notify.New(s, sink, notify.Settings{
		OnChanges: enabled && viper.GetBool("notify.on_changes"),
		OnErrors:  enabled && viper.GetBool("notify.on_errors"),
		Cooldown:  viper.GetDuration("notify.cooldown"),
	})

	return scheduler.New(s, checker, notifier, viper.GetDuration("sync.default_interval"), logger)
}

// resolveRepo looks a repo up by name first, then by ID.
func resolveRepo(ctx context.Context, s store.Store, ref string) (*models.Repo, error) {
	if r, err := s.GetRepoByName(ctx, ref); err == nil {
		return r, nil
	}
	return s.GetRepo(ctx, ref)
}

// formatInterval renders a repo's interval for display.
func formatInterval(r *models.Repo, def time.Duration) string {
	if r.SyncInterval > 0 {
		return r.SyncInterval.String()
	}
	return def.String() + " (default)"
}
