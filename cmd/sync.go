package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gitwatch/gitwatch/internal/models"
	"github.com/gitwatch/gitwatch/internal/notify"
	"github.com/gitwatch/gitwatch/internal/output"
)

var syncAll bool

var syncCmd = &cobra.Command{
	Use:   "sync [name-or-id]",
	Short: "Run a sync cycle now",
	Long: `Fetch a repository and report whether its tracking branch is behind.

Manual runs go through the same cycle logic as timed runs: the result is
recorded against the repository and subject to the same notifications.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncAll || len(args) == 0 {
			return syncAllRun()
		}
		return syncOneRun(args[0])
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncAll, "all", false, "Sync all enabled repositories")
	rootCmd.AddCommand(syncCmd)
}

func syncOneRun(ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	r, err := resolveRepo(ctx, s, ref)
	if err != nil {
		return err
	}

	sched := newEngine(s, &notify.ConsoleSink{UI: ui}, slog.Default())
	res, err := sched.RunNow(ctx, r.ID)
	if err != nil {
		return err
	}
	printCycleResult(res)
	return nil
}

func syncAllRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	sched := newEngine(s, &notify.ConsoleSink{UI: ui}, slog.Default())
	results, err := sched.RunAllNow(ctx)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		ui.Info("No enabled repositories to sync")
		return nil
	}

	for _, res := range results {
		printCycleResult(res)
	}
	return nil
}

func printCycleResult(res *models.CycleResult) {
	switch {
	case !res.Success:
		ui.Error("%s: %s", output.Cyan(res.RepoName), res.Error)
	case res.RemoteChanges:
		ui.Warning("%s: %s behind %s", output.Cyan(res.RepoName),
			notify.CommitPhrase(res.CommitsBehind), res.Detail.TrackingRef)
	case res.Detail == nil || res.Detail.TrackingRef == "":
		ui.Info("%s: no tracking branch, skipped", output.Cyan(res.RepoName))
	default:
		ui.Success("%s: up to date with %s", output.Cyan(res.RepoName), res.Detail.TrackingRef)
	}
}
