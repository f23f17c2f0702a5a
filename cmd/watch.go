package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/gitwatch/gitwatch/internal/api"
	"github.com/gitwatch/gitwatch/internal/daemon"
	"github.com/gitwatch/gitwatch/internal/notify"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the background sync watcher in the foreground",
	Long: `Start the watcher: every enabled repository is fetched on its own
interval and you are alerted when a tracking branch falls behind.

With --listen, a small HTTP API is served for status queries and manual
sync triggers. Stop with Ctrl-C; in-flight fetches finish on their own.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchRun()
	},
}

func init() {
	watchCmd.Flags().String("listen", "", "Address for the status HTTP API (e.g. 127.0.0.1:7677)")
	watchCmd.Flags().String("log-file", "", "Append watcher logs to this file (rotated)")
	_ = viper.BindPFlag("watch.listen", watchCmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("watch.log_file", watchCmd.Flags().Lookup("log-file"))
	rootCmd.AddCommand(watchCmd)
}

func watchRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	logger := watchLogger()

	pidPath := viper.GetString("watch.pid_file")
	pidfile := daemon.NewPIDFile(pidPath)
	if err := pidfile.Acquire(); err != nil {
		return err
	}
	defer func() { _ = pidfile.Release() }()

	sink := notify.MultiSink{
		&notify.ConsoleSink{UI: ui},
		&notify.LogSink{Logger: logger},
	}
	sched := newEngine(s, sink, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sched.StartAll(ctx); err != nil {
		return err
	}
	defer sched.StopAll()

	ui.Info("Watcher running. Press Ctrl-C to stop.")

	var httpServer *http.Server
	if addr := viper.GetString("watch.listen"); addr != "" {
		httpServer = &http.Server{
			Addr:    addr,
			Handler: api.NewServer(s, sched, logger).Router(),
		}
		go func() {
			ui.Info("Status API listening on %s", addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server failed", "error", err)
			}
		}()
	}

	<-ctx.Done()
	ui.Info("Shutting down...")

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}
	return nil
}

// watchLogger builds the watcher's logger: rotated file when configured,
// stderr otherwise. Verbose mode enables the per-invocation git diagnostics.
func watchLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if logFile := viper.GetString("watch.log_file"); logFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     30, // days
		}
		return slog.New(slog.NewTextHandler(rotator, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
