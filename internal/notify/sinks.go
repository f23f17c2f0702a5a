package notify

import (
	"log/slog"

	"github.com/gitwatch/gitwatch/internal/output"
)

// ConsoleSink writes alerts to the terminal via the shared UI.
type ConsoleSink struct {
	UI *output.UI
}

func (s *ConsoleSink) Notify(kind AlertKind, title, message string) {
	switch kind {
	case AlertError:
		s.UI.Error("%s: %s", output.Cyan(title), message)
	default:
		s.UI.Info("%s: %s", output.Cyan(title), message)
	}
}

// LogSink writes alerts to a structured logger, for headless watchers.
type LogSink struct {
	Logger *slog.Logger
}

func (s *LogSink) Notify(kind AlertKind, title, message string) {
	if kind == AlertError {
		s.Logger.Error("sync alert", "repo", title, "message", message)
		return
	}
	s.Logger.Info("sync alert", "repo", title, "message", message)
}

// MultiSink fans an alert out to several sinks.
type MultiSink []Sink

func (m MultiSink) Notify(kind AlertKind, title, message string) {
	for _, s := range m {
		s.Notify(kind, title, message)
	}
}
