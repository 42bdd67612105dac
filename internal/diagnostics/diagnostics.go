// Package diagnostics receives one event per fired movie query and sends it
// to the journal, the error tracker and the log.
package diagnostics

import (
	"context"
	"log/slog"

	"github.com/Clark-Hu/vibeflix/internal/domain"
)

// Recorder consumes query events. Record never fails from the caller's
// point of view.
type Recorder interface {
	Record(ctx context.Context, ev domain.QueryEvent)
}

type multi []Recorder

// Multi fans an event out to every non-nil recorder, in order.
func Multi(recorders ...Recorder) Recorder {
	out := make(multi, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m multi) Record(ctx context.Context, ev domain.QueryEvent) {
	for _, r := range m {
		r.Record(ctx, ev)
	}
}

// Log writes every event at debug level.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Record(ctx context.Context, ev domain.QueryEvent) {
	l.logger.LogAttrs(ctx, slog.LevelDebug, "movie query",
		slog.String("session_id", ev.SessionID),
		slog.String("trigger", string(ev.Trigger)),
		slog.String("kind", string(ev.Kind)),
		slog.String("query", ev.Query),
		slog.String("outcome", string(ev.Outcome)),
		slog.Int("results", ev.ResultCount),
		slog.Duration("duration", ev.Duration),
	)
}
