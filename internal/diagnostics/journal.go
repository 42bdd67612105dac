package diagnostics

import (
	"context"
	"log/slog"
	"time"

	"github.com/Clark-Hu/vibeflix/internal/domain"
)

const defaultWriteTimeout = 2 * time.Second

// EventStore is the persistence the journal writes to.
type EventStore interface {
	Insert(ctx context.Context, ev domain.QueryEvent) (domain.QueryEvent, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Journal persists events. Write failures are logged and dropped.
type Journal struct {
	events  EventStore
	logger  *slog.Logger
	timeout time.Duration
}

func NewJournal(events EventStore, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{
		events:  events,
		logger:  logger.With(slog.String("component", "journal")),
		timeout: defaultWriteTimeout,
	}
}

func (j *Journal) Record(ctx context.Context, ev domain.QueryEvent) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	if _, err := j.events.Insert(ctx, ev); err != nil {
		j.logger.Warn("failed to write query event",
			slog.String("session_id", ev.SessionID),
			slog.String("outcome", string(ev.Outcome)),
			slog.String("error", err.Error()),
		)
	}
}

// Prune deletes events older than retention.
func (j *Journal) Prune(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	n, err := j.events.DeleteBefore(ctx, now.Add(-retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		j.logger.Info("pruned query events", slog.Int64("deleted", n))
	}
	return n, nil
}

// RunPruner prunes every interval until ctx is done. A non-positive retention
// disables pruning.
func (j *Journal) RunPruner(ctx context.Context, interval, retention time.Duration) {
	if retention <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			if _, err := j.Prune(ctx, now, retention); err != nil {
				j.logger.Warn("prune failed", slog.String("error", err.Error()))
			}
		case <-ctx.Done():
			return
		}
	}
}
