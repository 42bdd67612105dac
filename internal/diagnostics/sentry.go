package diagnostics

import (
	"context"
	"errors"
	"strconv"

	"github.com/getsentry/sentry-go"

	"github.com/Clark-Hu/vibeflix/internal/domain"
)

// Sentry reports failed queries to Sentry. Other outcomes are ignored.
type Sentry struct {
	hub *sentry.Hub
}

// NewSentry wraps a hub. A nil hub means the global one.
func NewSentry(hub *sentry.Hub) *Sentry {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return &Sentry{hub: hub}
}

func (s *Sentry) Record(_ context.Context, ev domain.QueryEvent) {
	if ev.Outcome != domain.OutcomeFailed {
		return
	}
	msg := ev.Error
	if msg == "" {
		msg = "unknown error"
	}

	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTag("query.kind", string(ev.Kind))
		scope.SetTag("query.trigger", string(ev.Trigger))
		scope.SetTag("session_id", ev.SessionID)
		scope.SetContext("query", sentry.Context{
			"text":        ev.Query,
			"duration_ms": strconv.FormatInt(ev.Duration.Milliseconds(), 10),
		})
		s.hub.CaptureException(errors.New("movie query failed: " + msg))
	})
}
