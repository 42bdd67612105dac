package diagnostics

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/vibeflix/internal/domain"
)

type fakeStore struct {
	mu        sync.Mutex
	inserted  []domain.QueryEvent
	insertErr error
	cutoff    time.Time
	deleted   int64
	deadline  bool
}

func (f *fakeStore) Insert(ctx context.Context, ev domain.QueryEvent) (domain.QueryEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, f.deadline = ctx.Deadline()
	if f.insertErr != nil {
		return domain.QueryEvent{}, f.insertErr
	}
	ev.ID = int64(len(f.inserted) + 1)
	f.inserted = append(f.inserted, ev)
	return ev, nil
}

func (f *fakeStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoff = cutoff
	return f.deleted, nil
}

type captureRecorder struct {
	events []domain.QueryEvent
}

func (c *captureRecorder) Record(_ context.Context, ev domain.QueryEvent) {
	c.events = append(c.events, ev)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func failedEvent() domain.QueryEvent {
	return domain.QueryEvent{
		SessionID: "sess-1",
		Trigger:   domain.TriggerInput,
		Kind:      domain.QuerySearch,
		Query:     "Matrix",
		Outcome:   domain.OutcomeFailed,
		Error:     "tmdb: request failed: 500 Internal Server Error",
		Duration:  80 * time.Millisecond,
	}
}

func TestJournal_RecordWritesWithDeadline(t *testing.T) {
	st := &fakeStore{}
	j := NewJournal(st, discard())

	j.Record(context.Background(), failedEvent())

	require.Len(t, st.inserted, 1)
	assert.Equal(t, "Matrix", st.inserted[0].Query)
	assert.True(t, st.deadline)
}

func TestJournal_RecordSwallowsErrors(t *testing.T) {
	var buf bytes.Buffer
	st := &fakeStore{insertErr: errors.New("connection refused")}
	j := NewJournal(st, slog.New(slog.NewTextHandler(&buf, nil)))

	assert.NotPanics(t, func() { j.Record(context.Background(), failedEvent()) })
	assert.Contains(t, buf.String(), "failed to write query event")
	assert.Contains(t, buf.String(), "connection refused")
}

func TestJournal_Prune(t *testing.T) {
	st := &fakeStore{deleted: 3}
	j := NewJournal(st, discard())
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	n, err := j.Prune(context.Background(), now, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, now.Add(-24*time.Hour), st.cutoff)
}

func TestJournal_RunPrunerDisabled(t *testing.T) {
	j := NewJournal(&fakeStore{}, discard())
	done := make(chan struct{})
	go func() {
		j.RunPruner(context.Background(), time.Minute, 0)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPruner should return immediately when retention is zero")
	}
}

func TestMulti_FansOutAndSkipsNil(t *testing.T) {
	a, b := &captureRecorder{}, &captureRecorder{}
	r := Multi(a, nil, b)

	r.Record(context.Background(), failedEvent())

	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

func TestLog_RecordsAtDebug(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	l.Record(context.Background(), failedEvent())

	out := buf.String()
	assert.Contains(t, out, "level=DEBUG")
	assert.Contains(t, out, "outcome=failed")
	assert.Contains(t, out, "query=Matrix")
}

func newTestHub(t *testing.T) (*sentry.Hub, func() []*sentry.Event) {
	t.Helper()
	var (
		mu     sync.Mutex
		events []*sentry.Event
	)
	client, err := sentry.NewClient(sentry.ClientOptions{
		SampleRate: 1.0,
		BeforeSend: func(e *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
			return nil
		},
	})
	require.NoError(t, err)
	hub := sentry.NewHub(client, sentry.NewScope())
	return hub, func() []*sentry.Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]*sentry.Event(nil), events...)
	}
}

func TestSentry_ReportsFailuresOnly(t *testing.T) {
	hub, captured := newTestHub(t)
	s := NewSentry(hub)

	for _, outcome := range []domain.QueryOutcome{domain.OutcomeOK, domain.OutcomeEmpty, domain.OutcomeSuperseded, domain.OutcomeConfigMissing} {
		ev := failedEvent()
		ev.Outcome = outcome
		s.Record(context.Background(), ev)
	}
	assert.Empty(t, captured())

	s.Record(context.Background(), failedEvent())

	events := captured()
	require.Len(t, events, 1)
	assert.Equal(t, sentry.LevelError, events[0].Level)
	assert.Equal(t, "search", events[0].Tags["query.kind"])
	assert.Equal(t, "sess-1", events[0].Tags["session_id"])
	require.NotEmpty(t, events[0].Exception)
	assert.Contains(t, events[0].Exception[0].Value, "500 Internal Server Error")
}
