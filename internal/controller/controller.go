// Package controller drives queries from search-field input: debounced
// searches, the initial popular load, and rendering of their results.
package controller

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Clark-Hu/vibeflix/internal/domain"
	"github.com/Clark-Hu/vibeflix/internal/present"
)

// DefaultDebounce is the quiet period after the last keystroke.
const DefaultDebounce = 400 * time.Millisecond

// MovieQuerier is the movie query service.
type MovieQuerier interface {
	PopularMovies(ctx context.Context) ([]domain.Movie, error)
	SearchMovies(ctx context.Context, query string) ([]domain.Movie, error)
}

// Target receives every view the controller renders.
type Target interface {
	Show(v present.View)
}

// Recorder receives one event per fired query. Implementations must not block
// for long and must swallow their own errors.
type Recorder interface {
	Record(ctx context.Context, ev domain.QueryEvent)
}

// Options configures a Controller.
type Options struct {
	SessionID        string
	Movies           MovieQuerier
	Target           Target
	Mapper           present.Mapper
	APIKeyConfigured bool
	Debounce         time.Duration
	Scheduler        Scheduler
	Recorder         Recorder
	Logger           *slog.Logger
}

// Controller owns the field value, the debounce timer and the in-flight
// query of one page.
//
// Overlapping queries resolve as last request wins: each query takes a
// sequence number, a newer query cancels the older one, and a response whose
// sequence is no longer current is dropped.
type Controller struct {
	sessionID        string
	movies           MovieQuerier
	target           Target
	mapper           present.Mapper
	apiKeyConfigured bool
	recorder         Recorder
	logger           *slog.Logger
	debouncer        *Debouncer

	base context.Context
	stop context.CancelFunc

	mu       sync.Mutex
	value    string
	seq      uint64
	inflight context.CancelFunc
	closed   bool
}

// New builds a controller. It does nothing until Activate or Input is called.
func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	wait := opts.Debounce
	if wait <= 0 {
		wait = DefaultDebounce
	}
	base, stop := context.WithCancel(context.Background())

	c := &Controller{
		sessionID:        opts.SessionID,
		movies:           opts.Movies,
		target:           opts.Target,
		mapper:           opts.Mapper,
		apiKeyConfigured: opts.APIKeyConfigured,
		recorder:         opts.Recorder,
		logger:           logger.With(slog.String("session_id", opts.SessionID)),
		base:             base,
		stop:             stop,
	}
	c.debouncer = NewDebouncer(wait, opts.Scheduler, c.onQuiet)
	return c
}

// Activate performs the initial popular-movies load. It is not coordinated
// with the debounce timer.
func (c *Controller) Activate(ctx context.Context) {
	c.run(ctx, domain.TriggerInitial, "", present.MessageInitialFailed)
}

// Input records the current field value and restarts the quiet period.
// After Close it does nothing.
func (c *Controller) Input(value string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.value = value
	c.mu.Unlock()
	c.debouncer.Trigger()
}

// Value returns the last field value received.
func (c *Controller) Value() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// DebounceState exposes the debounce machine state.
func (c *Controller) DebounceState() State {
	return c.debouncer.State()
}

// Close drops any pending input and cancels the in-flight query. The
// controller ignores input from then on.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.debouncer.Stop()
	c.stop()
}

func (c *Controller) onQuiet() {
	query := strings.TrimSpace(c.Value())
	c.run(c.base, domain.TriggerInput, query, present.MessageSearchFailed)
}

func (c *Controller) run(parent context.Context, trigger domain.QueryTrigger, query, failMessage string) {
	ev := domain.QueryEvent{
		SessionID: c.sessionID,
		Trigger:   trigger,
		Kind:      domain.QueryPopular,
		Query:     query,
	}
	if query != "" {
		ev.Kind = domain.QuerySearch
	}
	recordCtx := context.WithoutCancel(parent)

	if !c.apiKeyConfigured {
		c.mu.Lock()
		c.seq++
		c.cancelInflightLocked()
		c.target.Show(present.ConfigMissingView())
		c.mu.Unlock()

		ev.Outcome = domain.OutcomeConfigMissing
		c.record(recordCtx, ev)
		return
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.cancelInflightLocked()
	c.inflight = cancel
	c.mu.Unlock()

	start := time.Now()
	var (
		movies []domain.Movie
		err    error
	)
	if ev.Kind == domain.QuerySearch {
		movies, err = c.movies.SearchMovies(ctx, query)
	} else {
		movies, err = c.movies.PopularMovies(ctx)
	}
	ev.Duration = time.Since(start)

	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		ev.Outcome = domain.OutcomeSuperseded
		if err != nil {
			ev.Error = err.Error()
		}
		c.logger.Debug("dropping superseded response",
			slog.String("kind", string(ev.Kind)),
			slog.String("query", query),
		)
		c.record(recordCtx, ev)
		return
	}
	c.inflight = nil
	if err != nil {
		c.target.Show(present.ErrorView(failMessage))
	} else {
		c.target.Show(c.mapper.View(movies, true))
	}
	c.mu.Unlock()

	ev.Outcome = domain.OutcomeOf(len(movies), err)
	ev.ResultCount = len(movies)
	if err != nil {
		ev.Error = err.Error()
		c.logger.Error("movie query failed",
			slog.String("trigger", string(trigger)),
			slog.String("kind", string(ev.Kind)),
			slog.String("query", query),
			slog.String("error", ev.Error),
		)
	}
	c.record(recordCtx, ev)
}

func (c *Controller) cancelInflightLocked() {
	if c.inflight != nil {
		c.inflight()
		c.inflight = nil
	}
}

func (c *Controller) record(ctx context.Context, ev domain.QueryEvent) {
	if c.recorder == nil {
		return
	}
	ev.CreatedAt = time.Now().UTC()
	c.recorder.Record(ctx, ev)
}
