// Package session keeps one live page per browser tab: its parsed document,
// its input controller and a feed of grid updates for the event stream.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Clark-Hu/vibeflix/internal/controller"
	"github.com/Clark-Hu/vibeflix/internal/id"
	"github.com/Clark-Hu/vibeflix/internal/present"
	"github.com/Clark-Hu/vibeflix/internal/render"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrShutdown = errors.New("session manager is shut down")
)

const (
	DefaultTTL           = 30 * time.Minute
	defaultSweepInterval = time.Minute
)

// Options configures a Manager.
type Options struct {
	Template         *render.Template
	Movies           controller.MovieQuerier
	Mapper           present.Mapper
	APIKeyConfigured bool
	Debounce         time.Duration
	Scheduler        controller.Scheduler
	Recorder         controller.Recorder
	TTL              time.Duration
	SweepInterval    time.Duration
	Logger           *slog.Logger
}

// Manager owns every live session.
type Manager struct {
	opts   Options
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	shutdown bool
}

// NewManager builds a manager. A nil template means the embedded page.
func NewManager(opts Options) *Manager {
	if opts.Template == nil {
		opts.Template = render.DefaultTemplate()
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		opts:     opts,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session and runs its initial load before returning, so the
// first page served already holds popular movies or an error message.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	sid, err := id.Generate(id.PrefixSession)
	if err != nil {
		return nil, err
	}
	page, err := m.opts.Template.New()
	if err != nil {
		return nil, err
	}
	page.SetSession(sid)

	s := &Session{
		ID:      sid,
		logger:  m.logger.With(slog.String("session_id", sid)),
		page:    page,
		updates: make(chan string, 1),
		done:    make(chan struct{}),
	}
	s.touch(time.Now())

	_, grid, ok := page.Bind()
	if ok {
		s.grid = grid
		s.ctrl = controller.New(controller.Options{
			SessionID:        sid,
			Movies:           m.opts.Movies,
			Target:           s,
			Mapper:           m.opts.Mapper,
			APIKeyConfigured: m.opts.APIKeyConfigured,
			Debounce:         m.opts.Debounce,
			Scheduler:        m.opts.Scheduler,
			Recorder:         m.opts.Recorder,
			Logger:           m.logger,
		})
	} else {
		m.logger.Warn("page is missing the search field or grid; session is inert",
			slog.String("session_id", sid))
	}

	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		s.close()
		return nil, ErrShutdown
	}
	m.sessions[sid] = s
	m.mu.Unlock()

	if s.ctrl != nil {
		s.ctrl.Activate(ctx)
	}
	m.logger.Debug("session created", slog.String("session_id", sid))
	return s, nil
}

// Get returns a live session and marks it as seen.
func (m *Manager) Get(sid string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[sid]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sid)
	}
	s.touch(time.Now())
	return s, nil
}

// Close ends one session.
func (m *Manager) Close(sid string) error {
	m.mu.Lock()
	s, ok := m.sessions[sid]
	delete(m.sessions, sid)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sid)
	}
	s.close()
	return nil
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than the TTL and returns how many
// were closed.
func (m *Manager) Sweep(now time.Time) int {
	cutoff := now.Add(-m.opts.TTL)

	var expired []*Session
	m.mu.Lock()
	for sid, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, sid)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.close()
	}
	if len(expired) > 0 {
		m.logger.Info("expired idle sessions", slog.Int("count", len(expired)))
	}
	return len(expired)
}

// Run sweeps periodically until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			m.Sweep(now)
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown closes every session and rejects new ones.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.shutdown = true
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.close()
	}
	m.logger.Info("sessions closed", slog.Int("count", len(all)))
}

// Session is one page and its controller.
type Session struct {
	ID string

	logger *slog.Logger

	mu   sync.Mutex
	page *render.Page
	grid *render.Grid
	ctrl *controller.Controller

	updates   chan string
	done      chan struct{}
	closeOnce sync.Once
	lastSeen  atomic.Int64
}

// Input forwards a field value to the controller. Inert sessions ignore it.
func (s *Session) Input(value string) {
	if s.ctrl == nil {
		return
	}
	s.ctrl.Input(value)
}

// Show applies a view to the grid and publishes the new grid markup.
func (s *Session) Show(v present.View) {
	s.mu.Lock()
	s.grid.Show(v)
	s.mu.Unlock()
	s.publishGrid()
}

func (s *Session) publishGrid() {
	out, err := s.GridHTML()
	if err != nil {
		s.logger.Error("render grid failed", slog.String("error", err.Error()))
		return
	}
	s.publish(out)
}

// publish keeps only the newest fragment in the channel.
func (s *Session) publish(fragment string) {
	for {
		select {
		case s.updates <- fragment:
			return
		default:
		}
		select {
		case <-s.updates:
		default:
		}
	}
}

// Updates delivers grid markup after every render.
func (s *Session) Updates() <-chan string {
	return s.updates
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// GridHTML renders the grid's current children. Inert sessions return "".
func (s *Session) GridHTML() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grid == nil {
		return "", nil
	}
	return s.grid.HTML()
}

// PageHTML renders the whole document.
func (s *Session) PageHTML() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page.HTML()
}

// Active reports whether the page bound its field and grid.
func (s *Session) Active() bool {
	return s.ctrl != nil
}

// Controller returns the session's controller, or nil for inert sessions.
func (s *Session) Controller() *controller.Controller {
	return s.ctrl
}

// Touch marks the session as in use.
func (s *Session) Touch() {
	s.touch(time.Now())
}

// LastSeen is the last time the session was used.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Session) touch(t time.Time) {
	s.lastSeen.Store(t.UnixNano())
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		if s.ctrl != nil {
			s.ctrl.Close()
		}
		close(s.done)
	})
}
