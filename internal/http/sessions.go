package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/vibeflix/internal/session"
)

type inputRequest struct {
	Query string `json:"query"`
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Sessions.Create(r.Context())
	if err != nil {
		if errors.Is(err, session.ErrShutdown) {
			s.respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Server is shutting down")
			return
		}
		s.logger.Error("create session failed", slog.String("error", err.Error()))
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build page")
		return
	}

	page, err := sess.PageHTML()
	if err != nil {
		s.logger.Error("render page failed", slog.String("session_id", sess.ID), slog.String("error", err.Error()))
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build page")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page))
}

func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.deps.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Session not found")
		return nil, false
	}
	return sess, true
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	query, err := s.readInput(w, r)
	if err != nil {
		s.respondDecodeError(w, err)
		return
	}

	sess.Input(query)
	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// readInput accepts a JSON body or a form field, both named "query".
func (s *Server) readInput(w http.ResponseWriter, r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req inputRequest
		if err := decodeJSONBody(w, r, &req); err != nil {
			return "", err
		}
		return req.Query, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := r.ParseForm(); err != nil {
		return "", err
	}
	return r.PostForm.Get("query"), nil
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.Close(chi.URLParam(r, "id")); err != nil {
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEvents streams grid markup as server-sent events. The current grid is
// sent first; afterwards one "grid" event follows every render.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	if r.Context().Err() != nil {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	// The stream outlives the server's write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Debug("failed to clear write deadline", slog.String("error", err.Error()))
	}
	if err := rc.Flush(); err != nil {
		s.logger.Error("failed to flush headers", slog.String("error", err.Error()))
		return
	}

	logger := s.logger.With(slog.String("session_id", sess.ID))

	// Anything queued is older than what GridHTML returns now.
	select {
	case <-sess.Updates():
	default:
	}
	current, err := sess.GridHTML()
	if err != nil {
		logger.Error("render grid failed", slog.String("error", err.Error()))
		return
	}
	if err := writeEvent(w, rc, "grid", current); err != nil {
		return
	}

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case fragment := <-sess.Updates():
			if err := writeEvent(w, rc, "grid", fragment); err != nil {
				logger.Info("client disconnected during send")
				return
			}
		case <-heartbeat.C:
			sess.Touch()
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case <-sess.Done():
			_ = writeEvent(w, rc, "closed", "")
			return
		case <-r.Context().Done():
			return
		}
	}
}

// writeEvent writes one event, splitting data on line breaks as the
// event-stream format requires.
func writeEvent(w http.ResponseWriter, rc *http.ResponseController, event, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
		return err
	}
	data = strings.ReplaceAll(data, "\r\n", "\n")
	data = strings.ReplaceAll(data, "\r", "\n")
	for _, line := range strings.Split(data, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprint(w, "\n"); err != nil {
		return err
	}
	return rc.Flush()
}
