package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Clark-Hu/vibeflix/internal/domain"
	"github.com/Clark-Hu/vibeflix/internal/present"
)

// handleAPIMovies answers one query with a JSON View: popular movies for an
// empty q, a search otherwise. There is no debounce on this path.
func (s *Server) handleAPIMovies(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	ev := domain.QueryEvent{
		Trigger: domain.TriggerAPI,
		Kind:    domain.QueryPopular,
		Query:   query,
	}
	if query != "" {
		ev.Kind = domain.QuerySearch
	}

	if !s.cfg.APIKeyConfigured() {
		ev.Outcome = domain.OutcomeConfigMissing
		s.record(r.Context(), ev)
		s.respondJSON(w, http.StatusOK, present.ConfigMissingView())
		return
	}

	start := time.Now()
	var (
		movies []domain.Movie
		err    error
	)
	if ev.Kind == domain.QuerySearch {
		movies, err = s.deps.Movies.SearchMovies(r.Context(), query)
	} else {
		movies, err = s.deps.Movies.PopularMovies(r.Context())
	}
	ev.Duration = time.Since(start)
	ev.Outcome = domain.OutcomeOf(len(movies), err)
	ev.ResultCount = len(movies)

	if err != nil {
		ev.Error = err.Error()
		s.record(r.Context(), ev)
		s.logger.Error("movie query failed",
			slog.String("trigger", string(ev.Trigger)),
			slog.String("query", query),
			slog.String("error", ev.Error),
		)
		s.respondJSON(w, http.StatusBadGateway, present.ErrorView(present.MessageSearchFailed))
		return
	}

	s.record(r.Context(), ev)
	s.respondJSON(w, http.StatusOK, s.deps.Mapper.View(movies, true))
}

func (s *Server) record(ctx context.Context, ev domain.QueryEvent) {
	if s.deps.Recorder == nil {
		return
	}
	ev.CreatedAt = time.Now().UTC()
	s.deps.Recorder.Record(context.WithoutCancel(ctx), ev)
}
