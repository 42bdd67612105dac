package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Clark-Hu/vibeflix/internal/domain"
	"github.com/Clark-Hu/vibeflix/internal/repository"
)

type queryEventResponse struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"sessionId,omitempty"`
	Trigger     string    `json:"trigger"`
	Kind        string    `json:"kind"`
	Query       string    `json:"query"`
	Outcome     string    `json:"outcome"`
	ResultCount int       `json:"resultCount"`
	Error       string    `json:"error,omitempty"`
	DurationMS  int64     `json:"durationMs"`
	CreatedAt   time.Time `json:"createdAt"`
}

type queryEventListResponse struct {
	Items      []queryEventResponse `json:"items"`
	NextCursor *string              `json:"nextCursor,omitempty"`
}

type summaryResponse struct {
	Since  *time.Time       `json:"since,omitempty"`
	Counts map[string]int64 `json:"counts"`
	Total  int64            `json:"total"`
}

func (s *Server) handleListQueryEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.Events == nil {
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Query journal is disabled")
		return
	}

	filters, err := buildEventFilters(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	page, err := s.deps.Events.Recent(r.Context(), filters)
	if err != nil {
		s.logger.Error("list query events failed", slog.String("error", err.Error()))
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list query events")
		return
	}

	items := make([]queryEventResponse, 0, len(page.Items))
	for _, ev := range page.Items {
		items = append(items, toQueryEventResponse(ev))
	}
	s.respondJSON(w, http.StatusOK, queryEventListResponse{Items: items, NextCursor: page.NextCursor})
}

func (s *Server) handleQuerySummary(w http.ResponseWriter, r *http.Request) {
	if s.deps.Events == nil {
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Query journal is disabled")
		return
	}

	var resp summaryResponse
	var since time.Time
	if val := strings.TrimSpace(r.URL.Query().Get("since")); val != "" {
		parsed, err := time.Parse(time.RFC3339, val)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "since must be an RFC 3339 timestamp")
			return
		}
		since = parsed.UTC()
		resp.Since = &since
	}

	counts, err := s.deps.Events.Summary(r.Context(), since)
	if err != nil {
		s.logger.Error("summarize query events failed", slog.String("error", err.Error()))
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to summarize query events")
		return
	}

	resp.Counts = make(map[string]int64, len(counts))
	for _, c := range counts {
		resp.Counts[string(c.Outcome)] = c.Count
		resp.Total += c.Count
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func buildEventFilters(query url.Values) (repository.QueryEventFilters, error) {
	var filters repository.QueryEventFilters

	if val := strings.TrimSpace(query.Get("session")); val != "" {
		filters.SessionID = &val
	}
	if val := strings.TrimSpace(query.Get("outcome")); val != "" {
		outcome := domain.QueryOutcome(val)
		if !outcome.Valid() {
			return filters, fmt.Errorf("invalid outcome value")
		}
		filters.Outcome = &outcome
	}
	if val := strings.TrimSpace(query.Get("kind")); val != "" {
		kind := domain.QueryKind(val)
		if kind != domain.QueryPopular && kind != domain.QuerySearch {
			return filters, fmt.Errorf("invalid kind value")
		}
		filters.Kind = &kind
	}
	if val := strings.TrimSpace(query.Get("since")); val != "" {
		since, err := time.Parse(time.RFC3339, val)
		if err != nil {
			return filters, fmt.Errorf("invalid since value")
		}
		filters.Since = &since
	}
	if val := strings.TrimSpace(query.Get("limit")); val != "" {
		limit, err := strconv.Atoi(val)
		if err != nil || limit <= 0 {
			return filters, fmt.Errorf("invalid limit value")
		}
		filters.Limit = limit
	}
	if val := strings.TrimSpace(query.Get("cursor")); val != "" {
		cursor, err := repository.DecodeCursor(val)
		if err != nil {
			return filters, fmt.Errorf("invalid cursor value")
		}
		filters.Cursor = cursor
	}
	return filters, nil
}

func toQueryEventResponse(ev domain.QueryEvent) queryEventResponse {
	return queryEventResponse{
		ID:          ev.ID,
		SessionID:   ev.SessionID,
		Trigger:     string(ev.Trigger),
		Kind:        string(ev.Kind),
		Query:       ev.Query,
		Outcome:     string(ev.Outcome),
		ResultCount: ev.ResultCount,
		Error:       ev.Error,
		DurationMS:  ev.Duration.Milliseconds(),
		CreatedAt:   ev.CreatedAt,
	}
}
