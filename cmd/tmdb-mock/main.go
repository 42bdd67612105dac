// Command tmdb-mock serves a canned subset of the TMDb v3 API for local runs
// and manual testing of failure states.
package main

import (
	_ "embed"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	httpserver "github.com/Clark-Hu/vibeflix/internal/http"
	"github.com/Clark-Hu/vibeflix/internal/logger"
)

//go:embed fixtures.json
var defaultFixtures []byte

type movieEntry struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title,omitempty"`
	Name        string  `json:"name,omitempty"`
	PosterPath  *string `json:"poster_path"`
	VoteAverage float64 `json:"vote_average"`
}

type listResponse struct {
	Page         int          `json:"page"`
	Results      []movieEntry `json:"results"`
	TotalPages   int          `json:"total_pages"`
	TotalResults int          `json:"total_results"`
}

type mockOptions struct {
	// Status, when non-zero, answers every authorised request with that code.
	Status  int
	Latency time.Duration
	Logger  *slog.Logger
}

func main() {
	var (
		port    = flag.String("port", "9099", "port to listen on")
		data    = flag.String("data", "", "path to a fixture file; empty uses the built-in fixtures")
		status  = flag.Int("status", 0, "answer every request with this status code instead of results")
		latency = flag.Duration("latency", 0, "delay before every response")
		verbose = flag.Bool("log", false, "enable request logging")
	)
	flag.Parse()

	log := logger.New(logger.Config{Level: logger.ParseLevel("info")})

	file := defaultFixtures
	if *data != "" {
		var err error
		if file, err = os.ReadFile(*data); err != nil {
			log.Error("read mock data", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	movies, err := loadFixtures(file)
	if err != nil {
		log.Error("parse mock data", slog.String("error", err.Error()))
		os.Exit(1)
	}

	opts := mockOptions{Status: *status, Latency: *latency}
	if *verbose {
		opts.Logger = log
	}

	addr := ":" + *port
	log.Info("mock tmdb listening", slog.String("addr", addr), slog.Int("movies", len(movies)))
	if err := http.ListenAndServe(addr, newRouter(movies, opts)); err != nil {
		log.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func loadFixtures(file []byte) ([]movieEntry, error) {
	var movies []movieEntry
	if err := json.Unmarshal(file, &movies); err != nil {
		return nil, err
	}
	return movies, nil
}

func newRouter(movies []movieEntry, opts mockOptions) http.Handler {
	r := chi.NewRouter()
	if opts.Logger != nil {
		r.Use(httpserver.RequestLogger(opts.Logger))
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if opts.Latency > 0 {
				time.Sleep(opts.Latency)
			}
			if req.URL.Query().Get("api_key") == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]any{
					"status_code":    7,
					"status_message": "Invalid API key: You must be granted a valid key.",
				})
				return
			}
			if opts.Status != 0 {
				http.Error(w, http.StatusText(opts.Status), opts.Status)
				return
			}
			next.ServeHTTP(w, req)
		})
	})

	r.Get("/3/movie/popular", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, page(movies))
	})
	r.Get("/3/search/movie", func(w http.ResponseWriter, req *http.Request) {
		query := strings.ToLower(strings.TrimSpace(req.URL.Query().Get("query")))
		var matched []movieEntry
		for _, m := range movies {
			name := m.Title
			if name == "" {
				name = m.Name
			}
			if query != "" && strings.Contains(strings.ToLower(name), query) {
				matched = append(matched, m)
			}
		}
		writeJSON(w, http.StatusOK, page(matched))
	})
	return r
}

func page(results []movieEntry) listResponse {
	if results == nil {
		results = []movieEntry{}
	}
	return listResponse{Page: 1, Results: results, TotalPages: 1, TotalResults: len(results)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json;charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
