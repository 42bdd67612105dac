package tmdb

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/Clark-Hu/vibeflix/internal/domain"
)

const (
	popularPath = "/movie/popular"
	searchPath  = "/search/movie"
)

// PopularMovies lists the first page of popular titles.
func (c *Client) PopularMovies(ctx context.Context) ([]domain.Movie, error) {
	u := c.BuildURL(popularPath, Params{
		{Key: "language", Value: c.language},
		{Key: "page", Value: 1},
	})
	body, err := c.getJSON(ctx, "popular", u)
	if err != nil {
		return nil, err
	}
	return decodeResults(body), nil
}

// SearchMovies searches titles. The query is sent as given; callers trim it.
func (c *Client) SearchMovies(ctx context.Context, query string) ([]domain.Movie, error) {
	u := c.BuildURL(searchPath, Params{
		{Key: "query", Value: query},
		{Key: "include_adult", Value: "false"},
		{Key: "language", Value: c.language},
		{Key: "page", Value: 1},
	})
	body, err := c.getJSON(ctx, "search", u)
	if err != nil {
		return nil, err
	}
	return decodeResults(body), nil
}

// decodeResults extracts the "results" list from a TMDb payload. Anything
// other than an object with a list there yields an empty, non-nil slice;
// list elements that are not objects become zero records.
func decodeResults(body []byte) []domain.Movie {
	movies := []domain.Movie{}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return movies
	}
	raw := bytes.TrimSpace(envelope["results"])
	if len(raw) == 0 || raw[0] != '[' {
		return movies
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return movies
	}
	for _, item := range items {
		var m domain.Movie
		if err := json.Unmarshal(item, &m); err != nil {
			m = domain.Movie{}
		}
		movies = append(movies, m)
	}
	return movies
}
