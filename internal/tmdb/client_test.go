package tmdb

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Options{
		BaseURL:    server.URL + "/3",
		APIKey:     "test-key",
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		HTTPClient: server.Client(),
		RateLimit:  1000,
		RateBurst:  100,
	})
	require.NoError(t, err)
	return client, server
}

func TestBuildURL_SkipsEmptyValues(t *testing.T) {
	client, err := NewClient(Options{BaseURL: "https://api.example.test/3/", APIKey: "k"})
	require.NoError(t, err)

	var nilString *string
	got := client.BuildURL("/search/movie", Params{
		{Key: "query", Value: "The Matrix & more"},
		{Key: "empty", Value: ""},
		{Key: "missing", Value: nil},
		{Key: "nilptr", Value: nilString},
		{Key: "include_adult", Value: false},
		{Key: "page", Value: 1},
		{Key: "ratio", Value: 0.5},
	})

	assert.Equal(t,
		"https://api.example.test/3/search/movie?api_key=k&query=The+Matrix+%26+more&include_adult=false&page=1&ratio=0.5",
		got)
}

func TestBuildURL_Pointers(t *testing.T) {
	client, err := NewClient(Options{BaseURL: "https://api.example.test/3", APIKey: "k"})
	require.NoError(t, err)

	var (
		nilInt   *int
		nilFloat *float64
		nilBool  *bool
		nilURL   *url.URL
	)
	page := 2
	query := "Alien"
	empty := ""
	link := &url.URL{Scheme: "https", Host: "example.test"}
	got := client.BuildURL("/x", Params{
		{Key: "page", Value: nilInt},
		{Key: "ratio", Value: nilFloat},
		{Key: "adult", Value: nilBool},
		{Key: "link", Value: nilURL},
		{Key: "blank", Value: &empty},
		{Key: "query", Value: &query},
		{Key: "p", Value: &page},
		{Key: "site", Value: link},
	})
	assert.Equal(t, "https://api.example.test/3/x?api_key=k&query=Alien&p=2&site=https%3A%2F%2Fexample.test", got)
}

func TestBuildURL_AlwaysSetsAPIKey(t *testing.T) {
	client, err := NewClient(Options{BaseURL: "https://api.example.test/3", APIKey: ""})
	require.NoError(t, err)

	got := client.BuildURL("/movie/popular", nil)
	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.True(t, u.Query().Has("api_key"))
	assert.Equal(t, "/3/movie/popular", u.Path)
}

func TestBuildURL_RepeatedKeyKeepsPositionAndLastValue(t *testing.T) {
	client, err := NewClient(Options{BaseURL: "https://api.example.test/3", APIKey: "k"})
	require.NoError(t, err)

	got := client.BuildURL("/x", Params{
		{Key: "a", Value: "1"},
		{Key: "b", Value: "2"},
		{Key: "a", Value: "3"},
	})
	assert.True(t, strings.HasSuffix(got, "?api_key=k&a=3&b=2"), got)
}

func TestNewClient_RejectsMalformedBaseURL(t *testing.T) {
	for _, raw := range []string{"::nope", "api.themoviedb.org/3", "ftp://host/3"} {
		_, err := NewClient(Options{BaseURL: raw})
		assert.Error(t, err, raw)
	}
}

func TestClient_SearchMovies(t *testing.T) {
	var gotQuery url.Values
	var gotPath string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"page":1,"results":[
			{"id":603,"title":"The Matrix","vote_average":8.2,"poster_path":"/m.jpg"},
			{"id":604,"name":"Matrix Reloaded","vote_average":"x"}
		]}`)
	})

	movies, err := client.SearchMovies(context.Background(), "Matrix")
	require.NoError(t, err)

	assert.Equal(t, "/3/search/movie", gotPath)
	assert.Equal(t, "Matrix", gotQuery.Get("query"))
	assert.Equal(t, "false", gotQuery.Get("include_adult"))
	assert.Equal(t, "en-US", gotQuery.Get("language"))
	assert.Equal(t, "1", gotQuery.Get("page"))
	assert.Equal(t, "test-key", gotQuery.Get("api_key"))

	require.Len(t, movies, 2)
	assert.Equal(t, "The Matrix", movies[0].Title)
	assert.True(t, movies[0].VoteAverage.Finite())
	assert.Equal(t, "/m.jpg", movies[0].PosterPath)
	assert.Equal(t, "Matrix Reloaded", movies[1].Name)
	assert.False(t, movies[1].VoteAverage.Valid)
}

func TestClient_PopularMovies(t *testing.T) {
	var gotQuery url.Values
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/3/movie/popular", r.URL.Path)
		gotQuery = r.URL.Query()
		_, _ = io.WriteString(w, `{"results":[{"title":"Dune"}]}`)
	})

	movies, err := client.PopularMovies(context.Background())
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, "Dune", movies[0].Title)
	assert.False(t, gotQuery.Has("query"))
	assert.Equal(t, "en-US", gotQuery.Get("language"))
}

func TestClient_MalformedShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing results", `{"page":1}`},
		{"results is object", `{"results":{"title":"x"}}`},
		{"results is null", `{"results":null}`},
		{"body is list", `[1,2,3]`},
		{"body is string", `"hello"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			})
			movies, err := client.PopularMovies(context.Background())
			require.NoError(t, err)
			assert.NotNil(t, movies)
			assert.Empty(t, movies)
		})
	}
}

func TestClient_RequestFailed(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"unauthorized", http.StatusUnauthorized},
		{"not found", http.StatusNotFound},
		{"server error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"status_message":"nope"}`)
			})

			_, err := client.SearchMovies(context.Background(), "x")
			var reqErr *RequestFailedError
			require.True(t, errors.As(err, &reqErr), "got %v", err)
			assert.Equal(t, tt.status, reqErr.StatusCode)
			assert.Equal(t, http.StatusText(tt.status), reqErr.Status)
		})
	}
}

func TestClient_TransportFailureHidesAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := server.URL
	server.Close()

	client, err := NewClient(Options{BaseURL: base, APIKey: "super-secret"})
	require.NoError(t, err)

	_, err = client.PopularMovies(context.Background())
	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr), "got %v", err)
	assert.NotContains(t, err.Error(), "super-secret")
}

func TestClient_InvalidJSONBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>oops</html>`)
	})

	_, err := client.PopularMovies(context.Background())
	require.Error(t, err)
	var reqErr *RequestFailedError
	assert.False(t, errors.As(err, &reqErr))
}

func TestClient_CanceledContext(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"results":[]}`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.PopularMovies(ctx)
	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr), "got %v", err)
	assert.ErrorIs(t, err, context.Canceled)
}
