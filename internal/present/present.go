// Package present turns raw movie records into display-ready card
// descriptors. Everything here is pure; rendering lives in package render.
package present

import (
	"fmt"
	"strconv"

	"github.com/Clark-Hu/vibeflix/internal/domain"
)

const (
	DefaultImageBaseURL      = "https://image.tmdb.org/t/p/w500"
	DefaultPosterPlaceholder = "https://via.placeholder.com/300x450?text=No+Image"

	UntitledTitle = "Untitled"
	NoRating      = "N/A"
)

// Messages shown in place of cards.
const (
	MessageConfigMissing = "Add your TMDb API key (TMDB_API_KEY) to load movies."
	MessageNoResults     = "No movies found. Try a different search."
	MessageSearchFailed  = "Something went wrong while loading movies."
	MessageInitialFailed = "Unable to load movies. Check your network or API key."
)

// ViewKind tells the renderer what a View holds.
type ViewKind string

const (
	KindConfigMissing ViewKind = "config-missing"
	KindEmpty         ViewKind = "empty"
	KindError         ViewKind = "error"
	KindCards         ViewKind = "cards"
)

// Card is the display form of one movie.
type Card struct {
	Title     string `json:"title"`
	Rating    string `json:"rating"`
	PosterURL string `json:"posterUrl"`
	PosterAlt string `json:"posterAlt"`
	Label     string `json:"label"`
}

// View is the output of one render pass: either a message or cards.
type View struct {
	Kind    ViewKind `json:"kind"`
	Message string   `json:"message,omitempty"`
	Cards   []Card   `json:"cards,omitempty"`
}

// ResolveTitle picks title, then name, then "Untitled".
func ResolveTitle(m domain.Movie) string {
	if m.Title != "" {
		return m.Title
	}
	if m.Name != "" {
		return m.Name
	}
	return UntitledTitle
}

// FormatRating renders a score with one decimal, or "N/A" when the score is
// missing or not finite. Rounding is that of strconv.FormatFloat: the exact
// binary value is rounded, ties to even (7.95 -> "8.0", 8.25 -> "8.2").
func FormatRating(s domain.Score) string {
	if !s.Finite() {
		return NoRating
	}
	return strconv.FormatFloat(s.Value, 'f', 1, 64)
}

// Mapper carries the image host settings. The zero value uses the defaults.
type Mapper struct {
	ImageBaseURL      string
	PosterPlaceholder string
}

// PosterURL joins the image host prefix with a poster path, or returns the
// placeholder when there is no path.
func (m Mapper) PosterURL(path string) string {
	if path == "" {
		if m.PosterPlaceholder != "" {
			return m.PosterPlaceholder
		}
		return DefaultPosterPlaceholder
	}
	prefix := m.ImageBaseURL
	if prefix == "" {
		prefix = DefaultImageBaseURL
	}
	return prefix + path
}

// Card maps one record.
func (m Mapper) Card(movie domain.Movie) Card {
	title := ResolveTitle(movie)
	rating := FormatRating(movie.VoteAverage)
	return Card{
		Title:     title,
		Rating:    rating,
		PosterURL: m.PosterURL(movie.PosterPath),
		PosterAlt: title + " poster",
		Label:     fmt.Sprintf("%s, rating %s out of 10", title, rating),
	}
}

// View maps a result list. A missing API key wins over any list; an empty
// list is its own state, not an error.
func (m Mapper) View(movies []domain.Movie, apiKeyConfigured bool) View {
	if !apiKeyConfigured {
		return ConfigMissingView()
	}
	if len(movies) == 0 {
		return View{Kind: KindEmpty, Message: MessageNoResults}
	}
	cards := make([]Card, 0, len(movies))
	for _, movie := range movies {
		cards = append(cards, m.Card(movie))
	}
	return View{Kind: KindCards, Cards: cards}
}

// ConfigMissingView is the instruction shown when no API key is set.
func ConfigMissingView() View {
	return View{Kind: KindConfigMissing, Message: MessageConfigMissing}
}

// ErrorView wraps a user-facing failure message.
func ErrorView(message string) View {
	return View{Kind: KindError, Message: message}
}
