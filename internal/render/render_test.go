package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/vibeflix/internal/domain"
	"github.com/Clark-Hu/vibeflix/internal/present"
)

func boundGrid(t *testing.T) (*Page, *Grid) {
	t.Helper()
	page, err := DefaultTemplate().New()
	require.NoError(t, err)
	_, grid, ok := page.Bind()
	require.True(t, ok)
	return page, grid
}

func gridDoc(t *testing.T, g *Grid) *goquery.Document {
	t.Helper()
	out, err := g.HTML()
	require.NoError(t, err)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	require.NoError(t, err)
	return doc
}

func TestGrid_EmptyList(t *testing.T) {
	_, grid := boundGrid(t)
	grid.Show(present.Mapper{}.View(nil, true))

	doc := gridDoc(t, grid)
	assert.Equal(t, 1, doc.Find("."+ClassMessage).Length())
	assert.Equal(t, 0, doc.Find("."+ClassCard).Length())
	assert.Equal(t, present.MessageNoResults, doc.Find("."+ClassMessage).Text())
}

func TestGrid_ConfigMissingIgnoresMovies(t *testing.T) {
	_, grid := boundGrid(t)
	movies := []domain.Movie{{Title: "A"}, {Title: "B"}}
	grid.Show(present.Mapper{}.View(movies, false))

	doc := gridDoc(t, grid)
	msg := doc.Find("." + ClassMessage)
	require.Equal(t, 1, msg.Length())
	state, _ := msg.Attr("data-state")
	assert.Equal(t, string(present.KindConfigMissing), state)
	assert.Equal(t, 0, doc.Find("."+ClassCard).Length())
}

func TestGrid_Cards(t *testing.T) {
	_, grid := boundGrid(t)
	movies := []domain.Movie{
		{Title: "The Matrix", VoteAverage: domain.NewScore(8.2), PosterPath: "/m.jpg"},
		{Name: "Matrix Show"},
	}
	grid.Show(present.Mapper{}.View(movies, true))

	doc := gridDoc(t, grid)
	cards := doc.Find("." + ClassCard)
	require.Equal(t, 2, cards.Length())

	first := cards.Eq(0)
	label, _ := first.Attr("aria-label")
	assert.Equal(t, "The Matrix, rating 8.2 out of 10", label)
	tabindex, _ := first.Attr("tabindex")
	assert.Equal(t, "0", tabindex)

	img := first.Find("img." + ClassPoster)
	alt, _ := img.Attr("alt")
	src, _ := img.Attr("src")
	loading, _ := img.Attr("loading")
	assert.Equal(t, "The Matrix poster", alt)
	assert.Equal(t, present.DefaultImageBaseURL+"/m.jpg", src)
	assert.Equal(t, "lazy", loading)
	assert.Equal(t, "The Matrix", first.Find("h3."+ClassTitle).Text())
	assert.Equal(t, "★8.2", first.Find("."+ClassRating).Text())
	hidden, _ := first.Find("." + ClassStar).Attr("aria-hidden")
	assert.Equal(t, "true", hidden)

	second := cards.Eq(1)
	assert.Equal(t, "Matrix Show", second.Find("h3."+ClassTitle).Text())
	src, _ = second.Find("img").Attr("src")
	assert.Equal(t, present.DefaultPosterPlaceholder, src)
	assert.Contains(t, second.Find("."+ClassRating).Text(), "N/A")
}

func TestGrid_ReplacesPreviousRender(t *testing.T) {
	_, grid := boundGrid(t)
	grid.Show(present.Mapper{}.View([]domain.Movie{{Title: "A"}, {Title: "B"}, {Title: "C"}}, true))
	grid.Show(present.ErrorView(present.MessageSearchFailed))

	doc := gridDoc(t, grid)
	assert.Equal(t, 0, doc.Find("."+ClassCard).Length())
	assert.Equal(t, 1, doc.Find("."+ClassMessage).Length())
	assert.Equal(t, present.MessageSearchFailed, doc.Find("."+ClassMessage).Text())
}

func TestGrid_EscapesText(t *testing.T) {
	_, grid := boundGrid(t)
	grid.Show(present.Mapper{}.View([]domain.Movie{{Title: `<script>alert(1)</script>`}}, true))

	out, err := grid.HTML()
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
}

func TestPage_BindMissingElements(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"no input", `<html><body><div id="movies-grid"></div></body></html>`},
		{"no grid", `<html><body><input id="movie-search"></body></html>`},
		{"neither", `<html><body></body></html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := NewTemplate([]byte(tt.src)).New()
			require.NoError(t, err)
			_, _, ok := page.Bind()
			assert.False(t, ok)
		})
	}
}

func TestPage_SetSessionAndRender(t *testing.T) {
	page, grid := boundGrid(t)
	page.SetSession("sess-abc")
	grid.Show(present.ErrorView("boom"))

	out, err := page.HTML()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	require.NoError(t, err)
	session, _ := doc.Find("body").Attr("data-session")
	assert.Equal(t, "sess-abc", session)
	assert.Equal(t, "boom", doc.Find("#"+GridID+" ."+ClassMessage).Text())
}

func TestLoadTemplate(t *testing.T) {
	tpl, err := LoadTemplate("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTemplate().src, tpl.src)

	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(`<div id="movies-grid"></div>`), 0o644))
	tpl, err = LoadTemplate(path)
	require.NoError(t, err)
	page, err := tpl.New()
	require.NoError(t, err)
	assert.Equal(t, 1, page.Document().Find("#"+GridID).Length())

	_, err = LoadTemplate(filepath.Join(t.TempDir(), "missing.html"))
	assert.Error(t, err)
}
