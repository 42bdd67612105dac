// Package render applies present.View values to an HTML node tree. A Page is
// the per-session document; its Grid is the container the views replace.
package render

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Element ids the page must provide.
const (
	SearchInputID = "movie-search"
	GridID        = "movies-grid"
)

//go:embed assets/index.html
var defaultPage []byte

// Template holds page source; every session parses its own copy.
type Template struct {
	src []byte
}

// DefaultTemplate returns the embedded page.
func DefaultTemplate() *Template {
	return &Template{src: defaultPage}
}

// NewTemplate wraps custom page source.
func NewTemplate(src []byte) *Template {
	return &Template{src: append([]byte(nil), src...)}
}

// LoadTemplate reads a page from disk, or returns the embedded page when path
// is empty.
func LoadTemplate(path string) (*Template, error) {
	if path == "" {
		return DefaultTemplate(), nil
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read page template: %w", err)
	}
	return &Template{src: src}, nil
}

// New parses a fresh Page.
func (t *Template) New() (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(t.src))
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}
	return &Page{doc: doc}, nil
}

// Page is one parsed document. It is not safe for concurrent use.
type Page struct {
	doc *goquery.Document
}

// Bind locates the search field and the results grid. ok is false when
// either element is missing.
func (p *Page) Bind() (input *html.Node, grid *Grid, ok bool) {
	in := p.doc.Find("#" + SearchInputID)
	container := p.doc.Find("#" + GridID)
	if in.Length() == 0 || container.Length() == 0 {
		return nil, nil, false
	}
	return in.Get(0), NewGrid(container.Get(0)), true
}

// SetSession stamps the session id on <body> for the page script.
func (p *Page) SetSession(id string) {
	p.doc.Find("body").SetAttr("data-session", id)
}

// HTML renders the whole document.
func (p *Page) HTML() (string, error) {
	return p.doc.Html()
}

// Document exposes the parsed document for callers that need to query it.
func (p *Page) Document() *goquery.Document {
	return p.doc
}
