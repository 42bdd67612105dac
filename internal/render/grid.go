package render

import (
	"bytes"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/Clark-Hu/vibeflix/internal/present"
)

// Class names the page stylesheet relies on.
const (
	ClassMessage = "grid-message"
	ClassCard    = "movie-card"
	ClassPoster  = "movie-poster"
	ClassInfo    = "movie-info"
	ClassTitle   = "movie-title"
	ClassRating  = "movie-rating"
	ClassStar    = "star-icon"
)

const (
	posterWidth  = "300"
	posterHeight = "450"
	starGlyph    = "★"
)

// Grid is the results container of a page.
type Grid struct {
	node *html.Node
}

// NewGrid wraps an existing container node.
func NewGrid(node *html.Node) *Grid {
	return &Grid{node: node}
}

// Node returns the container.
func (g *Grid) Node() *html.Node {
	return g.node
}

// Show replaces the container's children with the view. Message views become
// a single paragraph; card views become one card per entry, in order.
func (g *Grid) Show(v present.View) {
	clearChildren(g.node)

	if v.Kind != present.KindCards {
		p := element("p", "class", ClassMessage, "data-state", string(v.Kind), "role", "status")
		p.AppendChild(text(v.Message))
		g.node.AppendChild(p)
		return
	}

	for _, c := range v.Cards {
		g.node.AppendChild(cardNode(c))
	}
}

// HTML renders the container's children.
func (g *Grid) HTML() (string, error) {
	var buf bytes.Buffer
	for c := g.node.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func cardNode(c present.Card) *html.Node {
	card := element("div", "class", ClassCard, "tabindex", "0", "aria-label", c.Label)

	card.AppendChild(element("img",
		"class", ClassPoster,
		"src", c.PosterURL,
		"alt", c.PosterAlt,
		"loading", "lazy",
		"width", posterWidth,
		"height", posterHeight,
	))

	info := element("div", "class", ClassInfo)
	title := element("h3", "class", ClassTitle)
	title.AppendChild(text(c.Title))

	rating := element("div", "class", ClassRating)
	star := element("span", "class", ClassStar, "aria-hidden", "true")
	star.AppendChild(text(starGlyph))
	value := element("span")
	value.AppendChild(text(c.Rating))
	rating.AppendChild(star)
	rating.AppendChild(value)

	info.AppendChild(title)
	info.AppendChild(rating)
	card.AppendChild(info)
	return card
}

// element builds an element node from alternating attribute keys and values.
func element(tag string, attrs ...string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func clearChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}
