package site

import (
	"context"
	"embed"
	"io"
	"strings"

	"cmdsite/model"
	"cmdsite/render"

	"github.com/a-h/templ"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

//go:embed assets
var assets embed.FS

// PageData configures the page shell.
type PageData struct {
	Title string
	// Base is the deployment base path ("" or "/name"). Relative links,
	// commands.json included, resolve under it.
	Base string
}

func (p PageData) baseHref() string {
	return strings.TrimRight(p.Base, "/") + "/"
}

// Page renders the page shell with an empty command table.
func Page(p PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return html.Render(w, Shell(p))
	})
}

// Shell builds the page document: title, base href, stylesheet and a
// table with the column headers and an empty tbody.
func Shell(p PageData) *html.Node {
	headers := element(atom.Tr, nil)
	for _, col := range model.Columns {
		headers.AppendChild(element(atom.Th, nil, textNode(col)))
	}

	head := element(atom.Head, nil,
		element(atom.Meta, attrs("charset", "utf-8")),
		element(atom.Meta, attrs("name", "viewport", "content", "width=device-width, initial-scale=1")),
		element(atom.Title, nil, textNode(p.Title)),
		element(atom.Base, attrs("href", p.baseHref())),
		element(atom.Link, attrs("rel", "stylesheet", "href", "assets/style.css")),
	)
	body := element(atom.Body, nil,
		element(atom.Main, nil,
			element(atom.H1, nil, textNode(p.Title)),
			element(atom.Table, attrs("id", render.TableID),
				element(atom.Thead, nil, headers),
				element(atom.Tbody, nil),
			),
		),
	)

	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	doc.AppendChild(element(atom.Html, attrs("lang", "en"), head, body))
	return doc
}

func element(a atom.Atom, attr []html.Attribute, children ...*html.Node) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attr}
	for _, c := range children {
		n.AppendChild(c)
	}
	return n
}

// attrs pairs up keys and values.
func attrs(kv ...string) []html.Attribute {
	out := make([]html.Attribute, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, html.Attribute{Key: kv[i], Val: kv[i+1]})
	}
	return out
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
