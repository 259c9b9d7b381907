package render

import (
	"errors"
	"strconv"
	"strings"

	"cmdsite/model"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// TableID is the id of the table whose body receives the rows.
const TableID = "commands-table"

// ErrNoContainer is returned when there is no table body to render into.
var ErrNoContainer = errors.New("command table body not found")

// Cells returns the text of each column for cmd.
func Cells(cmd model.Command) model.Row {
	aliases := strings.Join(cmd.Aliases, ", ")
	if aliases == "" {
		aliases = "None"
	}
	return model.Row{
		cmd.Name,
		aliases,
		cmd.Usage,
		cmd.Description,
		cmd.ChannelCooldown.String(),
		cmd.UserCooldown.String(),
		strconv.FormatBool(cmd.NoPrefix),
		strconv.FormatBool(cmd.CanDisable),
	}
}

// Render appends one row per command to tbody, in order. Existing children
// are kept, so rendering the same list twice produces every row twice.
func Render(tbody *html.Node, cmds []model.Command) error {
	if tbody == nil {
		return ErrNoContainer
	}
	for _, cmd := range cmds {
		tbody.AppendChild(newRow(Cells(cmd)))
	}
	return nil
}

func newRow(cells model.Row) *html.Node {
	tr := &html.Node{Type: html.ElementNode, Data: "tr", DataAtom: atom.Tr}
	for _, text := range cells {
		td := &html.Node{Type: html.ElementNode, Data: "td", DataAtom: atom.Td}
		td.AppendChild(&html.Node{Type: html.TextNode, Data: text})
		tr.AppendChild(td)
	}
	return tr
}

// FindTableBody returns the tbody of the #commands-table element in doc.
func FindTableBody(doc *html.Node) (*html.Node, error) {
	table := find(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && attr(n, "id") == TableID
	})
	if table == nil {
		return nil, ErrNoContainer
	}
	tbody := find(table, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Tbody
	})
	if tbody == nil {
		return nil, ErrNoContainer
	}
	return tbody, nil
}

// Rows returns the cell text of every row in tbody.
func Rows(tbody *html.Node) []model.Row {
	var rows []model.Row
	for tr := tbody.FirstChild; tr != nil; tr = tr.NextSibling {
		if tr.Type != html.ElementNode || tr.DataAtom != atom.Tr {
			continue
		}
		var (
			row model.Row
			i   int
		)
		for td := tr.FirstChild; td != nil && i < len(row); td = td.NextSibling {
			if td.Type != html.ElementNode || td.DataAtom != atom.Td {
				continue
			}
			row[i] = text(td)
			i++
		}
		rows = append(rows, row)
	}
	return rows
}

func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n == nil {
		return nil
	}
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
