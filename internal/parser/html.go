package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/quickfill/internal/doctree"
	"golang.org/x/net/html"
)

// HTMLParser handles HTML files. Block text elements become paragraphs,
// <table> becomes a table whose cells are parsed recursively.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*doctree.Tree, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	tree := &doctree.Tree{Title: trimExt(filename)}
	if title := findTitle(doc); title != "" {
		tree.Title = title
	}

	root := findBody(doc)
	if root == nil {
		root = doc
	}
	tree.Content = htmlBlocks(root)
	return tree, nil
}

func htmlBlocks(n *html.Node) []doctree.Node {
	var out []doctree.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "script", "style", "nav", "footer", "header":
			continue
		case "p", "h1", "h2", "h3", "h4", "h5", "h6", "li", "blockquote", "pre":
			if t := textContent(c); t != "" {
				out = append(out, doctree.Para(t+"\n"))
			}
		case "table":
			out = append(out, htmlTable(c))
		default:
			out = append(out, htmlBlocks(c)...)
		}
	}
	return out
}

func htmlTable(n *html.Node) *doctree.Table {
	tbl := &doctree.Table{}
	var walkRows func(*html.Node)
	walkRows = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "tr":
				var row doctree.TableRow
				for td := c.FirstChild; td != nil; td = td.NextSibling {
					if td.Type == html.ElementNode && (td.Data == "td" || td.Data == "th") {
						row.Cells = append(row.Cells, htmlCell(td))
					}
				}
				tbl.Rows = append(tbl.Rows, row)
			case "thead", "tbody", "tfoot":
				walkRows(c)
			}
		}
	}
	walkRows(n)
	return tbl
}

// htmlCell keeps nested block structure when the cell has any, otherwise
// the cell text becomes a single paragraph.
func htmlCell(td *html.Node) doctree.TableCell {
	if content := htmlBlocks(td); len(content) > 0 {
		return doctree.TableCell{Content: content}
	}
	return cell(textContent(td))
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
