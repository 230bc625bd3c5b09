package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/dgallion1/quickfill/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. Headings,
// paragraphs and list items become paragraphs; GFM tables become tables.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.Tree, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := md.Parser().Parse(text.NewReader(src))

	return &doctree.Tree{
		Title:   trimExt(filename),
		Content: markdownBlocks(doc, src),
	}, nil
}

func markdownBlocks(parent ast.Node, src []byte) []doctree.Node {
	var out []doctree.Node
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading, *ast.Paragraph, *ast.TextBlock:
			if t := inlineText(n, src); t != "" {
				out = append(out, doctree.Para(t+"\n"))
			}
		case *ast.List, *ast.ListItem, *ast.Blockquote:
			out = append(out, markdownBlocks(n, src)...)
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			out = append(out, lines(blockLines(n, src))...)
		case *east.Table:
			out = append(out, markdownTable(node, src))
		}
	}
	return out
}

func markdownTable(t *east.Table, src []byte) *doctree.Table {
	tbl := &doctree.Table{}
	// The header row is a TableHeader, the rest are TableRows; both hold
	// TableCells directly.
	for r := t.FirstChild(); r != nil; r = r.NextSibling() {
		var row doctree.TableRow
		for c := r.FirstChild(); c != nil; c = c.NextSibling() {
			row.Cells = append(row.Cells, cell(inlineText(c, src)))
		}
		tbl.Rows = append(tbl.Rows, row)
	}
	return tbl
}

// inlineText gets the text content of a block's inline children.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				buf.Write(t.Segment.Value(src))
				if t.HardLineBreak() || t.SoftLineBreak() {
					buf.WriteByte('\n')
				}
			case *ast.String:
				buf.Write(t.Value)
			case *ast.AutoLink:
				buf.Write(t.Label(src))
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return strings.TrimSpace(buf.String())
}

func blockLines(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	segs := n.Lines()
	for i := 0; i < segs.Len(); i++ {
		seg := segs.At(i)
		buf.Write(seg.Value(src))
	}
	return buf.String()
}
