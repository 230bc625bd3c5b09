package parser

import (
	"fmt"
	"io"

	"github.com/dgallion1/quickfill/internal/doctree"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Each docx run becomes a text run, so the
// element structure mirrors the source paragraph.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*doctree.Tree, error) {
	tmp, size, cleanup, err := spool(r, "quickfill-docx-*.docx")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	doc, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	tree := &doctree.Tree{Title: trimExt(filename)}
	for _, item := range doc.Document.Body.Items {
		switch v := item.(type) {
		case *docx.Paragraph:
			tree.Content = append(tree.Content, docxParagraph(v))
		case *docx.Table:
			tree.Content = append(tree.Content, docxTable(v))
		}
	}
	return tree, nil
}

func docxParagraph(para *docx.Paragraph) *doctree.Paragraph {
	out := &doctree.Paragraph{}
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		var text string
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				text += t.Text
			}
		}
		if text != "" {
			out.Elements = append(out.Elements, &doctree.TextRun{Content: text})
		}
	}
	out.Elements = append(out.Elements, &doctree.TextRun{Content: "\n"})
	return out
}

func docxTable(tbl *docx.Table) *doctree.Table {
	out := &doctree.Table{}
	for _, tr := range tbl.TableRows {
		var row doctree.TableRow
		for _, tc := range tr.TableCells {
			var c doctree.TableCell
			for _, para := range tc.Paragraphs {
				c.Content = append(c.Content, docxParagraph(para))
			}
			for _, nested := range tc.Tables {
				c.Content = append(c.Content, docxTable(nested))
			}
			row.Cells = append(row.Cells, c)
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}
