package gdocs

import (
	"github.com/dgallion1/quickfill/internal/doctree"
	"github.com/dgallion1/quickfill/internal/edit"
	docs "google.golang.org/api/docs/v1"
)

// Nodes converts API structural elements into document tree nodes.
// Section breaks carry no text and are dropped.
func Nodes(elements []*docs.StructuralElement) []doctree.Node {
	out := make([]doctree.Node, 0, len(elements))
	for _, el := range elements {
		if el == nil {
			continue
		}
		switch {
		case el.Paragraph != nil:
			out = append(out, paragraph(el.Paragraph))
		case el.Table != nil:
			out = append(out, table(el.Table))
		case el.TableOfContents != nil:
			out = append(out, &doctree.TableOfContents{Content: Nodes(el.TableOfContents.Content)})
		}
	}
	return out
}

func paragraph(p *docs.Paragraph) *doctree.Paragraph {
	para := &doctree.Paragraph{Elements: make([]doctree.Element, 0, len(p.Elements))}
	for _, el := range p.Elements {
		if el == nil {
			continue
		}
		if el.TextRun != nil {
			para.Elements = append(para.Elements, &doctree.TextRun{Content: el.TextRun.Content})
			continue
		}
		para.Elements = append(para.Elements, &doctree.Opaque{Kind: elementKind(el)})
	}
	return para
}

func table(t *docs.Table) *doctree.Table {
	tbl := &doctree.Table{Rows: make([]doctree.TableRow, 0, len(t.TableRows))}
	for _, row := range t.TableRows {
		if row == nil {
			continue
		}
		r := doctree.TableRow{Cells: make([]doctree.TableCell, 0, len(row.TableCells))}
		for _, cell := range row.TableCells {
			if cell == nil {
				continue
			}
			r.Cells = append(r.Cells, doctree.TableCell{Content: Nodes(cell.Content)})
		}
		tbl.Rows = append(tbl.Rows, r)
	}
	return tbl
}

func elementKind(el *docs.ParagraphElement) string {
	switch {
	case el.InlineObjectElement != nil:
		return "inlineObject"
	case el.PageBreak != nil:
		return "pageBreak"
	case el.ColumnBreak != nil:
		return "columnBreak"
	case el.FootnoteReference != nil:
		return "footnoteReference"
	case el.HorizontalRule != nil:
		return "horizontalRule"
	case el.Equation != nil:
		return "equation"
	case el.AutoText != nil:
		return "autoText"
	}
	return "other"
}

// Requests converts a batch into batchUpdate requests, in batch order.
// Zero indexes, false and zero color channels are force-sent; the API
// client would otherwise omit them and the server would read them as unset.
func Requests(b *edit.Batch) []*docs.Request {
	ops := b.Operations()
	out := make([]*docs.Request, 0, len(ops))
	for _, op := range ops {
		switch op.Kind {
		case edit.KindInsertText:
			out = append(out, &docs.Request{InsertText: &docs.InsertTextRequest{
				Location: &docs.Location{
					Index:           int64(op.Range.Start()),
					ForceSendFields: []string{"Index"},
				},
				Text: op.Text,
			}})
		case edit.KindDeleteRange:
			out = append(out, &docs.Request{DeleteContentRange: &docs.DeleteContentRangeRequest{
				Range: apiRange(op.Range),
			}})
		case edit.KindUpdateStyle:
			out = append(out, &docs.Request{UpdateTextStyle: &docs.UpdateTextStyleRequest{
				Range:     apiRange(op.Range),
				TextStyle: textStyle(op.Style),
				Fields:    edit.StyleFields,
			}})
		}
	}
	return out
}

func apiRange(r edit.Range) *docs.Range {
	end, _ := r.End()
	return &docs.Range{
		StartIndex:      int64(r.Start()),
		EndIndex:        int64(end),
		ForceSendFields: []string{"StartIndex", "EndIndex"},
	}
}

func textStyle(s edit.TextStyle) *docs.TextStyle {
	return &docs.TextStyle{
		Italic: s.Italic,
		ForegroundColor: &docs.OptionalColor{
			Color: &docs.Color{
				RgbColor: &docs.RgbColor{
					Blue:            s.Color.Blue,
					Green:           s.Color.Green,
					Red:             s.Color.Red,
					ForceSendFields: []string{"Blue", "Green", "Red"},
				},
			},
		},
		ForceSendFields: []string{"Italic"},
	}
}
