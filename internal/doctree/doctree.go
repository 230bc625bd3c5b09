// Package doctree models a structured document body and flattens it into
// the plain-text offset space that edits are addressed against.
package doctree

// Node is one structural element of a document body. It is implemented by
// *Paragraph, *Table and *TableOfContents.
type Node interface {
	structural()
}

// Element is one inline element of a paragraph. Only *TextRun carries text.
type Element interface {
	inline()
}

// Paragraph is a run of inline elements. Paragraph text normally ends with
// an explicit "\n" element content, as the remote service reports it.
type Paragraph struct {
	Elements []Element
}

// Table is a grid of cells; each cell holds its own structural content.
type Table struct {
	Rows []TableRow
}

// TableRow is one row of a table, cells left to right.
type TableRow struct {
	Cells []TableCell
}

// TableCell holds nested structural content.
type TableCell struct {
	Content []Node
}

// TableOfContents wraps generated structural content.
type TableOfContents struct {
	Content []Node
}

// TextRun is literal text inside a paragraph.
type TextRun struct {
	Content string
}

// Opaque is a non-text inline element (inline object, page break, equation).
type Opaque struct {
	Kind string
}

func (*Paragraph) structural()       {}
func (*Table) structural()           {}
func (*TableOfContents) structural() {}

func (*TextRun) inline() {}
func (*Opaque) inline()  {}

// Tree is a parsed document: title plus top-level structural content.
type Tree struct {
	Title   string
	Content []Node
}

// Document is a read-only snapshot of a fetched document.
type Document struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	Characters int    `json:"characters"`
	Words      int    `json:"words"`
}

// NewDocument flattens content and computes the body counts.
func NewDocument(id, title string, content []Node) *Document {
	body := Flatten(content)
	chars, words := Count(body)
	return &Document{
		ID:         id,
		Title:      title,
		Body:       body,
		Characters: chars,
		Words:      words,
	}
}

// Para builds a paragraph from literal text runs.
func Para(runs ...string) *Paragraph {
	p := &Paragraph{Elements: make([]Element, 0, len(runs))}
	for _, r := range runs {
		p.Elements = append(p.Elements, &TextRun{Content: r})
	}
	return p
}
