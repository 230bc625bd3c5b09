package doctree

import (
	"strings"
	"unicode/utf16"
)

// Flatten concatenates the text runs of nodes in document order: paragraphs
// element by element, tables row by row and cell by cell, tables of contents
// by their content. Nothing is inserted between nodes, so offsets into the
// result line up with the remote service's index space.
func Flatten(nodes []Node) string {
	var sb strings.Builder

	// Explicit stack keeps deeply nested tables off the goroutine stack.
	stack := make([]Node, 0, len(nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		stack = append(stack, nodes[i])
	}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch n := n.(type) {
		case *Paragraph:
			for _, el := range n.Elements {
				if run, ok := el.(*TextRun); ok {
					sb.WriteString(run.Content)
				}
			}
		case *Table:
			for r := len(n.Rows) - 1; r >= 0; r-- {
				cells := n.Rows[r].Cells
				for c := len(cells) - 1; c >= 0; c-- {
					content := cells[c].Content
					for i := len(content) - 1; i >= 0; i-- {
						stack = append(stack, content[i])
					}
				}
			}
		case *TableOfContents:
			for i := len(n.Content) - 1; i >= 0; i-- {
				stack = append(stack, n.Content[i])
			}
		}
	}
	return sb.String()
}

// Count returns the character and word counts of a flattened body. Newlines
// count as spaces; words are the non-empty tokens between single spaces.
func Count(body string) (characters, words int) {
	normalized := strings.ReplaceAll(body, "\n", " ")
	characters = TextLength(normalized)
	for _, tok := range strings.Split(normalized, " ") {
		if tok != "" {
			words++
		}
	}
	return characters, words
}

// TextLength is the length of s in the document offset space (UTF-16 code
// units). It equals len(s) for ASCII text.
func TextLength(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
