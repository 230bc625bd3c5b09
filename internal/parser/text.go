package parser

import (
	"bufio"
	"io"

	"github.com/dgallion1/quickfill/internal/doctree"
)

// TextParser handles plain text files: every line is a paragraph, blank
// lines included.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.Tree, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	tree := &doctree.Tree{Title: trimExt(filename)}
	for scanner.Scan() {
		tree.Content = append(tree.Content, doctree.Para(scanner.Text()+"\n"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return tree, nil
}
