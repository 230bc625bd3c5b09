package parser

import (
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/dgallion1/quickfill/internal/doctree"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser extracts plain text page by page, one paragraph per line.
// When the library cannot read the file and FallbackPdftotext is set, the
// pdftotext binary is tried instead.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*doctree.Tree, error) {
	tmp, _, cleanup, err := spool(r, "quickfill-pdf-*.pdf")
	if err != nil {
		return nil, err
	}
	defer cleanup()
	path := tmp.Name()
	tmp.Close()

	pages, err := pdfPages(path)
	if err != nil && p.FallbackPdftotext {
		pages, err = pdftotextPages(path)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	tree := &doctree.Tree{Title: trimExt(filename)}
	for _, page := range pages {
		tree.Content = append(tree.Content, lines(strings.TrimRight(page, " \n"))...)
	}
	return tree, nil
}

func pdfPages(path string) ([]string, error) {
	f, doc, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pages := make([]string, 0, doc.NumPage())
	for i := 1; i <= doc.NumPage(); i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// pdftotextPages runs pdftotext, which separates pages with form feeds.
func pdftotextPages(path string) ([]string, error) {
	out, err := exec.Command("pdftotext", "-layout", path, "-").Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	return strings.Split(string(out), "\f"), nil
}
