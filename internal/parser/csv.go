package parser

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dgallion1/quickfill/internal/doctree"
)

// CSVParser handles CSV files as a single table, header row included.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.Tree, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	tree := &doctree.Tree{Title: trimExt(filename)}
	if len(records) == 0 {
		return tree, nil
	}

	table := &doctree.Table{Rows: make([]doctree.TableRow, 0, len(records))}
	for _, record := range records {
		row := doctree.TableRow{Cells: make([]doctree.TableCell, 0, len(record))}
		for _, field := range record {
			row.Cells = append(row.Cells, cell(field))
		}
		table.Rows = append(table.Rows, row)
	}
	tree.Content = []doctree.Node{table}
	return tree, nil
}
