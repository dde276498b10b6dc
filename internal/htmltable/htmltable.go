// Package htmltable parses the table elements out of an HTML document and
// selects the one holding the target dataset by position.
package htmltable

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Table is one table element, in document order. Rows hold the trimmed
// text of every th and td cell; header and data cells are not
// distinguished at this stage.
type Table struct {
	Index   int        `json:"index"`
	Caption string     `json:"caption,omitempty"`
	Rows    [][]string `json:"rows"`
}

// Parse extracts every table from the document. A document without tables
// yields an empty slice, not an error; whether that is acceptable is the
// caller's call.
func Parse(r io.Reader) ([]Table, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var tables []Table
	doc.Find("table").Each(func(i int, sel *goquery.Selection) {
		table := Table{
			Index:   i,
			Caption: strings.TrimSpace(sel.Find("caption").First().Text()),
		}
		sel.Find("tr").Each(func(_ int, row *goquery.Selection) {
			var cells []string
			row.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, strings.TrimSpace(cell.Text()))
			})
			if len(cells) > 0 {
				table.Rows = append(table.Rows, cells)
			}
		})
		tables = append(tables, table)
	})

	return tables, nil
}

// Select returns the table at the requested position. A missing table
// means the source document changed and needs manual attention, so both
// failure modes are distinct errors rather than empty results.
func Select(tables []Table, index int) (Table, error) {
	if len(tables) == 0 {
		return Table{}, ErrNoTables
	}
	if index < 0 || index >= len(tables) {
		return Table{}, fmt.Errorf("requested table %d of %d: %w", index, len(tables), ErrTableIndex)
	}
	return tables[index], nil
}
