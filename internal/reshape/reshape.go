// Package reshape recovers the cohort grouping that was flattened into
// section header rows and maps positional cells onto named fields.
package reshape

import (
	"fmt"
	"strings"
)

// columnCount is the number of cells a subject row carries in the known
// layout: id, age, gender, dose, and three titer readings.
const columnCount = 7

// groupPrefix marks a section header row when the first cell starts with it.
const groupPrefix = "Group"

// groupCharOffset is the rune position of the cohort letter inside a
// section header cell ("Group A" carries the letter at offset 6).
const groupCharOffset = 6

// Record is one subject row with cells still in raw string form. Group is
// inherited from the nearest section header row above it; empty cells stay
// empty and are resolved to missing during normalization.
type Record struct {
	ID       string `json:"id"`
	Age      string `json:"age"`
	Gender   string `json:"gender"`
	Dose     string `json:"dose"`
	HAIDay0  string `json:"hai_d0"`
	HAIDay21 string `json:"hai_d21"`
	HAIDay42 string `json:"hai_d42"`
	Group    string `json:"group"`
}

// Options control which rows of the raw table are layout artifacts rather
// than subject data.
type Options struct {
	// HeaderRow is the position of the embedded column-header row in the
	// raw table. It is dropped by position, not content. Set to -1 when
	// the table has no such row.
	HeaderRow int
}

// DefaultOptions matches the known source layout, where the column header
// is the first row.
func DefaultOptions() Options {
	return Options{HeaderRow: 0}
}

// Rows reconstructs subject records from raw table rows. The cohort group
// is carried forward across the scan: every section header row updates the
// accumulator, every subject row inherits its current value. Section
// header rows and the embedded column-header row are dropped from the
// output.
func Rows(rows [][]string, opts Options) ([]Record, error) {
	records := make([]Record, 0, len(rows))
	group := ""

	for i, cells := range rows {
		if len(cells) > 0 && isGroupHeader(cells[0]) {
			group = groupChar(cells[0])
			continue
		}
		if i == opts.HeaderRow {
			continue
		}
		if len(cells) != columnCount {
			return nil, fmt.Errorf("row %d has %d columns, want %d: %w", i, len(cells), columnCount, ErrColumnCount)
		}
		records = append(records, Record{
			ID:       cells[0],
			Age:      cells[1],
			Gender:   cells[2],
			Dose:     cells[3],
			HAIDay0:  cells[4],
			HAIDay21: cells[5],
			HAIDay42: cells[6],
			Group:    group,
		})
	}

	return records, nil
}

// isGroupHeader reports whether a first cell marks a section header row.
func isGroupHeader(cell string) bool {
	return strings.HasPrefix(cell, groupPrefix)
}

// groupChar extracts the cohort letter from a section header cell. A
// header too short to carry the letter yields an empty group, which is
// carried forward as-is for the whole block.
func groupChar(cell string) string {
	runes := []rune(cell)
	if len(runes) <= groupCharOffset {
		return ""
	}
	return string(runes[groupCharOffset])
}
