package htmltable

import "errors"

var (
	// ErrNoTables is returned when the fetched document contains no table
	// elements at all.
	ErrNoTables = errors.New("no tables found in document")

	// ErrTableIndex is returned when the configured table position does not
	// exist among the tables found.
	ErrTableIndex = errors.New("table index out of range")
)
