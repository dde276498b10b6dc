package reshape

import "errors"

// ErrColumnCount is returned when a data row does not carry the expected
// number of cells for the known table layout.
var ErrColumnCount = errors.New("unexpected column count")
