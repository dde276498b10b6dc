package fetch

import "errors"

// ErrBadStatus is returned when the source page answers with a non-success
// HTTP status.
var ErrBadStatus = errors.New("unexpected HTTP status")
