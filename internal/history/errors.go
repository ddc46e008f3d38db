package history

import "errors"

// ErrNotFound is returned when no record matches a build ID.
var ErrNotFound = errors.New("build record not found")
