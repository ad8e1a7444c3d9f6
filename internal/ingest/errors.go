package ingest

import "errors"

// ErrParse indicates log input that could not be accepted: empty text,
// a missing service name, or an error level outside the known set.
var ErrParse = errors.New("log parsing failed")
