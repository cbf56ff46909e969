package service

import "errors"

// ErrPrecondition marks client errors: a required query field is missing or
// invalid. These are never retried and map to a 4xx at the transport layer.
var ErrPrecondition = errors.New("precondition failed")
