package tool

import "errors"

var (
	// ErrToolNotFound means the requested operation name is not in the catalog.
	ErrToolNotFound = errors.New("tool not found")
	// ErrInvalidParams means caller-supplied parameters failed validation.
	// The wrapped message names the offending field. No process is launched.
	ErrInvalidParams = errors.New("invalid tool params")
)
