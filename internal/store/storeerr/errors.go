// Package storeerr defines the sentinel errors every Store implementation
// returns, so callers (the CLI, tests) can compare with errors.Is rather
// than string-match engine-specific failures.
package storeerr

import "errors"

var (
	// ErrConnectivity is returned when the backing store cannot be reached
	// or index creation fails at bootstrap.
	ErrConnectivity = errors.New("storeerr: cannot reach the document store")

	// ErrUniqueConflict is returned when a write would violate the
	// (source, ticker) uniqueness constraint on refs.
	ErrUniqueConflict = errors.New("storeerr: source/ticker pair already claimed")

	// ErrDanglingReference names the case of a ref whose props or series
	// key points at a path document that does not exist. Neither engine
	// returns it: Get logs a warning and returns empty properties, and
	// Upsert writes a fresh path revision.
	ErrDanglingReference = errors.New("storeerr: ref points at a missing path document")

	// ErrNotFound is returned by Rename (both engines) and by impl_mongo's
	// Delete when the requested alias has no live ref. Get reports a
	// missing alias as (nil, false, nil) instead.
	ErrNotFound = errors.New("storeerr: no instrument found for that alias")

	// ErrUnsupportedMergeMode is returned when UpsertOptions names a merge
	// mode other than merge.Append or merge.Replace.
	ErrUnsupportedMergeMode = errors.New("storeerr: unsupported merge mode")
)
