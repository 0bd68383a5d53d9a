// Package repository defines the persistence ports consumed by the engine
// and provided by a storage adapter. The ports are opaque: the
// SQL schema backing them is an external collaborator, never assumed by
// callers of this package.
package repository

import "errors"

// ErrNotFound is returned by repository methods when the requested record
// does not exist. Callers check with errors.Is.
var ErrNotFound = errors.New("record not found")

// ErrConflict names a violation of a uniqueness or state invariant at the
// repository boundary. No adapter in this module returns it: gormstore wraps
// constraint errors from the database as they are, and duplicate running
// invocations are refused by the engine's in-process registry.
var ErrConflict = errors.New("record already exists")
