package store

import "errors"

// ErrNotFound is returned when a requested row does not exist in the store.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a uniqueness constraint,
// e.g. creating an admin with a username that is already taken.
var ErrDuplicate = errors.New("already exists")
