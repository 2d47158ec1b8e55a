package store

import "errors"

// ErrDuplicateID is returned when a record id has already been stored.
var ErrDuplicateID = errors.New("record id already exists")
