package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicateID is returned when an entity with the same ID already exists.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrConflict is returned when a compare-and-set transition loses to a
	// concurrent writer: the stored status no longer matches the expected one.
	ErrConflict = errors.New("concurrent status change")
)
