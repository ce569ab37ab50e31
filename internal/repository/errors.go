package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrVersionConflict is returned when a versioned update matched no
	// row because the stored version moved on under us.
	ErrVersionConflict = errors.New("version conflict")
)
