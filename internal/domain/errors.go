package domain

import "errors"

var (
	// ErrPathConflict means the requested path is already owned by a
	// different entity. Single-entity edits may overwrite; bulk
	// operations must not.
	ErrPathConflict = errors.New("path already bound to a different entity")

	// ErrDirectoryMissingSlug blocks bulk/attach operations that target a
	// directory without a configured path prefix.
	ErrDirectoryMissingSlug = errors.New("directory has no path slug")

	ErrHasChildren    = errors.New("directory has children")
	ErrEntityNotFound = errors.New("entity not found")
	ErrNotFound       = errors.New("not found")
)
