// Package repository contains data access layer abstractions.
// Implementations live in subpackages (postgres, memory) inside this directory.
package repository

import "errors"

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned when two writers claim the same version number.
	ErrVersionConflict = errors.New("version number already taken")
	// ErrInvalidReference is returned when a row points at a user or document that does not exist.
	ErrInvalidReference = errors.New("referenced record does not exist")
)
