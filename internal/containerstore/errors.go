package containerstore

import "errors"

// Sentinel errors, grounded on the teacher's per-package errors.go
// convention (lib/instances/errors.go).
var (
	// ErrNotFound is returned when no ps_<uuid> directory matches a prefix.
	ErrNotFound = errors.New("container not found")
	// ErrAmbiguous is returned when a prefix matches more than one container.
	ErrAmbiguous = errors.New("container id prefix is ambiguous")
)
