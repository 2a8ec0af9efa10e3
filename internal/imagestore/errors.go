package imagestore

import "errors"

// Sentinel errors for image lookup, grounded on the teacher's per-package
// errors.go convention (lib/images/errors.go).
var (
	// ErrNotFound is returned when no img_<uuid> directory matches a prefix.
	ErrNotFound = errors.New("image not found")
	// ErrAmbiguous is returned when a prefix matches more than one image.
	ErrAmbiguous = errors.New("image id prefix is ambiguous")
	// ErrMalformedImage is returned when config.json is missing required fields.
	ErrMalformedImage = errors.New("malformed image config")
)
