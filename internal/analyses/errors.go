package analyses

import "errors"

var (
	// ErrNotFound means no analysis exists for the given id.
	ErrNotFound = errors.New("analysis not found")

	// ErrValidation marks a rejected creation request.
	ErrValidation = errors.New("validation failed")
)
