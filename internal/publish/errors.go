package publish

import "errors"

var (
	// ErrAuth indicates the registry rejected our credentials.
	ErrAuth = errors.New("registry authentication failed")

	// ErrConflict indicates the package version already exists upstream.
	ErrConflict = errors.New("package version already published")

	// ErrNotFound indicates the requested package version does not exist.
	ErrNotFound = errors.New("package version not found")
)
