package docstore

import "errors"

// Sentinel errors for the shared backend error taxonomy. Adapters wrap
// backend failures with one of these so the CLI can map them to exit codes.
var (
	// ErrInvalidInput signals malformed or missing arguments, detected
	// before any backend call is made.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConnection signals an unreachable backend or failed authentication.
	ErrConnection = errors.New("backend connection failed")
	// ErrNotFound signals a missing collection or document.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a collection name collision on create.
	ErrAlreadyExists = errors.New("already exists")
	// ErrFormatting signals a normalized structure that could not be
	// rendered in the requested output format.
	ErrFormatting = errors.New("formatting failed")
)

// Process exit codes.
const (
	ExitOK         = 0
	ExitError      = 1
	ExitUsage      = 2
	ExitConnection = 3
	ExitNotFound   = 4
)

// ExitCode maps an error to the process exit code documented for the CLI.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrInvalidInput):
		return ExitUsage
	case errors.Is(err, ErrConnection):
		return ExitConnection
	case errors.Is(err, ErrNotFound):
		return ExitNotFound
	default:
		return ExitError
	}
}
