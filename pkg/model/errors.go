package model

import "github.com/m-mizutani/goerr/v2"

// Error kinds surfaced to callers. Check them with errors.Is.
var (
	// ErrConfiguration indicates a missing or invalid credential or setting.
	ErrConfiguration = goerr.New("configuration error")

	// ErrEndpoint indicates that an external endpoint (model provider or
	// remote-control server) failed or replied with an error status.
	ErrEndpoint = goerr.New("endpoint error")

	// ErrInvalidInput indicates empty or malformed user input.
	ErrInvalidInput = goerr.New("invalid input")
)

// Classify marks cause with one of the error kinds above. Both kind and
// cause stay reachable through errors.Is and errors.As.
func Classify(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return &classifiedError{kind: kind, cause: cause}
}

type classifiedError struct {
	kind  error
	cause error
}

func (e *classifiedError) Error() string {
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *classifiedError) Unwrap() []error {
	return []error{e.kind, e.cause}
}
